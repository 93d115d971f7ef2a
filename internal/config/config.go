// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for the HTTP server, the domain
// components and the transaction relay.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	LockTimeout       time.Duration
	LowStockThreshold int
	TransactionsLimit int
	SeedSampleData    bool

	InitialWorkerCount      int
	WorkerMin               int
	WorkerMax               int
	ScaleInterval           time.Duration
	ScaleUpBacklogPerWorker int
	ScaleDownIdleTicks      int
	QueueHighWatermark      int

	AMQPURL      string
	AMQPExchange string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolenv(key string, def bool) bool {
	v := strings.TrimSpace(getenv(key, ""))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	minWorkers := atoienv("RELAY_WORKER_MIN", 1)
	maxWorkers := atoienv("RELAY_WORKER_MAX", 4)
	initialWorkers := atoienv("RELAY_WORKER_COUNT", minWorkers)
	return Config{
		HTTPAddr:                getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:         durenvs("SHUTDOWN_TIMEOUT", 15),
		LogLevel:                getenv("LOG_LEVEL", "info"),
		LockTimeout:             durenvms("LOCK_TIMEOUT_MS", 250),
		LowStockThreshold:       atoienv("LOW_STOCK_THRESHOLD", 5),
		TransactionsLimit:       atoienv("TRANSACTIONS_DEFAULT_LIMIT", 10),
		SeedSampleData:          boolenv("SEED_SAMPLE_DATA", false),
		InitialWorkerCount:      initialWorkers,
		WorkerMin:               minWorkers,
		WorkerMax:               maxWorkers,
		ScaleInterval:           durenvms("SCALE_INTERVAL_MS", 500),
		ScaleUpBacklogPerWorker: atoienv("SCALE_UP_BACKLOG_PER_WORKER", 100),
		ScaleDownIdleTicks:      atoienv("SCALE_DOWN_IDLE_TICKS", 6),
		QueueHighWatermark:      atoienv("QUEUE_HIGH_WATERMARK", 5000),
		AMQPURL:                 getenv("AMQP_URL", ""),
		AMQPExchange:            getenv("AMQP_EXCHANGE", "inventory.transactions"),
	}
}
