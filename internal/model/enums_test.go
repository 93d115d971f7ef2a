package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_UnmarshalAcceptsNumbersAndNames(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{`1`, PriorityLow},
		{`2`, PriorityMedium},
		{`3`, PriorityHigh},
		{`"low"`, PriorityLow},
		{`"Medium"`, PriorityMedium},
		{`"high"`, PriorityHigh},
		{`7`, Priority(7)},
	}
	for _, tt := range tests {
		var p Priority
		require.NoError(t, json.Unmarshal([]byte(tt.in), &p), tt.in)
		assert.Equal(t, tt.want, p, tt.in)
	}
	var p Priority
	assert.Error(t, json.Unmarshal([]byte(`"urgent"`), &p))
	assert.Error(t, json.Unmarshal([]byte(`true`), &p))
	assert.False(t, Priority(7).Valid())
}

func TestPriority_MarshalsName(t *testing.T) {
	b, err := json.Marshal(Order{ID: 1, Priority: PriorityHigh, Status: OrderPending})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"priority":"high"`)
}

func TestTransactionType_Category(t *testing.T) {
	assert.Equal(t, "stock_adjustment", TxStockIncrease.Category())
	assert.Equal(t, "stock_adjustment", TxStockDecrease.Category())
	assert.Equal(t, "order_processed", TxOrderFulfilled.Category())
	assert.Equal(t, "order_cancelled", TxOrderCancelled.Category())
	assert.Equal(t, TxStockDecrease, StockAdjustmentType(-1))
	assert.Equal(t, TxStockIncrease, StockAdjustmentType(4))
}

func TestProduct_PriceIsJSONNumber(t *testing.T) {
	b, err := json.Marshal(Product{ID: 1, Name: "Mouse", Price: decimal.RequireFromString("2.50"), Quantity: 3, Category: "Accessories"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":2.5`)
}
