package service

import (
	"github.com/shopspring/decimal"
)

type sampleProduct struct {
	name     string
	price    string
	quantity int64
	category string
}

var sampleCatalogue = []sampleProduct{
	{"Laptop", "999.99", 10, "Electronics"},
	{"Mouse", "24.99", 50, "Accessories"},
	{"Keyboard", "49.99", 30, "Accessories"},
	{"Monitor", "199.99", 15, "Electronics"},
	{"Webcam", "59.99", 8, "Accessories"},
	{"Headphones", "79.99", 20, "Audio"},
	{"USB Cable", "9.99", 100, "Accessories"},
	{"External HDD", "89.99", 12, "Storage"},
	{"SSD", "129.99", 18, "Storage"},
	{"Router", "69.99", 7, "Networking"},
}

// SeedSampleData loads the sample catalogue, recording PRODUCT_ADDED for each
// product, and returns how many products were added.
func (s *Service) SeedSampleData() (int, error) {
	for _, sp := range sampleCatalogue {
		if _, err := s.CreateProduct(sp.name, decimal.RequireFromString(sp.price), sp.quantity, sp.category); err != nil {
			return 0, err
		}
	}
	return len(sampleCatalogue), nil
}
