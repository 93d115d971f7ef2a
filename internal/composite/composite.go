// Package composite prices client-side product groupings from current store prices.
package composite

import (
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-fulfillment-service/internal/apperr"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
)

// maxDepth bounds nesting of grouped components.
const maxDepth = 16

// PriceLookup returns the current product record.
type PriceLookup interface {
	Get(id int64) (model.Product, error)
}

// Calculator sums price times quantity over components. Nothing is cached:
// every call reads the prices as they are now.
type Calculator struct {
	products PriceLookup
}

// New creates a Calculator over products.
func New(products PriceLookup) *Calculator {
	return &Calculator{products: products}
}

// Calculate returns the total cost of components. Repeated product ids add up.
// A grouped component multiplies its children's total by its quantity, which
// defaults to 1 when zero.
func (c *Calculator) Calculate(components []model.Component) (decimal.Decimal, error) {
	return c.sum(components, 0)
}

func (c *Calculator) sum(components []model.Component, depth int) (decimal.Decimal, error) {
	if depth > maxDepth {
		return decimal.Zero, apperr.Validationf("components nested deeper than %d levels", maxDepth)
	}
	total := decimal.Zero
	for i, comp := range components {
		if comp.IsNested() {
			qty := comp.Quantity
			if qty == 0 {
				qty = 1
			}
			if qty < 0 {
				return decimal.Zero, apperr.Validationf("component %d: quantity must be positive", i)
			}
			sub, err := c.sum(comp.Components, depth+1)
			if err != nil {
				return decimal.Zero, err
			}
			total = total.Add(sub.Mul(decimal.NewFromInt(qty)))
			continue
		}
		if comp.ProductID <= 0 {
			return decimal.Zero, apperr.Validationf("component %d: productId is required", i)
		}
		if comp.Quantity <= 0 {
			return decimal.Zero, apperr.Validationf("component %d: quantity must be positive", i)
		}
		p, err := c.products.Get(comp.ProductID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(comp.Quantity)))
	}
	return total, nil
}
