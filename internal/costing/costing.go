// Package costing derives purchase order line amounts and totals. Every total
// is recomputed from the raw line items on each call.
package costing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

// LineItem is one priced purchase order line.
type LineItem struct {
	Quantity        float64 `json:"quantity" validate:"gte=0"`
	Rate            float64 `json:"rate" validate:"gte=0"`
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
	GSTPercent      float64 `json:"gstPercent" validate:"gte=0,lte=100"`
}

// TaxableAmount is the discounted line value before tax.
func (l LineItem) TaxableAmount() float64 {
	return l.Rate * l.Quantity * (1 - l.DiscountPercent/100)
}

// GSTAmount is the tax on the taxable amount.
func (l LineItem) GSTAmount() float64 {
	return l.TaxableAmount() * l.GSTPercent / 100
}

// LineTotal is the taxable amount plus tax.
func (l LineItem) LineTotal() float64 {
	return LineAmount(l.Rate, l.GSTPercent, l.DiscountPercent, l.Quantity)
}

// LineAmount computes rate*qty*(1-discount/100)*(1+gst/100).
func LineAmount(rate, gstPercent, discountPercent, quantity float64) float64 {
	return rate * quantity * (1 - discountPercent/100) * (1 + gstPercent/100)
}

// Subtotal sums taxable amounts.
func Subtotal(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.TaxableAmount()
	}
	return total
}

// TotalGST sums line tax.
func TotalGST(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.GSTAmount()
	}
	return total
}

// GrandTotal is Subtotal plus TotalGST.
func GrandTotal(items []LineItem) float64 {
	return Subtotal(items) + TotalGST(items)
}

var validate = validator.New()

// Validate checks every line against the LineItem ranges.
func Validate(items []LineItem) error {
	var problems []string
	for i, item := range items {
		if err := validate.Struct(item); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					problems = append(problems, fmt.Sprintf("line %d: %s must be %s %s", i+1, fe.Field(), fe.Tag(), fe.Param()))
				}
				continue
			}
			return fmt.Errorf("costing: validate line %d: %w", i+1, err)
		}
	}
	if len(problems) > 0 {
		return shared.Validationf("costing: %s", strings.Join(problems, "; "))
	}
	return nil
}
