package costing

import "github.com/shopspring/decimal"

// Totals is a purchase order summary.
type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	GST        float64 `json:"gst"`
	GrandTotal float64 `json:"grandTotal"`
}

// Summarize computes all three totals from items.
func Summarize(items []LineItem) Totals {
	sub := Subtotal(items)
	gst := TotalGST(items)
	return Totals{Subtotal: sub, GST: gst, GrandTotal: sub + gst}
}

// Round rounds each component half away from zero to places decimals. The
// grand total is the sum of the rounded parts so the identity survives.
// Negative places leaves the totals untouched.
func (t Totals) Round(places int32) Totals {
	if places < 0 {
		return t
	}
	sub := decimal.NewFromFloat(t.Subtotal).Round(places)
	gst := decimal.NewFromFloat(t.GST).Round(places)
	return Totals{
		Subtotal:   sub.InexactFloat64(),
		GST:        gst.InexactFloat64(),
		GrandTotal: sub.Add(gst).InexactFloat64(),
	}
}

// RoundAmount rounds a single amount the same way Totals.Round does.
func RoundAmount(amount float64, places int32) float64 {
	if places < 0 {
		return amount
	}
	return decimal.NewFromFloat(amount).Round(places).InexactFloat64()
}
