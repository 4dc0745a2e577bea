// Package numbering derives document numbers (purchase orders, revisions,
// issues, indents, lifts) from the numbers already in use.
package numbering

import (
	"fmt"
	"time"
)

// FiscalYear returns the April-to-March fiscal year containing t as "yy-yy".
func FiscalYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%02d-%02d", start%100, (start+1)%100)
}
