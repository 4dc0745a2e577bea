// Package sheets is the record store port: one named sheet of flat rows per
// entity kind, read wholesale and written in insert or update batches.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sheet names a logical sheet in the record store.
type Sheet string

const (
	SheetIndent     Sheet = "INDENT"
	SheetPOMaster   Sheet = "PO MASTER"
	SheetIssue      Sheet = "ISSUE"
	SheetStoreIn    Sheet = "STORE IN"
	SheetTallyEntry Sheet = "TALLY ENTRY"
	SheetMaster     Sheet = "MASTER"
	SheetInventory  Sheet = "INVENTORY"
	SheetReceived   Sheet = "RECEIVED"
)

var keyFields = map[Sheet]string{
	SheetIndent:     "indentNumber",
	SheetPOMaster:   "poNumber",
	SheetIssue:      "issueNo",
	SheetStoreIn:    "liftNumber",
	SheetTallyEntry: "indentNo",
	SheetMaster:     "",
	SheetInventory:  "itemName",
	SheetReceived:   "indentNumber",
}

// All lists every sheet the service reads.
func All() []Sheet {
	return []Sheet{SheetIndent, SheetPOMaster, SheetIssue, SheetStoreIn, SheetTallyEntry, SheetMaster, SheetInventory, SheetReceived}
}

// Valid reports whether s is a known sheet.
func (s Sheet) Valid() bool {
	_, ok := keyFields[s]
	return ok
}

// KeyField returns the identity column used to match updates. MASTER has none.
func (s Sheet) KeyField() string {
	return keyFields[s]
}

// Mode selects how Post applies rows.
type Mode string

const (
	ModeInsert Mode = "insert"
	ModeUpdate Mode = "update"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeInsert || m == ModeUpdate
}

var (
	// ErrUnknownSheet is returned for sheet names outside All.
	ErrUnknownSheet = errors.New("sheets: unknown sheet")
	// ErrRowNotFound is returned when an update patch matches no row.
	ErrRowNotFound = errors.New("sheets: row not found")
	// ErrMissingKey is returned when a row lacks its identity value.
	ErrMissingKey = errors.New("sheets: row missing key")
)

// Store is the external record store contract.
type Store interface {
	// Fetch returns the full current contents of a sheet.
	Fetch(ctx context.Context, sheet Sheet) ([]Row, error)
	// Post appends rows (insert) or merges patches into every row sharing the patch key (update).
	Post(ctx context.Context, sheet Sheet, mode Mode, rows []Row) error
}

// Row is one flat sheet row. Values are strings, float64 or bool.
type Row map[string]any

// String returns the field rendered as text. Absent and nil values are "".
func (r Row) String(field string) string {
	return stringify(r[field])
}

// Float returns the field as a number, 0 when absent or unparseable.
func (r Row) Float(field string) float64 {
	switch v := r[field].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Key returns the identity value of the row for sheet.
func (r Row) Key(sheet Sheet) string {
	field := sheet.KeyField()
	if field == "" {
		return ""
	}
	return r.String(field)
}

// Clone returns a shallow copy; values are immutable scalars.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with patch applied on top.
func (r Row) Merge(patch Row) Row {
	out := r.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// CloneRows deep copies a row slice.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out
}

// Text renders a cell value the way String does.
func Text(v any) string {
	return stringify(v)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// checkPost validates a batch before it reaches a store.
func checkPost(sheet Sheet, mode Mode, rows []Row) error {
	if !sheet.Valid() {
		return ErrUnknownSheet
	}
	if !mode.Valid() {
		return fmt.Errorf("sheets: unknown mode %q", mode)
	}
	if sheet.KeyField() == "" {
		if mode == ModeUpdate {
			return fmt.Errorf("sheets: %s has no key column to update by", sheet)
		}
		return nil
	}
	for _, row := range rows {
		if row.Key(sheet) == "" {
			return ErrMissingKey
		}
	}
	return nil
}

// applyUpdate merges each patch into every row sharing its key.
func applyUpdate(sheet Sheet, existing []Row, patches []Row) ([]Row, error) {
	out := CloneRows(existing)
	for _, patch := range patches {
		key := patch.Key(sheet)
		matched := false
		for i, row := range out {
			if row.Key(sheet) == key {
				out[i] = row.Merge(patch)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: %s %s", ErrRowNotFound, sheet, key)
		}
	}
	return out, nil
}
