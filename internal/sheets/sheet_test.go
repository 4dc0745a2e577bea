package sheets

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowAccessors(t *testing.T) {
	row := Row{"qty": 12.5, "text": "7", "flag": true, "blank": nil}
	require.Equal(t, "12.5", row.String("qty"))
	require.Equal(t, "", row.String("missing"))
	require.Equal(t, "", row.String("blank"))
	require.Equal(t, "true", row.String("flag"))
	require.Equal(t, 7.0, row.Float("text"))
	require.Equal(t, 0.0, row.Float("missing"))
}

func TestApplyUpdateMergesEveryRowSharingKey(t *testing.T) {
	existing := []Row{
		{"issueNo": "IS-0001", "product": "bolt"},
		{"issueNo": "IS-0001", "product": "nut"},
		{"issueNo": "IS-0002", "product": "gear"},
	}
	updated, err := applyUpdate(SheetIssue, existing, []Row{{"issueNo": "IS-0001", "status": "Yes"}})
	require.NoError(t, err)
	require.Equal(t, "Yes", updated[0].String("status"))
	require.Equal(t, "Yes", updated[1].String("status"))
	require.Equal(t, "", updated[2].String("status"))
	require.Equal(t, "", existing[0].String("status"), "input rows must not be mutated")

	_, err = applyUpdate(SheetIssue, existing, []Row{{"issueNo": "IS-0404"}})
	require.ErrorIs(t, err, ErrRowNotFound)
}

func TestCheckPost(t *testing.T) {
	require.ErrorIs(t, checkPost(Sheet("NOPE"), ModeInsert, nil), ErrUnknownSheet)
	require.ErrorIs(t, checkPost(SheetIndent, ModeInsert, []Row{{"x": "1"}}), ErrMissingKey)
	require.Error(t, checkPost(SheetMaster, ModeUpdate, []Row{{"vendorName": "A"}}))
	require.NoError(t, checkPost(SheetMaster, ModeInsert, []Row{{"vendorName": "A"}}))
	require.Error(t, checkPost(SheetIndent, Mode("upsert"), nil))
}

func TestMemoryStoreInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(map[Sheet][]Row{
		SheetIndent: {{"indentNumber": "IN-0001", "planned1": "2024-05-01T10:00:00Z"}},
	})

	require.NoError(t, store.Post(ctx, SheetIndent, ModeInsert, []Row{{"indentNumber": "IN-0002"}}))
	require.NoError(t, store.Post(ctx, SheetIndent, ModeUpdate, []Row{{"indentNumber": "IN-0001", "actual1": "2024-05-02T10:00:00Z"}}))

	rows, err := store.Fetch(ctx, SheetIndent)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "2024-05-02T10:00:00Z", rows[0].String("actual1"))

	rows[0]["actual1"] = "tampered"
	again, err := store.Fetch(ctx, SheetIndent)
	require.NoError(t, err)
	require.Equal(t, "2024-05-02T10:00:00Z", again[0].String("actual1"))

	err = store.Post(ctx, SheetIndent, ModeUpdate, []Row{{"indentNumber": "IN-0009"}})
	require.True(t, errors.Is(err, ErrRowNotFound))
}

func TestWorkbookStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewWorkbookStore(filepath.Join(t.TempDir(), "procurement.xlsx"))

	rows, err := store.Fetch(ctx, SheetStoreIn)
	require.NoError(t, err)
	require.Empty(t, rows)

	require.NoError(t, store.Post(ctx, SheetStoreIn, ModeInsert, []Row{
		{"liftNumber": "LF-0001", "indentNo": "IN-0001", "planned6": "2024-05-01T10:00:00Z"},
		{"liftNumber": "LF-0002", "indentNo": "IN-0002"},
	}))
	require.NoError(t, store.Post(ctx, SheetStoreIn, ModeUpdate, []Row{
		{"liftNumber": "LF-0001", "actual6": "2024-05-03T09:00:00Z", "receivedQuantity": "4"},
	}))

	rows, err = store.Fetch(ctx, SheetStoreIn)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "LF-0001", rows[0].String("liftNumber"))
	require.Equal(t, "2024-05-03T09:00:00Z", rows[0].String("actual6"))
	require.Equal(t, 4.0, rows[0].Float("receivedQuantity"))
	require.Equal(t, "", rows[1].String("actual6"))

	err = store.Post(ctx, SheetStoreIn, ModeUpdate, []Row{{"liftNumber": "LF-0404", "actual6": "x"}})
	require.ErrorIs(t, err, ErrRowNotFound)
}

func TestDecodeMaster(t *testing.T) {
	rows := []Row{
		{"vendorName": "Acme", "vendorGstin": "27AAA", "vendorEmail": "acme@example.com", "paymentTerm": "30 days", "department": "Stores", "groupHead": "Hardware", "item": "Bolt", "companyName": "JJSPL", "defaultTerm": "Delivery within 7 days"},
		{"vendorName": "Globex", "paymentTerm": "30 days", "department": "Maintenance", "groupHead": "Hardware", "item": "Nut", "companyName": "ignored"},
		{"groupHead": "Electrical"},
	}
	master := DecodeMaster(rows)
	require.Len(t, master.Vendors, 2)
	require.Equal(t, []string{"30 days"}, master.PaymentTerms)
	require.Equal(t, []string{"Stores", "Maintenance"}, master.Departments)
	require.Equal(t, []string{"Bolt", "Nut"}, master.GroupHeads["Hardware"])
	require.Empty(t, master.GroupHeads["Electrical"])
	require.Equal(t, "JJSPL", master.CompanyName)
	require.Equal(t, []string{"Delivery within 7 days"}, master.DefaultTerms)
	require.Equal(t, "acme@example.com", master.VendorEmail("Acme"))
	require.Equal(t, "", master.VendorEmail("Globex"))
	require.Equal(t, "", master.VendorEmail("Unknown"))
}
