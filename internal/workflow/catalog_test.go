package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/sheets"
)

func TestDefaultCatalogScreens(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	names := make([]string, 0)
	for _, s := range catalog.Screens() {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{
		"indent-approval", "vendor-update", "three-party-approval", "purchase-order", "get-lift",
		"store-in", "quality-check", "purchaser-status", "debit-note",
		"tally-1", "tally-2", "tally-3", "tally-4", "issue-approval",
	}, names)

	po, err := catalog.Screen("purchase-order")
	require.NoError(t, err)
	require.Equal(t, KindIndent, po.Kind)
	require.Equal(t, 4, po.Stage)
	require.Equal(t, "pos", po.Via)

	_, err = catalog.Screen("user-admin")
	require.ErrorIs(t, err, ErrUnknownScreen)
}

func TestParseCatalogRejectsBadStages(t *testing.T) {
	_, err := ParseCatalog([]byte("screens:\n  - name: x\n    kind: issue\n    stage: 2\n"))
	require.Error(t, err)
	_, err = ParseCatalog([]byte("screens:\n  - name: x\n    kind: tally-entry\n    stage: 2\n    then:\n      - stage: 1\n"))
	require.Error(t, err)
	_, err = ParseCatalog([]byte("screens:\n  - name: x\n    kind: issue\n    stage: 1\n  - name: x\n    kind: issue\n    stage: 1\n"))
	require.Error(t, err)
}

func TestPrepareRequiredAndAllowed(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	qc, err := catalog.Screen("quality-check")
	require.NoError(t, err)
	rec, err := FromRow(KindStoreIn, sheets.Row{"liftNumber": "LF-0001"})
	require.NoError(t, err)

	_, err = qc.Prepare(rec, map[string]any{})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = qc.Prepare(rec, map[string]any{"status": "Lost"})
	require.ErrorIs(t, err, shared.ErrValidation)

	out, err := qc.Prepare(rec, map[string]any{"status": "Return", "reason": "damaged", "poNumber": "dropped"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"status": "Return", "reason": "damaged"}, out)
}

func TestPrepareConditionalFields(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	issue, err := catalog.Screen("issue-approval")
	require.NoError(t, err)
	rec, err := FromRow(KindIssue, sheets.Row{"issueNo": "IS-0001"})
	require.NoError(t, err)

	_, err = issue.Prepare(rec, map[string]any{"status": "Yes"})
	require.ErrorIs(t, err, shared.ErrValidation)

	out, err := issue.Prepare(rec, map[string]any{"status": "Yes", "givenQty": 3.0})
	require.NoError(t, err)
	require.Equal(t, 3.0, out["givenQty"])

	out, err = issue.Prepare(rec, map[string]any{"status": "No", "givenQty": 3.0})
	require.NoError(t, err)
	require.Equal(t, "", out["givenQty"])
}

func TestVendorUpdateCopiesApprovedVendorForRegular(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	screen, err := catalog.Screen("vendor-update")
	require.NoError(t, err)

	regular := indentRow(sheets.Row{"vendorType": "Regular", "planned2": "2024-05-01T10:00:00Z"})
	out, err := screen.Prepare(regular, map[string]any{"vendorName1": "Acme", "rate1": 12.5, "paymentTerm1": "30 days"})
	require.NoError(t, err)
	require.Equal(t, "Acme", out["approvedVendorName"])
	require.Equal(t, 12.5, out["approvedRate"])

	next := regular
	next.Fields = regular.Fields.Merge(out)
	require.Equal(t, []int{4}, screen.FollowUps(next))

	three := indentRow(sheets.Row{"vendorType": "Three Party"})
	_, err = screen.Prepare(three, map[string]any{"vendorName1": "Acme", "rate1": 12.5, "paymentTerm1": "30 days"})
	require.ErrorIs(t, err, shared.ErrValidation)

	out, err = screen.Prepare(three, map[string]any{
		"vendorName1": "Acme", "rate1": 12.5, "paymentTerm1": "30 days",
		"vendorName2": "Globex", "rate2": 13.0, "vendorName3": "Initech", "rate3": 11.0,
	})
	require.NoError(t, err)
	require.NotContains(t, out, "approvedVendorName")
	require.Equal(t, []int{3}, screen.FollowUps(three))
}

func TestIndentApprovalRejectStopsFlow(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	screen, err := catalog.Screen("indent-approval")
	require.NoError(t, err)

	require.Empty(t, screen.FollowUps(indentRow(sheets.Row{"vendorType": "Reject"})))
	require.Equal(t, []int{2}, screen.FollowUps(indentRow(sheets.Row{"vendorType": "Regular"})))
}
