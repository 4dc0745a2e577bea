package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/sheets"
)

func indentRow(fields sheets.Row) Record {
	row := sheets.Row{"indentNumber": "IN-0001"}
	for k, v := range fields {
		row[k] = v
	}
	rec, err := FromRow(KindIndent, row)
	if err != nil {
		panic(err)
	}
	return rec
}

func TestPendingAndHistoryNeverOverlap(t *testing.T) {
	values := []any{nil, "", "2024-05-01T10:00:00Z"}
	for _, planned := range values {
		for _, actual := range values {
			row := sheets.Row{}
			if planned != nil {
				row["planned1"] = planned
			}
			if actual != nil {
				row["actual1"] = actual
			}
			rec := indentRow(row)
			require.False(t, IsPending(rec, 1) && IsHistory(rec, 1), "planned=%v actual=%v", planned, actual)
		}
	}
}

func TestStagePredicates(t *testing.T) {
	rec := indentRow(sheets.Row{"planned1": "2024-05-01T10:00:00Z"})
	require.True(t, IsPending(rec, 1))
	require.False(t, IsHistory(rec, 1))
	require.False(t, IsPending(rec, 2))

	rec = indentRow(sheets.Row{"planned1": "2024-05-01T10:00:00Z", "actual1": "2024-05-02T10:00:00Z"})
	require.False(t, IsPending(rec, 1))
	require.True(t, IsHistory(rec, 1))

	// actual without planned is neither
	rec = indentRow(sheets.Row{"actual1": "2024-05-02T10:00:00Z"})
	require.False(t, IsPending(rec, 1))
	require.False(t, IsHistory(rec, 1))

	mark, ok := rec.Stage(1)
	require.True(t, ok)
	require.Equal(t, StateUnplanned, mark.State())
}

func TestPendingHistoryBuckets(t *testing.T) {
	records := []Record{
		indentRow(sheets.Row{"indentNumber": "IN-0001", "planned2": "2024-05-01T10:00:00Z"}),
		indentRow(sheets.Row{"indentNumber": "IN-0002", "planned2": "2024-05-01T10:00:00Z", "actual2": "2024-05-01T12:00:00Z"}),
		indentRow(sheets.Row{"indentNumber": "IN-0003"}),
	}
	pending := Pending(records, 2)
	history := History(records, 2)
	require.Len(t, pending, 1)
	require.Equal(t, "IN-0001", pending[0].Key)
	require.Len(t, history, 1)
	require.Equal(t, "IN-0002", history[0].Key)
}

func TestAdvanceCompletesStageAndRecordsDelay(t *testing.T) {
	rec := indentRow(sheets.Row{"planned1": "2024-05-01T10:00:00Z"})
	at := time.Date(2024, 5, 2, 12, 30, 15, 0, time.UTC)

	next, err := Advance(rec, 1, map[string]any{"vendorType": "Regular", "actual1": "ignored"}, at)
	require.NoError(t, err)
	require.True(t, IsHistory(next, 1))
	require.Equal(t, "Regular", next.Field("vendorType"))
	require.Equal(t, "26:30:15", next.Field("timeDelay1"))
	require.Equal(t, at.Format(TimestampLayout), next.Stages[0].Actual)

	require.True(t, IsPending(rec, 1), "input record must not change")
	require.Equal(t, "", rec.Field("vendorType"))
}

func TestAdvanceRejectsInvalidTransitions(t *testing.T) {
	at := time.Now()

	_, err := Advance(indentRow(nil), 1, nil, at)
	require.ErrorIs(t, err, shared.ErrValidation)

	done := indentRow(sheets.Row{"planned1": "2024-05-01T10:00:00Z", "actual1": "2024-05-01T11:00:00Z"})
	_, err = Advance(done, 1, nil, at)
	require.ErrorIs(t, err, shared.ErrValidation)

	open := indentRow(sheets.Row{"planned1": "2024-05-01T10:00:00Z", "planned2": "2024-05-01T10:00:00Z"})
	_, err = Advance(open, 2, nil, at)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = Advance(open, 9, nil, at)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestScheduleAndDelayNaming(t *testing.T) {
	rec, err := FromRow(KindStoreIn, sheets.Row{"liftNumber": "LF-0001", "planned6": "2024-05-01T10:00:00Z", "actual6": "2024-05-01T11:00:00Z"})
	require.NoError(t, err)
	at := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	rec, err = Schedule(rec, 8, at)
	require.NoError(t, err)
	require.True(t, IsPending(rec, 8))
	_, err = Schedule(rec, 8, at)
	require.ErrorIs(t, err, shared.ErrValidation)

	rec, err = Advance(rec, 8, map[string]any{"statusPurchaser": "Return"}, at.Add(90*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "01:30:00", rec.Field("delay8"))

	require.Equal(t, "delay3", KindTallyEntry.DelayField(3))
	require.Equal(t, "timeDelay7", KindStoreIn.DelayField(7))
}

func TestParseTimestampLayouts(t *testing.T) {
	for _, value := range []string{"2024-05-01T10:00:00Z", "01/05/2024 10:00:00", "01/05/2024, 10:00:00", "2024-05-01 10:00:00"} {
		got, ok := ParseTimestamp(value)
		require.True(t, ok, value)
		require.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got.UTC(), value)
	}
	_, ok := ParseTimestamp("soon")
	require.False(t, ok)
}

func TestRowMappingAndPatch(t *testing.T) {
	row := sheets.Row{"indentNumber": "IN-0004", "planned1": "2024-05-01T10:00:00Z", "quantity": 5.0, "planned6": "kept"}
	rec, err := FromRow(KindIndent, row)
	require.NoError(t, err)
	require.Equal(t, "IN-0004", rec.Key)
	require.Len(t, rec.Stages, 5)
	require.Equal(t, "kept", rec.Field("planned6"))

	flat := ToRow(rec)
	require.Equal(t, "2024-05-01T10:00:00Z", flat.String("planned1"))
	require.Equal(t, "", flat.String("actual1"))

	next, err := Advance(rec, 1, map[string]any{"vendorType": "Regular"}, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	patch := Patch(rec, next)
	require.Equal(t, "IN-0004", patch.String("indentNumber"))
	require.Equal(t, "Regular", patch.String("vendorType"))
	require.Contains(t, patch, "actual1")
	require.Contains(t, patch, "timeDelay1")
	require.NotContains(t, patch, "quantity")
	require.NotContains(t, patch, "planned1")
}
