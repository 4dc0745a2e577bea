package workflow

import (
	"fmt"

	"github.com/odyssey-erp/procureflow/internal/sheets"
)

// FromRow splits a flat sheet row into a record. Stage columns outside the
// kind's range stay in Fields.
func FromRow(kind Kind, row sheets.Row) (Record, error) {
	if !kind.Valid() {
		return Record{}, fmt.Errorf("workflow: unknown kind %q", kind)
	}
	first, last := kind.Stages()
	rec := Record{
		Kind:   kind,
		Key:    row.String(kind.KeyField()),
		Stages: make([]StageMark, 0, last-first+1),
		Fields: sheets.Row{},
	}
	for i := first; i <= last; i++ {
		rec.Stages = append(rec.Stages, StageMark{
			Index:   i,
			Planned: row.String(PlannedField(i)),
			Actual:  row.String(ActualField(i)),
		})
	}
	for k, v := range row {
		if n, ok := stageIndex(k); ok && n >= first && n <= last {
			continue
		}
		rec.Fields[k] = v
	}
	return rec, nil
}

// FromRows maps a whole snapshot.
func FromRows(kind Kind, rows []sheets.Row) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := FromRow(kind, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ToRow flattens the record back into sheet columns.
func ToRow(r Record) sheets.Row {
	row := r.Fields.Clone()
	if field := r.Kind.KeyField(); field != "" && r.Key != "" {
		row[field] = r.Key
	}
	for _, m := range r.Stages {
		row[PlannedField(m.Index)] = m.Planned
		row[ActualField(m.Index)] = m.Actual
	}
	return row
}

// Patch returns the columns that differ between before and after, plus the
// identity column, ready for an update write.
func Patch(before, after Record) sheets.Row {
	old := ToRow(before)
	patch := sheets.Row{}
	for k, v := range ToRow(after) {
		if prev, ok := old[k]; ok && sheets.Text(prev) == sheets.Text(v) {
			continue
		}
		patch[k] = v
	}
	if field := after.Kind.KeyField(); field != "" {
		patch[field] = after.Key
	}
	return patch
}
