// Package workflow derives stage state from planned/actual timestamp pairs and
// applies stage transitions to workflow records.
package workflow

import (
	"fmt"

	"github.com/odyssey-erp/procureflow/internal/sheets"
)

// Kind identifies a workflow family. Each kind lives on its own sheet.
type Kind string

const (
	KindIndent     Kind = "indent"
	KindStoreIn    Kind = "store-in"
	KindTallyEntry Kind = "tally-entry"
	KindIssue      Kind = "issue"
)

type kindSpec struct {
	sheet sheets.Sheet
	first int
	last  int
	delay func(stage int) string
}

var kinds = map[Kind]kindSpec{
	KindIndent: {
		sheet: sheets.SheetIndent, first: 1, last: 5,
		delay: func(i int) string { return fmt.Sprintf("timeDelay%d", i) },
	},
	KindStoreIn: {
		sheet: sheets.SheetStoreIn, first: 6, last: 9,
		delay: func(i int) string {
			if i == 8 {
				return "delay8"
			}
			return fmt.Sprintf("timeDelay%d", i)
		},
	},
	KindTallyEntry: {
		sheet: sheets.SheetTallyEntry, first: 1, last: 4,
		delay: func(i int) string { return fmt.Sprintf("delay%d", i) },
	},
	KindIssue: {
		sheet: sheets.SheetIssue, first: 1, last: 1,
		delay: func(i int) string { return fmt.Sprintf("timeDelay%d", i) },
	},
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Sheet returns the sheet records of this kind are stored on.
func (k Kind) Sheet() sheets.Sheet {
	return kinds[k].sheet
}

// KeyField returns the identity column for the kind.
func (k Kind) KeyField() string {
	return kinds[k].sheet.KeyField()
}

// Stages returns the first and last stage index of the kind.
func (k Kind) Stages() (first, last int) {
	spec := kinds[k]
	return spec.first, spec.last
}

// HasStage reports whether i is inside the kind's stage range.
func (k Kind) HasStage(i int) bool {
	spec, ok := kinds[k]
	return ok && i >= spec.first && i <= spec.last
}

// DelayField names the column that records how late stage i completed.
func (k Kind) DelayField(i int) string {
	return kinds[k].delay(i)
}

// PlannedField and ActualField name the timestamp columns of stage i.
func PlannedField(i int) string { return fmt.Sprintf("planned%d", i) }

func ActualField(i int) string { return fmt.Sprintf("actual%d", i) }

// StageState is the derived state of one stage.
type StageState int

const (
	StateUnplanned StageState = iota
	StatePlanned
	StateCompleted
)

func (s StageState) String() string {
	switch s {
	case StatePlanned:
		return "planned"
	case StateCompleted:
		return "completed"
	default:
		return "unplanned"
	}
}

// StageMark is the planned/actual pair of one stage. Empty means unset.
type StageMark struct {
	Index   int    `json:"index"`
	Planned string `json:"planned"`
	Actual  string `json:"actual"`
}

// State derives the tagged state. An actual without a planned value counts as
// unplanned.
func (m StageMark) State() StageState {
	switch {
	case m.Planned == "":
		return StateUnplanned
	case m.Actual == "":
		return StatePlanned
	default:
		return StateCompleted
	}
}

// Record is one workflow row with its stage marks split out.
type Record struct {
	Kind   Kind        `json:"kind"`
	Key    string      `json:"key"`
	Stages []StageMark `json:"stages"`
	Fields sheets.Row  `json:"fields"`
}

// Stage returns the mark for stage i.
func (r Record) Stage(i int) (StageMark, bool) {
	for _, m := range r.Stages {
		if m.Index == i {
			return m, true
		}
	}
	return StageMark{}, false
}

// Field returns a payload field as text.
func (r Record) Field(name string) string {
	return r.Fields.String(name)
}

func (r Record) clone() Record {
	out := r
	out.Stages = append([]StageMark(nil), r.Stages...)
	if r.Fields != nil {
		out.Fields = r.Fields.Clone()
	} else {
		out.Fields = sheets.Row{}
	}
	return out
}

func (r *Record) setStage(mark StageMark) {
	for i := range r.Stages {
		if r.Stages[i].Index == mark.Index {
			r.Stages[i] = mark
			return
		}
	}
	r.Stages = append(r.Stages, mark)
}
