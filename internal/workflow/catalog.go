package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/sheets"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ErrUnknownScreen is returned for names outside the catalog.
var ErrUnknownScreen = errors.New("workflow: unknown screen")

// Condition matches a record field against a value list. An empty In list
// matches anything not listed in NotIn.
type Condition struct {
	Field string   `yaml:"field" json:"field"`
	In    []string `yaml:"in" json:"in,omitempty"`
	NotIn []string `yaml:"not_in" json:"not_in,omitempty"`
}

// Match evaluates the condition against fields.
func (c *Condition) Match(fields sheets.Row) bool {
	if c == nil {
		return true
	}
	value := strings.TrimSpace(fields.String(c.Field))
	if len(c.In) > 0 && !slices.Contains(c.In, value) {
		return false
	}
	return !slices.Contains(c.NotIn, value)
}

// FollowUp plans another stage once the screen's stage completes.
type FollowUp struct {
	Stage int        `yaml:"stage" json:"stage"`
	When  *Condition `yaml:"when" json:"when,omitempty"`
}

// Attachment names a payload field whose value is an uploaded file.
type Attachment struct {
	Field  string `yaml:"field" json:"field"`
	Folder string `yaml:"folder" json:"folder"`
}

// ConditionalField is required when When matches and blanked otherwise.
type ConditionalField struct {
	Field string     `yaml:"field" json:"field"`
	When  *Condition `yaml:"when" json:"when"`
}

// CopyRule fills To from From when To is blank and When matches.
type CopyRule struct {
	From string     `yaml:"from" json:"from"`
	To   string     `yaml:"to" json:"to"`
	When *Condition `yaml:"when" json:"when,omitempty"`
}

// Screen is one actor-visible queue: the records pending at a stage and the
// form that completes it.
type Screen struct {
	Name        string              `yaml:"name" json:"name"`
	Title       string              `yaml:"title" json:"title"`
	Kind        Kind                `yaml:"kind" json:"kind"`
	Stage       int                 `yaml:"stage" json:"stage"`
	Via         string              `yaml:"via" json:"via,omitempty"`
	Required    []string            `yaml:"required" json:"required"`
	Optional    []string            `yaml:"optional" json:"optional"`
	Allowed     map[string][]string `yaml:"allowed" json:"allowed,omitempty"`
	Conditional []ConditionalField  `yaml:"conditional" json:"conditional,omitempty"`
	Attachments []Attachment        `yaml:"attachments" json:"attachments,omitempty"`
	Copy        []CopyRule          `yaml:"copy" json:"copy,omitempty"`
	Then        []FollowUp          `yaml:"then" json:"then,omitempty"`
}

// Catalog is the ordered screen list.
type Catalog struct {
	screens []Screen
	byName  map[string]int
}

// DefaultCatalog parses the embedded screen catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog reads and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Screens []Screen `yaml:"screens"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("workflow: parse catalog: %w", err)
	}
	c := &Catalog{byName: make(map[string]int, len(doc.Screens))}
	for _, s := range doc.Screens {
		if err := s.check(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("workflow: duplicate screen %q", s.Name)
		}
		c.byName[s.Name] = len(c.screens)
		c.screens = append(c.screens, s)
	}
	return c, nil
}

func (s Screen) check() error {
	if s.Name == "" {
		return errors.New("workflow: screen without name")
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("workflow: screen %s: unknown kind %q", s.Name, s.Kind)
	}
	if !s.Kind.HasStage(s.Stage) {
		return fmt.Errorf("workflow: screen %s: %s has no stage %d", s.Name, s.Kind, s.Stage)
	}
	for _, f := range s.Then {
		if !s.Kind.HasStage(f.Stage) || f.Stage <= s.Stage {
			return fmt.Errorf("workflow: screen %s: bad follow-up stage %d", s.Name, f.Stage)
		}
	}
	return nil
}

// Screens returns the catalog in declaration order.
func (c *Catalog) Screens() []Screen {
	return slices.Clone(c.screens)
}

// Screen looks up a screen by name.
func (c *Catalog) Screen(name string) (Screen, error) {
	idx, ok := c.byName[name]
	if !ok {
		return Screen{}, fmt.Errorf("%w: %s", ErrUnknownScreen, name)
	}
	return c.screens[idx], nil
}

// Fields lists every payload field the screen accepts.
func (s Screen) Fields() []string {
	out := append([]string{}, s.Required...)
	out = append(out, s.Optional...)
	for _, c := range s.Conditional {
		if !slices.Contains(out, c.Field) {
			out = append(out, c.Field)
		}
	}
	for _, a := range s.Attachments {
		out = append(out, a.Field)
	}
	return out
}

// Prepare validates a completion payload in the context of the record it
// will be merged into. Unknown fields are dropped; conditional fields whose
// condition fails are blanked, then copy rules fill their targets.
func (s Screen) Prepare(rec Record, payload map[string]any) (map[string]any, error) {
	accepted := s.Fields()
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if slices.Contains(accepted, k) {
			out[k] = v
		}
	}
	merged := rec.Fields.Merge(out)

	var problems []string
	for _, field := range s.Required {
		if strings.TrimSpace(merged.String(field)) == "" {
			problems = append(problems, field+" is required")
		}
	}
	for field, allowed := range s.Allowed {
		value := strings.TrimSpace(merged.String(field))
		if value != "" && !slices.Contains(allowed, value) {
			problems = append(problems, fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", ")))
		}
	}
	for _, c := range s.Conditional {
		if c.When.Match(merged) {
			if strings.TrimSpace(merged.String(c.Field)) == "" {
				problems = append(problems, c.Field+" is required")
			}
			continue
		}
		if _, ok := out[c.Field]; ok {
			out[c.Field] = ""
		}
	}
	if len(problems) > 0 {
		return nil, shared.Validationf("%s: %s", s.Name, strings.Join(problems, "; "))
	}
	for _, rule := range s.Copy {
		if !rule.When.Match(merged) {
			continue
		}
		if strings.TrimSpace(merged.String(rule.To)) != "" || merged.String(rule.From) == "" {
			continue
		}
		out[rule.To] = merged[rule.From]
	}
	return out, nil
}

// FollowUps returns the stages to plan after rec completes the screen.
func (s Screen) FollowUps(rec Record) []int {
	var stages []int
	for _, f := range s.Then {
		if f.When.Match(rec.Fields) {
			stages = append(stages, f.Stage)
		}
	}
	return stages
}
