// Package editor holds the catalog of editor stages and the rules for turning
// a user's request into an ordered stage selection.
package editor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyCatalog      = errors.New("editor catalog is empty")
	ErrNoMandatoryStage  = errors.New("editor catalog has no mandatory stage")
	ErrManyMandatory     = errors.New("editor catalog has more than one mandatory stage")
	ErrDuplicateStageID  = errors.New("editor catalog has a duplicate stage id")
	ErrStageIDRequired   = errors.New("editor stage id is required")
	ErrStageNameRequired = errors.New("editor stage name is required")
)

// Stage is one revision pass of the pipeline.
type Stage struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Mandatory bool   `json:"mandatory" yaml:"mandatory"`
}

// ReviewedTag is the ledger tag attached to paragraphs this stage has reviewed.
func (s Stage) ReviewedTag() string {
	return s.Name + " (Reviewed)"
}

// Catalog is an immutable, ordered list of stages. Stage numbers shown to
// users are 1-based positions in this list.
type Catalog struct {
	stages    []Stage
	mandatory int
}

var defaultStages = []Stage{
	{ID: "development", Name: "Development Editor"},
	{ID: "content", Name: "Content Editor"},
	{ID: "line", Name: "Line Editor"},
	{ID: "copy", Name: "Copy Editor"},
	{ID: "brand-alignment", Name: "Brand Alignment Editor", Mandatory: true},
}

// NewCatalog validates the stages and returns a catalog holding a copy of them.
func NewCatalog(stages []Stage) (*Catalog, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{stages: make([]Stage, len(stages)), mandatory: -1}
	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		s.ID = strings.TrimSpace(s.ID)
		s.Name = strings.TrimSpace(s.Name)
		if s.ID == "" {
			return nil, ErrStageIDRequired
		}
		if s.Name == "" {
			return nil, fmt.Errorf("%w: %s", ErrStageNameRequired, s.ID)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStageID, s.ID)
		}
		seen[s.ID] = true

		if s.Mandatory {
			if c.mandatory >= 0 {
				return nil, ErrManyMandatory
			}
			c.mandatory = i
		}
		c.stages[i] = s
	}

	if c.mandatory < 0 {
		return nil, ErrNoMandatoryStage
	}
	return c, nil
}

// DefaultCatalog returns the built-in five-stage catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultStages)
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Stages []Stage `yaml:"stages"`
}

// LoadCatalog reads a YAML catalog of the form:
//
//	stages:
//	  - id: line
//	    name: Line Editor
//	  - id: brand-alignment
//	    name: Brand Alignment Editor
//	    mandatory: true
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return NewCatalog(file.Stages)
}

// Stages returns a copy of the catalog entries in order.
func (c *Catalog) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

func (c *Catalog) Len() int {
	return len(c.stages)
}

// Mandatory returns the stage that every selection must include.
func (c *Catalog) Mandatory() Stage {
	return c.stages[c.mandatory]
}

func (c *Catalog) ByID(id string) (Stage, bool) {
	for _, s := range c.stages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

// ByNumber resolves a 1-based stage number.
func (c *Catalog) ByNumber(n int) (Stage, bool) {
	if n < 1 || n > len(c.stages) {
		return Stage{}, false
	}
	return c.stages[n-1], true
}

// Lookup matches a stage by id or display name, ignoring case. The display
// name also matches without its trailing " Editor".
func (c *Catalog) Lookup(token string) (Stage, bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return Stage{}, false
	}
	for _, s := range c.stages {
		name := strings.ToLower(s.Name)
		if token == strings.ToLower(s.ID) || token == name || token == strings.TrimSuffix(name, " editor") {
			return s, true
		}
	}
	return Stage{}, false
}

// Resolve maps stage ids to catalog entries, skipping unknown ids.
func (c *Catalog) Resolve(ids []string) []Stage {
	out := make([]Stage, 0, len(ids))
	for _, id := range ids {
		if s, ok := c.ByID(id); ok {
			out = append(out, s)
		}
	}
	return out
}

// DisplayName returns the stage name for id, or id itself when unknown.
func (c *Catalog) DisplayName(id string) string {
	if s, ok := c.ByID(id); ok {
		return s.Name
	}
	return id
}

// Menu renders the numbered catalog used when prompting for a selection.
func (c *Catalog) Menu() string {
	var b strings.Builder
	b.WriteString("Which editors would you like to run? Reply with numbers (e.g. 1,3 or 1-3):\n")
	for i, s := range c.stages {
		fmt.Fprintf(&b, "%d. %s", i+1, s.Name)
		if s.Mandatory {
			b.WriteString(" (always included)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
