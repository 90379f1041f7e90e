package editor

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrEmptySelection is returned when nothing was selected. The caller should
// re-prompt with the catalog rather than fall back to a default.
var ErrEmptySelection = errors.New("no editors selected")

// InvalidSelectionError reports tokens that did not resolve to a stage. Valid
// holds the stage numbers that did resolve, for messaging only; a selection
// with any invalid token is rejected as a whole.
type InvalidSelectionError struct {
	Invalid []string
	Valid   []int
	Max     int
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection: %s (choose numbers between 1 and %d)", strings.Join(e.Invalid, ", "), e.Max)
}

// Intent is what a free-form selection reply asks for.
type Intent int

const (
	IntentSelect Intent = iota
	IntentProceed
	IntentCancel
)

// Selection is the result of parsing a free-form reply.
type Selection struct {
	Intent   Intent
	Numbers  []int
	StageIDs []string
}

var (
	proceedWords = map[string]bool{
		"proceed": true, "continue": true, "confirm": true, "yes": true,
		"ok": true, "okay": true, "done": true, "go": true,
	}
	cancelWords = map[string]bool{
		"cancel": true, "stop": true, "abort": true, "quit": true, "exit": true,
	}

	rangeSpaces   = regexp.MustCompile(`\s*-\s*`)
	segmentSplit  = regexp.MustCompile(`[,;]+`)
	wordSplit     = regexp.MustCompile(`\s+|\band\b`)
	rangePattern  = regexp.MustCompile(`^(\d+)-(\d+)$`)
	numberPattern = regexp.MustCompile(`^\d+$`)
)

// ParseSelection interprets a free-form reply such as "1,3", "1-3", "line and
// copy", "all", "proceed" or "cancel". Keywords are recognised before any
// numeric parsing. Numbers outside 1..Len are reported through
// *InvalidSelectionError, never clamped.
func (c *Catalog) ParseSelection(text string) (Selection, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	keyword := strings.Trim(normalized, ".!? ")

	if proceedWords[keyword] {
		return Selection{Intent: IntentProceed}, nil
	}
	if cancelWords[keyword] {
		return Selection{Intent: IntentCancel}, nil
	}
	if keyword == "" {
		return Selection{}, ErrEmptySelection
	}

	picked := make(map[int]bool)
	var invalid []string

	if keyword == "all" {
		for n := 1; n <= c.Len(); n++ {
			picked[n] = true
		}
	} else {
		normalized = rangeSpaces.ReplaceAllString(normalized, "-")
		for _, segment := range segmentSplit.Split(normalized, -1) {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}
			if s, ok := c.Lookup(segment); ok {
				picked[c.number(s.ID)] = true
				continue
			}
			for _, token := range wordSplit.Split(segment, -1) {
				token = strings.TrimSpace(token)
				if token == "" {
					continue
				}
				invalid = append(invalid, c.pickToken(token, picked)...)
			}
		}
	}

	numbers := make([]int, 0, len(picked))
	for n := range picked {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	if len(invalid) > 0 {
		return Selection{}, &InvalidSelectionError{Invalid: invalid, Valid: numbers, Max: c.Len()}
	}

	ids := make([]string, 0, len(numbers))
	for _, n := range numbers {
		s, _ := c.ByNumber(n)
		ids = append(ids, s.ID)
	}

	canonical, err := c.Normalize(ids)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Intent: IntentSelect, Numbers: numbers, StageIDs: canonical}, nil
}

// pickToken marks the stage numbers a single token refers to and returns the
// parts of it that were invalid.
func (c *Catalog) pickToken(token string, picked map[int]bool) []string {
	if m := rangePattern.FindStringSubmatch(token); m != nil {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo != nil || errHi != nil {
			return []string{token}
		}
		if lo > hi {
			lo, hi = hi, lo
		}

		var bad []string
		if lo < 1 || lo > c.Len() {
			bad = append(bad, strconv.Itoa(lo))
		}
		if hi != lo && (hi < 1 || hi > c.Len()) {
			bad = append(bad, strconv.Itoa(hi))
		}
		if len(bad) > 0 {
			return bad
		}
		for n := lo; n <= hi; n++ {
			picked[n] = true
		}
		return nil
	}

	if numberPattern.MatchString(token) {
		n, err := strconv.Atoi(token)
		if err != nil || n < 1 || n > c.Len() {
			return []string{token}
		}
		picked[n] = true
		return nil
	}

	if s, ok := c.Lookup(token); ok {
		picked[c.number(s.ID)] = true
		return nil
	}
	return []string{token}
}

// Normalize validates explicit stage ids, removes duplicates, appends the
// mandatory stage and returns the ids in catalog order.
func (c *Catalog) Normalize(ids []string) ([]string, error) {
	want := make(map[string]bool, len(ids)+1)
	var unknown []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := c.ByID(id); !ok {
			unknown = append(unknown, id)
			continue
		}
		want[id] = true
	}

	if len(unknown) > 0 {
		return nil, &InvalidSelectionError{Invalid: unknown, Max: c.Len()}
	}
	if len(want) == 0 {
		return nil, ErrEmptySelection
	}

	want[c.Mandatory().ID] = true

	out := make([]string, 0, len(want))
	for _, s := range c.stages {
		if want[s.ID] {
			out = append(out, s.ID)
		}
	}
	return out, nil
}

func (c *Catalog) number(id string) int {
	for i, s := range c.stages {
		if s.ID == id {
			return i + 1
		}
	}
	return 0
}
