package ledger

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// paragraphRuneBase is the first code point of Supplementary Private Use
// Area-A; each distinct paragraph is encoded as one rune from here on.
const paragraphRuneBase = 0xF0000

// SynthesizeEdits derives paragraph-level edits from an original and a final
// text when the revision service returned no structured edits. Unchanged
// paragraphs pair with themselves, replaced runs pair positionally, and
// surplus deletions or insertions pair with an empty counterpart.
func SynthesizeEdits(original, final string) []RawEdit {
	before := SplitParagraphs(original)
	after := SplitParagraphs(final)

	table := make(map[string]rune)
	var paragraphs []string
	encode := func(list []string) []rune {
		out := make([]rune, len(list))
		for i, p := range list {
			r, ok := table[p]
			if !ok {
				r = rune(paragraphRuneBase + len(paragraphs))
				table[p] = r
				paragraphs = append(paragraphs, p)
			}
			out[i] = r
		}
		return out
	}
	a := encode(before)
	b := encode(after)

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(a, b, false)

	decode := func(text string) []string {
		var out []string
		for _, r := range text {
			out = append(out, paragraphs[int(r)-paragraphRuneBase])
		}
		return out
	}

	var edits []RawEdit
	add := func(orig, edited string) {
		index := len(edits)
		o := orig
		edits = append(edits, RawEdit{Index: &index, Original: &o, Edited: edited})
	}

	var deleted, inserted []string
	flush := func() {
		n := len(deleted)
		if len(inserted) > n {
			n = len(inserted)
		}
		for i := 0; i < n; i++ {
			var orig, edited string
			if i < len(deleted) {
				orig = deleted[i]
			}
			if i < len(inserted) {
				edited = inserted[i]
			}
			add(orig, edited)
		}
		deleted, inserted = nil, nil
	}

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			deleted = append(deleted, decode(d.Text)...)
		case diffmatchpatch.DiffInsert:
			inserted = append(inserted, decode(d.Text)...)
		case diffmatchpatch.DiffEqual:
			flush()
			for _, p := range decode(d.Text) {
				add(p, p)
			}
		}
	}
	flush()

	return edits
}
