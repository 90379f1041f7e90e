package workflow

import (
	"strings"

	"ai-editorial-be/pkg/ledger"
	"ai-editorial-be/pkg/revision"
)

type blockInfo struct {
	kind  ledger.BlockType
	level int
}

// FormatDocument renders the final article as markdown. Block types come
// from the finalize response and fall back to the ledger's own block types,
// matched by paragraph position.
func FormatDocument(final string, blockTypes []revision.BlockTypeInfo, l ledger.Ledger) string {
	paragraphs := ledger.SplitParagraphs(final)
	if len(paragraphs) == 0 {
		return ""
	}

	blocks := make(map[int]blockInfo, len(paragraphs))
	if len(blockTypes) > 0 {
		for _, bt := range blockTypes {
			blocks[bt.Index] = blockInfo{kind: ledger.ParseBlockType(bt.Type), level: bt.Level}
		}
	} else {
		for _, p := range l.Paragraphs() {
			blocks[p.Index] = blockInfo{kind: p.BlockType, level: p.Level}
		}
	}

	var b strings.Builder
	var prev ledger.BlockType
	for i, text := range paragraphs {
		info, ok := blocks[i]
		if !ok || info.kind == "" {
			info = blockInfo{kind: ledger.BlockParagraph}
		}
		if info.level < 0 {
			info.level = 0
		}

		if i > 0 {
			if prev == ledger.BlockBulletItem && info.kind == ledger.BlockBulletItem {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(renderBlock(text, info))
		prev = info.kind
	}
	return b.String()
}

func renderBlock(text string, info blockInfo) string {
	switch info.kind {
	case ledger.BlockTitle:
		return "# " + stripHeading(text)
	case ledger.BlockHeading:
		depth := info.level + 2
		if depth > 6 {
			depth = 6
		}
		return strings.Repeat("#", depth) + " " + stripHeading(text)
	case ledger.BlockBulletItem:
		return strings.Repeat("  ", info.level) + "- " + stripBullet(text)
	default:
		return text
	}
}

func stripHeading(text string) string {
	return strings.TrimSpace(strings.TrimLeft(text, "#"))
}

func stripBullet(text string) string {
	text = strings.TrimSpace(text)
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(text, marker) {
			return strings.TrimSpace(text[len(marker):])
		}
	}
	return text
}
