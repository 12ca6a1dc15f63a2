package bubbletea

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
	rw "github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

const tabWidth = 4

// wrapCache caches wrap results per log line. Invalidates all entries when
// width changes.
type wrapCache struct {
	entries map[string][]string
	width   int
}

func newWrapCache() *wrapCache {
	return &wrapCache{
		entries: make(map[string][]string),
	}
}

func (c *wrapCache) get(line string, width int) ([]string, bool) {
	if width != c.width {
		return nil, false
	}
	v, ok := c.entries[line]
	return v, ok
}

func (c *wrapCache) set(line string, width int, rows []string) {
	if width != c.width {
		c.entries = make(map[string][]string)
		c.width = width
	}
	c.entries[line] = rows
}

// sanitize makes a raw build log line safe to place in the viewport: escape
// sequences are stripped, tabs expanded and remaining control characters
// dropped.
func sanitize(line string) string {
	line = ansi.Strip(line)
	if !strings.ContainsFunc(line, isControl) {
		return line
	}
	var b strings.Builder
	col := 0
	for _, r := range line {
		switch {
		case r == '\t':
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case isControl(r):
		default:
			b.WriteRune(r)
			col += rw.RuneWidth(r)
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0)
}

// wrap splits line into rows no wider than width, breaking at grapheme
// cluster boundaries. A row ends after the last space that fits when there
// is one; otherwise the cluster that overflows starts a new row.
func wrap(line string, width int) []string {
	if width <= 0 || uniseg.StringWidth(line) <= width {
		return []string{line}
	}

	var (
		rows      []string
		row       strings.Builder
		rowWidth  int
		lastSpace = -1 // byte offset in row just after the last space
		spaceCol  int  // row width at lastSpace
	)

	state := -1
	rest := line
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)

		if rowWidth+w > width && row.Len() > 0 {
			current := row.String()
			if lastSpace > 0 && lastSpace < len(current) {
				rows = append(rows, strings.TrimRight(current[:lastSpace], " "))
				carry := current[lastSpace:]
				row.Reset()
				row.WriteString(carry)
				rowWidth -= spaceCol
			} else {
				rows = append(rows, strings.TrimRight(current, " "))
				row.Reset()
				rowWidth = 0
			}
			lastSpace = -1
			spaceCol = 0
		}

		row.WriteString(cluster)
		rowWidth += w
		if cluster == " " {
			lastSpace = row.Len()
			spaceCol = rowWidth
		}
	}
	if row.Len() > 0 || len(rows) == 0 {
		rows = append(rows, row.String())
	}
	return rows
}

// truncate cuts line to width cells, marking the cut with an ellipsis.
func truncate(line string, width int) string {
	if width <= 0 {
		return line
	}
	return rw.Truncate(line, width, "…")
}
