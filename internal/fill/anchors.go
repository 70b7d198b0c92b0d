package fill

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/docfill/docfill/internal/pdf"
)

// Spans on the same visual line can differ slightly in baseline Y.
const lineTolerance = 2.0

// anchor is a matched label occurrence with its bounding box in PDF user
// space.
type anchor struct {
	Page     int
	X0       float64
	Y0       float64
	X1       float64
	Y1       float64
	FontSize float64
}

// spanRef locates one extracted span inside its assembled line text.
// Offsets are rune indexes, which survive lowercasing; byte offsets would
// not, since a few code points change byte length when lowered.
type spanRef struct {
	start int
	end   int
	span  pdf.TextSpan
}

// textLine is one visual line of a page, assembled from extracted spans in
// left-to-right order.
type textLine struct {
	page  int
	y     float64
	text  string
	spans []spanRef
}

// buildLines groups spans into lines and orders them in reading order:
// pages ascending, lines top to bottom, spans left to right. Spans
// separated by more than a quarter of the font size get a space between
// them so split labels still read as one string.
func buildLines(pages []pdf.PageText) []textLine {
	var lines []textLine

	for _, page := range pages {
		spans := make([]pdf.TextSpan, len(page.Spans))
		copy(spans, page.Spans)
		sort.SliceStable(spans, func(i, j int) bool {
			if spans[i].Y != spans[j].Y {
				return spans[i].Y > spans[j].Y
			}
			return spans[i].X < spans[j].X
		})

		var current *textLine
		var builder strings.Builder
		runeCount := 0
		flush := func() {
			if current != nil {
				current.text = builder.String()
				lines = append(lines, *current)
			}
			current = nil
			builder.Reset()
			runeCount = 0
		}

		for _, span := range spans {
			if span.Text == "" {
				continue
			}
			if current == nil || current.y-span.Y > lineTolerance {
				flush()
				current = &textLine{page: page.Number, y: span.Y}
			}
			if builder.Len() > 0 {
				prev := current.spans[len(current.spans)-1].span
				gap := span.X - (prev.X + prev.W)
				wordGap := 0.25 * span.FontSize
				if wordGap < 1 {
					wordGap = 1
				}
				if gap > wordGap {
					builder.WriteByte(' ')
					runeCount++
				}
			}
			start := runeCount
			builder.WriteString(span.Text)
			runeCount += utf8.RuneCountInString(span.Text)
			current.spans = append(current.spans, spanRef{start: start, end: runeCount, span: span})
		}
		flush()
	}

	return lines
}

// matchIn returns the leftmost occurrence of any variant in the line, with
// its rune range. A trailing colon on a variant is optional on the page.
func matchIn(line textLine, variants []string) (start, end int, ok bool) {
	lower := []rune(strings.ToLower(line.text))
	best := -1

	for _, variant := range variants {
		v := strings.ToLower(strings.TrimSpace(variant))
		if v == "" {
			continue
		}
		candidates := []string{v}
		if trimmed := strings.TrimSuffix(v, ":"); trimmed != v && trimmed != "" {
			candidates = append(candidates, trimmed)
		}
		for _, c := range candidates {
			needle := []rune(c)
			idx := indexRunes(lower, needle)
			if idx < 0 {
				continue
			}
			if best < 0 || idx < best || (idx == best && idx+len(needle) > end) {
				best = idx
				start = idx
				end = idx + len(needle)
			}
		}
	}

	return start, end, best >= 0
}

// indexRunes returns the first occurrence of needle in hay, by rune.
func indexRunes(hay, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j := range needle {
			if hay[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// boundsFor unions the boxes of the spans overlapping the rune range
// [start, end) of the line text.
func boundsFor(line textLine, start, end int) anchor {
	a := anchor{Page: line.page}
	first := true
	for _, ref := range line.spans {
		if ref.end <= start || ref.start >= end {
			continue
		}
		s := ref.span
		if first {
			a.X0, a.Y0, a.X1, a.Y1 = s.X, s.Y, s.X+s.W, s.Y+s.H
			a.FontSize = s.FontSize
			first = false
			continue
		}
		a.X0 = min(a.X0, s.X)
		a.Y0 = min(a.Y0, s.Y)
		a.X1 = max(a.X1, s.X+s.W)
		a.Y1 = max(a.Y1, s.Y+s.H)
	}
	return a
}

// findAnchor returns the first match of any variant in reading order.
func findAnchor(lines []textLine, variants []string) (anchor, bool) {
	for _, line := range lines {
		if start, end, ok := matchIn(line, variants); ok {
			return boundsFor(line, start, end), true
		}
	}
	return anchor{}, false
}

// findAll returns every occurrence of the phrase, in reading order.
func findAll(lines []textLine, phrase string) []anchor {
	p := []rune(strings.ToLower(strings.TrimSpace(phrase)))
	if len(p) == 0 {
		return nil
	}

	var anchors []anchor
	for _, line := range lines {
		lower := []rune(strings.ToLower(line.text))
		for from := 0; from+len(p) <= len(lower); {
			idx := indexRunes(lower[from:], p)
			if idx < 0 {
				break
			}
			start := from + idx
			anchors = append(anchors, boundsFor(line, start, start+len(p)))
			from = start + len(p)
		}
	}
	return anchors
}
