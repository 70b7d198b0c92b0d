// Package fill implements the two per-document fill strategies: writing
// values into AcroForm fields, and overlaying values next to recognized
// label anchors when no form field is available.
package fill

import (
	"strings"
	"unicode/utf8"

	"github.com/docfill/docfill/internal/catalog"
	"github.com/docfill/docfill/internal/pdf"
)

const (
	// Writable area stops this far from the page's right edge.
	rightMargin = 36.0

	// Rough average glyph width as a fraction of the font size, used to
	// estimate whether a value fits. Helvetica averages just under half.
	charWidthFactor = 0.5

	fallbackPageWidth = 612.0 // US Letter
)

// Filler fills one document at a time against an immutable catalog.
type Filler struct {
	engine pdf.Engine
	cat    *catalog.Catalog
}

// New returns a Filler over the given engine and catalog.
func New(engine pdf.Engine, cat *catalog.Catalog) *Filler {
	return &Filler{engine: engine, cat: cat}
}

// Catalog exposes the filler's catalog for callers that need the known
// canonical keys.
func (f *Filler) Catalog() *catalog.Catalog {
	return f.cat
}

// FormOutcome reports a form-fill pass. Bound lists the canonical keys
// that resolved to an existing AcroForm field (whether or not a write was
// needed); Written lists the subset whose values were actually set.
type FormOutcome struct {
	Doc     []byte
	Bound   []string
	Written []string
}

// FillForm writes values into AcroForm fields via the field mapping. A
// document without any form fields is returned unchanged with an empty
// Bound set, signalling the caller to overlay every field. Fields whose
// current value already looks filled for their key are bound but not
// overwritten.
func (f *Filler) FillForm(doc []byte, values map[string]string) (*FormOutcome, error) {
	fields, err := f.engine.FormFields(doc)
	if err != nil {
		return nil, err
	}

	out := &FormOutcome{Doc: doc}
	if len(fields) == 0 {
		return out, nil
	}

	index := make(map[string]pdf.FormField, len(fields))
	for _, field := range fields {
		index[field.Name] = field
	}

	updates := map[string]string{}
	for _, entry := range f.cat.Fields() {
		value := strings.TrimSpace(values[entry.Key])
		if value == "" {
			continue
		}
		for _, name := range entry.AcroNames {
			field, ok := index[name]
			if !ok {
				continue
			}
			out.Bound = append(out.Bound, entry.Key)
			if !AlreadyFilled(entry.Key, field.Value) {
				updates[name] = value
				out.Written = append(out.Written, entry.Key)
			}
			break // first matching candidate name wins
		}
	}

	if len(updates) == 0 {
		return out, nil
	}

	filled, err := f.engine.SetFormFields(doc, updates)
	if err != nil {
		return nil, err
	}
	out.Doc = filled
	return out, nil
}

// OverlayOutcome reports an overlay pass.
type OverlayOutcome struct {
	Doc       []byte
	Filled    []string
	Truncated []string
	Unfilled  []string
}

// FillOverlay draws the values of the given unbound canonical keys next to
// their label anchors. Keys whose anchors never appear stay unfilled; that
// is an omission, not an error. Values that would run past the writable
// width are truncated.
func (f *Filler) FillOverlay(doc []byte, values map[string]string, unbound []string) (*OverlayOutcome, error) {
	out := &OverlayOutcome{Doc: doc}
	if len(unbound) == 0 {
		return out, nil
	}

	pages, err := f.engine.PageTexts(doc)
	if err != nil {
		return nil, err
	}
	lines := buildLines(pages)

	widths := make(map[int]float64, len(pages))
	for _, page := range pages {
		widths[page.Number] = page.Width
	}

	var marks []pdf.TextMark
	for _, key := range unbound {
		entry, ok := f.cat.Field(key)
		if !ok {
			continue
		}
		value := strings.TrimSpace(values[key])
		if value == "" {
			continue
		}

		a, found := findAnchor(lines, f.cat.Variants(entry.Write.AnchorLabel))
		if !found {
			out.Unfilled = append(out.Unfilled, key)
			continue
		}

		fontSize := entry.Write.FontSize
		pageWidth := widths[a.Page]
		if pageWidth <= 0 {
			pageWidth = fallbackPageWidth
		}

		x := a.X1 + entry.Write.Offset.DX
		y := a.Y0 + entry.Write.Offset.DY
		if x+textWidth(value, fontSize) > pageWidth-rightMargin {
			// Not enough room to the right of the anchor; drop below it.
			x = a.X0
			y = a.Y0 - 1.5*fontSize
		}

		text := value
		if avail := pageWidth - rightMargin - x; textWidth(text, fontSize) > avail {
			maxChars := int(avail / (charWidthFactor * fontSize))
			if maxChars < 1 {
				maxChars = 1
			}
			// Cut on rune boundaries so the stamped text stays valid UTF-8.
			if runes := []rune(text); len(runes) > maxChars {
				text = string(runes[:maxChars])
				out.Truncated = append(out.Truncated, key)
			}
		}

		marks = append(marks, pdf.TextMark{Page: a.Page, X: x, Y: y, Text: text, FontSize: fontSize})
		out.Filled = append(out.Filled, key)
	}

	if len(marks) == 0 {
		return out, nil
	}

	drawn, err := f.engine.DrawText(doc, marks)
	if err != nil {
		return nil, err
	}
	out.Doc = drawn
	return out, nil
}

func textWidth(s string, fontSize float64) float64 {
	return charWidthFactor * fontSize * float64(utf8.RuneCountInString(s))
}
