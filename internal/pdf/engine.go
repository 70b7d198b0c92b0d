// Package pdf wraps the underlying PDF libraries behind the narrow
// capability surface the fill pipeline needs: read form fields, set form
// field values, extract positioned page text, draw text at a point, and
// highlight regions. Callers never see library types, so the pipeline can
// be exercised against a fake in tests.
package pdf

import "fmt"

// FormField is one AcroForm field with its current value. Name is the
// fully qualified field name (parent names joined with dots).
type FormField struct {
	Name  string
	Value string
}

// TextSpan is one run of extracted text with its position in PDF user
// space (origin bottom-left, units in points). Y is the baseline.
type TextSpan struct {
	Text     string
	X        float64
	Y        float64
	W        float64
	H        float64
	FontSize float64
}

// PageText holds the positioned text of one page.
type PageText struct {
	Number int // 1-based
	Width  float64
	Height float64
	Spans  []TextSpan
}

// TextMark is a request to draw text at a point on a page.
type TextMark struct {
	Page     int // 1-based
	X        float64
	Y        float64
	Text     string
	FontSize float64
}

// Region is a rectangular page area, in PDF user space.
type Region struct {
	Page int // 1-based
	X0   float64
	Y0   float64
	X1   float64
	Y1   float64
}

// Engine is the capability interface over a PDF library. All operations
// take and return whole documents as byte slices; inputs are never
// mutated.
type Engine interface {
	// FormFields lists the document's AcroForm fields. A document with
	// no AcroForm yields an empty slice, not an error.
	FormFields(doc []byte) ([]FormField, error)

	// SetFormFields writes values into the named AcroForm fields and
	// returns the updated document. Names not present in the document
	// are ignored.
	SetFormFields(doc []byte, values map[string]string) ([]byte, error)

	// PageTexts extracts positioned text for every page.
	PageTexts(doc []byte) ([]PageText, error)

	// DrawText draws each mark's text onto its page and returns the
	// updated document.
	DrawText(doc []byte, marks []TextMark) ([]byte, error)

	// Highlight adds a highlight annotation over each region and returns
	// the updated document.
	Highlight(doc []byte, regions []Region) ([]byte, error)
}

// ParseError indicates a document that cannot be parsed or rendered.
// The batch layer recovers from it per document.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pdf %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
