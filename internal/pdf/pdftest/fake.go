// Package pdftest provides an in-memory Engine implementation for testing
// the fill pipeline without real PDF bytes.
package pdftest

import (
	"fmt"

	"github.com/docfill/docfill/internal/pdf"
)

// Doc is the state behind one fake document.
type Doc struct {
	Fields    []pdf.FormField
	Pages     []pdf.PageText
	FailParse bool

	// Recorded operations.
	SetCalls []map[string]string
	Marks    []pdf.TextMark
	Regions  []pdf.Region
}

// Fake implements pdf.Engine over registered in-memory documents. The
// document bytes are just the registration name, so tests can hand them
// around like real PDF buffers.
type Fake struct {
	docs map[string]*Doc
}

// NewFake returns an empty fake engine.
func NewFake() *Fake {
	return &Fake{docs: make(map[string]*Doc)}
}

// Add registers a document under name and returns the bytes that stand in
// for it.
func (f *Fake) Add(name string, d *Doc) []byte {
	f.docs[name] = d
	return []byte(name)
}

// Doc returns the state registered for the given bytes.
func (f *Fake) Doc(doc []byte) *Doc {
	return f.docs[string(doc)]
}

func (f *Fake) lookup(doc []byte, op string) (*Doc, error) {
	d, ok := f.docs[string(doc)]
	if !ok {
		return nil, &pdf.ParseError{Op: op, Err: fmt.Errorf("unknown document %q", string(doc))}
	}
	if d.FailParse {
		return nil, &pdf.ParseError{Op: op, Err: fmt.Errorf("corrupt document %q", string(doc))}
	}
	return d, nil
}

func (f *Fake) FormFields(doc []byte) ([]pdf.FormField, error) {
	d, err := f.lookup(doc, "form fields")
	if err != nil {
		return nil, err
	}
	fields := make([]pdf.FormField, len(d.Fields))
	copy(fields, d.Fields)
	return fields, nil
}

func (f *Fake) SetFormFields(doc []byte, values map[string]string) ([]byte, error) {
	d, err := f.lookup(doc, "set form fields")
	if err != nil {
		return nil, err
	}
	call := make(map[string]string, len(values))
	for name, value := range values {
		call[name] = value
		for i := range d.Fields {
			if d.Fields[i].Name == name {
				d.Fields[i].Value = value
			}
		}
	}
	d.SetCalls = append(d.SetCalls, call)
	return doc, nil
}

func (f *Fake) PageTexts(doc []byte) ([]pdf.PageText, error) {
	d, err := f.lookup(doc, "page texts")
	if err != nil {
		return nil, err
	}
	return d.Pages, nil
}

func (f *Fake) DrawText(doc []byte, marks []pdf.TextMark) ([]byte, error) {
	d, err := f.lookup(doc, "draw text")
	if err != nil {
		return nil, err
	}
	d.Marks = append(d.Marks, marks...)
	return doc, nil
}

func (f *Fake) Highlight(doc []byte, regions []pdf.Region) ([]byte, error) {
	d, err := f.lookup(doc, "highlight")
	if err != nil {
		return nil, err
	}
	d.Regions = append(d.Regions, regions...)
	return doc, nil
}
