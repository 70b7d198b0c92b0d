package fill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfill/docfill/internal/catalog"
	"github.com/docfill/docfill/internal/pdf"
	"github.com/docfill/docfill/internal/pdf/pdftest"
)

const testPatterns = `labels:
  name:
    - "Name:"
    - "Full Name"
  email:
    - "Email:"
    - "Email Address"
  address:
    - "Address:"
`

const testMapping = `fields:
  - key: name
    acroform_names: ["full_name", "name"]
    write:
      anchor_label: name
      offset:
        dx: 6
        dy: 0
      font_size: 10
  - key: email
    acroform_names: ["email_address"]
    write:
      anchor_label: email
      offset:
        dx: 6
        dy: 0
      font_size: 10
  - key: address
    acroform_names: ["street_address"]
    write:
      anchor_label: address
      offset:
        dx: 6
        dy: 0
      font_size: 10
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	patterns := filepath.Join(dir, "patterns.yaml")
	mapping := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(patterns, []byte(testPatterns), 0o644))
	require.NoError(t, os.WriteFile(mapping, []byte(testMapping), 0o644))

	cat, err := catalog.Load(patterns, mapping)
	require.NoError(t, err)
	return cat
}

func TestFillForm_WritesMappedFields(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("form", &pdftest.Doc{
		Fields: []pdf.FormField{
			{Name: "full_name"},
			{Name: "email_address"},
			{Name: "unrelated"},
		},
	})

	f := New(fake, testCatalog(t))
	out, err := f.FillForm(doc, map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "email"}, out.Bound)
	assert.Equal(t, []string{"name", "email"}, out.Written)

	calls := fake.Doc(doc).SetCalls
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{
		"full_name":     "Jane Doe",
		"email_address": "jane@example.com",
	}, calls[0])
}

func TestFillForm_NoFormFields(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("flat", &pdftest.Doc{})

	f := New(fake, testCatalog(t))
	out, err := f.FillForm(doc, map[string]string{"name": "Jane Doe"})
	require.NoError(t, err)

	assert.Empty(t, out.Bound)
	assert.Empty(t, out.Written)
	assert.Empty(t, fake.Doc(doc).SetCalls)
	assert.Equal(t, doc, out.Doc)
}

func TestFillForm_FirstCandidateNameWins(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("form", &pdftest.Doc{
		Fields: []pdf.FormField{
			{Name: "name"},
			{Name: "full_name"},
		},
	})

	f := New(fake, testCatalog(t))
	_, err := f.FillForm(doc, map[string]string{"name": "Jane Doe"})
	require.NoError(t, err)

	calls := fake.Doc(doc).SetCalls
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"full_name": "Jane Doe"}, calls[0])
}

func TestFillForm_SkipsAlreadyFilledFields(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("form", &pdftest.Doc{
		Fields: []pdf.FormField{
			{Name: "full_name"},
			{Name: "email_address", Value: "old@example.com"},
		},
	})

	f := New(fake, testCatalog(t))
	out, err := f.FillForm(doc, map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "email"}, out.Bound)
	assert.Equal(t, []string{"name"}, out.Written)

	calls := fake.Doc(doc).SetCalls
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"full_name": "Jane Doe"}, calls[0])
}

func TestFillForm_PropagatesParseError(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("bad", &pdftest.Doc{FailParse: true})

	f := New(fake, testCatalog(t))
	_, err := f.FillForm(doc, map[string]string{"name": "Jane Doe"})
	assert.Error(t, err)
}

func flatPage() pdf.PageText {
	return pdf.PageText{
		Number: 1,
		Width:  612,
		Height: 792,
		Spans: []pdf.TextSpan{
			{Text: "Email:", X: 72, Y: 700, W: 30, H: 10, FontSize: 10},
			{Text: "Name:", X: 72, Y: 650, W: 28, H: 10, FontSize: 10},
		},
	}
}

func TestFillOverlay_PlacesValueAfterAnchor(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("flat", &pdftest.Doc{Pages: []pdf.PageText{flatPage()}})

	f := New(fake, testCatalog(t))
	out, err := f.FillOverlay(doc, map[string]string{"email": "jane@example.com"}, []string{"email"})
	require.NoError(t, err)

	assert.Equal(t, []string{"email"}, out.Filled)
	assert.Empty(t, out.Unfilled)
	assert.Empty(t, out.Truncated)

	marks := fake.Doc(doc).Marks
	require.Len(t, marks, 1)
	assert.Equal(t, 1, marks[0].Page)
	assert.Equal(t, 108.0, marks[0].X) // anchor right edge 102 + dx 6
	assert.Equal(t, 700.0, marks[0].Y)
	assert.Equal(t, "jane@example.com", marks[0].Text)
	assert.Equal(t, 10.0, marks[0].FontSize)
}

func TestFillOverlay_DropsBelowWhenRightSideIsFull(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("flat", &pdftest.Doc{Pages: []pdf.PageText{{
		Number: 1,
		Width:  612,
		Height: 792,
		Spans: []pdf.TextSpan{
			{Text: "Email:", X: 520, Y: 700, W: 40, H: 10, FontSize: 10},
		},
	}}})

	f := New(fake, testCatalog(t))
	out, err := f.FillOverlay(doc, map[string]string{"email": "jane@example.com"}, []string{"email"})
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, out.Filled)

	marks := fake.Doc(doc).Marks
	require.Len(t, marks, 1)
	assert.Equal(t, 520.0, marks[0].X) // anchor left edge
	assert.Equal(t, 685.0, marks[0].Y) // one and a half font sizes below
}

func TestFillOverlay_TruncatesOverlongValues(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("flat", &pdftest.Doc{Pages: []pdf.PageText{flatPage()}})

	long := strings.Repeat("x", 200)
	f := New(fake, testCatalog(t))
	out, err := f.FillOverlay(doc, map[string]string{"email": long}, []string{"email"})
	require.NoError(t, err)

	assert.Equal(t, []string{"email"}, out.Filled)
	assert.Equal(t, []string{"email"}, out.Truncated)

	marks := fake.Doc(doc).Marks
	require.Len(t, marks, 1)
	assert.Less(t, len(marks[0].Text), len(long))
	assert.True(t, strings.HasPrefix(long, marks[0].Text))
}

func TestFillOverlay_TruncatesOnRuneBoundaries(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("flat", &pdftest.Doc{Pages: []pdf.PageText{flatPage()}})

	long := "a" + strings.Repeat("é", 200)
	f := New(fake, testCatalog(t))
	out, err := f.FillOverlay(doc, map[string]string{"email": long}, []string{"email"})
	require.NoError(t, err)

	assert.Equal(t, []string{"email"}, out.Truncated)

	marks := fake.Doc(doc).Marks
	require.Len(t, marks, 1)
	assert.True(t, utf8.ValidString(marks[0].Text))
	assert.True(t, strings.HasPrefix(long, marks[0].Text))
	assert.Less(t, utf8.RuneCountInString(marks[0].Text), utf8.RuneCountInString(long))
}

func TestFillOverlay_ReportsMissingAnchors(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("flat", &pdftest.Doc{Pages: []pdf.PageText{flatPage()}})

	f := New(fake, testCatalog(t))
	out, err := f.FillOverlay(doc, map[string]string{
		"email":   "jane@example.com",
		"address": "123 Main Street",
	}, []string{"email", "address"})
	require.NoError(t, err)

	assert.Equal(t, []string{"email"}, out.Filled)
	assert.Equal(t, []string{"address"}, out.Unfilled)
}

func TestFillOverlay_NothingRequested(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("flat", &pdftest.Doc{Pages: []pdf.PageText{flatPage()}})

	f := New(fake, testCatalog(t))
	out, err := f.FillOverlay(doc, map[string]string{"email": "jane@example.com"}, nil)
	require.NoError(t, err)

	assert.Empty(t, out.Filled)
	assert.Empty(t, fake.Doc(doc).Marks)
	assert.Equal(t, doc, out.Doc)
}

func TestFillOverlay_PropagatesParseError(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("bad", &pdftest.Doc{FailParse: true})

	f := New(fake, testCatalog(t))
	_, err := f.FillOverlay(doc, map[string]string{"email": "jane@example.com"}, []string{"email"})
	assert.Error(t, err)
}
