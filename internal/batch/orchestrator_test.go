package batch

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfill/docfill/internal/catalog"
	"github.com/docfill/docfill/internal/fill"
	"github.com/docfill/docfill/internal/pdf"
	"github.com/docfill/docfill/internal/pdf/pdftest"
)

const testPatterns = `labels:
  name:
    - "Name:"
  email:
    - "Email:"
`

const testMapping = `fields:
  - key: name
    acroform_names: ["full_name"]
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
`

func testOrchestrator(t *testing.T, fake *pdftest.Fake) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	patterns := filepath.Join(dir, "patterns.yaml")
	mapping := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(patterns, []byte(testPatterns), 0o644))
	require.NoError(t, os.WriteFile(mapping, []byte(testMapping), 0o644))

	cat, err := catalog.Load(patterns, mapping)
	require.NoError(t, err)
	return New(fill.New(fake, cat), nil)
}

// makeZip packs the given entries, preserving insertion order.
func makeZip(t *testing.T, names []string, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// readZip unpacks an output archive into a name-to-bytes map.
func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string][]byte)
	for _, file := range zr.File {
		rc, err := file.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[file.Name] = content
	}
	return out
}

func flatDoc() *pdftest.Doc {
	return &pdftest.Doc{Pages: []pdf.PageText{{
		Number: 1,
		Width:  612,
		Height: 792,
		Spans: []pdf.TextSpan{
			{Text: "Email:", X: 72, Y: 700, W: 30, H: 10, FontSize: 10},
		},
	}}}
}

func TestProcessBundle(t *testing.T) {
	fake := pdftest.NewFake()
	formDoc := fake.Add("formdoc", &pdftest.Doc{
		Fields: []pdf.FormField{{Name: "full_name"}, {Name: "email_address"}},
	})
	flat := fake.Add("flatdoc", flatDoc())

	zipData := makeZip(t,
		[]string{"form.pdf", "flat.pdf", "notes.txt"},
		map[string][]byte{
			"form.pdf":  formDoc,
			"flat.pdf":  flat,
			"notes.txt": []byte("irrelevant"),
		},
	)

	orch := testOrchestrator(t, fake)
	out, results, err := orch.ProcessBundle(zipData, map[string]string{
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"unknown": "ignored",
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, StatusFilled, results[0].Status)
	assert.Equal(t, "filled_form.pdf", results[0].Output)
	assert.Equal(t, []string{"name", "email"}, results[0].FormFilled)
	// The form bound every requested field, so nothing was overlaid.
	assert.Empty(t, results[0].OverlayFilled)
	assert.Empty(t, fake.Doc(formDoc).Marks)

	// The flat document has no form fields and only an email anchor, so
	// the email is overlaid and the name stays unfilled.
	assert.Equal(t, StatusFilled, results[1].Status)
	assert.Equal(t, "filled_flat.pdf", results[1].Output)
	assert.Equal(t, []string{"email"}, results[1].OverlayFilled)
	assert.Equal(t, []string{"name"}, results[1].Unfilled)

	assert.Equal(t, StatusSkipped, results[2].Status)
	assert.Empty(t, results[2].Output)

	entries := readZip(t, out)
	assert.Contains(t, entries, "filled_form.pdf")
	assert.Contains(t, entries, "filled_flat.pdf")
	assert.NotContains(t, entries, "notes.txt")

	var manifest []Result
	require.NoError(t, json.Unmarshal(entries[ManifestName], &manifest))
	require.Len(t, manifest, 3)
	assert.Equal(t, "form.pdf", manifest[0].Filename)
}

func TestProcessBundle_NothingWrittenKeepsOriginalName(t *testing.T) {
	fake := pdftest.NewFake()
	// No form fields and no matching anchors: nothing to write.
	doc := fake.Add("empty", &pdftest.Doc{Pages: []pdf.PageText{{
		Number: 1,
		Width:  612,
		Spans:  []pdf.TextSpan{{Text: "no labels here", X: 72, Y: 700, W: 80, H: 10, FontSize: 10}},
	}}})

	zipData := makeZip(t, []string{"doc.pdf"}, map[string][]byte{"doc.pdf": doc})

	orch := testOrchestrator(t, fake)
	out, results, err := orch.ProcessBundle(zipData, map[string]string{"name": "Jane Doe"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, StatusOriginal, results[0].Status)
	assert.Equal(t, "original_doc.pdf", results[0].Output)
	assert.Equal(t, []string{"name"}, results[0].Unfilled)

	entries := readZip(t, out)
	assert.Contains(t, entries, "original_doc.pdf")
}

func TestProcessBundle_FailedDocumentIsDropped(t *testing.T) {
	fake := pdftest.NewFake()
	bad := fake.Add("bad", &pdftest.Doc{FailParse: true})
	good := fake.Add("good", flatDoc())

	zipData := makeZip(t,
		[]string{"bad.pdf", "good.pdf"},
		map[string][]byte{"bad.pdf": bad, "good.pdf": good},
	)

	orch := testOrchestrator(t, fake)
	out, results, err := orch.ProcessBundle(zipData, map[string]string{"email": "jane@example.com"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, StatusFailed, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, StatusFilled, results[1].Status)

	entries := readZip(t, out)
	assert.NotContains(t, entries, "bad.pdf")
	assert.NotContains(t, entries, "filled_bad.pdf")
	assert.Contains(t, entries, "filled_good.pdf")

	assert.Equal(t, []string{"bad.pdf"}, FailedFilenames(results))
}

func TestProcessBundle_AllFailed(t *testing.T) {
	fake := pdftest.NewFake()
	bad := fake.Add("bad", &pdftest.Doc{FailParse: true})

	zipData := makeZip(t, []string{"bad.pdf"}, map[string][]byte{"bad.pdf": bad})

	orch := testOrchestrator(t, fake)
	_, results, err := orch.ProcessBundle(zipData, map[string]string{"email": "jane@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Equal(t, []string{"bad.pdf"}, FailedFilenames(results))
}

func TestProcessBundle_BadArchive(t *testing.T) {
	orch := testOrchestrator(t, pdftest.NewFake())
	_, _, err := orch.ProcessBundle([]byte("not a zip"), map[string]string{"email": "x@y.io"})
	assert.ErrorIs(t, err, ErrBadArchive)
}

func TestProcessBundle_SkipsDirectoriesAndResourceForks(t *testing.T) {
	fake := pdftest.NewFake()
	flat := fake.Add("flatdoc", flatDoc())

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("docs/")
	require.NoError(t, err)
	w, err := zw.Create("__MACOSX/._flat.pdf")
	require.NoError(t, err)
	_, err = w.Write([]byte("fork"))
	require.NoError(t, err)
	w, err = zw.Create("docs/flat.pdf")
	require.NoError(t, err)
	_, err = w.Write(flat)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	orch := testOrchestrator(t, fake)
	_, results, err := orch.ProcessBundle(buf.Bytes(), map[string]string{"email": "jane@example.com"})
	require.NoError(t, err)

	// Nested paths are flattened to base names.
	require.Len(t, results, 1)
	assert.Equal(t, "flat.pdf", results[0].Filename)
	assert.Equal(t, "filled_flat.pdf", results[0].Output)
}

func TestProcessBundle_DisambiguatesFlattenedNames(t *testing.T) {
	fake := pdftest.NewFake()
	first := fake.Add("first", flatDoc())
	second := fake.Add("second", flatDoc())

	zipData := makeZip(t,
		[]string{"a/x.pdf", "b/x.pdf"},
		map[string][]byte{"a/x.pdf": first, "b/x.pdf": second},
	)

	orch := testOrchestrator(t, fake)
	out, results, err := orch.ProcessBundle(zipData, map[string]string{"email": "jane@example.com"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "x.pdf", results[0].Filename)
	assert.Equal(t, "x_2.pdf", results[1].Filename)

	entries := readZip(t, out)
	assert.Contains(t, entries, "filled_x.pdf")
	assert.Contains(t, entries, "filled_x_2.pdf")
}

func TestProcessDocument(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("formdoc", &pdftest.Doc{
		Fields: []pdf.FormField{{Name: "full_name"}},
	})

	orch := testOrchestrator(t, fake)
	res, out := orch.ProcessDocument("form.pdf", doc, map[string]string{"name": "Jane Doe"})

	assert.Equal(t, StatusFilled, res.Status)
	assert.Equal(t, "filled_form.pdf", res.Output)
	assert.NotNil(t, out)
}

func TestHighlightBundle(t *testing.T) {
	fake := pdftest.NewFake()
	doc := fake.Add("report", &pdftest.Doc{Pages: []pdf.PageText{{
		Number: 1,
		Width:  612,
		Spans: []pdf.TextSpan{
			{Text: "Confidential report", X: 72, Y: 700, W: 100, H: 10, FontSize: 10},
		},
	}}})

	zipData := makeZip(t,
		[]string{"report.pdf", "readme.txt"},
		map[string][]byte{
			"report.pdf": doc,
			"readme.txt": []byte("plain text"),
		},
	)

	orch := testOrchestrator(t, fake)
	out, results, err := orch.HighlightBundle(zipData, []string{"confidential"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, StatusHighlighted, results[0].Status)
	assert.Equal(t, "highlighted_report.pdf", results[0].Output)
	assert.Equal(t, 1, results[0].Matches)

	// Non-PDF entries pass through unchanged in highlight mode.
	assert.Equal(t, StatusCopied, results[1].Status)
	assert.Equal(t, "readme.txt", results[1].Output)

	entries := readZip(t, out)
	assert.Contains(t, entries, "highlighted_report.pdf")
	assert.Equal(t, []byte("plain text"), entries["readme.txt"])
	assert.Contains(t, entries, ManifestName)
}

func TestHighlightBundle_AllFailed(t *testing.T) {
	fake := pdftest.NewFake()
	bad := fake.Add("bad", &pdftest.Doc{FailParse: true})

	zipData := makeZip(t, []string{"bad.pdf"}, map[string][]byte{"bad.pdf": bad})

	orch := testOrchestrator(t, fake)
	_, _, err := orch.HighlightBundle(zipData, []string{"anything"})
	assert.ErrorIs(t, err, ErrEmptyBatch)
}
