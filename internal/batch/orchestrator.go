// Package batch unpacks an uploaded ZIP of PDFs, runs the fill pipeline on
// each document, and repacks the outputs. Per-document failures never
// abort the batch; they are recorded and the document is dropped from the
// output archive.
package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docfill/docfill/internal/fill"
)

var (
	// ErrEmptyBatch is returned when every document in the upload failed
	// and there is nothing to return.
	ErrEmptyBatch = errors.New("no documents in the batch could be processed")

	// ErrBadArchive is returned when the upload is not a readable ZIP.
	ErrBadArchive = errors.New("upload is not a readable zip archive")
)

// Status describes what happened to one archive entry.
type Status string

const (
	StatusFilled      Status = "filled"      // at least one field written
	StatusOriginal    Status = "original"    // parsed fine, nothing to write
	StatusHighlighted Status = "highlighted" // highlight mode output
	StatusCopied      Status = "copied"      // non-PDF passed through (highlight mode)
	StatusSkipped     Status = "skipped"     // non-PDF entry ignored (fill mode)
	StatusFailed      Status = "failed"      // unparseable document, dropped
)

// Result is the per-entry report embedded in the output manifest.
type Result struct {
	Filename      string   `json:"filename"`
	Output        string   `json:"output,omitempty"`
	Status        Status   `json:"status"`
	FormFilled    []string `json:"form_filled,omitempty"`
	OverlayFilled []string `json:"overlay_filled,omitempty"`
	Unfilled      []string `json:"unfilled,omitempty"`
	Truncated     []string `json:"truncated,omitempty"`
	Matches       int      `json:"matches,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Orchestrator runs bundles through the fill pipeline, one document at a
// time in upload order.
type Orchestrator struct {
	filler *fill.Filler
	logger *slog.Logger
}

// New returns an Orchestrator over the given filler.
func New(filler *fill.Filler, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{filler: filler, logger: logger}
}

// ProcessBundle fills every PDF in the uploaded archive with the given
// canonical field values and returns the output archive plus per-entry
// results. Unknown value keys are ignored. If every document fails the
// returned error wraps ErrEmptyBatch.
func (o *Orchestrator) ProcessBundle(zipData []byte, values map[string]string) ([]byte, []Result, error) {
	entries, err := decodeBundle(zipData)
	if err != nil {
		return nil, nil, err
	}

	requested := o.requestedKeys(values)

	var results []Result
	var outputs []outputEntry
	for _, entry := range entries {
		if !entry.isPDF {
			results = append(results, Result{Filename: entry.name, Status: StatusSkipped})
			o.logger.Debug("skipping non-pdf entry", "name", entry.name)
			continue
		}

		res, data := o.processDocument(entry, values, requested)
		results = append(results, res)
		if data != nil {
			outputs = append(outputs, outputEntry{name: res.Output, data: data})
		}
	}

	if len(outputs) == 0 {
		return nil, results, fmt.Errorf("%w: %d entries, %d failed",
			ErrEmptyBatch, len(entries), countFailed(results))
	}

	out, err := encodeBundle(outputs, results)
	if err != nil {
		return nil, results, err
	}
	return out, results, nil
}

// ProcessDocument runs a single named PDF through the fill pipeline
// outside of any archive. A nil data return means the document failed.
func (o *Orchestrator) ProcessDocument(name string, doc []byte, values map[string]string) (Result, []byte) {
	entry := bundleEntry{name: name, data: doc, isPDF: true}
	return o.processDocument(entry, values, o.requestedKeys(values))
}

// processDocument runs one document through form fill then overlay fill.
// A nil data return means the document failed and is dropped.
func (o *Orchestrator) processDocument(entry bundleEntry, values map[string]string, requested []string) (Result, []byte) {
	res := Result{Filename: entry.name}

	formOut, err := o.filler.FillForm(entry.data, values)
	if err != nil {
		o.logger.Warn("document failed", "name", entry.name, "error", err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res, nil
	}
	res.FormFilled = formOut.Bound

	overlayOut := &fill.OverlayOutcome{Doc: formOut.Doc}
	unbound := subtract(requested, formOut.Bound)
	if len(unbound) > 0 {
		overlayOut, err = o.filler.FillOverlay(formOut.Doc, values, unbound)
		if err != nil {
			o.logger.Warn("document failed", "name", entry.name, "error", err)
			res.Status = StatusFailed
			res.Error = err.Error()
			return res, nil
		}
		res.OverlayFilled = overlayOut.Filled
		res.Unfilled = overlayOut.Unfilled
		res.Truncated = overlayOut.Truncated
	}

	if len(formOut.Written) > 0 || len(overlayOut.Filled) > 0 {
		res.Status = StatusFilled
		res.Output = "filled_" + entry.name
	} else {
		res.Status = StatusOriginal
		res.Output = "original_" + entry.name
	}

	o.logger.Info("document processed",
		"name", entry.name,
		"status", string(res.Status),
		"form", len(res.FormFilled),
		"overlay", len(res.OverlayFilled),
		"unfilled", len(res.Unfilled),
	)
	return res, overlayOut.Doc
}

// HighlightBundle draws highlight annotations over every occurrence of the
// given phrases in each PDF. Non-PDF entries are passed through unchanged,
// matching the behavior users expect from an archive tool that only
// understands PDFs.
func (o *Orchestrator) HighlightBundle(zipData []byte, phrases []string) ([]byte, []Result, error) {
	entries, err := decodeBundle(zipData)
	if err != nil {
		return nil, nil, err
	}

	var results []Result
	var outputs []outputEntry
	for _, entry := range entries {
		if !entry.isPDF {
			results = append(results, Result{Filename: entry.name, Output: entry.name, Status: StatusCopied})
			outputs = append(outputs, outputEntry{name: entry.name, data: entry.data})
			continue
		}

		marked, matches, err := o.filler.Highlight(entry.data, phrases)
		if err != nil {
			o.logger.Warn("document failed", "name", entry.name, "error", err)
			results = append(results, Result{Filename: entry.name, Status: StatusFailed, Error: err.Error()})
			continue
		}

		res := Result{
			Filename: entry.name,
			Output:   "highlighted_" + entry.name,
			Status:   StatusHighlighted,
			Matches:  matches,
		}
		results = append(results, res)
		outputs = append(outputs, outputEntry{name: res.Output, data: marked})
		o.logger.Info("document highlighted", "name", entry.name, "matches", matches)
	}

	if len(outputs) == 0 {
		return nil, results, fmt.Errorf("%w: %d entries, %d failed",
			ErrEmptyBatch, len(entries), countFailed(results))
	}

	out, err := encodeBundle(outputs, results)
	if err != nil {
		return nil, results, err
	}
	return out, results, nil
}

// requestedKeys filters the submitted values down to non-blank entries for
// canonical keys the catalog knows, in catalog order.
func (o *Orchestrator) requestedKeys(values map[string]string) []string {
	var keys []string
	for _, key := range o.filler.Catalog().Keys() {
		if strings.TrimSpace(values[key]) != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// FailedFilenames lists the input names of failed documents, for
// user-facing error messages.
func FailedFilenames(results []Result) []string {
	var names []string
	for _, r := range results {
		if r.Status == StatusFailed {
			names = append(names, r.Filename)
		}
	}
	return names
}

func countFailed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Status == StatusFailed {
			n++
		}
	}
	return n
}

func subtract(keys, remove []string) []string {
	removed := make(map[string]bool, len(remove))
	for _, k := range remove {
		removed[k] = true
	}
	var out []string
	for _, k := range keys {
		if !removed[k] {
			out = append(out, k)
		}
	}
	return out
}
