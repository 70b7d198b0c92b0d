package batch

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
)

// ManifestName is the report entry added to every output archive.
const ManifestName = "manifest.json"

type bundleEntry struct {
	name  string
	data  []byte
	isPDF bool
}

type outputEntry struct {
	name string
	data []byte
}

// decodeBundle reads the uploaded archive into memory. Directory entries
// and macOS resource forks are dropped; everything else is kept, flattened
// to its base name, and tagged by extension. Flattening can collide
// (a/x.pdf and b/x.pdf); later entries get a numeric suffix so names stay
// unique within the bundle.
func decodeBundle(zipData []byte) ([]bundleEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipData), int64(len(zipData)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArchive, err)
	}

	var entries []bundleEntry
	seen := map[string]bool{}
	for _, file := range zr.File {
		if file.FileInfo().IsDir() || strings.HasPrefix(file.Name, "__MACOSX/") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrBadArchive, file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrBadArchive, file.Name, err)
		}

		base := path.Base(file.Name)
		name := base
		for i := 2; seen[name]; i++ {
			name = numberedName(base, i)
		}
		seen[name] = true

		entries = append(entries, bundleEntry{
			name:  name,
			data:  data,
			isPDF: strings.HasSuffix(strings.ToLower(name), ".pdf"),
		})
	}

	return entries, nil
}

// numberedName inserts a counter before the extension: x.pdf, x_2.pdf.
func numberedName(name string, i int) string {
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), i, ext)
}

// encodeBundle packs the outputs plus the manifest into a ZIP archive.
func encodeBundle(outputs []outputEntry, results []Result) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, out := range outputs {
		w, err := zw.Create(out.name)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", out.name, err)
		}
		if _, err := w.Write(out.data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", out.name, err)
		}
	}

	manifest, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	w, err := zw.Create(ManifestName)
	if err != nil {
		return nil, fmt.Errorf("create manifest entry: %w", err)
	}
	if _, err := w.Write(manifest); err != nil {
		return nil, fmt.Errorf("write manifest entry: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
