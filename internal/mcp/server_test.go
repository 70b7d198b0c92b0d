package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfill/docfill/internal/batch"
	"github.com/docfill/docfill/internal/catalog"
	"github.com/docfill/docfill/internal/config"
	"github.com/docfill/docfill/internal/fill"
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
  - key: email
    acroform_names: ["email_address"]
`

func testComponents(t *testing.T, workDir string) (*config.Config, *pdftest.Fake, *fill.Filler, *batch.Orchestrator) {
	t.Helper()
	dir := t.TempDir()
	patterns := filepath.Join(dir, "patterns.yaml")
	mapping := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(patterns, []byte(testPatterns), 0o644))
	require.NoError(t, os.WriteFile(mapping, []byte(testMapping), 0o644))

	cat, err := catalog.Load(patterns, mapping)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeStdio
	cfg.WorkDir = workDir

	fake := pdftest.NewFake()
	filler := fill.New(fake, cat)
	return cfg, fake, filler, batch.New(filler, nil)
}

func TestNewServer(t *testing.T) {
	cfg, fake, filler, orch := testComponents(t, t.TempDir())

	srv, err := NewServer(cfg, fake, filler, orch)
	require.NoError(t, err)
	assert.NotNil(t, srv)

	_, err = NewServer(cfg, nil, filler, orch)
	assert.Error(t, err)
	_, err = NewServer(cfg, fake, nil, orch)
	assert.Error(t, err)
	_, err = NewServer(cfg, fake, filler, nil)
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	workDir := t.TempDir()
	cfg, fake, filler, orch := testComponents(t, workDir)
	srv, err := NewServer(cfg, fake, filler, orch)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "relative_path",
			path: "form.pdf",
			want: filepath.Join(workDir, "form.pdf"),
		},
		{
			name: "nested_relative_path",
			path: "docs/form.pdf",
			want: filepath.Join(workDir, "docs", "form.pdf"),
		},
		{
			name: "absolute_path_inside",
			path: filepath.Join(workDir, "form.pdf"),
			want: filepath.Join(workDir, "form.pdf"),
		},
		{
			name:    "empty_path",
			path:    "",
			wantErr: true,
		},
		{
			name:    "parent_escape",
			path:    "../outside.pdf",
			wantErr: true,
		},
		{
			name:    "nested_parent_escape",
			path:    "docs/../../outside.pdf",
			wantErr: true,
		},
		{
			name:    "absolute_path_outside",
			path:    "/etc/passwd",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := srv.resolvePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatFillResult(t *testing.T) {
	res := batch.Result{
		Filename:      "form.pdf",
		Output:        "filled_form.pdf",
		Status:        batch.StatusFilled,
		FormFilled:    []string{"name"},
		OverlayFilled: []string{"email"},
		Unfilled:      []string{"address"},
	}

	text := formatFillResult(res, "filled_form.pdf")
	assert.Contains(t, text, "form.pdf -> filled_form.pdf (filled)")
	assert.Contains(t, text, "form fields: name")
	assert.Contains(t, text, "overlaid: email")
	assert.Contains(t, text, "unfilled: address")
}
