// Package pdftext extracts text from downloaded PDF files using the
// pdftotext CLI tool. The layout-preserving output keeps simple tables
// recoverable by the tabular analyzer.
package pdftext

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Extractor extracts text content from PDF bytes.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// PdfToText shells out to pdftotext -layout.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText writes the PDF to a temp file, runs pdftotext -layout on
// it, and returns stdout. The temp file is removed on all paths.
func (p *PdfToText) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	dir, err := os.MkdirTemp("", "solver-pdf-")
	if err != nil {
		return "", eris.Wrap(err, "pdftext: create temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, pdf, 0o600); err != nil {
		return "", eris.Wrap(err, "pdftext: write temp pdf")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "pdftext: pdftotext failed: %s", stderr.String())
	}

	return stdout.String(), nil
}
