// Package engine wraps the heavyweight recognition backends behind small
// interfaces so the conversion core never touches model internals. The
// backends are treated as opaque capabilities: given a file path they produce
// text and, for the layout engine, in-memory rasters.
package engine

import (
	"context"
	"errors"
	"image"
	"os"
	"strings"
)

var (
	// ErrUnavailable marks an optional engine whose backing dependency is
	// not installed on this host.
	ErrUnavailable = errors.New("engine: not available")
	// ErrAccelerator marks a construction failure specific to the
	// accelerated execution provider. Callers may downgrade to CPU and
	// retry once.
	ErrAccelerator = errors.New("engine: accelerator init failed")
)

// Device names the compute backend a recognition model runs on.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// Page holds the recognized markdown for a single document page.
type Page struct {
	Number   int
	Markdown string
}

// PagedDocument is the page-structured result of a whole-document OCR pass.
// The OCR stage emits no image references; embedded rasters are extracted
// separately from the document itself.
type PagedDocument struct {
	Pages []Page
}

// Markdown renders the document as one markdown string, pages separated by
// blank lines.
func (d PagedDocument) Markdown() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if text := strings.TrimSpace(p.Markdown); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// OCR recognizes a whole document into page-structured markdown.
type OCR interface {
	RecognizePDF(ctx context.Context, path string) (PagedDocument, error)
	Close() error
}

// LayoutResult is the output of a high-fidelity layout conversion: markdown
// with inline image markers, plus the rasters those markers point at, keyed
// by the engine's own image ids.
type LayoutResult struct {
	Markdown string
	Images   map[string]image.Image
}

// Layout reconstructs a document's layout (tables, figures, reading order)
// into markdown.
type Layout interface {
	Render(ctx context.Context, path string) (LayoutResult, error)
}

// nvidiaPresent reports whether the NVIDIA kernel driver exposes at least one
// GPU. Any probing failure counts as absent.
func nvidiaPresent() bool {
	entries, err := os.ReadDir("/proc/driver/nvidia/gpus")
	if err != nil {
		return false
	}
	return len(entries) > 0
}
