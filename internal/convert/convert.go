// Package convert turns an uploaded document into markdown plus an ordered
// set of extracted figures. Two strategies exist behind one interface: a fast
// OCR pass and a slower high-fidelity layout reconstruction. Both persist
// figures as PNG files under {outputBaseDir}/images/{docID}/ and rewrite
// in-text image references to stable API paths.
package convert

import (
	"context"
	"errors"
	"fmt"
)

// ImageRef names one extracted figure. Filename follows the fixed
// img_{NNN} pattern with no extension; SourceID is the engine-native
// identifier the figure was known by (a PDF object number for the fast
// strategy, the layout tool's image id for the layout strategy). SourceID
// only drives reference rewriting and is never exposed externally.
type ImageRef struct {
	Filename string
	SourceID string
}

// Result is a finished conversion: markdown whose image references all point
// at public API paths, plus the figures in extraction order. Every named
// figure exists on disk by the time a Result is returned.
type Result struct {
	Markdown string
	Images   []ImageRef
}

// Converter is the strategy contract: one document in, markdown and figures
// out. Implementations own a lazily-built handle to their recognition model.
type Converter interface {
	ConvertToMarkdown(ctx context.Context, path, docID, outputBaseDir string) (Result, error)
}

// ErrUnsupportedStrategy is returned for strategy names outside the closed
// set. Unknown names are never silently substituted.
var ErrUnsupportedStrategy = errors.New("unsupported converter strategy")

// ConversionError wraps any unrecoverable failure inside a strategy so
// callers see a single error kind regardless of which stage broke.
type ConversionError struct {
	Stage string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed at %s: %v", e.Stage, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func convErr(stage string, err error) error {
	return &ConversionError{Stage: stage, Err: err}
}
