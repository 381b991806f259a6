// Package process runs one background conversion unit per uploaded document.
// A unit is strictly sequential (recognize, extract, rewrite, persist), owns
// its docID namespace exclusively and never surfaces a live error through
// the background boundary: every outcome ends as a jobstore artifact.
package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"server/internal/convert"
	"server/internal/domain"
	"server/internal/jobstore"
)

// DocumentConverter is what the processor needs from the conversion facade.
type DocumentConverter interface {
	Process(ctx context.Context, path, docID, outputBaseDir string) (convert.Result, error)
}

// ConverterFactory builds a facade for a validated strategy. A fresh facade
// per job keeps at most one model warm per unit of work.
type ConverterFactory func(strategy convert.Strategy) (DocumentConverter, error)

// Processor coordinates background document processing and persists the
// outcome.
type Processor struct {
	store      *jobstore.Store
	converters ConverterFactory
	log        zerolog.Logger
}

// New wires a Processor.
func New(store *jobstore.Store, converters ConverterFactory, log zerolog.Logger) *Processor {
	return &Processor{store: store, converters: converters, log: log}
}

// Run executes one conversion unit to completion. It is meant to be called
// in its own goroutine; it never returns an error and never panics outward.
// No retries and no cancellation: a failed unit is terminal and a client
// re-uploads.
func (p *Processor) Run(ctx context.Context, docID, filePath string, kind domain.FileKind, strategy convert.Strategy) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(docID, filePath, "panic", fmt.Errorf("background processing panicked: %v", r))
		}
	}()

	p.log.Info().Str("doc_id", docID).Str("file_kind", string(kind)).Str("strategy", string(strategy)).Msg("background processing started")

	if kind != domain.KindPDF {
		p.fail(docID, filePath, "unsupported_file_type", fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, kind))
		return
	}

	conv, err := p.converters(strategy)
	if err != nil {
		p.fail(docID, filePath, errorType(err), err)
		return
	}

	result, err := conv.Process(ctx, filePath, docID, p.store.BasePath())
	if err != nil {
		p.fail(docID, filePath, errorType(err), err)
		return
	}

	if err := p.store.WriteMarkdown(docID, []byte(result.Markdown)); err != nil {
		p.fail(docID, filePath, "persistence_error", err)
		return
	}

	p.log.Info().Str("doc_id", docID).Int("markdown_bytes", len(result.Markdown)).Int("images", len(result.Images)).Msg("document processed")
}

func (p *Processor) fail(docID, filePath, errorType string, cause error) {
	if err := p.store.WriteFailure(docID, filePath, errorType, cause); err != nil {
		p.log.Error().Err(err).Str("doc_id", docID).Msg("failed to persist failure record")
	}
}

// errorType classifies an error for the failure record.
func errorType(err error) string {
	var convErr *convert.ConversionError
	switch {
	case errors.Is(err, convert.ErrUnsupportedStrategy):
		return "configuration_error"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return "unsupported_file_type"
	case errors.As(err, &convErr):
		return "conversion_error"
	default:
		return "processing_error"
	}
}
