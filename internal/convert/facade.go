package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"server/internal/engine"
)

// Strategy names a converter implementation. The set is closed: parsing an
// unknown name is a hard configuration error, never a silent substitution.
type Strategy string

const (
	// StrategyFastOCR trades layout fidelity for speed and a small
	// memory footprint. Default.
	StrategyFastOCR Strategy = "fastocr"
	// StrategyLayout reconstructs tables and reading order at the cost of
	// a much heavier model.
	StrategyLayout Strategy = "layout"
)

// DefaultStrategy is used when no strategy name is supplied.
const DefaultStrategy = StrategyFastOCR

// ParseStrategy validates a strategy name. Empty input selects the default.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "":
		return DefaultStrategy, nil
	case StrategyFastOCR, StrategyLayout:
		return Strategy(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStrategy, name)
	}
}

// Options carries the facade's collaborators. Factories are optional and
// default to the real engines.
type Options struct {
	APIPrefix    string
	LayoutBinary string
	Selector     DeviceSelector
	NewOCR       OCRFactory
	NewLayout    LayoutFactory
	Logger       zerolog.Logger
}

// Facade selects a strategy by name and builds it lazily on the first
// Process call, so unselected strategies never load their models. If the
// layout strategy's dependency turns out to be missing, the facade falls
// back to the fast strategy once, with a warning.
type Facade struct {
	strategy Strategy
	opts     Options

	mu         sync.Mutex
	conv       Converter
	downgraded bool
}

// NewFacade validates the strategy name immediately but defers all model
// construction.
func NewFacade(name string, opts Options) (*Facade, error) {
	strategy, err := ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	opts.Selector.Log = opts.Logger
	return &Facade{strategy: strategy, opts: opts}, nil
}

// Strategy returns the strategy the facade currently resolves to.
func (f *Facade) Strategy() Strategy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strategy
}

func (f *Facade) converter() Converter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conv == nil {
		f.conv = f.build(f.strategy)
	}
	return f.conv
}

func (f *Facade) build(strategy Strategy) Converter {
	switch strategy {
	case StrategyLayout:
		return NewLayoutConverter(f.opts.APIPrefix, f.opts.LayoutBinary, f.opts.NewLayout, f.opts.Logger)
	default:
		return NewFastOCRConverter(f.opts.APIPrefix, f.opts.Selector, f.opts.NewOCR, f.opts.Logger)
	}
}

// Process delegates to the lazily-built strategy. A layout strategy whose
// dependency is not installed is replaced by the fast strategy — one hop
// only, and only for that known-optional case.
func (f *Facade) Process(ctx context.Context, path, docID, outputBaseDir string) (Result, error) {
	result, err := f.converter().ConvertToMarkdown(ctx, path, docID, outputBaseDir)
	if err == nil || !errors.Is(err, engine.ErrUnavailable) {
		return result, err
	}

	f.mu.Lock()
	if f.strategy != StrategyLayout || f.downgraded {
		f.mu.Unlock()
		return Result{}, convErr("engine init", err)
	}
	f.opts.Logger.Warn().Err(err).Msg("layout engine unavailable, falling back to fast ocr")
	f.strategy = StrategyFastOCR
	f.conv = f.build(StrategyFastOCR)
	f.downgraded = true
	f.mu.Unlock()

	return f.converter().ConvertToMarkdown(ctx, path, docID, outputBaseDir)
}
