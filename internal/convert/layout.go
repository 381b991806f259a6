package convert

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"server/internal/engine"
)

// LayoutFactory builds the layout engine. Injectable for tests and for
// availability probing.
type LayoutFactory func(log zerolog.Logger) (engine.Layout, error)

// LayoutConverter is the fidelity-oriented strategy: the layout engine emits
// markdown with inline image markers keyed by its own image ids, so each
// saved raster is rewritten in place rather than appended.
type LayoutConverter struct {
	apiPrefix string
	newEngine LayoutFactory
	log       zerolog.Logger

	mu     sync.Mutex
	layout engine.Layout
}

// NewLayoutConverter wires the layout strategy. The engine is resolved on
// first conversion; the backend selects its own device. A nil factory uses
// the external layout CLI.
func NewLayoutConverter(apiPrefix, binary string, factory LayoutFactory, log zerolog.Logger) *LayoutConverter {
	if factory == nil {
		factory = func(log zerolog.Logger) (engine.Layout, error) {
			return engine.NewLayoutCLI(binary, log)
		}
	}
	return &LayoutConverter{apiPrefix: apiPrefix, newEngine: factory, log: log}
}

func (c *LayoutConverter) handle() (engine.Layout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.layout == nil {
		layout, err := c.newEngine(c.log)
		if err != nil {
			return nil, err
		}
		c.layout = layout
	}
	return c.layout, nil
}

// ConvertToMarkdown renders the document, persists the engine's rasters and
// rewrites the inline references to public paths.
func (c *LayoutConverter) ConvertToMarkdown(ctx context.Context, path, docID, outputBaseDir string) (Result, error) {
	layout, err := c.handle()
	if err != nil {
		// Availability errors pass through undecorated so the facade
		// can substitute the fast strategy.
		return Result{}, err
	}

	c.log.Info().Str("doc_id", docID).Str("strategy", string(StrategyLayout)).Msg("conversion started")

	rendered, err := layout.Render(ctx, path)
	if err != nil {
		return Result{}, convErr("layout", err)
	}
	c.log.Info().Str("doc_id", docID).Int("chars", len(rendered.Markdown)).Int("images", len(rendered.Images)).Msg("layout render finished")

	images, err := c.saveRasters(rendered.Images, docID, outputBaseDir)
	if err != nil {
		return Result{}, convErr("save images", err)
	}

	markdown := RewriteImageRefs(rendered.Markdown, images, docID, c.apiPrefix, c.log)

	return Result{Markdown: markdown, Images: images}, nil
}

// saveRasters persists the engine's in-memory rasters as img_{NNN}.png under
// the document's image directory. Source ids are ordered lexicographically so
// numbering is deterministic for a given document.
func (c *LayoutConverter) saveRasters(rasters map[string]image.Image, docID, outputBaseDir string) ([]ImageRef, error) {
	if len(rasters) == 0 {
		return nil, nil
	}

	imageDir := filepath.Join(outputBaseDir, "images", docID)
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	sourceIDs := make([]string, 0, len(rasters))
	for id := range rasters {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	refs := make([]ImageRef, 0, len(sourceIDs))
	for i, id := range sourceIDs {
		name := fmt.Sprintf("img_%03d", i+1)
		if err := encodePNG(filepath.Join(imageDir, name+".png"), rasters[id]); err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		c.log.Info().Str("image", name).Str("source_id", id).Msg("image saved")
		refs = append(refs, ImageRef{Filename: name, SourceID: id})
	}
	return refs, nil
}

func encodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var _ Converter = (*LayoutConverter)(nil)
