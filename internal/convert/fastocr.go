package convert

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"server/internal/engine"
)

// OCRFactory builds the fast OCR engine for a device. Injectable so tests
// never load real models.
type OCRFactory func(device engine.Device, log zerolog.Logger) (engine.OCR, error)

// FastOCRConverter is the speed-oriented strategy: whole-document OCR,
// embedded-raster extraction straight from the document's content streams,
// and an appended figure section (the OCR stage produces no inline markers
// to rewrite).
type FastOCRConverter struct {
	apiPrefix string
	extractor *Extractor
	selector  DeviceSelector
	newEngine OCRFactory
	log       zerolog.Logger

	mu     sync.Mutex
	ocr    engine.OCR
	device engine.Device
}

// NewFastOCRConverter wires the fast strategy. The model handle is not built
// here; construction is deferred to the first conversion. A nil factory uses
// the Tesseract engine.
func NewFastOCRConverter(apiPrefix string, selector DeviceSelector, factory OCRFactory, log zerolog.Logger) *FastOCRConverter {
	if factory == nil {
		factory = func(device engine.Device, log zerolog.Logger) (engine.OCR, error) {
			return engine.NewTesseract(device, log)
		}
	}
	return &FastOCRConverter{
		apiPrefix: apiPrefix,
		extractor: NewExtractor(log),
		selector:  selector,
		newEngine: factory,
		log:       log,
	}
}

// handle returns the model handle, building it on first use. A recognized
// accelerator-provider failure downgrades to CPU and retries exactly once;
// any other construction failure propagates.
func (c *FastOCRConverter) handle() (engine.OCR, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ocr != nil {
		return c.ocr, nil
	}

	device := c.selector.Resolve()
	ocr, err := c.newEngine(device, c.log)
	if err != nil && device == engine.DeviceCUDA && errors.Is(err, engine.ErrAccelerator) {
		c.log.Warn().Err(err).Msg("accelerated init failed, downgrading to cpu")
		device = engine.DeviceCPU
		ocr, err = c.newEngine(device, c.log)
	}
	if err != nil {
		return nil, convErr("engine init", err)
	}

	c.ocr = ocr
	c.device = device
	return c.ocr, nil
}

// Device reports the device the engine ended up on. Zero value until the
// first conversion builds the handle.
func (c *FastOCRConverter) Device() engine.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

// ConvertToMarkdown runs OCR, extracts embedded rasters, and appends the
// figure section.
func (c *FastOCRConverter) ConvertToMarkdown(ctx context.Context, path, docID, outputBaseDir string) (Result, error) {
	ocr, err := c.handle()
	if err != nil {
		return Result{}, err
	}

	c.log.Info().Str("doc_id", docID).Str("strategy", string(StrategyFastOCR)).Msg("conversion started")

	doc, err := ocr.RecognizePDF(ctx, path)
	if err != nil {
		return Result{}, convErr("ocr", err)
	}
	markdown := doc.Markdown()
	c.log.Info().Str("doc_id", docID).Int("pages", len(doc.Pages)).Int("chars", len(markdown)).Msg("ocr finished")

	images := c.extractor.Extract(path, docID, outputBaseDir)
	c.log.Info().Str("doc_id", docID).Int("images", len(images)).Msg("image extraction finished")

	markdown = AppendImageSection(markdown, images, docID, c.apiPrefix)

	return Result{Markdown: markdown, Images: images}, nil
}

var _ Converter = (*FastOCRConverter)(nil)
