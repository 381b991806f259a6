package engine

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
)

// Tesseract is the fast OCR engine: MuPDF rasterizes each page and Tesseract
// recognizes the raster. It trades layout fidelity for speed and a small
// memory footprint.
type Tesseract struct {
	client    *gosseract.Client
	device    Device
	languages []string
	log       zerolog.Logger
}

// NewTesseract constructs the engine bound to the given device. Requesting
// the accelerated device on a host without a GPU runtime fails with
// ErrAccelerator so the caller can downgrade and retry.
func NewTesseract(device Device, log zerolog.Logger) (*Tesseract, error) {
	if device == DeviceCUDA && !nvidiaPresent() {
		return nil, fmt.Errorf("device %s requested but no GPU runtime found: %w", device, ErrAccelerator)
	}

	client := gosseract.NewClient()
	languages := []string{"chi_sim", "eng"}
	if err := client.SetLanguage(languages...); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("configure tesseract languages: %w", err)
	}

	log.Info().Str("device", string(device)).Strs("languages", languages).Msg("tesseract engine ready")
	return &Tesseract{client: client, device: device, languages: languages, log: log}, nil
}

// Device returns the compute backend the engine was constructed with.
func (t *Tesseract) Device() Device { return t.device }

// RecognizePDF rasterizes every page and runs OCR over each one in order.
func (t *Tesseract) RecognizePDF(ctx context.Context, path string) (PagedDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return PagedDocument{}, fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	pages := make([]Page, 0, pageCount)

	for n := 0; n < pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return PagedDocument{}, err
		}

		img, err := doc.Image(n)
		if err != nil {
			return PagedDocument{}, fmt.Errorf("rasterize page %d: %w", n+1, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return PagedDocument{}, fmt.Errorf("encode page %d: %w", n+1, err)
		}
		if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
			return PagedDocument{}, fmt.Errorf("load page %d into tesseract: %w", n+1, err)
		}

		text, err := t.client.Text()
		if err != nil {
			return PagedDocument{}, fmt.Errorf("recognize page %d: %w", n+1, err)
		}

		t.log.Debug().Int("page", n+1).Int("chars", len(text)).Msg("page recognized")
		pages = append(pages, Page{Number: n + 1, Markdown: text})
	}

	return PagedDocument{Pages: pages}, nil
}

// Close releases the underlying Tesseract client.
func (t *Tesseract) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

var _ OCR = (*Tesseract)(nil)
