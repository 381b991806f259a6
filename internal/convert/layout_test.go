package convert

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/engine"
)

type fakeLayout struct {
	result engine.LayoutResult
	err    error
}

func (f *fakeLayout) Render(ctx context.Context, path string) (engine.LayoutResult, error) {
	return f.result, f.err
}

func raster(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, c)
	return img
}

func fixedLayout(result engine.LayoutResult) LayoutFactory {
	return func(zerolog.Logger) (engine.Layout, error) {
		return &fakeLayout{result: result}, nil
	}
}

func TestLayoutConverterRewritesAndSaves(t *testing.T) {
	result := engine.LayoutResult{
		Markdown: "# 报告\n\n![](_page_0_Figure_1.jpeg)\n\n![](./images/_page_1_Picture_2.jpeg)\n",
		Images: map[string]image.Image{
			"_page_0_Figure_1.jpeg":  raster(color.White),
			"_page_1_Picture_2.jpeg": raster(color.Black),
		},
	}

	c := NewLayoutConverter("/api/v1", "", fixedLayout(result), zerolog.Nop())
	out := t.TempDir()

	got, err := c.ConvertToMarkdown(context.Background(), "doc.pdf", "doc-3", out)
	if err != nil {
		t.Fatalf("ConvertToMarkdown: %v", err)
	}

	if len(got.Images) != 2 {
		t.Fatalf("images = %v, want two entries", got.Images)
	}
	// Lexicographic source id ordering fixes the numbering.
	if got.Images[0].SourceID != "_page_0_Figure_1.jpeg" || got.Images[0].Filename != "img_001" {
		t.Fatalf("first image = %+v", got.Images[0])
	}
	if got.Images[1].SourceID != "_page_1_Picture_2.jpeg" || got.Images[1].Filename != "img_002" {
		t.Fatalf("second image = %+v", got.Images[1])
	}

	if !strings.Contains(got.Markdown, "![img_001](/api/v1/documents/doc-3/images/img_001.png)") {
		t.Fatalf("first reference not rewritten:\n%s", got.Markdown)
	}
	if !strings.Contains(got.Markdown, "![img_002](/api/v1/documents/doc-3/images/img_002.png)") {
		t.Fatalf("second reference not rewritten:\n%s", got.Markdown)
	}
	if strings.Contains(got.Markdown, ".jpeg") {
		t.Fatalf("engine-local references survived:\n%s", got.Markdown)
	}

	for _, name := range []string{"img_001", "img_002"} {
		f, err := os.Open(filepath.Join(out, "images", "doc-3", name+".png"))
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		if _, err := png.Decode(f); err != nil {
			t.Fatalf("%s is not valid PNG: %v", name, err)
		}
		f.Close()
	}
}

func TestLayoutConverterNoImages(t *testing.T) {
	c := NewLayoutConverter("/api/v1", "", fixedLayout(engine.LayoutResult{Markdown: "plain text"}), zerolog.Nop())

	got, err := c.ConvertToMarkdown(context.Background(), "doc.pdf", "doc-1", t.TempDir())
	if err != nil {
		t.Fatalf("ConvertToMarkdown: %v", err)
	}
	if got.Markdown != "plain text" || len(got.Images) != 0 {
		t.Fatalf("result = %+v", got)
	}
}

func TestLayoutConverterUnavailablePassesThrough(t *testing.T) {
	factory := func(zerolog.Logger) (engine.Layout, error) {
		return nil, fmt.Errorf("layout converter %q not found in PATH: %w", "marker_single", engine.ErrUnavailable)
	}
	c := NewLayoutConverter("/api/v1", "", factory, zerolog.Nop())

	_, err := c.ConvertToMarkdown(context.Background(), "doc.pdf", "doc-1", t.TempDir())
	if !errors.Is(err, engine.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	// The facade keys substitution on the undecorated sentinel.
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		t.Fatalf("availability error was decorated: %v", err)
	}
}

func TestLayoutConverterRenderFailure(t *testing.T) {
	factory := func(zerolog.Logger) (engine.Layout, error) {
		return &fakeLayout{err: errors.New("exit status 1")}, nil
	}
	c := NewLayoutConverter("/api/v1", "", factory, zerolog.Nop())

	_, err := c.ConvertToMarkdown(context.Background(), "doc.pdf", "doc-1", t.TempDir())
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("error = %v, want ConversionError", err)
	}
	if convErr.Stage != "layout" {
		t.Fatalf("stage = %q, want layout", convErr.Stage)
	}
}
