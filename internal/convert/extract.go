package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// embeddedImage is one raster descriptor found in a page's content stream.
// Ref is the document-level object number; the same physical image may be
// listed on several pages under the same Ref.
type embeddedImage struct {
	Ref  int
	Kind string
	Data []byte
}

// documentImageReader lists a document's embedded rasters per page, in page
// order. Injectable so tests run without real PDFs.
type documentImageReader func(path string) ([][]embeddedImage, error)

// Extractor pulls embedded rasters out of a document and persists them with
// deterministic names. Extraction is best-effort: a document's text must
// still be deliverable even if its images are not.
type Extractor struct {
	read documentImageReader
	log  zerolog.Logger
}

// NewExtractor builds an Extractor backed by the PDF cross-reference table.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{read: readEmbeddedImages, log: log}
}

// Extract writes each first-seen raster to
// {outputBaseDir}/images/{docID}/img_{NNN}.png and returns the refs in
// extraction order (page order, then within-page order). It never fails:
// internal errors are logged and an empty slice is returned. Descriptors
// that fail to decode are skipped without advancing the counter.
func (e *Extractor) Extract(path, docID, outputBaseDir string) []ImageRef {
	imageDir := filepath.Join(outputBaseDir, "images", docID)
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		e.log.Error().Err(err).Str("doc_id", docID).Msg("image extraction: cannot create image dir")
		return nil
	}

	pages, err := e.read(path)
	if err != nil {
		e.log.Error().Err(err).Str("doc_id", docID).Msg("image extraction failed, continuing without images")
		return nil
	}

	var refs []ImageRef
	seen := make(map[int]struct{})
	index := 1

	for pageNr, images := range pages {
		for _, img := range images {
			if _, dup := seen[img.Ref]; dup {
				e.log.Debug().Int("xref", img.Ref).Int("page", pageNr+1).Msg("skipping duplicate image")
				continue
			}
			seen[img.Ref] = struct{}{}

			name := fmt.Sprintf("img_%03d", index)
			if err := writePNG(filepath.Join(imageDir, name+".png"), img.Data, img.Kind); err != nil {
				e.log.Warn().Err(err).Int("xref", img.Ref).Int("page", pageNr+1).Msg("image decode failed, skipping")
				continue
			}

			e.log.Info().Str("image", name).Int("xref", img.Ref).Int("page", pageNr+1).Int("bytes", len(img.Data)).Msg("image extracted")
			refs = append(refs, ImageRef{Filename: name, SourceID: strconv.Itoa(img.Ref)})
			index++
		}
	}

	if len(refs) == 0 {
		e.log.Warn().Str("doc_id", docID).Msg("no images extracted")
		return refs
	}

	// Integrity check: every returned name must exist on disk.
	for _, ref := range refs {
		if _, err := os.Stat(filepath.Join(imageDir, ref.Filename+".png")); err != nil {
			e.log.Warn().Str("image", ref.Filename).Str("doc_id", docID).Msg("extracted image missing on disk")
		}
	}

	return refs
}

// writePNG persists raw raster bytes as PNG, re-encoding non-PNG formats.
func writePNG(path string, data []byte, kind string) error {
	if kind == "png" {
		return os.WriteFile(path, data, 0o644)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s raster: %w", kind, err)
	}
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

// readEmbeddedImages lists image XObjects via pdfcpu, page by page. Within a
// page, descriptors are ordered by object number for determinism.
func readEmbeddedImages(path string) ([][]embeddedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pageImages, err := api.ExtractImagesRaw(f, nil, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("list embedded images: %w", err)
	}

	out := make([][]embeddedImage, 0, len(pageImages))
	for _, byObj := range pageImages {
		objNrs := make([]int, 0, len(byObj))
		for nr := range byObj {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		images := make([]embeddedImage, 0, len(objNrs))
		for _, nr := range objNrs {
			img := byObj[nr]
			data, err := io.ReadAll(img)
			if err != nil {
				return nil, fmt.Errorf("read image object %d: %w", nr, err)
			}
			images = append(images, embeddedImage{Ref: nr, Kind: img.FileType, Data: data})
		}
		out = append(out, images)
	}
	return out, nil
}
