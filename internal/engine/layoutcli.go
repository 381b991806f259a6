package engine

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	_ "image/jpeg"
	_ "image/png"
)

const defaultLayoutBinary = "marker_single"

// LayoutCLI drives the high-fidelity layout model through its command-line
// frontend. The tool writes a markdown file with inline image markers plus
// the figure rasters next to it; the marker targets are the tool's own image
// ids (e.g. "_page_0_Figure_1.jpeg") which the conversion core later rewrites.
type LayoutCLI struct {
	binPath string
	log     zerolog.Logger
}

// NewLayoutCLI resolves the layout converter binary. A missing binary is an
// ErrUnavailable so the facade can substitute the fast strategy.
func NewLayoutCLI(binary string, log zerolog.Logger) (*LayoutCLI, error) {
	if binary == "" {
		binary = defaultLayoutBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("layout converter %q not found in PATH: %w", binary, ErrUnavailable)
	}
	log.Info().Str("binary", path).Msg("layout engine ready")
	return &LayoutCLI{binPath: path, log: log}, nil
}

// Render runs the layout conversion and collects the produced markdown and
// rasters from the tool's output directory.
func (l *LayoutCLI) Render(ctx context.Context, path string) (LayoutResult, error) {
	outDir, err := os.MkdirTemp("", "layout-*")
	if err != nil {
		return LayoutResult{}, fmt.Errorf("create output directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, l.binPath, path, "--output_dir", outDir, "--output_format", "markdown")
	if out, err := cmd.CombinedOutput(); err != nil {
		return LayoutResult{}, fmt.Errorf("layout conversion failed: %w: %s", err, truncate(string(out), 512))
	}

	return collectLayoutOutput(outDir)
}

// collectLayoutOutput walks the tool's output tree for the markdown file and
// its sibling rasters.
func collectLayoutOutput(outDir string) (LayoutResult, error) {
	result := LayoutResult{Images: make(map[string]image.Image)}

	err := filepath.WalkDir(outDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".md":
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read markdown output: %w", err)
			}
			result.Markdown = string(data)
		case ".jpeg", ".jpg", ".png":
			f, err := os.Open(p)
			if err != nil {
				return fmt.Errorf("open raster %s: %w", d.Name(), err)
			}
			img, _, err := image.Decode(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("decode raster %s: %w", d.Name(), err)
			}
			result.Images[d.Name()] = img
		}
		return nil
	})
	if err != nil {
		return LayoutResult{}, err
	}
	if result.Markdown == "" {
		return LayoutResult{}, fmt.Errorf("layout converter produced no markdown output")
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Layout = (*LayoutCLI)(nil)
