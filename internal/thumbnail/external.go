package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"pinvault/internal/pv"
)

// CommandRenderer runs an external tool that reads the item from a scratch
// file and writes one PNG frame. The scratch directory is removed before
// Render returns.
type CommandRenderer struct {
	tool   string
	path   string
	output string
	args   func(in, outDir string) []string
}

// NewVideoRenderer grabs the first frame with ffmpeg.
func NewVideoRenderer(ffmpegPath string) *CommandRenderer {
	return &CommandRenderer{
		tool:   "ffmpeg",
		path:   ffmpegPath,
		output: "frame.png",
		args: func(in, outDir string) []string {
			return []string{"-v", "error", "-y", "-i", in, "-frames:v", "1", filepath.Join(outDir, "frame.png")}
		},
	}
}

// NewDocumentRenderer rasterizes the first PDF page with pdftoppm.
func NewDocumentRenderer(pdfToPPMPath string, size int) *CommandRenderer {
	return &CommandRenderer{
		tool:   "pdftoppm",
		path:   pdfToPPMPath,
		output: "page.png",
		args: func(in, outDir string) []string {
			return []string{"-f", "1", "-l", "1", "-png", "-singlefile", "-scale-to", strconv.Itoa(size), in, filepath.Join(outDir, "page")}
		},
	}
}

func (r *CommandRenderer) Render(ctx context.Context, item *pv.Item, content []byte) (image.Image, error) {
	if r.path == "" {
		return nil, fmt.Errorf("%s not configured: %w", r.tool, pv.ErrRendererUnavailable)
	}

	dir, err := os.MkdirTemp("", "pv-render-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+filepath.Ext(item.Name))
	if err := os.WriteFile(in, content, 0600); err != nil {
		return nil, fmt.Errorf("writing scratch input: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.path, r.args(in, dir)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed on %s: %w: %s", r.tool, item.Name, err, bytes.TrimSpace(stderr.Bytes()))
	}

	out, err := os.ReadFile(filepath.Join(dir, r.output))
	if err != nil {
		return nil, fmt.Errorf("%s produced no output for %s: %w", r.tool, item.Name, err)
	}

	img, err := decodeBounded(out)
	if err != nil {
		return nil, fmt.Errorf("decoding %s output: %w", r.tool, err)
	}
	return img, nil
}
