// Package barcode renders Code 39 label images, one PNG per item code.
// Generation is deterministic given a code, so artifacts can be deleted or
// lost and regenerated on demand.
package barcode

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code39"
	xdraw "golang.org/x/image/draw"
)

// Rendering geometry, in pixels.
const (
	moduleWidth = 3  // width of a narrow bar
	barHeight   = 96 // bar height
	quietZone   = 12 // horizontal margin on each side
)

// Generator writes barcode artifacts into a directory, keyed by item code
// (filename = <code>.png).
type Generator struct {
	dir string
}

// NewGenerator creates the artifact directory if needed.
func NewGenerator(dir string) (*Generator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating barcode directory: %w", err)
	}
	return &Generator{dir: dir}, nil
}

// Path returns the artifact path for a code.
func (g *Generator) Path(code string) string {
	return filepath.Join(g.dir, code+".png")
}

// Ensure renders the barcode PNG for code. When force is false an existing
// file is left untouched. Safe to retry; a partial file from a crashed
// write is simply overwritten next time.
func (g *Generator) Ensure(code string, force bool) (string, error) {
	if err := validateCode(code); err != nil {
		return "", err
	}

	path := g.Path(code)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	img, err := Render(code)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating barcode file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("encoding barcode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing barcode file: %w", err)
	}
	return path, nil
}

// Remove deletes the artifact for a code. A missing file is not an error.
func (g *Generator) Remove(code string) error {
	if err := validateCode(code); err != nil {
		return err
	}
	if err := os.Remove(g.Path(code)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing barcode file: %w", err)
	}
	return nil
}

// Render encodes code as a Code 39 symbol without a checksum digit and
// rasterizes it onto a white canvas with quiet zones.
func Render(code string) (image.Image, error) {
	sym, err := code39.Encode(code, false, false)
	if err != nil {
		return nil, fmt.Errorf("encoding code39: %w", err)
	}

	width := sym.Bounds().Dx() * moduleWidth
	scaled, err := barcode.Scale(sym, width, barHeight)
	if err != nil {
		return nil, fmt.Errorf("scaling barcode: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width+2*quietZone, barHeight))
	xdraw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.Copy(canvas, image.Pt(quietZone, 0), scaled, scaled.Bounds(), xdraw.Src, nil)
	return canvas, nil
}

// validateCode rejects codes that would escape the artifact directory.
func validateCode(code string) error {
	if code == "" {
		return fmt.Errorf("empty code")
	}
	if strings.ContainsAny(code, `/\`) || strings.Contains(code, "..") {
		return fmt.Errorf("invalid code %q", code)
	}
	return nil
}
