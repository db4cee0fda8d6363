package fs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	// Formats beyond the standard library.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/marmos91/gridcache/pkg/asset"
	"github.com/marmos91/gridcache/pkg/bufpool"
	"github.com/marmos91/gridcache/pkg/catalog"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

func isImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// readFile reads path into a pooled buffer. The caller must bufpool.Put the
// returned slice once it is done with it.
func readFile(path string, maxSize int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%s: %d bytes: %w", path, size, ErrFileTooLarge)
	}

	buf := bufpool.Get(int(size))
	n, err := io.ReadFull(f, buf[:size])
	if err != nil {
		bufpool.Put(buf)
		return nil, err
	}
	return buf[:n], nil
}

// decodeConfig reads only the image header.
func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	return cfg, err
}

type decoded struct {
	img   image.Image
	bytes int64
	err   error
}

// decodeScaled reads and decodes path, then scales the result to fit size.
// It gives up when ctx ends; the decode itself keeps running in the
// background and its result is dropped.
func decodeScaled(ctx context.Context, path string, maxSize int64, size asset.Size, fidelity catalog.Fidelity) decoded {
	out := make(chan decoded, 1)
	go func() {
		buf, err := readFile(path, maxSize)
		if err != nil {
			out <- decoded{err: err}
			return
		}
		defer bufpool.Put(buf)

		img, _, err := image.Decode(bytes.NewReader(buf))
		if err != nil {
			out <- decoded{bytes: int64(len(buf)), err: err}
			return
		}
		out <- decoded{img: scale(img, size, fidelity), bytes: int64(len(buf))}
	}()

	select {
	case d := <-out:
		return d
	case <-ctx.Done():
		return decoded{err: ctx.Err()}
	}
}

// scale resizes img to size. A zero size, or one at least as large as the
// source, returns img unchanged. Low fidelity uses a cheaper interpolator.
func scale(img image.Image, size asset.Size, fidelity catalog.Fidelity) image.Image {
	if size.IsZero() {
		return img
	}
	b := img.Bounds()
	w := max(1, int(math.Round(size.Width)))
	h := max(1, int(math.Round(size.Height)))
	if w >= b.Dx() && h >= b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	var interp draw.Interpolator = draw.CatmullRom
	if fidelity == catalog.FidelityLow {
		interp = draw.ApproxBiLinear
	}
	interp.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
