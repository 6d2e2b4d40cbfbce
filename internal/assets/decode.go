// Package assets loads layer images: it rejects non-image input by its
// magic bytes, decodes the common raster formats into owned RGBA copies and
// fetches them from a directory or an S3 bucket.
package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/anthonynsimon/bild/clone"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes caps the size of a single image read.
const DefaultMaxBytes = 64 << 20

// sniffLen is how many leading bytes the type matcher looks at.
const sniffLen = 261

var (
	// ErrNotImage is returned for input whose content is not an image.
	ErrNotImage = errors.New("not an image")
	// ErrTooLarge is returned when the input exceeds the read limit.
	ErrTooLarge = errors.New("image too large")
)

// Sniff checks the leading bytes of a file and returns its MIME type. It
// fails with ErrNotImage for anything that is not an image.
func Sniff(head []byte) (string, error) {
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if !filetype.IsImage(head) {
		kind, _ := filetype.Match(head)
		if kind == filetype.Unknown {
			return "", fmt.Errorf("%w: unrecognised content", ErrNotImage)
		}
		return "", fmt.Errorf("%w: %s", ErrNotImage, kind.MIME.Value)
	}
	kind, err := filetype.Image(head)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return kind.MIME.Value, nil
}

// Decode reads an image, rejecting non-images before any decode attempt,
// and returns an RGBA copy owned by the caller together with its MIME type.
func Decode(r io.Reader, maxBytes int64) (*image.RGBA, string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	mime, err := Sniff(data)
	if err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mime, fmt.Errorf("failed to decode %s image: %w", mime, err)
	}
	if img.Bounds().Empty() {
		return nil, mime, fmt.Errorf("failed to decode %s image: empty bounds", format)
	}
	return clone.AsRGBA(img), mime, nil
}
