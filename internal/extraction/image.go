package extraction

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

var ErrUnsupportedImage = stderrors.New("extraction: unsupported image")

const (
	maxImageSide = 2048
	jpegQuality  = 85

	// maxImagePixels bounds the decoded bitmap, checked from the header before decoding.
	maxImagePixels = 8192 * 8192
)

type codec struct {
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

// Normalize decodes a JPEG, PNG or WebP image, shrinks it to fit maxImageSide and
// re-encodes it as JPEG, the one format sent to the extractor and stored.
func Normalize(data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() > maxImageSide || b.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)

	var c codec
	switch {
	case strings.Contains(ct, "jpeg"):
		c = codec{jpeg.Decode, jpeg.DecodeConfig}
	case strings.Contains(ct, "png"):
		c = codec{png.Decode, png.DecodeConfig}
	case strings.Contains(ct, "webp"):
		c = codec{webp.Decode, webp.DecodeConfig}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, ct)
	}

	cfg, err := c.decodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	return img, nil
}
