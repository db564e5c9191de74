// Package sharelink builds the public link for a quiz share code and renders it
// as a QR code.
package sharelink

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const defaultSize = 256

type Builder struct {
	frontendURL string
	size        int
}

// New returns a Builder. With an empty frontendURL, links are the bare share code.
func New(frontendURL string, size int) *Builder {
	if size <= 0 {
		size = defaultSize
	}

	return &Builder{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		size:        size,
	}
}

func (b *Builder) URL(code string) string {
	if b.frontendURL == "" {
		return code
	}

	return b.frontendURL + "/quiz/" + url.PathEscape(code)
}

// PNG renders link as a QR code PNG.
func (b *Builder) PNG(link string) ([]byte, error) {
	png, err := qrcode.Encode(link, qrcode.Low, b.size)
	if err != nil {
		return nil, fmt.Errorf("sharelink: encode qr: %w", err)
	}

	return png, nil
}

// DataURL renders the QR code for code's link as a base64 PNG data URL.
func (b *Builder) DataURL(code string) (link, dataURL string, err error) {
	link = b.URL(code)

	png, err := b.PNG(link)
	if err != nil {
		return "", "", err
	}

	return link, "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
