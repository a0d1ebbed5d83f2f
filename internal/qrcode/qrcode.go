// Package qrcode creates QR tokens, the menu URLs they encode and their
// PNG images.
package qrcode

import (
	"bytes"
	"image/png"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// Rendered image size bounds in pixels.
const (
	MinSize     = 128
	MaxSize     = 1024
	DefaultSize = 512
)

// NewCode returns an opaque URL-safe token.
func NewCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TargetURL builds the menu URL a code points at:
// <base>/t/<slug>/menu?qr=<code>.
func TargetURL(base, theaterSlug, code string) string {
	return strings.TrimRight(base, "/") + "/t/" + url.PathEscape(theaterSlug) + "/menu?qr=" + url.QueryEscape(code)
}

// ClampSize keeps size within [MinSize, MaxSize]; zero means DefaultSize.
func ClampSize(size int) int {
	switch {
	case size == 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}

// RenderPNG encodes content as a PNG QR image with medium error recovery.
func RenderPNG(content string, size int) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(ClampSize(size))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
