// Package storage validates uploaded images and stores them in Cloudinary.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// Upload folders accepted by the upload endpoint.
const (
	FolderLogos        = "logos"
	FolderBanners      = "banners"
	FolderProducts     = "products"
	FolderProductTypes = "product-types"
	FolderQRCodes      = "qrcodes"
)

var folders = map[string]bool{
	FolderLogos: true, FolderBanners: true, FolderProducts: true, FolderProductTypes: true, FolderQRCodes: true,
}

// ValidFolder reports whether f is an accepted upload folder.
func ValidFolder(f string) bool { return folders[f] }

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
	ErrNotConfigured   = errors.New("image storage not configured")
)

// UploadResult describes a stored image.
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Bytes    int    `json:"bytes"`
	Format   string `json:"format"`
}

// ImageStore persists images.
type ImageStore interface {
	Upload(ctx context.Context, folder, name string, r io.Reader) (UploadResult, error)
	Delete(ctx context.Context, publicID string) error
}

// Checked is an upload that passed validation.
type Checked struct {
	Data []byte
	MIME string
	Ext  string
}

// Reader returns a fresh reader over the checked bytes.
func (c Checked) Reader() io.Reader { return bytes.NewReader(c.Data) }

// Check reads at most maxBytes from r and sniffs its content type. The
// declared file name and extension are ignored.
func Check(r io.Reader, maxBytes int64, allowed []string) (Checked, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Checked{}, err
	}
	if len(data) == 0 {
		return Checked{}, ErrEmptyFile
	}
	if int64(len(data)) > maxBytes {
		return Checked{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxBytes)
	}
	mt := mimetype.Detect(data)
	for _, a := range allowed {
		if mt.Is(a) {
			return Checked{Data: data, MIME: mt.String(), Ext: mt.Extension()}, nil
		}
	}
	return Checked{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}
