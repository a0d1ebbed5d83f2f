package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/iliyamo/theater-canteen/internal/config"
)

// Cloudinary is an ImageStore backed by a Cloudinary account.
type Cloudinary struct {
	cld  *cloudinary.Cloudinary
	root string
}

// NewCloudinary builds the store from upload settings. Missing credentials
// yield ErrNotConfigured.
func NewCloudinary(cfg config.UploadConfig) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.CloudAPIKey == "" || cfg.CloudAPISecret == "" {
		return nil, ErrNotConfigured
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.CloudAPIKey, cfg.CloudAPISecret)
	if err != nil {
		return nil, err
	}
	return &Cloudinary{cld: cld, root: cfg.RootFolder}, nil
}

// Upload stores r under <root>/<folder>/<name>, overwriting any image with
// the same public ID.
func (s *Cloudinary) Upload(ctx context.Context, folder, name string, r io.Reader) (UploadResult, error) {
	overwrite := true
	res, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       path.Join(s.root, folder),
		PublicID:     name,
		ResourceType: "image",
		Overwrite:    &overwrite,
	})
	if err != nil {
		return UploadResult{}, err
	}
	if err := apiError(res.Error); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{URL: res.SecureURL, PublicID: res.PublicID, Bytes: res.Bytes, Format: res.Format}, nil
}

// Delete removes an image by public ID. Missing images are not an error.
func (s *Cloudinary) Delete(ctx context.Context, publicID string) error {
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	return apiError(res.Error)
}

func apiError(e api.ErrorResp) error {
	if e.Message == "" {
		return nil
	}
	return fmt.Errorf("cloudinary: %s", e.Message)
}
