package media

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
)

const (
	FolderProducts = "products"
	FolderAvatars  = "avatars"
)

type UploadOptions struct {
	// Width scales the stored image to the given width when non zero.
	Width int
}

// ImageHost stores images outside the database. file is a data URI, a remote
// URL or a local path.
type ImageHost interface {
	Upload(ctx context.Context, file, folder string, opts UploadOptions) (models.Image, error)
	Delete(ctx context.Context, publicID string) error
}

type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinary(url string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, file, folder string, opts UploadOptions) (models.Image, error) {
	params := uploader.UploadParams{Folder: folder}
	if opts.Width > 0 {
		params.Transformation = fmt.Sprintf("c_scale,w_%d", opts.Width)
	}

	res, err := c.cld.Upload.Upload(ctx, file, params)
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: upload image: %v", apperr.ErrUpstream, err)
	}
	if res.Error.Message != "" {
		return models.Image{}, fmt.Errorf("%w: upload image: %s", apperr.ErrUpstream, res.Error.Message)
	}
	return models.Image{PublicID: res.PublicID, URL: res.SecureURL}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("%w: delete image %s: %v", apperr.ErrUpstream, publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("%w: delete image %s: %s", apperr.ErrUpstream, publicID, res.Error.Message)
	}
	return nil
}

// Unconfigured rejects every call. It stands in when no CLOUDINARY_URL is set.
type Unconfigured struct{}

func (Unconfigured) Upload(context.Context, string, string, UploadOptions) (models.Image, error) {
	return models.Image{}, fmt.Errorf("%w: image host is not configured", apperr.ErrUpstream)
}

func (Unconfigured) Delete(context.Context, string) error {
	return fmt.Errorf("%w: image host is not configured", apperr.ErrUpstream)
}
