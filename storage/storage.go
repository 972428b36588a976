// Package storage uploads receipt images to Cloudinary.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ErrDisabled is returned when no image host is configured.
var ErrDisabled = errors.New("image uploads are not configured")

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, data, folder string) (string, error)
}

type cloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinary builds an uploader from a cloudinary:// URL. An empty URL
// returns an uploader that always fails with ErrDisabled.
func NewCloudinary(cloudinaryURL string) (ImageUploader, error) {
	if cloudinaryURL == "" {
		return disabled{}, nil
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &cloudinaryUploader{cld: cld}, nil
}

// UploadImage uploads data, a data: URI or a remote URL, into folder.
func (u *cloudinaryUploader) UploadImage(ctx context.Context, data, folder string) (string, error) {
	res, err := u.cld.Upload.Upload(ctx, data, uploader.UploadParams{Folder: folder})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("failed to upload image: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return "", errors.New("failed to upload image: no URL returned")
	}
	return res.SecureURL, nil
}

type disabled struct{}

func (disabled) UploadImage(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

// IsDataURI reports whether s carries inline image bytes that must be
// uploaded before the URL can be stored.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}
