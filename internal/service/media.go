package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	maxUploadBytes = 10 << 20
	maxImageSide   = 1024
)

// Upload is a file received from a form or API request.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Reader      io.Reader
}

func (u *Upload) field() string {
	if u.Field == "" {
		return "file"
	}
	return u.Field
}

// MediaService stores uploads, downscaling images before they are written.
type MediaService struct {
	storage FileStorage
}

func NewMediaService(storage FileStorage) *MediaService {
	return &MediaService{storage: storage}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func objectKey(prefix, filename string) string {
	base := unsafeName.ReplaceAllString(filepath.Base(filename), "_")
	if base == "" || base == "." || base == "_" {
		base = "file"
	}
	return path.Join(prefix, uuid.NewString()[:8]+"-"+base)
}

// StoreImage decodes the upload, fits it within maxImageSide and stores it under prefix.
func (m *MediaService) StoreImage(ctx context.Context, prefix string, up *Upload) (string, error) {
	data, err := readAll(up.Reader, maxUploadBytes)
	if err != nil {
		return "", NewValidationError(err, FieldError{Field: up.field(), Error: err.Error()})
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", NewValidationError(err, FieldError{Field: up.field(), Error: "Upload a valid image."})
	}
	if b := img.Bounds(); b.Dx() > maxImageSide || b.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}

	out := imaging.JPEG
	contentType := "image/jpeg"
	filename := strings.TrimSuffix(up.Filename, filepath.Ext(up.Filename)) + ".jpg"
	if format == "png" {
		out = imaging.PNG
		contentType = "image/png"
		filename = strings.TrimSuffix(up.Filename, filepath.Ext(up.Filename)) + ".png"
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, out); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	key := objectKey(prefix, filename)
	if err := m.storage.Put(ctx, key, buf.Bytes(), contentType); err != nil {
		return "", err
	}
	return key, nil
}

// StoreFile stores the upload unchanged under prefix.
func (m *MediaService) StoreFile(ctx context.Context, prefix string, up *Upload) (string, error) {
	data, err := readAll(up.Reader, maxUploadBytes)
	if err != nil {
		return "", NewValidationError(err, FieldError{Field: up.field(), Error: err.Error()})
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	key := objectKey(prefix, up.Filename)
	if err := m.storage.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes a stored key. Empty keys are ignored.
func (m *MediaService) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return m.storage.Delete(ctx, key)
}

// URL resolves a stored key. Empty keys resolve to "".
func (m *MediaService) URL(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	u, err := m.storage.URL(ctx, key)
	if err != nil {
		return ""
	}
	return u
}
