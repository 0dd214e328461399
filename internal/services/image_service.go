package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/accounts-api/internal/common"
	"github.com/isdelr/accounts-api/internal/models"
	"github.com/isdelr/accounts-api/internal/repository"
	"github.com/isdelr/accounts-api/internal/storage"
)

// DefaultMaxUploadBytes caps a profile picture at 5 MiB.
const DefaultMaxUploadBytes = 5 << 20

const keyPrefix = "profile-pictures"

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Upload is a received profile picture.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ImageServiceProvider defines the interface for profile picture services.
type ImageServiceProvider interface {
	UploadImage(ctx context.Context, userID string, up Upload) (models.Image, error)
	GetImage(ctx context.Context, userID string) (models.Image, error)
	DeleteImage(ctx context.Context, userID string) error
}

// ImageService keeps picture bytes in the object store and metadata in the
// database.
type ImageService struct {
	images   repository.ImageRepository
	store    storage.ObjectStore
	maxBytes int64
	now      func() time.Time
}

// NewImageService creates a new ImageService. maxBytes <= 0 selects
// DefaultMaxUploadBytes.
func NewImageService(images repository.ImageRepository, store storage.ObjectStore, maxBytes int64) *ImageService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ImageService{
		images:   images,
		store:    store,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MaxBytes is the largest accepted picture.
func (s *ImageService) MaxBytes() int64 { return s.maxBytes }

// UploadImage stores a new picture for userID. A user holds at most one
// picture; a second upload fails with common.ErrConflict and leaves the
// first untouched.
func (s *ImageService) UploadImage(ctx context.Context, userID string, up Upload) (models.Image, error) {
	contentType, err := checkImage(up, s.maxBytes)
	if err != nil {
		return models.Image{}, err
	}

	if _, err := s.images.GetByUserID(ctx, userID); err == nil {
		return models.Image{}, common.ErrConflict
	} else if !errors.Is(err, common.ErrNotFound) {
		return models.Image{}, err
	}

	now := s.now()
	name := baseName(up.FileName)
	key := fmt.Sprintf("%s/%s/%d-%s", keyPrefix, userID, now.UnixMilli(), name)

	url, err := s.store.Put(ctx, key, contentType, bytes.NewReader(up.Data), int64(len(up.Data)))
	if err != nil {
		return models.Image{}, err
	}

	img := models.Image{
		ID:          uuid.New().String(),
		UserID:      userID,
		FileName:    name,
		StorageKey:  key,
		URL:         url,
		ContentType: contentType,
		UploadDate:  now,
	}
	if err := s.images.Create(ctx, &img); err != nil {
		// Do not leave an object behind that no row points to.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			log.Error().Err(delErr).Str("key", key).Msg("Failed to remove orphaned object")
		}
		return models.Image{}, err
	}
	return img, nil
}

// GetImage returns the picture metadata for userID.
func (s *ImageService) GetImage(ctx context.Context, userID string) (models.Image, error) {
	img, err := s.images.GetByUserID(ctx, userID)
	if err != nil {
		return models.Image{}, err
	}
	return *img, nil
}

// DeleteImage removes the stored object and then its row. If the object
// cannot be removed the row is kept so the delete can be retried.
func (s *ImageService) DeleteImage(ctx context.Context, userID string) error {
	img, err := s.images.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, img.StorageKey); err != nil {
		return err
	}
	return s.images.Delete(ctx, img.ID)
}

// checkImage enforces the size cap and the type allow-list. Both the declared
// type and the type sniffed from the bytes must be allowed and must agree.
func checkImage(up Upload, maxBytes int64) (string, error) {
	if len(up.Data) == 0 {
		return "", fmt.Errorf("%w: empty upload", common.ErrValidation)
	}
	if int64(len(up.Data)) > maxBytes {
		return "", fmt.Errorf("%w: upload exceeds %d bytes", common.ErrValidation, maxBytes)
	}

	declared, _, err := mime.ParseMediaType(up.ContentType)
	if err != nil || !allowedImageTypes[declared] {
		return "", fmt.Errorf("%w: unsupported content type %q", common.ErrValidation, up.ContentType)
	}

	sniffed := http.DetectContentType(up.Data)
	if sniffed != declared {
		return "", fmt.Errorf("%w: content does not match %s", common.ErrValidation, declared)
	}
	return declared, nil
}

func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
