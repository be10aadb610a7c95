package images

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/BearBump/KasTrack/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MaxSize is the largest accepted upload.
const MaxSize = 10 << 20

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/webp": true,
}

type Repository interface {
	CreateImage(ctx context.Context, objectKey string, trackingID *uint64) (*models.Image, error)
	DeleteImage(ctx context.Context, id uint64) (*models.Image, error)
}

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Invalidator drops cached trackings whose image list changed.
type Invalidator interface {
	Forget(ctx context.Context, trackingID uint64)
}

type Service struct {
	repo    Repository
	store   ObjectStore
	tracks  Invalidator
	newName func() string
}

func New(repo Repository, store ObjectStore, tracks Invalidator) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		tracks:  tracks,
		newName: func() string { return uuid.NewString() },
	}
}

type UploadInput struct {
	TrackingID  *uint64
	FileName    string
	ContentType string
	Data        []byte
}

// Upload stores the object first and then its row. A failed row insert
// removes the object again.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Image, error) {
	ct := strings.ToLower(strings.TrimSpace(in.ContentType))
	if !allowedTypes[ct] {
		return nil, errors.Wrapf(models.ErrInvalidArgument, "unsupported content type %q", in.ContentType)
	}
	if len(in.Data) == 0 {
		return nil, errors.Wrap(models.ErrInvalidArgument, "empty file")
	}
	if len(in.Data) > MaxSize {
		return nil, errors.Wrapf(models.ErrInvalidArgument, "file larger than %d bytes", MaxSize)
	}

	key := s.objectKey(in.TrackingID, in.FileName)
	if err := s.store.Put(ctx, key, ct, in.Data); err != nil {
		return nil, errors.Wrap(err, "put image")
	}

	img, err := s.repo.CreateImage(ctx, key, in.TrackingID)
	if err != nil {
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			slog.Warn("remove orphan image", "key", key, "error", rmErr.Error())
		}
		return nil, err
	}
	if in.TrackingID != nil && s.tracks != nil {
		s.tracks.Forget(ctx, *in.TrackingID)
	}

	img.URL = s.store.PublicURL(key)
	slog.Info("image uploaded", "image_id", img.ID, "key", key)
	return img, nil
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	if id == 0 {
		return errors.Wrap(models.ErrInvalidArgument, "id is required")
	}
	img, err := s.repo.DeleteImage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, img.ObjectKey); err != nil {
		slog.Warn("remove image object", "image_id", id, "key", img.ObjectKey, "error", err.Error())
	}
	if img.TrackingID != nil && s.tracks != nil {
		s.tracks.Forget(ctx, *img.TrackingID)
	}
	return nil
}

// Resolve fills URL on every image of the given records.
func (s *Service) Resolve(records ...*models.TrackingRecord) {
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, img := range r.Images {
			img.URL = s.store.PublicURL(img.ObjectKey)
		}
	}
}

func (s *Service) objectKey(trackingID *uint64, fileName string) string {
	owner := "unassigned"
	if trackingID != nil {
		owner = fmt.Sprintf("%d", *trackingID)
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	return fmt.Sprintf("trackings/%s/%s-%s", owner, s.newName(), name)
}
