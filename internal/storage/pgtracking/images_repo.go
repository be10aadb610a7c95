package pgtracking

import (
	"context"
	"time"

	"github.com/BearBump/KasTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// CreateImage records an uploaded object. A trackingID that does not exist
// is ErrNotFound.
func (s *Storage) CreateImage(ctx context.Context, objectKey string, trackingID *uint64) (*models.Image, error) {
	img := models.Image{ObjectKey: objectKey, TrackingID: trackingID, CreatedAt: time.Now().UTC()}
	err := s.db.QueryRow(ctx, `
INSERT INTO images (object_key, tracking_id, created_at) VALUES ($1, $2, $3) RETURNING id
`, objectKey, trackingID, img.CreatedAt).Scan(&img.ID)
	if isForeignKeyViolation(err) {
		return nil, errors.Wrapf(models.ErrNotFound, "tracking %d", *trackingID)
	}
	if err != nil {
		return nil, persistErr(err, "insert image")
	}
	return &img, nil
}

// DeleteImage removes the row and returns it so the caller can drop the object.
func (s *Storage) DeleteImage(ctx context.Context, id uint64) (*models.Image, error) {
	var img models.Image
	err := s.db.QueryRow(ctx, `
DELETE FROM images WHERE id = $1 RETURNING id, object_key, tracking_id, created_at
`, id).Scan(&img.ID, &img.ObjectKey, &img.TrackingID, &img.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "image %d", id)
	}
	if err != nil {
		return nil, persistErr(err, "delete image")
	}
	return &img, nil
}

func (s *Storage) imagesFor(ctx context.Context, trackingIDs []uint64) ([]*models.Image, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, object_key, tracking_id, created_at
FROM images
WHERE tracking_id = ANY($1)
ORDER BY id
`, trackingIDs)
	if err != nil {
		return nil, persistErr(err, "select images")
	}
	defer rows.Close()

	out := []*models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.ObjectKey, &img.TrackingID, &img.CreatedAt); err != nil {
			return nil, persistErr(err, "scan image")
		}
		out = append(out, &img)
	}
	if rows.Err() != nil {
		return nil, persistErr(rows.Err(), "rows")
	}
	return out, nil
}
