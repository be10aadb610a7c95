package pgtracking

import (
	"context"

	"github.com/pkg/errors"
)

const (
	trackingNumberIndex = "uq_trackings_tracking_number"
	kasIDIndex          = "uq_trackings_kas_id"
	statusNameIndex     = "uq_statuses_name"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS statuses (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT ''
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + statusNameIndex + ` ON statuses(name)`,
		// Seeded lookup rows; new trackings reference id 4.
		`
INSERT INTO statuses (id, name, description) VALUES
  (1, 'Pending', 'Package is pending'),
  (2, 'In Transit', 'Package is in transit'),
  (3, 'Delivered', 'Package is delivered'),
  (4, 'Received', 'Package received')
ON CONFLICT DO NOTHING`,
		`SELECT setval(pg_get_serial_sequence('statuses', 'id'), GREATEST((SELECT MAX(id) FROM statuses), 1))`,
		`
CREATE TABLE IF NOT EXISTS trackings (
  id BIGSERIAL PRIMARY KEY,
  kas_id TEXT NOT NULL,
  carrier_code TEXT NOT NULL,
  tracking_number TEXT NOT NULL,
  status_id BIGINT NOT NULL REFERENCES statuses(id),
  route TEXT NOT NULL,
  weight NUMERIC NULL,
  shipping_date TIMESTAMPTZ NULL,
  delivery_date TIMESTAMPTZ NULL,
  carrier_delivery_status TEXT NOT NULL,
  last_update TIMESTAMPTZ NOT NULL,
  transit_time TEXT NULL,
  origin TEXT NOT NULL,
  destination TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + trackingNumberIndex + ` ON trackings(tracking_number)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + kasIDIndex + ` ON trackings(kas_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trackings_created_at ON trackings(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_trackings_status_id ON trackings(status_id)`,
		`
CREATE TABLE IF NOT EXISTS tracking_history (
  id BIGSERIAL PRIMARY KEY,
  tracking_id BIGINT NOT NULL REFERENCES trackings(id) ON DELETE CASCADE,
  date TIMESTAMPTZ NOT NULL,
  status TEXT NOT NULL,
  time TEXT NOT NULL,
  location TEXT NOT NULL,
  description TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_history_tracking_id_date ON tracking_history(tracking_id, date DESC)`,
		`
CREATE TABLE IF NOT EXISTS images (
  id BIGSERIAL PRIMARY KEY,
  object_key TEXT NOT NULL,
  tracking_id BIGINT NULL REFERENCES trackings(id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_images_tracking_id ON images(tracking_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
