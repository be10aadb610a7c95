package pgtracking

import (
	"context"

	"github.com/BearBump/KasTrack/internal/models"
	"github.com/jackc/pgx/v5"
)

func insertHistory(ctx context.Context, tx pgx.Tx, trackingID uint64, events []models.ScanHistoryEvent) ([]*models.ScanHistoryEvent, error) {
	out := make([]*models.ScanHistoryEvent, 0, len(events))
	if len(events) == 0 {
		return out, nil
	}

	b := &pgx.Batch{}
	for _, e := range events {
		b.Queue(`
INSERT INTO tracking_history (tracking_id, date, status, time, location, description)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, trackingID, e.Date.UTC(), e.Status, e.Time, e.Location, e.Description)
	}

	br := tx.SendBatch(ctx, b)
	for _, e := range events {
		h := e
		h.TrackingID = trackingID
		if err := br.QueryRow().Scan(&h.ID); err != nil {
			_ = br.Close()
			return nil, err
		}
		out = append(out, &h)
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListHistory returns scan events for a tracking, newest first.
func (s *Storage) ListHistory(ctx context.Context, trackingID uint64, limit, offset int) ([]*models.ScanHistoryEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, tracking_id, date, status, time, location, description
FROM tracking_history
WHERE tracking_id = $1
ORDER BY date DESC, id
LIMIT $2 OFFSET $3
`, trackingID, limit, offset)
	if err != nil {
		return nil, persistErr(err, "select history")
	}
	return collectHistory(rows)
}

func (s *Storage) historyFor(ctx context.Context, trackingIDs []uint64) ([]*models.ScanHistoryEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, tracking_id, date, status, time, location, description
FROM tracking_history
WHERE tracking_id = ANY($1)
ORDER BY tracking_id, date DESC, id
`, trackingIDs)
	if err != nil {
		return nil, persistErr(err, "select history")
	}
	return collectHistory(rows)
}

func collectHistory(rows pgx.Rows) ([]*models.ScanHistoryEvent, error) {
	defer rows.Close()

	out := []*models.ScanHistoryEvent{}
	for rows.Next() {
		var e models.ScanHistoryEvent
		if err := rows.Scan(&e.ID, &e.TrackingID, &e.Date, &e.Status, &e.Time, &e.Location, &e.Description); err != nil {
			return nil, persistErr(err, "scan history")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, persistErr(rows.Err(), "rows")
	}
	return out, nil
}
