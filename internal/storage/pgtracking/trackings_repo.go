package pgtracking

import (
	"context"
	"time"

	"github.com/BearBump/KasTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	maxKASIDAttempts = 5

	defaultPageLimit = 20
	maxPageLimit     = 100
)

const trackingColumns = `
  t.id, t.kas_id, t.carrier_code, t.tracking_number, t.status_id,
  t.route, t.weight::text, t.shipping_date, t.delivery_date,
  t.carrier_delivery_status, t.last_update, t.transit_time,
  t.origin, t.destination, t.created_at, t.updated_at,
  s.id, s.name, s.description`

type scanner interface {
	Scan(dest ...any) error
}

func scanTracking(row scanner) (*models.TrackingRecord, error) {
	var (
		t          models.TrackingRecord
		weight     *string
		statusID   *uint64
		statusName *string
		statusDesc *string
	)
	if err := row.Scan(
		&t.ID, &t.KasID, &t.CarrierCode, &t.TrackingNumber, &t.StatusID,
		&t.Route, &weight, &t.ShippingDate, &t.DeliveryDate,
		&t.CarrierDeliveryStatus, &t.LastUpdate, &t.TransitTime,
		&t.Origin, &t.Destination, &t.CreatedAt, &t.UpdatedAt,
		&statusID, &statusName, &statusDesc,
	); err != nil {
		return nil, err
	}
	if weight != nil {
		if d, err := decimal.NewFromString(*weight); err == nil {
			t.Weight = &d
		}
	}
	if statusID != nil {
		t.Status = &models.Status{ID: *statusID}
		if statusName != nil {
			t.Status.Name = *statusName
		}
		if statusDesc != nil {
			t.Status.Description = *statusDesc
		}
	}
	return &t, nil
}

func weightParam(w *decimal.Decimal) *string {
	if w == nil {
		return nil
	}
	s := w.String()
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// CreateTracking stores a normalized record and its scan history in one
// transaction. A taken tracking number yields ErrDuplicateTrackingNumber; a
// KAS id collision is retried with a fresh id.
func (s *Storage) CreateTracking(ctx context.Context, draft models.TrackingDraft) (*models.TrackingRecord, error) {
	now := time.Now().UTC()
	rec := draft.Record
	if rec.StatusID == 0 {
		rec.StatusID = models.DefaultStatusID
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, persistErr(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for attempt := 1; ; attempt++ {
		kasID := s.ids.Next()
		err := s.insertTracking(ctx, tx, &rec, kasID, now)
		if err == nil {
			break
		}
		switch {
		case isUniqueViolation(err, trackingNumberIndex):
			return nil, errors.Wrap(models.ErrDuplicateTrackingNumber, rec.TrackingNumber)
		case isUniqueViolation(err, kasIDIndex) && attempt < maxKASIDAttempts:
			continue
		default:
			return nil, persistErr(err, "insert tracking")
		}
	}

	history, err := insertHistory(ctx, tx, rec.ID, draft.Events)
	if err != nil {
		return nil, persistErr(err, "insert history")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistErr(err, "commit tx")
	}

	rec.History = history
	return &rec, nil
}

// insertTracking runs inside a savepoint so a failed attempt leaves the outer
// transaction usable.
func (s *Storage) insertTracking(ctx context.Context, tx pgx.Tx, rec *models.TrackingRecord, kasID string, now time.Time) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sp.Rollback(ctx) }()

	err = sp.QueryRow(ctx, `
INSERT INTO trackings (
  kas_id, carrier_code, tracking_number, status_id, route, weight,
  shipping_date, delivery_date, carrier_delivery_status, last_update,
  transit_time, origin, destination, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6::numeric,$7,$8,$9,$10,$11,$12,$13,$14,$14)
RETURNING id
`,
		kasID, rec.CarrierCode, rec.TrackingNumber, rec.StatusID, rec.Route, weightParam(rec.Weight),
		utcPtr(rec.ShippingDate), utcPtr(rec.DeliveryDate), rec.CarrierDeliveryStatus, rec.LastUpdate.UTC(),
		rec.TransitTime, rec.Origin, rec.Destination, now,
	).Scan(&rec.ID)
	if err != nil {
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return err
	}

	rec.KasID = kasID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// FindTrackingByNumber returns ErrNotFound when the number is not stored.
func (s *Storage) FindTrackingByNumber(ctx context.Context, trackingNumber string) (*models.TrackingSummary, error) {
	var sum models.TrackingSummary
	err := s.db.QueryRow(ctx, `
SELECT id, kas_id, tracking_number, created_at, status_id, carrier_delivery_status
FROM trackings
WHERE tracking_number = $1
`, trackingNumber).Scan(&sum.ID, &sum.KasID, &sum.TrackingNumber, &sum.CreatedAt, &sum.StatusID, &sum.CarrierDeliveryStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(models.ErrNotFound, trackingNumber)
	}
	if err != nil {
		return nil, persistErr(err, "select tracking by number")
	}
	return &sum, nil
}

// GetTracking loads one record with its status, history and images.
func (s *Storage) GetTracking(ctx context.Context, id uint64) (*models.TrackingRecord, error) {
	t, err := scanTracking(s.db.QueryRow(ctx, `
SELECT`+trackingColumns+`
FROM trackings t
LEFT JOIN statuses s ON s.id = t.status_id
WHERE t.id = $1
`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "tracking %d", id)
	}
	if err != nil {
		return nil, persistErr(err, "select tracking")
	}

	if err := s.attachRelations(ctx, []*models.TrackingRecord{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTrackings pages through records newest first.
func (s *Storage) ListTrackings(ctx context.Context, f models.TrackingFilter) (models.TrackingPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	page := models.TrackingPage{Page: f.Page, Limit: f.Limit, Items: []*models.TrackingRecord{}}

	if err := s.db.QueryRow(ctx, `
SELECT count(*) FROM trackings WHERE ($1::bigint IS NULL OR status_id = $1)
`, f.StatusID).Scan(&page.TotalCount); err != nil {
		return page, persistErr(err, "count trackings")
	}

	rows, err := s.db.Query(ctx, `
SELECT`+trackingColumns+`
FROM trackings t
LEFT JOIN statuses s ON s.id = t.status_id
WHERE ($1::bigint IS NULL OR t.status_id = $1)
ORDER BY t.created_at DESC, t.id DESC
LIMIT $2 OFFSET $3
`, f.StatusID, f.Limit, (f.Page-1)*f.Limit)
	if err != nil {
		return page, persistErr(err, "select trackings")
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return page, persistErr(err, "scan tracking")
		}
		page.Items = append(page.Items, t)
	}
	if rows.Err() != nil {
		return page, persistErr(rows.Err(), "rows")
	}

	if err := s.attachRelations(ctx, page.Items); err != nil {
		return page, err
	}
	return page, nil
}

func (s *Storage) attachRelations(ctx context.Context, items []*models.TrackingRecord) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(items))
	byID := make(map[uint64]*models.TrackingRecord, len(items))
	for _, t := range items {
		ids = append(ids, t.ID)
		byID[t.ID] = t
		t.History = []*models.ScanHistoryEvent{}
		t.Images = []*models.Image{}
	}

	history, err := s.historyFor(ctx, ids)
	if err != nil {
		return err
	}
	for _, h := range history {
		if t := byID[h.TrackingID]; t != nil {
			t.History = append(t.History, h)
		}
	}

	images, err := s.imagesFor(ctx, ids)
	if err != nil {
		return err
	}
	for _, img := range images {
		if img.TrackingID == nil {
			continue
		}
		if t := byID[*img.TrackingID]; t != nil {
			t.Images = append(t.Images, img)
		}
	}
	return nil
}

// UpdateTrackingStatus sets the operator status. An unknown tracking or
// status id is ErrNotFound.
func (s *Storage) UpdateTrackingStatus(ctx context.Context, id, statusID uint64) error {
	tag, err := s.db.Exec(ctx, `UPDATE trackings SET status_id = $2, updated_at = now() WHERE id = $1`, id, statusID)
	if isForeignKeyViolation(err) {
		return errors.Wrapf(models.ErrNotFound, "status %d", statusID)
	}
	if err != nil {
		return persistErr(err, "update tracking status")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "tracking %d", id)
	}
	return nil
}

// DeleteTracking removes the record; history cascades and images are detached.
func (s *Storage) DeleteTracking(ctx context.Context, id uint64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trackings WHERE id = $1`, id)
	if err != nil {
		return persistErr(err, "delete tracking")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(models.ErrNotFound, "tracking %d", id)
	}
	return nil
}

// CountCreatedBetween counts records created in [from, to).
func (s *Storage) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
SELECT count(*) FROM trackings WHERE created_at >= $1 AND created_at < $2
`, from.UTC(), to.UTC()).Scan(&n)
	if err != nil {
		return 0, persistErr(err, "count trackings")
	}
	return n, nil
}
