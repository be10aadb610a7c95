package trackings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/KasTrack/internal/broker/messages"
	"github.com/BearBump/KasTrack/internal/cache"
	"github.com/BearBump/KasTrack/internal/integrations/carrier"
	"github.com/BearBump/KasTrack/internal/integrations/carrier/fedex"
	"github.com/BearBump/KasTrack/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	CreateTracking(ctx context.Context, draft models.TrackingDraft) (*models.TrackingRecord, error)
	FindTrackingByNumber(ctx context.Context, trackingNumber string) (*models.TrackingSummary, error)
	GetTracking(ctx context.Context, id uint64) (*models.TrackingRecord, error)
	ListTrackings(ctx context.Context, f models.TrackingFilter) (models.TrackingPage, error)
	ListHistory(ctx context.Context, trackingID uint64, limit, offset int) ([]*models.ScanHistoryEvent, error)
	UpdateTrackingStatus(ctx context.Context, id, statusID uint64) error
	DeleteTracking(ctx context.Context, id uint64) error
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	ListStatuses(ctx context.Context) ([]*models.Status, error)
	CreateStatus(ctx context.Context, name, description string) (*models.Status, error)
	UpdateStatus(ctx context.Context, id uint64, name, description string) (*models.Status, error)
	DeleteStatus(ctx context.Context, id uint64) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Normalizer turns a raw carrier response into a draft.
type Normalizer func(raw []byte, now time.Time) (models.TrackingDraft, error)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

type Service struct {
	repo      Repository
	carrier   carrier.Client
	normalize Normalizer

	cache    cache.BytesCache
	cacheTTL time.Duration

	producer    Producer
	ingestTopic string

	now func() time.Time
}

func New(repo Repository, carrierClient carrier.Client, c cache.BytesCache, cacheTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		carrier:   carrierClient,
		normalize: fedex.Normalize,
		cache:     c,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

// WithProducer enables TrackingIngested events on topic.
func (s *Service) WithProducer(p Producer, topic string) *Service {
	s.producer = p
	s.ingestTopic = topic
	return s
}

func (s *Service) WithNormalizer(n Normalizer) *Service {
	if n != nil {
		s.normalize = n
	}
	return s
}

// Ingest normalizes a raw carrier response and persists it.
func (s *Service) Ingest(ctx context.Context, raw []byte) (*models.TrackingRecord, error) {
	draft, err := s.normalize(raw, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return s.store(ctx, draft)
}

func (s *Service) store(ctx context.Context, draft models.TrackingDraft) (*models.TrackingRecord, error) {
	rec, err := s.repo.CreateTracking(ctx, draft)
	if err != nil {
		return nil, err
	}
	slog.Info("tracking ingested",
		"tracking_id", rec.ID, "kas_id", rec.KasID,
		"tracking_number", rec.TrackingNumber, "events", len(rec.History))

	s.publishIngested(ctx, rec)
	return rec, nil
}

func (s *Service) publishIngested(ctx context.Context, rec *models.TrackingRecord) {
	if s.producer == nil || s.ingestTopic == "" {
		return
	}
	b, err := json.Marshal(messages.TrackingIngested{
		TrackingID:            rec.ID,
		KasID:                 rec.KasID,
		TrackingNumber:        rec.TrackingNumber,
		CarrierCode:           rec.CarrierCode,
		CarrierDeliveryStatus: rec.CarrierDeliveryStatus,
		Events:                len(rec.History),
		IngestedAt:            rec.CreatedAt,
	})
	if err != nil {
		slog.Warn("marshal tracking ingested", "error", err.Error())
		return
	}
	if err := s.producer.Publish(ctx, s.ingestTopic, []byte(rec.TrackingNumber), b); err != nil {
		slog.Warn("publish tracking ingested", "tracking_id", rec.ID, "error", err.Error())
	}
}

// CheckDuplicate reports the stored record for trackingNumber, if any.
func (s *Service) CheckDuplicate(ctx context.Context, trackingNumber string) (*models.TrackingSummary, bool, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, false, errors.Wrap(models.ErrInvalidArgument, "trackingNumber is required")
	}
	sum, err := s.repo.FindTrackingByNumber(ctx, trackingNumber)
	if errors.Is(err, models.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return sum, true, nil
}

type SubmitInput struct {
	TrackingNumber string
	// nil means true.
	CheckDuplicate *bool
	// BeforeFetch runs right before the carrier call and aborts Submit on error.
	BeforeFetch func(ctx context.Context) error
}

// SubmitResult holds either the created record or the existing duplicate.
type SubmitResult struct {
	Success   bool
	Record    *models.TrackingRecord
	Duplicate *models.TrackingSummary
}

// Submit runs duplicate check, carrier lookup, normalization and ingestion
// for one tracking number.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	number := strings.TrimSpace(in.TrackingNumber)
	if number == "" {
		return SubmitResult{}, errors.Wrap(models.ErrInvalidArgument, "trackingNumber is required")
	}

	if in.CheckDuplicate == nil || *in.CheckDuplicate {
		sum, found, err := s.CheckDuplicate(ctx, number)
		if err != nil {
			return SubmitResult{}, err
		}
		if found {
			return SubmitResult{Duplicate: sum}, nil
		}
	}

	if s.carrier == nil {
		return SubmitResult{}, errors.Wrap(models.ErrCarrierFetchFailed, "no carrier client configured")
	}
	if in.BeforeFetch != nil {
		if err := in.BeforeFetch(ctx); err != nil {
			return SubmitResult{}, err
		}
	}
	raw, err := s.carrier.Track(ctx, number)
	if err != nil {
		return SubmitResult{}, errors.Wrap(models.ErrCarrierFetchFailed, err.Error())
	}
	draft, err := s.normalize(raw, s.now().UTC())
	if err != nil {
		return SubmitResult{}, errors.Wrap(models.ErrCarrierFetchFailed, err.Error())
	}

	rec, err := s.store(ctx, draft)
	if errors.Is(err, models.ErrDuplicateTrackingNumber) {
		sum, findErr := s.repo.FindTrackingByNumber(ctx, draft.Record.TrackingNumber)
		if findErr != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{Duplicate: sum}, nil
	}
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Success: true, Record: rec}, nil
}

// GetTracking reads through the record cache.
func (s *Service) GetTracking(ctx context.Context, id uint64) (*models.TrackingRecord, error) {
	if id == 0 {
		return nil, errors.Wrap(models.ErrInvalidArgument, "id is required")
	}

	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, cacheKey(id))
		if err != nil {
			slog.Warn("tracking cache get", "tracking_id", id, "error", err.Error())
		}
		if err == nil && ok {
			var t models.TrackingRecord
			if json.Unmarshal(b, &t) == nil {
				return &t, nil
			}
		}
	}

	t, err := s.repo.GetTracking(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cacheEnabled() {
		b, _ := json.Marshal(t)
		_ = s.cache.Set(ctx, cacheKey(id), b, s.cacheTTL)
	}
	return t, nil
}

// ListTrackings clamps paging to page >= 1 and 1..100 items.
func (s *Service) ListTrackings(ctx context.Context, f models.TrackingFilter) (models.TrackingPage, error) {
	if f.Page < 1 {
		f.Page = defaultPage
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	return s.repo.ListTrackings(ctx, f)
}

func (s *Service) ListHistory(ctx context.Context, trackingID uint64, limit, offset int) ([]*models.ScanHistoryEvent, error) {
	if trackingID == 0 {
		return nil, errors.Wrap(models.ErrInvalidArgument, "trackingId is required")
	}
	return s.repo.ListHistory(ctx, trackingID, limit, offset)
}

func (s *Service) UpdateStatus(ctx context.Context, trackingID, statusID uint64) (*models.TrackingRecord, error) {
	if trackingID == 0 || statusID == 0 {
		return nil, errors.Wrap(models.ErrInvalidArgument, "trackingId and statusId are required")
	}
	if err := s.repo.UpdateTrackingStatus(ctx, trackingID, statusID); err != nil {
		return nil, err
	}
	s.Forget(ctx, trackingID)
	return s.GetTracking(ctx, trackingID)
}

func (s *Service) DeleteTracking(ctx context.Context, id uint64) error {
	if id == 0 {
		return errors.Wrap(models.ErrInvalidArgument, "id is required")
	}
	if err := s.repo.DeleteTracking(ctx, id); err != nil {
		return err
	}
	s.Forget(ctx, id)
	return nil
}

// Forget drops the cached copy of a record.
func (s *Service) Forget(ctx context.Context, id uint64) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		slog.Warn("tracking cache delete", "tracking_id", id, "error", err.Error())
	}
}

// TodayCount counts records created since local midnight.
func (s *Service) TodayCount(ctx context.Context) (int, error) {
	now := s.now()
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return s.repo.CountCreatedBetween(ctx, start, start.AddDate(0, 0, 1))
}

func (s *Service) ListStatuses(ctx context.Context) ([]*models.Status, error) {
	return s.repo.ListStatuses(ctx)
}

func (s *Service) CreateStatus(ctx context.Context, name string) (*models.Status, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "name is required")
	}
	return s.repo.CreateStatus(ctx, name, statusDescription(name))
}

// UpdateStatusName renames a status and recomputes its description.
func (s *Service) UpdateStatusName(ctx context.Context, id uint64, name string) (*models.Status, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(models.ErrInvalidArgument, "name is required")
	}
	return s.repo.UpdateStatus(ctx, id, name, statusDescription(name))
}

// DeleteStatus fails with ErrStatusInUse while trackings still carry the status.
func (s *Service) DeleteStatus(ctx context.Context, id uint64) error {
	return s.repo.DeleteStatus(ctx, id)
}

func statusDescription(name string) string {
	if name == models.StatusReceived {
		return "Package " + strings.ToLower(name)
	}
	return "Package is " + strings.ToLower(name)
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func cacheKey(id uint64) string {
	return fmt.Sprintf("tracking:%d", id)
}
