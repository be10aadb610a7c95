package trackings_api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/KasTrack/internal/broker/messages"
	"github.com/BearBump/KasTrack/internal/models"
	"github.com/BearBump/KasTrack/internal/services/images"
	"github.com/BearBump/KasTrack/internal/services/trackings"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Raw carrier responses are a few hundred KB at most.
const maxPayloadSize = 5 << 20

type TrackingService interface {
	Ingest(ctx context.Context, raw []byte) (*models.TrackingRecord, error)
	CheckDuplicate(ctx context.Context, trackingNumber string) (*models.TrackingSummary, bool, error)
	Submit(ctx context.Context, in trackings.SubmitInput) (trackings.SubmitResult, error)
	ListTrackings(ctx context.Context, f models.TrackingFilter) (models.TrackingPage, error)
	GetTracking(ctx context.Context, id uint64) (*models.TrackingRecord, error)
	ListHistory(ctx context.Context, trackingID uint64, limit, offset int) ([]*models.ScanHistoryEvent, error)
	UpdateStatus(ctx context.Context, trackingID, statusID uint64) (*models.TrackingRecord, error)
	DeleteTracking(ctx context.Context, id uint64) error
	TodayCount(ctx context.Context) (int, error)
	ListStatuses(ctx context.Context) ([]*models.Status, error)
	CreateStatus(ctx context.Context, name string) (*models.Status, error)
	UpdateStatusName(ctx context.Context, id uint64, name string) (*models.Status, error)
	DeleteStatus(ctx context.Context, id uint64) error
}

type ImageService interface {
	Upload(ctx context.Context, in images.UploadInput) (*models.Image, error)
	Delete(ctx context.Context, id uint64) error
	Resolve(records ...*models.TrackingRecord)
}

// Publisher queues SubmitBatch messages for the intake worker.
type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

const maxBatchSize = 500

type TrackingsAPI struct {
	svc    TrackingService
	images ImageService

	batches    Publisher
	batchTopic string
}

// New builds the API. images may be nil when no object store is configured;
// the image routes are then not mounted.
func New(svc TrackingService, img ImageService) *TrackingsAPI {
	return &TrackingsAPI{svc: svc, images: img}
}

// WithBatchQueue enables POST /trackings/batches.
func (a *TrackingsAPI) WithBatchQueue(p Publisher, topic string) *TrackingsAPI {
	a.batches = p
	a.batchTopic = topic
	return a
}

// Routes returns the /api/v1 router.
func (a *TrackingsAPI) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/trackings", func(r chi.Router) {
		r.Get("/", a.listTrackings)
		r.Post("/ingest", a.ingest)
		r.Post("/submit", a.submit)
		r.Get("/check-duplicate", a.checkDuplicate)
		r.Get("/today-count", a.todayCount)
		if a.batches != nil {
			r.Post("/batches", a.enqueueBatch)
		}

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getTracking)
			r.Delete("/", a.deleteTracking)
			r.Get("/history", a.listHistory)
			r.Patch("/status", a.updateStatus)
		})
	})

	r.Get("/statuses", a.listStatuses)
	r.Post("/statuses", a.createStatus)
	r.Put("/statuses/{id}", a.renameStatus)
	r.Delete("/statuses/{id}", a.deleteStatus)

	if a.images != nil {
		r.Post("/images", a.uploadImage)
		r.Delete("/images/{id}", a.deleteImage)
	}
	return r
}

func (a *TrackingsAPI) ingest(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, err.Error()))
		return
	}
	rec, err := a.svc.Ingest(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTracking(rec))
}

func (a *TrackingsAPI) checkDuplicate(w http.ResponseWriter, r *http.Request) {
	sum, found, err := a.svc.CheckDuplicate(r.Context(), r.URL.Query().Get("trackingNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := checkDuplicateResponse{Exists: found}
	if found {
		resp.Tracking = toSummary(sum)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *TrackingsAPI) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadSize)).Decode(&req); err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "invalid json body"))
		return
	}
	res, err := a.svc.Submit(r.Context(), trackings.SubmitInput{
		TrackingNumber: req.TrackingNumber,
		CheckDuplicate: req.CheckDuplicate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Duplicate != nil {
		writeJSON(w, http.StatusConflict, duplicateResponse{
			Error:         "Tracking number already exists",
			IsDuplicate:   true,
			ExistingEntry: toSummary(res.Duplicate),
		})
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Success: true, Tracking: toTracking(res.Record)})
}

func (a *TrackingsAPI) enqueueBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadSize)).Decode(&req); err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "invalid json body"))
		return
	}
	numbers := make([]string, 0, len(req.TrackingNumbers))
	for _, n := range req.TrackingNumbers {
		if n = strings.TrimSpace(n); n != "" {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 || len(numbers) > maxBatchSize {
		writeError(w, errors.Wrapf(models.ErrInvalidArgument, "trackingNumbers must hold 1..%d numbers", maxBatchSize))
		return
	}

	batch := messages.SubmitBatch{
		BatchID:         uuid.NewString(),
		TrackingNumbers: numbers,
		CheckDuplicate:  req.CheckDuplicate,
		RequestedAt:     time.Now().UTC(),
	}
	if err := a.batches.PublishJSON(r.Context(), a.batchTopic, batch.BatchID, batch); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batchResponse{BatchID: batch.BatchID, Count: len(numbers)})
}

func (a *TrackingsAPI) listTrackings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f models.TrackingFilter
	var err error
	if f.Page, err = queryInt(q.Get("page")); err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "page"))
		return
	}
	if f.Limit, err = queryInt(q.Get("limit")); err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "limit"))
		return
	}
	if s := q.Get("statusId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, errors.Wrap(models.ErrInvalidArgument, "statusId"))
			return
		}
		f.StatusID = &id
	}

	page, err := a.svc.ListTrackings(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	a.resolveImages(page.Items...)

	data := make([]*trackingJSON, 0, len(page.Items))
	for _, t := range page.Items {
		data = append(data, toTracking(t))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Data: data,
		Pagination: paginationJSON{
			Page:        page.Page,
			Limit:       page.Limit,
			TotalCount:  page.TotalCount,
			TotalPages:  page.TotalPages(),
			HasNextPage: page.HasNextPage(),
			HasPrevPage: page.HasPrevPage(),
		},
	})
}

func (a *TrackingsAPI) todayCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.TodayCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (a *TrackingsAPI) getTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := a.svc.GetTracking(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	a.resolveImages(rec)
	writeJSON(w, http.StatusOK, toTracking(rec))
}

func (a *TrackingsAPI) listHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "limit"))
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "offset"))
		return
	}
	evs, err := a.svc.ListHistory(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]historyJSON, 0, len(evs))
	for _, e := range evs {
		out = append(out, toHistory(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (a *TrackingsAPI) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "invalid json body"))
		return
	}
	rec, err := a.svc.UpdateStatus(r.Context(), id, req.StatusID)
	if err != nil {
		writeError(w, err)
		return
	}
	a.resolveImages(rec)
	writeJSON(w, http.StatusOK, toTracking(rec))
}

func (a *TrackingsAPI) deleteTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteTracking(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *TrackingsAPI) listStatuses(w http.ResponseWriter, r *http.Request) {
	sts, err := a.svc.ListStatuses(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]*statusJSON, 0, len(sts))
	for _, s := range sts {
		out = append(out, toStatus(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *TrackingsAPI) createStatus(w http.ResponseWriter, r *http.Request) {
	var req createStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "invalid json body"))
		return
	}
	st, err := a.svc.CreateStatus(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStatus(st))
}

func (a *TrackingsAPI) renameStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req createStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "invalid json body"))
		return
	}
	st, err := a.svc.UpdateStatusName(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatus(st))
}

func (a *TrackingsAPI) deleteStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.svc.DeleteStatus(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *TrackingsAPI) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, images.MaxSize+1<<20)
	if err := r.ParseMultipartForm(images.MaxSize); err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "invalid multipart form"))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "no file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, err.Error()))
		return
	}

	in := images.UploadInput{
		FileName:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}
	if s := r.FormValue("trackingId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, errors.Wrap(models.ErrInvalidArgument, "trackingId"))
			return
		}
		in.TrackingID = &id
	}

	img, err := a.images.Upload(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImage(img))
}

func (a *TrackingsAPI) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.images.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (a *TrackingsAPI) resolveImages(records ...*models.TrackingRecord) {
	if a.images != nil {
		a.images.Resolve(records...)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "invalid id"))
		return 0, false
	}
	return id, true
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateTrackingNumber), errors.Is(err, models.ErrStatusExists),
		errors.Is(err, models.ErrStatusInUse):
		return http.StatusConflict
	case errors.Is(err, models.ErrCarrierFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := httpStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", msg)
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err.Error())
	}
}
