package intake

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/KasTrack/internal/broker/messages"
	"github.com/BearBump/KasTrack/internal/integrations/carrier"
	"github.com/BearBump/KasTrack/internal/services/trackings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Submitter interface {
	Submit(ctx context.Context, in trackings.SubmitInput) (trackings.SubmitResult, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Source delivers SubmitBatch messages; see kafka.Consumer.
type Source interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

const rateLimitWindow = 70 * time.Second

// Worker submits every tracking number of a SubmitBatch and reports one
// SubmitOutcome per number.
type Worker struct {
	submitter Submitter
	producer  Producer
	rl        RateLimiter

	topic string

	concurrency        int
	rateLimitPerMinute int64
	carrierLimits      map[string]int64
	rateLimitWait      time.Duration
	publishAttempts    int
	publishBackoff     time.Duration

	now func() time.Time

	startedAtUnixNano int64
	lastBatchUnixNano atomic.Int64
	totalBatches      atomic.Int64
	totalReceived     atomic.Int64
	totalProcessed    atomic.Int64
	totalCreated      atomic.Int64
	totalDuplicates   atomic.Int64
	totalFailures     atomic.Int64
	inFlight          atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(submitter Submitter, producer Producer, rl RateLimiter, topic string) *Worker {
	return &Worker{
		submitter:          submitter,
		producer:           producer,
		rl:                 rl,
		topic:              topic,
		concurrency:        10,
		rateLimitPerMinute: 120,
		carrierLimits:      map[string]int64{},
		rateLimitWait:      500 * time.Millisecond,
		publishAttempts:    10,
		publishBackoff:     150 * time.Millisecond,
		now:                time.Now,
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (w *Worker) WithSettings(concurrency int, rlPerMin int64) *Worker {
	if concurrency > 0 {
		w.concurrency = concurrency
	}
	if rlPerMin > 0 {
		w.rateLimitPerMinute = rlPerMin
	}
	return w
}

// WithCarrierRateLimits overrides the per-minute limit for single carriers,
// keyed by carrier code (FEDEX, UPS, ...).
func (w *Worker) WithCarrierRateLimits(limits map[string]int) *Worker {
	for code, n := range limits {
		if n > 0 {
			w.carrierLimits[strings.ToUpper(code)] = int64(n)
		}
	}
	return w
}

func (w *Worker) WithRetry(rateLimitWait, publishBackoff time.Duration, publishAttempts int) *Worker {
	if rateLimitWait >= 0 {
		w.rateLimitWait = rateLimitWait
	}
	if publishBackoff >= 0 {
		w.publishBackoff = publishBackoff
	}
	if publishAttempts > 0 {
		w.publishAttempts = publishAttempts
	}
	return w
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastBatchAt     *time.Time `json:"lastBatchAt,omitempty"`
	TotalBatches    int64      `json:"totalBatches"`
	TotalReceived   int64      `json:"totalReceived"`
	TotalProcessed  int64      `json:"totalProcessed"`
	TotalCreated    int64      `json:"totalCreated"`
	TotalDuplicates int64      `json:"totalDuplicates"`
	TotalFailures   int64      `json:"totalFailures"`
	InFlight        int64      `json:"inFlight"`
	LastError       string     `json:"lastError,omitempty"`
}

func (w *Worker) Stats() Stats {
	st := Stats{
		StartedAt:       time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalBatches:    w.totalBatches.Load(),
		TotalReceived:   w.totalReceived.Load(),
		TotalProcessed:  w.totalProcessed.Load(),
		TotalCreated:    w.totalCreated.Load(),
		TotalDuplicates: w.totalDuplicates.Load(),
		TotalFailures:   w.totalFailures.Load(),
		InFlight:        w.inFlight.Load(),
	}
	if n := w.lastBatchUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastBatchAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

// Run consumes batches until ctx is done or the source fails.
func (w *Worker) Run(ctx context.Context, src Source) error {
	err := src.Consume(ctx, func(_, value []byte) error {
		return w.HandleMessage(ctx, value)
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// HandleMessage decodes one SubmitBatch and processes it. Undecodable
// messages are dropped; only a canceled context keeps the message
// uncommitted.
func (w *Worker) HandleMessage(ctx context.Context, value []byte) error {
	var batch messages.SubmitBatch
	if err := json.Unmarshal(value, &batch); err != nil {
		w.setLastError(err)
		slog.Error("decode submit batch", "error", err.Error())
		return nil
	}
	w.ProcessBatch(ctx, batch)
	return ctx.Err()
}

// ProcessBatch submits the batch numbers with bounded concurrency. Blank
// and repeated numbers are skipped.
func (w *Worker) ProcessBatch(ctx context.Context, batch messages.SubmitBatch) {
	w.lastBatchUnixNano.Store(w.now().UTC().UnixNano())
	w.totalBatches.Add(1)
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}

	numbers := uniqueNumbers(batch.TrackingNumbers)
	w.totalReceived.Add(int64(len(numbers)))
	slog.Info("submit batch received", "batch_id", batch.BatchID, "numbers", len(numbers))

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, n := range numbers {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		w.inFlight.Add(1)
		go func(number string) {
			defer func() {
				w.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := w.processOne(ctx, batch, number); err != nil {
				w.setLastError(err)
				slog.Error("process tracking number",
					"batch_id", batch.BatchID, "tracking_number", number, "error", err.Error())
			}
			w.totalProcessed.Add(1)
		}(n)
	}
	wg.Wait()
}

// processOne submits one number. A carrier rate-limit slot is taken only when
// Submit actually reaches the carrier; a slot error drops the outcome.
func (w *Worker) processOne(ctx context.Context, batch messages.SubmitBatch, number string) error {
	var slotErr error
	out := messages.SubmitOutcome{
		BatchID:        batch.BatchID,
		TrackingNumber: number,
	}
	res, err := w.submitter.Submit(ctx, trackings.SubmitInput{
		TrackingNumber: number,
		CheckDuplicate: batch.CheckDuplicate,
		BeforeFetch: func(ctx context.Context) error {
			slotErr = w.waitForSlot(ctx, carrier.Identify(number))
			return slotErr
		},
	})
	if slotErr != nil {
		return slotErr
	}
	switch {
	case err != nil:
		w.totalFailures.Add(1)
		e := err.Error()
		out.Outcome = messages.OutcomeFailed
		out.Error = &e
	case res.Duplicate != nil:
		w.totalDuplicates.Add(1)
		out.Outcome = messages.OutcomeDuplicate
		out.TrackingID = res.Duplicate.ID
		out.KasID = res.Duplicate.KasID
	default:
		w.totalCreated.Add(1)
		out.Outcome = messages.OutcomeCreated
		if res.Record != nil {
			out.TrackingID = res.Record.ID
			out.KasID = res.Record.KasID
		}
	}
	out.ProcessedAt = w.now().UTC()

	b, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "marshal submit outcome")
	}
	return w.publish(ctx, []byte(number), b)
}

// waitForSlot blocks while the carrier's per-minute counter is over its
// limit. Each retry lands in the current minute's window.
func (w *Worker) waitForSlot(ctx context.Context, carrierCode string) error {
	if w.rl == nil || w.rateLimitPerMinute <= 0 {
		return nil
	}
	limit := w.rateLimitPerMinute
	if n, ok := w.carrierLimits[carrierCode]; ok {
		limit = n
	}
	for {
		allowed, n, err := w.rl.Allow(ctx, RateLimitKey(carrierCode, w.now()), limit, rateLimitWindow)
		if err != nil {
			return errors.Wrap(err, "rate limit")
		}
		if allowed {
			return nil
		}
		slog.Warn("rate limit exceeded", "carrier", carrierCode, "count", n, "limit", limit)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.rateLimitWait):
		}
	}
}

// RateLimitKey is the redis counter key for carrierCode in the minute of t.
func RateLimitKey(carrierCode string, t time.Time) string {
	return "rl:carrier:" + carrierCode + ":" + t.UTC().Format("200601021504")
}

// Kafka may still be starting when the worker comes up.
func (w *Worker) publish(ctx context.Context, key, value []byte) error {
	var pubErr error
	for i := 0; i < w.publishAttempts; i++ {
		if pubErr = w.producer.Publish(ctx, w.topic, key, value); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.publishBackoff * time.Duration(i+1)):
		}
	}
	return errors.Wrap(pubErr, "publish submit outcome")
}

func (w *Worker) setLastError(err error) {
	w.lastErrorMu.Lock()
	w.lastError = err.Error()
	w.lastErrorMu.Unlock()
}

func uniqueNumbers(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
