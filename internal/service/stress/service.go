// Package stress turns submitted vitals into persisted assessments.
//
// The HTTP handler delegates here so that validation policy, persistence,
// alerting, and metrics live in one place. Classification itself is done by
// the pure vitals package; this service adds identity, timestamps, and storage.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/notify"
	"github.com/mindmate-health/mindmate/internal/storage"
	"github.com/mindmate-health/mindmate/internal/telemetry"
	"github.com/mindmate-health/mindmate/internal/vitals"
)

// legacySubject is what the web client sends before anyone has logged in.
const legacySubject = "undefined"

// Service records stress assessments.
type Service struct {
	store  storage.Store
	alerts notify.Publisher
	logger *slog.Logger
	now    func() time.Time

	assessments metric.Int64Counter
	rejected    metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to timestamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. alerts may be nil to disable alerting.
func New(store storage.Store, alerts notify.Publisher, logger *slog.Logger, opts ...Option) *Service {
	if alerts == nil {
		alerts = notify.NoopPublisher{}
	}
	meter := telemetry.Meter("mindmate/stress")
	assessments, _ := meter.Int64Counter("mindmate.assessments",
		metric.WithDescription("Stress assessments recorded, by stress level and blood pressure risk"),
	)
	rejected, _ := meter.Int64Counter("mindmate.assessments.rejected",
		metric.WithDescription("Submissions rejected for out-of-range vitals, by field"),
	)
	s := &Service{
		store:       store,
		alerts:      alerts,
		logger:      logger,
		now:         time.Now,
		assessments: assessments,
		rejected:    rejected,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NormalizeSubject maps an absent subject to the shared guest identity.
func NormalizeSubject(user string) string {
	if user == "" || user == legacySubject {
		return model.GuestSubject
	}
	return user
}

// Result is the outcome of Evaluate. Exactly one of Record or Err is meaningful:
// Err is set, as a *vitals.InvalidVitalsError, when the submission was rejected.
type Result struct {
	Record     model.StressRecord
	Assessment vitals.Assessment
	Err        error
}

// OK reports whether the submission was accepted and stored.
func (r Result) OK() bool { return r.Err == nil }

// Response renders an accepted result for the API.
func (r Result) Response() model.StressResponse {
	id := r.Record.ID
	ts := r.Record.Timestamp
	sys, dia := r.Assessment.Reading.Systolic, r.Assessment.Reading.Diastolic
	return model.StressResponse{
		ID:          &id,
		StressLevel: string(r.Assessment.StressLevel),
		Advice:      r.Assessment.AdviceText,
		Timestamp:   &ts,
		BPStage:     r.Assessment.BPStage.String(),
		Systolic:    &sys,
		Diastolic:   &dia,
	}
}

// LegacyErrorResponse is the degraded 200 body older clients expect for a
// rejected submission. Range failures use the fixed wording those clients
// match on.
func LegacyErrorResponse(err error) model.StressResponse {
	msg := err.Error()
	var invalid *vitals.InvalidVitalsError
	if errors.As(err, &invalid) {
		msg = invalid.LegacyMessage()
	}
	return model.StressResponse{
		StressLevel: string(vitals.StressMedium),
		Advice:      "Error: " + msg,
	}
}

// Evaluate validates and classifies req and, if it is valid, stores the
// assessment. Invalid vitals are reported in Result.Err; the returned error
// is reserved for storage failures.
func (s *Service) Evaluate(ctx context.Context, req model.StressRequest) (Result, error) {
	in := vitals.Input{
		SubjectID:       NormalizeSubject(req.User),
		BloodPressure:   req.BP,
		SleepHours:      req.Sleep,
		RespirationRate: req.Resp,
		HeartRate:       req.Heart,
	}

	a, err := vitals.Evaluate(in)
	if err != nil {
		var invalid *vitals.InvalidVitalsError
		if errors.As(err, &invalid) {
			s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("field", invalid.Field)))
		}
		s.logger.Info("stress: rejected submission", "subject", in.SubjectID, "error", err)
		return Result{Err: err}, nil
	}

	rec, err := s.store.CreateStressRecord(ctx, model.StressRecord{
		User:        in.SubjectID,
		Sleep:       in.SleepHours,
		BP:          a.Reading.String(),
		Resp:        in.RespirationRate,
		Heart:       in.HeartRate,
		StressLevel: string(a.StressLevel),
		Score:       a.Score,
		BPStage:     a.BPStage.String(),
		Advice:      a.AdviceText,
		Timestamp:   s.now().UTC(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("stress: store assessment: %w", err)
	}

	s.assessments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stress_level", string(a.StressLevel)),
		attribute.String("bp_risk", string(a.Risk)),
	))

	if needsAlert(a) {
		s.publishAlert(ctx, rec, a)
	}

	return Result{Record: rec, Assessment: a}, nil
}

func needsAlert(a vitals.Assessment) bool {
	return a.Risk == vitals.RiskDanger || a.StressLevel == vitals.StressHigh
}

// publishAlert never fails the submission; the record is already stored.
func (s *Service) publishAlert(ctx context.Context, rec model.StressRecord, a vitals.Assessment) {
	err := s.alerts.Publish(ctx, notify.Alert{
		RecordID:    rec.ID,
		User:        rec.User,
		StressLevel: rec.StressLevel,
		Score:       rec.Score,
		BPStage:     rec.BPStage,
		BPRisk:      string(a.Risk),
		Systolic:    a.Reading.Systolic,
		Diastolic:   a.Reading.Diastolic,
		Timestamp:   rec.Timestamp,
	})
	if err != nil {
		s.logger.Warn("stress: alert publish failed", "record_id", rec.ID, "error", err)
	}
}

// History returns a subject's records, newest first. An absent subject has
// no history.
func (s *Service) History(ctx context.Context, user string) ([]model.StressRecord, error) {
	if user == "" || user == legacySubject {
		return []model.StressRecord{}, nil
	}
	recs, err := s.store.ListStressRecords(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("stress: history: %w", err)
	}
	if recs == nil {
		recs = []model.StressRecord{}
	}
	return recs, nil
}

// Delete removes one record. Returns storage.ErrNotFound if it does not exist.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteStressRecord(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("stress: delete record %d: %w", id, err)
	}
	return nil
}

// All returns every record, newest first, for admin export.
func (s *Service) All(ctx context.Context) ([]model.StressRecord, error) {
	recs, err := s.store.ListAllStressRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("stress: list all: %w", err)
	}
	return recs, nil
}
