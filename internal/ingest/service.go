package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gridwatch/internal/db"
	"gridwatch/internal/device"
	"gridwatch/internal/energy"
	"gridwatch/internal/model"
	"gridwatch/internal/rules"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonFast = jsoniter.ConfigFastest

var (
	// ErrMissingAPIKey: no credential presented at all.
	ErrMissingAPIKey = errors.New("missing api key")
	// ErrUnknownAPIKey: credential presented but no device owns it.
	ErrUnknownAPIKey = errors.New("unknown api key")
	// ErrBadPayload: body is not a JSON object of numeric sensor fields.
	ErrBadPayload = errors.New("malformed payload")
)

// StorageError marks a persistence failure before the reading was durable.
// Failures after the reading commit are logged and absorbed instead.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store is the slice of persistence the pipeline drives. *db.Store is the
// real implementation; tests substitute fakes.
type Store interface {
	ResolveAPIKey(ctx context.Context, apiKey string) (db.DeviceRef, error)
	InsertReading(ctx context.Context, r *model.Reading) error
	InsertAlert(ctx context.Context, a *model.Alert) error
	UpdateDeviceStatus(ctx context.Context, deviceID string, status model.DeviceStatus) error
}

// Publisher receives newly persisted readings and alerts for fan-out.
// Delivery is best-effort and must never fail the ingestion call.
type Publisher interface {
	PublishReading(r model.Reading)
	PublishAlert(a model.Alert)
}

// Result is the outcome of one accepted ingestion call.
type Result struct {
	DeviceID string
	Alert    model.AlertType // empty when the reading classified as normal
}

// Service orchestrates one ingestion call: resolve the credential, parse the
// sample, integrate energy, persist, classify, transition device status and
// publish. It holds no locks of its own; concurrent calls are safe.
type Service struct {
	store      Store
	pub        Publisher
	engine     *rules.Engine
	integrator *energy.Integrator
	stats      *db.IngestStats
	logger     *zap.SugaredLogger
}

func NewService(store Store, pub Publisher, engine *rules.Engine, integrator *energy.Integrator, stats *db.IngestStats, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:      store,
		pub:        pub,
		engine:     engine,
		integrator: integrator,
		stats:      stats,
		logger:     logger,
	}
}

// Ingest runs the full pipeline for one raw payload. Any error before the
// reading insert aborts the call with no partial state. Once the reading is
// durable, alert/status/publish failures are logged and the call still
// succeeds: the primary fact is already committed.
func (s *Service) Ingest(ctx context.Context, apiKey string, rawPayload []byte) (Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		s.stats.IncrementReject()
		return Result{}, ErrMissingAPIKey
	}

	ref, err := s.store.ResolveAPIKey(ctx, apiKey)
	if err != nil {
		s.stats.IncrementReject()
		if errors.Is(err, db.ErrAPIKeyNotFound) {
			return Result{}, ErrUnknownAPIKey
		}
		return Result{}, &StorageError{Op: "resolve api key", Err: err}
	}

	var payload model.SensorPayload
	if err := jsonFast.Unmarshal(rawPayload, &payload); err != nil {
		s.stats.IncrementReject()
		return Result{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	reading := model.Reading{
		DeviceID: ref.ID,
		Voltage:  payload.Voltage.Value(),
		Current:  payload.Current.Value(),
		Power:    payload.Power.Value(),
		LDR:      payload.LDR.Value(),
		PIR:      payload.PIR.Value(),
	}
	reading.EnergyKWh = s.integrator.Delta(reading.Power)

	if err := s.store.InsertReading(ctx, &reading); err != nil {
		s.stats.IncrementReject()
		return Result{}, &StorageError{Op: "insert reading", Err: err}
	}
	s.stats.IncrementReading()

	// From here on the reading is durable; nothing below may fail the call.

	var alertType model.AlertType
	var alert *model.Alert
	if cls := s.engine.Classify(reading); cls != nil {
		alertType = cls.Type
		alert = &model.Alert{
			DeviceID: ref.ID,
			Type:     cls.Type,
			Severity: cls.Severity,
			Message:  cls.Message,
		}
		if err := s.store.InsertAlert(ctx, alert); err != nil {
			s.logger.Errorw("alert insert failed after reading commit",
				"error", err, "device", ref.ID, "type", cls.Type)
			alert = nil
		} else {
			s.stats.IncrementAlert()
		}
	}

	next := device.Next(ref.Status, alertType)
	if err := s.store.UpdateDeviceStatus(ctx, ref.ID, next); err != nil {
		s.logger.Errorw("device status update failed after reading commit",
			"error", err, "device", ref.ID, "status", next)
	}

	s.pub.PublishReading(reading)
	if alert != nil {
		s.pub.PublishAlert(*alert)
	}

	return Result{DeviceID: ref.ID, Alert: alertType}, nil
}
