package db

import (
	"context"
	"errors"

	"gridwatch/internal/model"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrAPIKeyNotFound is returned when no device owns the presented credential.
var ErrAPIKeyNotFound = errors.New("api key not found")

// DeviceRef is the slice of the device row the ingest path needs.
type DeviceRef struct {
	ID     string
	Status model.DeviceStatus
}

// Store runs the SQL this service owns: credential lookups, reading/alert
// inserts and device status updates. Everything else belongs to the external
// registry and dashboard collaborators.
type Store struct {
	dbMgr  *DBManager
	logger *zap.SugaredLogger
}

func NewStore(dbMgr *DBManager, logger *zap.SugaredLogger) *Store {
	return &Store{dbMgr: dbMgr, logger: logger}
}

// ResolveAPIKey maps a device credential to its device id and current status.
// Read-only; the api_key column carries a unique index so the lookup is a
// single index probe.
func (s *Store) ResolveAPIKey(ctx context.Context, apiKey string) (DeviceRef, error) {
	var ref DeviceRef

	err := s.dbMgr.Pool().QueryRow(ctx, `
		SELECT d.id, d.status
		FROM device_api_keys k
		JOIN devices d ON d.id = k.device_id
		WHERE k.api_key = $1
		LIMIT 1
	`, apiKey).Scan(&ref.ID, &ref.Status)

	if errors.Is(err, pgx.ErrNoRows) {
		return DeviceRef{}, ErrAPIKeyNotFound
	}
	if err != nil {
		return DeviceRef{}, err
	}

	return ref, nil
}

// InsertReading persists one sensor sample and fills in the server-assigned
// id and timestamp.
func (s *Store) InsertReading(ctx context.Context, r *model.Reading) error {
	err := s.dbMgr.Pool().QueryRow(ctx, `
		INSERT INTO sensor_readings
			(device_id, voltage, current, power, ldr, pir, energy_kwh, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
		RETURNING id, recorded_at
	`, r.DeviceID, r.Voltage, r.Current, r.Power, r.LDR, r.PIR, r.EnergyKWh).
		Scan(&r.ID, &r.RecordedAt)

	if err != nil {
		s.logger.Errorw("failed to insert sensor reading", "error", err, "device", r.DeviceID)
	}

	return err
}

// InsertAlert persists a classified alert and fills in id and timestamp.
func (s *Store) InsertAlert(ctx context.Context, a *model.Alert) error {
	err := s.dbMgr.Pool().QueryRow(ctx, `
		INSERT INTO alerts
			(device_id, type, severity, message, acknowledged, created_at)
		VALUES ($1,$2,$3,$4,FALSE,NOW())
		RETURNING id, created_at
	`, a.DeviceID, a.Type, a.Severity, a.Message).
		Scan(&a.ID, &a.CreatedAt)

	if err != nil {
		s.logger.Errorw("failed to insert alert", "error", err, "device", a.DeviceID, "type", a.Type)
	}

	return err
}

// UpdateDeviceStatus writes the device status column. An operator-set
// maintenance status is never downgraded to online here; a theft alert
// still forces the alert status through.
func (s *Store) UpdateDeviceStatus(ctx context.Context, deviceID string, status model.DeviceStatus) error {
	query := `
		UPDATE devices SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	if status == model.StatusOnline {
		query += ` AND status <> 'maintenance'`
	}

	if _, err := s.dbMgr.Pool().Exec(ctx, query, deviceID, status); err != nil {
		s.logger.Errorw("failed to update device status", "error", err, "device", deviceID, "status", status)
		return err
	}
	return nil
}
