package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gridwatch/internal/config"
	"gridwatch/internal/db"
	"gridwatch/internal/energy"
	"gridwatch/internal/model"
	"gridwatch/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKey    = "key-abc"
	testDevice = "8018052b-45f8-46c3-b2fd-3ac2c15cd6f4"
)

var errBoom = errors.New("boom")

type statusWrite struct {
	deviceID string
	status   model.DeviceStatus
}

type fakeStore struct {
	mu           sync.Mutex
	keys         map[string]db.DeviceRef
	readings     []model.Reading
	alerts       []model.Alert
	statusWrites []statusWrite

	failResolve bool
	failReading bool
	failAlert   bool
	failStatus  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		keys: map[string]db.DeviceRef{
			testKey: {ID: testDevice, Status: model.StatusOnline},
		},
	}
}

func (f *fakeStore) ResolveAPIKey(_ context.Context, apiKey string) (db.DeviceRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failResolve {
		return db.DeviceRef{}, errBoom
	}
	ref, ok := f.keys[apiKey]
	if !ok {
		return db.DeviceRef{}, db.ErrAPIKeyNotFound
	}
	return ref, nil
}

func (f *fakeStore) InsertReading(_ context.Context, r *model.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReading {
		return errBoom
	}
	r.ID = int64(len(f.readings) + 1)
	r.RecordedAt = time.Now()
	f.readings = append(f.readings, *r)
	return nil
}

func (f *fakeStore) InsertAlert(_ context.Context, a *model.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAlert {
		return errBoom
	}
	a.ID = "alert-1"
	a.CreatedAt = time.Now()
	f.alerts = append(f.alerts, *a)
	return nil
}

func (f *fakeStore) UpdateDeviceStatus(_ context.Context, deviceID string, status model.DeviceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatus {
		return errBoom
	}
	f.statusWrites = append(f.statusWrites, statusWrite{deviceID, status})
	return nil
}

func (f *fakeStore) lastStatus() (statusWrite, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusWrites) == 0 {
		return statusWrite{}, false
	}
	return f.statusWrites[len(f.statusWrites)-1], true
}

type fakePub struct {
	mu       sync.Mutex
	readings []model.Reading
	alerts   []model.Alert
}

func (f *fakePub) PublishReading(r model.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings = append(f.readings, r)
}

func (f *fakePub) PublishAlert(a model.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
}

func newTestService(store Store) (*Service, *fakePub) {
	logger := zap.NewNop().Sugar()
	pub := &fakePub{}
	svc := NewService(
		store,
		pub,
		rules.NewEngine(config.DefaultThresholds),
		energy.NewIntegrator(5*time.Second),
		db.NewIngestStats(logger),
		logger,
	)
	return svc, pub
}

func TestIngestNormalReading(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store)

	payload := []byte(`{"voltage":230.5,"current":1.2,"power":276.6,"ldr":450,"pir":1}`)
	result, err := svc.Ingest(context.Background(), testKey, payload)
	require.NoError(t, err)

	assert.Equal(t, testDevice, result.DeviceID)
	assert.Empty(t, result.Alert)

	require.Len(t, store.readings, 1)
	r := store.readings[0]
	assert.Equal(t, 230.5, r.Voltage)
	assert.Equal(t, 1.2, r.Current)
	assert.Equal(t, 276.6, r.Power)
	assert.InDelta(t, 0.000384, r.EnergyKWh, 1e-6)

	w, ok := store.lastStatus()
	require.True(t, ok)
	assert.Equal(t, statusWrite{testDevice, model.StatusOnline}, w)

	assert.Empty(t, store.alerts)
	assert.Len(t, pub.readings, 1)
	assert.Empty(t, pub.alerts)
}

func TestIngestTheftReading(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store)

	result, err := svc.Ingest(context.Background(), testKey, []byte(`{"current":6,"power":20}`))
	require.NoError(t, err)
	assert.Equal(t, model.AlertTheft, result.Alert)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, model.AlertTheft, store.alerts[0].Type)
	assert.Equal(t, model.SeverityCritical, store.alerts[0].Severity)

	w, ok := store.lastStatus()
	require.True(t, ok)
	assert.Equal(t, model.StatusAlert, w.status)

	assert.Len(t, pub.readings, 1)
	assert.Len(t, pub.alerts, 1)
}

func TestIngestPowerSpikeReading(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	result, err := svc.Ingest(context.Background(), testKey, []byte(`{"power":6000}`))
	require.NoError(t, err)
	assert.Equal(t, model.AlertAnomaly, result.Alert)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, model.SeverityHigh, store.alerts[0].Severity)

	// anomaly is not theft: the device stays online
	w, ok := store.lastStatus()
	require.True(t, ok)
	assert.Equal(t, model.StatusOnline, w.status)
}

func TestIngestWastageReading(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	result, err := svc.Ingest(context.Background(), testKey, []byte(`{"pir":0,"ldr":900,"power":150}`))
	require.NoError(t, err)
	assert.Equal(t, model.AlertWastage, result.Alert)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, model.SeverityMedium, store.alerts[0].Severity)
}

func TestIngestStringEncodedNumerics(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	result, err := svc.Ingest(context.Background(), testKey, []byte(`{"current":"6","power":"20"}`))
	require.NoError(t, err)
	assert.Equal(t, model.AlertTheft, result.Alert)
}

func TestIngestMissingKey(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store)

	for _, key := range []string{"", "   "} {
		_, err := svc.Ingest(context.Background(), key, []byte(`{"power":100}`))
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	}

	assert.Empty(t, store.readings)
	assert.Empty(t, store.alerts)
	assert.Empty(t, store.statusWrites)
	assert.Empty(t, pub.readings)
	assert.Empty(t, pub.alerts)
}

func TestIngestUnknownKey(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store)

	_, err := svc.Ingest(context.Background(), "nope", []byte(`{"power":100}`))
	assert.ErrorIs(t, err, ErrUnknownAPIKey)

	assert.Empty(t, store.readings)
	assert.Empty(t, pub.readings)
}

func TestIngestResolveIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	r1, err := svc.Ingest(context.Background(), testKey, []byte(`{}`))
	require.NoError(t, err)
	r2, err := svc.Ingest(context.Background(), testKey, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, r1.DeviceID, r2.DeviceID)
}

func TestIngestBadPayload(t *testing.T) {
	store := newFakeStore()
	svc, pub := newTestService(store)

	for _, body := range []string{`{"voltage":true}`, `[1,2]`, `not json`, ``} {
		_, err := svc.Ingest(context.Background(), testKey, []byte(body))
		assert.ErrorIs(t, err, ErrBadPayload, "body %q", body)
	}

	assert.Empty(t, store.readings)
	assert.Empty(t, pub.readings)
}

func TestIngestMissingFieldsDefaultToZero(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	_, err := svc.Ingest(context.Background(), testKey, []byte(`{}`))
	require.NoError(t, err)

	require.Len(t, store.readings, 1)
	r := store.readings[0]
	assert.Zero(t, r.Voltage)
	assert.Zero(t, r.Current)
	assert.Zero(t, r.Power)
	assert.Zero(t, r.EnergyKWh)
}

func TestIngestReadingInsertFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.failReading = true
	svc, pub := newTestService(store)

	_, err := svc.Ingest(context.Background(), testKey, []byte(`{"current":6,"power":20}`))

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)

	// nothing after the failed reading write may happen
	assert.Empty(t, store.alerts)
	assert.Empty(t, store.statusWrites)
	assert.Empty(t, pub.readings)
	assert.Empty(t, pub.alerts)
}

func TestIngestResolveStorageFailure(t *testing.T) {
	store := newFakeStore()
	store.failResolve = true
	svc, _ := newTestService(store)

	_, err := svc.Ingest(context.Background(), testKey, []byte(`{}`))

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestIngestAlertInsertFailureIsAbsorbed(t *testing.T) {
	store := newFakeStore()
	store.failAlert = true
	svc, pub := newTestService(store)

	result, err := svc.Ingest(context.Background(), testKey, []byte(`{"current":6,"power":20}`))
	require.NoError(t, err, "reading already committed, alert failure must not surface")

	assert.Equal(t, model.AlertTheft, result.Alert)
	assert.Len(t, store.readings, 1)
	assert.Len(t, pub.readings, 1)
	// the failed alert is not published
	assert.Empty(t, pub.alerts)

	// theft classification still drives the status transition
	w, ok := store.lastStatus()
	require.True(t, ok)
	assert.Equal(t, model.StatusAlert, w.status)
}

func TestIngestStatusUpdateFailureIsAbsorbed(t *testing.T) {
	store := newFakeStore()
	store.failStatus = true
	svc, pub := newTestService(store)

	_, err := svc.Ingest(context.Background(), testKey, []byte(`{"power":100}`))
	require.NoError(t, err)
	assert.Len(t, pub.readings, 1)
}

func TestIngestMaintenanceIsSticky(t *testing.T) {
	store := newFakeStore()
	store.keys["maint-key"] = db.DeviceRef{ID: testDevice, Status: model.StatusMaintenance}
	svc, _ := newTestService(store)

	_, err := svc.Ingest(context.Background(), "maint-key", []byte(`{"power":100}`))
	require.NoError(t, err)

	w, ok := store.lastStatus()
	require.True(t, ok)
	assert.Equal(t, model.StatusMaintenance, w.status)
}

func TestIngestTheftOverridesMaintenance(t *testing.T) {
	store := newFakeStore()
	store.keys["maint-key"] = db.DeviceRef{ID: testDevice, Status: model.StatusMaintenance}
	svc, _ := newTestService(store)

	_, err := svc.Ingest(context.Background(), "maint-key", []byte(`{"current":6,"power":20}`))
	require.NoError(t, err)

	w, ok := store.lastStatus()
	require.True(t, ok)
	assert.Equal(t, model.StatusAlert, w.status)
}
