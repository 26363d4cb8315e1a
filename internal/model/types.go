package model

import "time"

// AlertType classifies an anomaly event derived from a reading.
type AlertType string

const (
	AlertTheft   AlertType = "theft"
	AlertWastage AlertType = "wastage"
	AlertAnomaly AlertType = "anomaly"
)

// Severity of a classified alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DeviceStatus is the operational status of a sensor node.
type DeviceStatus string

const (
	StatusOnline      DeviceStatus = "online"
	StatusOffline     DeviceStatus = "offline"
	StatusMaintenance DeviceStatus = "maintenance"
	StatusAlert       DeviceStatus = "alert"
)

// SensorPayload is the raw measurement set a device posts. All fields are
// optional and default to zero; numbers may arrive as JSON numbers or as
// numeric strings (cheap firmware serializers do both).
type SensorPayload struct {
	Voltage *StringFloat64 `json:"voltage,omitempty"`
	Current *StringFloat64 `json:"current,omitempty"`
	Power   *StringFloat64 `json:"power,omitempty"`
	LDR     *StringFloat64 `json:"ldr,omitempty"`
	PIR     *StringFloat64 `json:"pir,omitempty"`
}

// Reading is one persisted sensor sample. Immutable once written.
type Reading struct {
	ID         int64     `json:"id,omitempty"`
	DeviceID   string    `json:"device_id"`
	Voltage    float64   `json:"voltage"`
	Current    float64   `json:"current"`
	Power      float64   `json:"power"`
	LDR        float64   `json:"ldr"`
	PIR        float64   `json:"pir"`
	EnergyKWh  float64   `json:"energy_kwh"`
	RecordedAt time.Time `json:"recorded_at"`
}

// MotionPresent reports whether the PIR sensor saw movement in this sample.
func (r Reading) MotionPresent() bool {
	return r.PIR != 0
}

// Alert is a classified anomaly event. The acknowledged flag is mutated by
// the operator dashboard, never here.
type Alert struct {
	ID           string    `json:"id,omitempty"`
	DeviceID     string    `json:"device_id"`
	Type         AlertType `json:"type"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}

// Device mirrors the registry row. Only Status is mutated by this service;
// the remaining fields belong to the external device registry.
type Device struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	DeviceCode string       `json:"device_code"`
	Lat        *float64     `json:"lat,omitempty"`
	Lng        *float64     `json:"lng,omitempty"`
	Zone       string       `json:"zone,omitempty"`
	Status     DeviceStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
