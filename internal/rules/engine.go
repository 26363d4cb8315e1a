package rules

import (
	"fmt"

	"gridwatch/internal/config"
	"gridwatch/internal/model"
)

// Classification is the outcome of evaluating one reading.
type Classification struct {
	Type     model.AlertType
	Severity model.Severity
	Message  string
}

// Engine evaluates a reading against the fixed anomaly rules. It is a pure
// function of (reading, thresholds); thresholds are injected once at
// construction.
type Engine struct {
	t config.Thresholds
}

func NewEngine(t config.Thresholds) *Engine {
	return &Engine{t: t}
}

// Classify runs the rules in priority order and returns the first match, or
// nil when the reading is normal. Rules are mutually exclusive: at most one
// alert per reading.
//
//  1. theft: high current with negligible delivered power — a bypass or tap
//     downstream of the meter.
//  2. anomaly: power far outside the expected load range.
//  3. wastage: load drawing power while the area is unoccupied and already
//     well lit.
func (e *Engine) Classify(r model.Reading) *Classification {
	if r.Current > e.t.TheftCurrentAmps && r.Power < e.t.TheftPowerWatts {
		return &Classification{
			Type:     model.AlertTheft,
			Severity: model.SeverityCritical,
			Message: fmt.Sprintf(
				"Suspected theft: High current (%gA) but low power (%gW). Possible bypass detected.",
				r.Current, r.Power),
		}
	}

	if r.Power > e.t.SpikePowerWatts {
		return &Classification{
			Type:     model.AlertAnomaly,
			Severity: model.SeverityHigh,
			Message: fmt.Sprintf(
				"Abnormal power spike: %gW detected. Check for unauthorized load.",
				r.Power),
		}
	}

	if !r.MotionPresent() && r.LDR > e.t.WastageLDR && r.Power > e.t.WastagePowerW {
		return &Classification{
			Type:     model.AlertWastage,
			Severity: model.SeverityMedium,
			Message: fmt.Sprintf(
				"Energy wastage: Power (%gW) active with high ambient light (LDR: %g) and no motion detected.",
				r.Power, r.LDR),
		}
	}

	return nil
}
