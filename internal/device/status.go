// Package device holds the operational status transitions driven by
// ingestion. Other transitions (offline via the liveness watchdog,
// maintenance via operator action) belong to external collaborators.
package device

import "gridwatch/internal/model"

// Next returns the status a device moves to after a successfully ingested
// reading. alertType is empty when the reading classified as normal.
//
// A theft classification forces alert. Maintenance is sticky: a routine
// reading must not silently clear an operator-set maintenance status, only a
// theft alert escalates out of it. Every other accepted reading lands the
// device on online, which is also the only path clearing a previous alert.
func Next(current model.DeviceStatus, alertType model.AlertType) model.DeviceStatus {
	if alertType == model.AlertTheft {
		return model.StatusAlert
	}
	if current == model.StatusMaintenance {
		return model.StatusMaintenance
	}
	return model.StatusOnline
}
