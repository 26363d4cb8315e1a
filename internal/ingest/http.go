package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// corsHeaders mirror what the dashboard and devices expect on every
// response, preflight included.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "authorization, x-client-info, apikey, content-type, x-api-key",
}

const maxPayloadBytes = 1 << 20

type ingestResponse struct {
	Success  bool    `json:"success"`
	DeviceID string  `json:"device_id"`
	Alert    *string `json:"alert"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves POST /ingest.
//
//	header x-api-key: <device credential>
//	body   {"voltage":230.5,"current":1.2,"power":276.6,"ldr":450,"pir":1}
func Handler(svc *Service, logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}

		result, err := svc.Ingest(r.Context(), r.Header.Get("x-api-key"), body)
		if err != nil {
			status, msg := mapIngestError(err)
			if status == http.StatusInternalServerError {
				logger.Errorw("ingest failed", "error", err)
			}
			writeError(w, status, msg)
			return
		}

		resp := ingestResponse{Success: true, DeviceID: result.DeviceID}
		if result.Alert != "" {
			alert := string(result.Alert)
			resp.Alert = &alert
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

func mapIngestError(err error) (int, string) {
	var storageErr *StorageError
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return http.StatusUnauthorized, "Missing x-api-key header"
	case errors.Is(err, ErrUnknownAPIKey):
		return http.StatusForbidden, "Invalid API key"
	case errors.Is(err, ErrBadPayload):
		return http.StatusBadRequest, "Malformed payload"
	case errors.As(err, &storageErr):
		return http.StatusInternalServerError, "Failed to insert reading"
	default:
		return http.StatusInternalServerError, "Unknown error"
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
