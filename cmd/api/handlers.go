package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"mailtrust/internal/lookup"
	"mailtrust/internal/models"
	"mailtrust/internal/validator"
)

const maxBodyBytes = 1 << 20

type server struct {
	scanner        *validator.Scanner
	requestTimeout time.Duration
}

func (s *server) scanHandler(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFrom(r.Context())

	var req models.ScanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Domain == "" {
		writeError(w, r, http.StatusBadRequest, "Missing 'domain' field")
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	report, err := s.scanner.ScanDomain(ctx, req)
	if err != nil {
		status, msg := scanErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Printf("[%s] ❌ scan of %q failed: %v", reqID, req.Domain, err)
		}
		writeError(w, r, status, msg)
		return
	}

	writeJSON(w, r, http.StatusOK, report)
}

// scanErrorStatus maps a scan failure onto an HTTP status and a message that
// is safe to show the caller.
func scanErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, validator.ErrInvalidDomain):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, lookup.ErrResolverUnavailable):
		return http.StatusServiceUnavailable, "DNS resolver unavailable, please try again later"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, "Scan timed out"
	default:
		return http.StatusInternalServerError, "An error occurred while scanning the domain"
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	guide := map[string]interface{}{
		"service":     "mailtrust",
		"version":     "1.0.0",
		"description": "Email deliverability checker that scores a domain's SPF, DKIM, DMARC and MX setup",
		"endpoints": map[string]string{
			"scan":   "/api/scan-domain (POST)",
			"health": "/health (GET)",
		},
	}
	writeJSON(w, r, http.StatusOK, guide)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[%s] ❌ Error encoding %s response: %v", requestIDFrom(r.Context()), r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{
		"error":      msg,
		"request_id": requestIDFrom(r.Context()),
	})
}
