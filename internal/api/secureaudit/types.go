package secureaudit

import (
	"fmt"

	"github.com/trailsec/ragtrail/internal/audit"
)

// LogRequest is the payload for POST /v1/log.
type LogRequest struct {
	// ConfigID selects a log configuration/schema when the token has access
	// to more than one. Optional.
	ConfigID string         `json:"config_id,omitempty"`
	Events   []audit.Record `json:"events"`
}

// LogResponse is the acknowledgment envelope returned by the service.
type LogResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Summary   string `json:"summary,omitempty"`
	Result    struct {
		// EnvelopeIDs identifies the stored records, in submission order.
		EnvelopeIDs []string `json:"envelope_ids,omitempty"`
	} `json:"result"`
}

// StatusSuccess is the status string the service returns on acceptance.
const StatusSuccess = "Success"

// APIError is a non-success response from the audit service.
type APIError struct {
	StatusCode int
	RequestID  string
	Status     string
	Summary    string
}

func (e *APIError) Error() string {
	if e.Summary != "" {
		return fmt.Sprintf("secureaudit: %s (status %d, request %s): %s", e.Status, e.StatusCode, e.RequestID, e.Summary)
	}
	return fmt.Sprintf("secureaudit: %s (status %d, request %s)", e.Status, e.StatusCode, e.RequestID)
}
