// Package translation implements the request pipeline: validate → resolve
// model → ensure loaded → admit → detect → generate → post-process →
// record statistics. Translate never panics and never returns an error;
// every failure becomes a failed Response.
package translation

import (
	"time"

	"github.com/google/uuid"
)

// Terminal and intermediate response statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// Request is one translation call. Constructed by the HTTP handler and
// passed by value into the service.
type Request struct {
	RequestID      string
	Text           string
	SourceLanguage string
	TargetLanguage string
	Quality        string
	ModelID        string
	ClientIP       string
	ReceivedAt     time.Time
}

// NewRequest stamps a fresh request id and receive time.
func NewRequest(text, source, target, quality, modelID, clientIP string) Request {
	return Request{
		RequestID:      uuid.NewString(),
		Text:           text,
		SourceLanguage: source,
		TargetLanguage: target,
		Quality:        quality,
		ModelID:        modelID,
		ClientIP:       clientIP,
		ReceivedAt:     time.Now(),
	}
}

// Response is the terminal (or pending) result of one call. Exactly one of
// the success and error sub-shapes is populated.
type Response struct {
	RequestID        string `json:"request_id"`
	Status           string `json:"status"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	ExecutionMode    string `json:"execution_mode,omitempty"`

	// Success shape.
	TranslatedText   string   `json:"translated_text,omitempty"`
	DetectedLanguage string   `json:"detected_language,omitempty"`
	ConfidenceScore  *float64 `json:"confidence_score,omitempty"`

	// Pending shape.
	QueuePosition        int `json:"queue_position,omitempty"`
	EstimatedWaitSeconds int `json:"estimated_wait_seconds,omitempty"`

	// Error shape; the HTTP layer renders these as the error envelope.
	ErrorCode    string `json:"-"`
	ErrorMessage string `json:"-"`
}
