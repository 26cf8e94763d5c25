package history

import "time"

// Actions recorded for a webhook delivery.
const (
	ActionRejected  = "rejected"  // signature mismatch
	ActionSimulated = "simulated" // test mode, touch strategy only
	ActionIgnored   = "ignored"   // push to a branch that is not watched
	ActionPulled    = "pulled"    // git pull brought in changes
	ActionTouched   = "touched"   // git pull was a no-op, files touched
	ActionFailed    = "failed"    // git pull failed
	ActionInvalid   = "invalid"   // unreadable or malformed payload
	ActionTimeout   = "timeout"   // request deadline passed during git pull
)

// Delivery is one webhook request and what the receiver did with it.
type Delivery struct {
	ID              int64     `json:"id"`
	DeliveryID      string    `json:"delivery_id,omitempty"`
	Event           string    `json:"event,omitempty"`
	Ref             string    `json:"ref,omitempty"`
	Action          string    `json:"action"`
	StatusCode      int       `json:"status_code"`
	SignatureStatus string    `json:"signature_status"`
	ReceivedAt      time.Time `json:"received_at"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	CommitHash      *string   `json:"commit_hash,omitempty"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
}
