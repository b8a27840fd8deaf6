package models

import "time"

// Verification outcomes of a webhook delivery.
const (
	VerificationVerified   = "verified"
	VerificationUnverified = "unverified"
	VerificationMalformed  = "malformed"
)

// Processing outcomes of a webhook delivery.
const (
	ProcessingPending     = "pending"
	ProcessingApplied     = "applied"
	ProcessingAppliedNoop = "applied-noop"
	ProcessingRejected    = "rejected"
)

// WebhookEvent is one delivery attempt from the payment provider. RawPayload
// is written once on insert and never updated; every later signature check
// is recomputed from it.
type WebhookEvent struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Provider          string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	ProviderEventID   string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_event_id"`
	EventType         string     `gorm:"type:varchar(100);not null;default:'';index" json:"event_type"`
	ProviderOrderRef  string     `gorm:"type:varchar(64);not null;default:'';index" json:"provider_order_ref"`
	RawPayload        []byte     `gorm:"type:longblob;not null;<-:create" json:"-"`
	ReceivedSignature string     `gorm:"type:varchar(255);not null;default:''" json:"received_signature"`
	ComputedSignature string     `gorm:"type:varchar(255);not null;default:''" json:"computed_signature"`
	Verification      string     `gorm:"type:varchar(20);not null;default:'unverified';index" json:"verification"`
	ProcessingOutcome string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"processing_outcome"`
	Diagnostic        string     `gorm:"type:text" json:"diagnostic"`
	HeadersJSON       string     `gorm:"type:text" json:"headers_json"`
	SourceIP          string     `gorm:"type:varchar(64)" json:"source_ip"`
	ReplayCount       int        `gorm:"not null;default:0" json:"replay_count"`
	ReceivedAt        time.Time  `gorm:"not null;index" json:"received_at"`
	LastProcessedAt   *time.Time `gorm:"default:null" json:"last_processed_at,omitempty"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsVerified reports whether the last verification of this delivery succeeded.
func (e *WebhookEvent) IsVerified() bool {
	return e.Verification == VerificationVerified
}

// IsValidProcessingOutcome reports whether s is a known processing outcome.
func IsValidProcessingOutcome(s string) bool {
	switch s {
	case ProcessingPending, ProcessingApplied, ProcessingAppliedNoop, ProcessingRejected:
		return true
	}
	return false
}

// IsValidVerification reports whether s is a known verification outcome.
func IsValidVerification(s string) bool {
	switch s {
	case VerificationVerified, VerificationUnverified, VerificationMalformed:
		return true
	}
	return false
}
