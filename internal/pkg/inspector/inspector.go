package inspector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/eventstore"
	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

// ErrInvalidQuery is returned for filter values that can never match.
var ErrInvalidQuery = errors.New("invalid query")

// Query are the operator-facing listing filters. Zero values match all.
type Query struct {
	EventType         string
	ProcessingOutcome string
	Verification      string
	ProviderOrderRef  string
	From              *time.Time
	To                *time.Time
	Cursor            string
	Limit             int
}

// Summary is one row of a listing.
type Summary struct {
	ID                uint       `json:"id"`
	EventType         string     `json:"event_type"`
	ProviderEventID   string     `json:"provider_event_id"`
	ProviderOrderRef  string     `json:"provider_order_ref"`
	Verification      string     `json:"verification"`
	ProcessingOutcome string     `json:"processing_outcome"`
	Diagnostic        string     `json:"diagnostic"`
	ReplayCount       int        `json:"replay_count"`
	ReceivedAt        time.Time  `json:"received_at"`
	LastProcessedAt   *time.Time `json:"last_processed_at,omitempty"`
}

// Listing is one page of summaries.
type Listing struct {
	Events     []Summary `json:"events"`
	NextCursor string    `json:"next_cursor,omitempty"`
	Total      int64     `json:"total"`
}

// Detail is the full record of one delivery.
type Detail struct {
	Summary
	Provider          string            `json:"provider"`
	RawPayload        string            `json:"raw_payload"`
	PayloadEncoding   string            `json:"payload_encoding"`
	PrettyPayload     string            `json:"pretty_payload,omitempty"`
	ReceivedSignature string            `json:"received_signature"`
	ComputedSignature string            `json:"computed_signature"`
	SignaturesMatch   bool              `json:"signatures_match"`
	Headers           map[string]string `json:"headers,omitempty"`
	SourceIP          string            `json:"source_ip"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Inspector is the read side of the delivery log for operators.
type Inspector struct {
	store *eventstore.Store
}

// New creates an inspector over store.
func New(store *eventstore.Store) *Inspector {
	return &Inspector{store: store}
}

// List returns one page of records, newest first.
func (i *Inspector) List(ctx context.Context, cap usercontext.Capability, q Query) (Listing, error) {
	if err := cap.RequireInspect(); err != nil {
		return Listing{}, err
	}
	filter, err := q.filter()
	if err != nil {
		return Listing{}, err
	}

	page, err := i.store.List(ctx, filter, q.Cursor, q.Limit)
	if err != nil {
		return Listing{}, err
	}

	out := Listing{Events: make([]Summary, 0, len(page.Events)), NextCursor: page.NextCursor, Total: page.Total}
	for idx := range page.Events {
		out.Events = append(out.Events, summarize(&page.Events[idx]))
	}
	return out, nil
}

// Get returns the detail of one record.
func (i *Inspector) Get(ctx context.Context, cap usercontext.Capability, id uint) (*Detail, error) {
	if err := cap.RequireInspect(); err != nil {
		return nil, err
	}
	ev, err := i.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return describe(ev), nil
}

func (q Query) filter() (repository.WebhookEventFilter, error) {
	if q.ProcessingOutcome != "" && !models.IsValidProcessingOutcome(q.ProcessingOutcome) {
		return repository.WebhookEventFilter{}, fmt.Errorf("%w: unknown outcome %q", ErrInvalidQuery, q.ProcessingOutcome)
	}
	if q.Verification != "" && !models.IsValidVerification(q.Verification) {
		return repository.WebhookEventFilter{}, fmt.Errorf("%w: unknown verification %q", ErrInvalidQuery, q.Verification)
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return repository.WebhookEventFilter{}, fmt.Errorf("%w: date range ends before it starts", ErrInvalidQuery)
	}
	return repository.WebhookEventFilter{
		EventType:         q.EventType,
		ProcessingOutcome: q.ProcessingOutcome,
		Verification:      q.Verification,
		ProviderOrderRef:  q.ProviderOrderRef,
		ReceivedFrom:      q.From,
		ReceivedTo:        q.To,
	}, nil
}

func summarize(ev *models.WebhookEvent) Summary {
	return Summary{
		ID:                ev.ID,
		EventType:         ev.EventType,
		ProviderEventID:   ev.ProviderEventID,
		ProviderOrderRef:  ev.ProviderOrderRef,
		Verification:      ev.Verification,
		ProcessingOutcome: ev.ProcessingOutcome,
		Diagnostic:        ev.Diagnostic,
		ReplayCount:       ev.ReplayCount,
		ReceivedAt:        ev.ReceivedAt,
		LastProcessedAt:   ev.LastProcessedAt,
	}
}

func describe(ev *models.WebhookEvent) *Detail {
	d := &Detail{
		Summary:           summarize(ev),
		Provider:          ev.Provider,
		ReceivedSignature: ev.ReceivedSignature,
		ComputedSignature: ev.ComputedSignature,
		SignaturesMatch:   ev.ComputedSignature != "" && strings.EqualFold(strings.TrimSpace(ev.ReceivedSignature), ev.ComputedSignature),
		SourceIP:          ev.SourceIP,
		UpdatedAt:         ev.UpdatedAt,
	}

	d.RawPayload, d.PayloadEncoding = encodePayload(ev.RawPayload)
	if json.Valid(ev.RawPayload) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, ev.RawPayload, "", "  "); err == nil {
			d.PrettyPayload = buf.String()
		}
	}

	if ev.HeadersJSON != "" {
		headers := map[string]string{}
		if err := json.Unmarshal([]byte(ev.HeadersJSON), &headers); err == nil {
			d.Headers = headers
		}
	}
	return d
}

// encodePayload returns the payload as text when it is valid UTF-8 and as
// base64 otherwise, so the stored bytes are always recoverable.
func encodePayload(raw []byte) (string, string) {
	if utf8.Valid(raw) {
		return string(raw), "utf-8"
	}
	return base64.StdEncoding.EncodeToString(raw), "base64"
}
