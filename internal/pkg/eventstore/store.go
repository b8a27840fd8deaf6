package eventstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/reconcile"
)

var ErrNotFound = errors.New("webhook event not found")

const (
	DefaultPageSize = 25
	MaxPageSize     = 200
	archiveTimeout  = 10 * time.Second

	// column widths of webhook_events
	maxSignatureLen = 255
	maxEventIDLen   = 191
	maxEventTypeLen = 100
	maxOrderRefLen  = 64
	maxSourceIPLen  = 64
)

// Archiver keeps an external copy of recorded deliveries.
type Archiver interface {
	Archive(ctx context.Context, ev *models.WebhookEvent) error
}

// Delivery is an inbound request as received, together with the verdict of
// the signature check performed before it is stored.
type Delivery struct {
	Provider          string
	EventID           string
	RawPayload        []byte
	ReceivedSignature string
	ComputedSignature string
	Verification      string
	ProcessingOutcome string
	Diagnostic        string
	Headers           map[string]string
	SourceIP          string
	ReceivedAt        time.Time
}

// Store is the append-mostly log of webhook deliveries.
type Store struct {
	repo     repository.WebhookEventRepository
	archiver Archiver
}

// New creates a store on repo. archiver may be nil.
func New(repo repository.WebhookEventRepository, archiver Archiver) *Store {
	return &Store{repo: repo, archiver: archiver}
}

// Record persists a delivery. The raw payload is copied and stored byte for
// byte. Derived text fields are cut to their column width so that delivery
// content can never make the insert fail; the full headers stay in
// HeadersJSON. It fails only when storage does.
func (s *Store) Record(ctx context.Context, d Delivery) (*models.WebhookEvent, error) {
	ev := &models.WebhookEvent{
		Provider:          d.Provider,
		ProviderEventID:   Fingerprint(d.EventID, d.RawPayload),
		RawPayload:        append([]byte(nil), d.RawPayload...),
		ReceivedSignature: truncate(d.ReceivedSignature, maxSignatureLen),
		ComputedSignature: truncate(d.ComputedSignature, maxSignatureLen),
		Verification:      d.Verification,
		ProcessingOutcome: d.ProcessingOutcome,
		Diagnostic:        d.Diagnostic,
		SourceIP:          truncate(d.SourceIP, maxSourceIPLen),
		ReceivedAt:        d.ReceivedAt.UTC().Truncate(time.Millisecond),
	}
	if ev.Provider == "" {
		ev.Provider = models.ProviderRazorpay
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if ev.Verification == "" {
		ev.Verification = models.VerificationUnverified
	}
	if ev.ProcessingOutcome == "" {
		ev.ProcessingOutcome = models.ProcessingPending
	}
	if len(d.Headers) > 0 {
		if b, err := json.Marshal(d.Headers); err == nil {
			ev.HeadersJSON = string(b)
		}
	}
	// best effort, the payload may be garbage
	if n, err := reconcile.ParseNotification(d.RawPayload); err == nil {
		ev.EventType = truncate(n.RawType, maxEventTypeLen)
		ev.ProviderOrderRef = truncate(n.ProviderOrderID, maxOrderRefLen)
	}

	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("record webhook delivery: %w", err)
	}

	if s.archiver != nil {
		go s.archive(ev)
	}
	return ev, nil
}

func (s *Store) archive(ev *models.WebhookEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.archiver.Archive(ctx, ev); err != nil {
		log.Warnf("[Archive] %v", err)
	}
}

// Get returns one delivery record.
func (s *Store) Get(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

// SaveOutcome overwrites the verification and processing state of a record.
func (s *Store) SaveOutcome(ctx context.Context, id uint, outcome repository.WebhookOutcome) error {
	return s.repo.UpdateOutcome(ctx, id, outcome)
}

// IncrementReplayCount adds one to the record's replay count and returns the
// new value.
func (s *Store) IncrementReplayCount(ctx context.Context, id uint) (int, error) {
	n, err := s.repo.IncrementReplayCount(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	return n, err
}

// StalePending lists verified records still pending that arrived before
// the given time.
func (s *Store) StalePending(ctx context.Context, receivedBefore time.Time, limit int) ([]models.WebhookEvent, error) {
	return s.repo.ListStalePending(ctx, receivedBefore, limit)
}

// Page is one page of a listing.
type Page struct {
	Events     []models.WebhookEvent
	NextCursor string
	Total      int64
}

// List returns one page of records matching filter, newest first. cursor is
// the NextCursor of the previous page or empty for the first page.
func (s *Store) List(ctx context.Context, filter repository.WebhookEventFilter, cursor string, limit int) (Page, error) {
	after, err := DecodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	limit = clampLimit(limit)

	// one extra row tells us whether another page exists
	events, err := s.repo.List(ctx, filter, after, limit+1)
	if err != nil {
		return Page{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	page := Page{Total: total}
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1]
		page.NextCursor = EncodeCursor(repository.WebhookEventCursor{ReceivedAt: last.ReceivedAt, ID: last.ID})
	}
	page.Events = events
	return page, nil
}

// Iterate returns a lazy sequence over all records matching filter, newest
// first, fetched batchSize rows at a time. Pass a cursor from a previous
// iterator to resume after the last record it yielded.
func (s *Store) Iterate(ctx context.Context, filter repository.WebhookEventFilter, cursor string, batchSize int) (*Iterator, error) {
	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	return &Iterator{
		ctx:       ctx,
		repo:      s.repo,
		filter:    filter,
		after:     after,
		batchSize: clampLimit(batchSize),
	}, nil
}

// Fingerprint returns the provider event id, or a content hash of the
// payload when the provider sent none.
func Fingerprint(eventID string, payload []byte) string {
	if id := strings.TrimSpace(eventID); id != "" {
		return truncate(id, maxEventIDLen)
	}
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
