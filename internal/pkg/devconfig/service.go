package devconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/app/repository"
	"github.com/ManuelReschke/PayDemo/internal/pkg/secrets"
	"github.com/ManuelReschke/PayDemo/internal/pkg/usercontext"
)

// ErrInvalidConfig wraps validation failures of an update.
var ErrInvalidConfig = errors.New("invalid developer config")

// View is the masked form of the active configuration.
type View struct {
	WebhookSecret       string     `json:"webhook_secret"`
	WebhookSecretSource string     `json:"webhook_secret_source"`
	KeyID               string     `json:"key_id"`
	KeySecret           string     `json:"key_secret"`
	UpdatedBy           string     `json:"updated_by,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// Update carries the fields an operator wants to change. Blank fields keep
// their current value.
type Update struct {
	WebhookSecret string `json:"webhook_secret"`
	KeyID         string `json:"key_id"`
	KeySecret     string `json:"key_secret"`
}

// HistoryEntry describes one past revision without its secrets.
type HistoryEntry struct {
	ID        uint      `json:"id"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service manages the operator-editable provider configuration.
type Service struct {
	repo   repository.DeveloperConfigRepository
	static secrets.Static
}

// NewService creates a service over repo. static is shown as the source when
// nothing has been persisted.
func NewService(repo repository.DeveloperConfigRepository, static secrets.Static) *Service {
	return &Service{repo: repo, static: static}
}

// Get returns the active configuration with secrets masked.
func (s *Service) Get(ctx context.Context, cap usercontext.Capability) (View, error) {
	if err := cap.RequirePrivileged(); err != nil {
		return View{}, err
	}
	cfg, err := s.repo.Latest(ctx)
	if err != nil {
		return View{}, fmt.Errorf("load developer config: %w", err)
	}
	return s.view(cfg), nil
}

// Update appends a new revision. The active secret changes for the next
// delivery.
func (s *Service) Update(ctx context.Context, cap usercontext.Capability, u Update) (View, error) {
	if err := cap.RequirePrivileged(); err != nil {
		return View{}, err
	}
	current, err := s.repo.Latest(ctx)
	if err != nil {
		return View{}, fmt.Errorf("load developer config: %w", err)
	}

	next := current.Merge(models.DeveloperConfig{
		WebhookSecret: strings.TrimSpace(u.WebhookSecret),
		KeyID:         strings.TrimSpace(u.KeyID),
		KeySecret:     strings.TrimSpace(u.KeySecret),
		UpdatedBy:     cap.Operator,
	})
	if err := next.Validate(); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return View{}, fmt.Errorf("%w: %s failed on %s", ErrInvalidConfig, verrs[0].Field(), verrs[0].Tag())
		}
		return View{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	next.UpdatedAt = time.Now().UTC()

	if err := s.repo.Append(ctx, &next); err != nil {
		return View{}, fmt.Errorf("store developer config: %w", err)
	}
	log.Infof("[DevConfig] %s updated developer config (revision %d)", cap.Operator, next.ID)
	return s.view(&next), nil
}

// History lists past revisions, newest first.
func (s *Service) History(ctx context.Context, cap usercontext.Capability, limit int) ([]HistoryEntry, error) {
	if err := cap.RequirePrivileged(); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, HistoryEntry{ID: r.ID, UpdatedBy: r.UpdatedBy, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

func (s *Service) view(cfg *models.DeveloperConfig) View {
	v := View{
		WebhookSecret: models.MaskSecret(s.static.WebhookSecret),
		KeyID:         s.static.KeyID,
		KeySecret:     models.MaskSecret(s.static.KeySecret),
	}
	if v.WebhookSecret != "" {
		v.WebhookSecretSource = string(secrets.SourceStatic)
	}
	if cfg == nil {
		return v
	}
	if cfg.WebhookSecret != "" {
		v.WebhookSecret = models.MaskSecret(cfg.WebhookSecret)
		v.WebhookSecretSource = string(secrets.SourcePersisted)
	}
	if cfg.KeyID != "" {
		v.KeyID = cfg.KeyID
	}
	if cfg.KeySecret != "" {
		v.KeySecret = models.MaskSecret(cfg.KeySecret)
	}
	v.UpdatedBy = cfg.UpdatedBy
	updated := cfg.UpdatedAt
	v.UpdatedAt = &updated
	return v
}
