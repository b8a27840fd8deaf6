package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/PayDemo/app/models"
	"github.com/ManuelReschke/PayDemo/internal/pkg/env"
)

// ErrConfigurationMissing is returned when neither the persisted developer
// config nor the static configuration provides a usable value.
var ErrConfigurationMissing = errors.New("payment provider configuration missing")

// ConfigSource yields the newest persisted developer config, or nil when no
// row exists.
type ConfigSource interface {
	Latest(ctx context.Context) (*models.DeveloperConfig, error)
}

// Static is the deployment-time fallback configuration.
type Static struct {
	WebhookSecret string
	KeyID         string
	KeySecret     string
}

// StaticFromEnv reads the fallback configuration from the environment.
func StaticFromEnv() Static {
	return Static{
		WebhookSecret: env.GetEnv("WEBHOOK_SECRET", ""),
		KeyID:         env.GetEnv("RAZORPAY_KEY_ID", ""),
		KeySecret:     env.GetEnv("RAZORPAY_KEY_SECRET", ""),
	}
}

// Credentials is the provider API key pair.
type Credentials struct {
	KeyID     string
	KeySecret string
}

// Source names where a resolved value came from.
type Source string

const (
	SourcePersisted Source = "persisted"
	SourceStatic    Source = "static"
)

// Resolver returns the active signing secret and API credentials. Every call
// reads the config source again, so an operator update applies to the next
// delivery without a restart.
type Resolver struct {
	source ConfigSource
	static Static
}

// NewResolver creates a resolver over source with static as fallback.
func NewResolver(source ConfigSource, static Static) *Resolver {
	return &Resolver{source: source, static: static}
}

// CurrentSecret returns the webhook signing secret. A non-empty persisted
// secret wins over the static one.
func (r *Resolver) CurrentSecret(ctx context.Context) ([]byte, error) {
	secret, _, err := r.ResolveSecret(ctx)
	return secret, err
}

// ResolveSecret is CurrentSecret that also reports the source.
func (r *Resolver) ResolveSecret(ctx context.Context) ([]byte, Source, error) {
	cfg, err := r.latest(ctx)
	if err != nil {
		return nil, "", err
	}
	if cfg != nil {
		if s := strings.TrimSpace(cfg.WebhookSecret); s != "" {
			return []byte(s), SourcePersisted, nil
		}
	}
	if s := strings.TrimSpace(r.static.WebhookSecret); s != "" {
		return []byte(s), SourceStatic, nil
	}
	return nil, "", ErrConfigurationMissing
}

// CurrentCredentials returns the provider API key pair. Each field falls back
// to static configuration on its own; both must end up non-empty.
func (r *Resolver) CurrentCredentials(ctx context.Context) (Credentials, error) {
	cfg, err := r.latest(ctx)
	if err != nil {
		return Credentials{}, err
	}

	creds := Credentials{
		KeyID:     strings.TrimSpace(r.static.KeyID),
		KeySecret: strings.TrimSpace(r.static.KeySecret),
	}
	if cfg != nil {
		if v := strings.TrimSpace(cfg.KeyID); v != "" {
			creds.KeyID = v
		}
		if v := strings.TrimSpace(cfg.KeySecret); v != "" {
			creds.KeySecret = v
		}
	}
	if creds.KeyID == "" || creds.KeySecret == "" {
		return Credentials{}, ErrConfigurationMissing
	}
	return creds, nil
}

func (r *Resolver) latest(ctx context.Context) (*models.DeveloperConfig, error) {
	if r.source == nil {
		return nil, nil
	}
	cfg, err := r.source.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load developer config: %w", err)
	}
	return cfg, nil
}
