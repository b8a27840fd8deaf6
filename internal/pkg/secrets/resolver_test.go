package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayDemo/app/models"
)

type fakeSource struct {
	cfg   *models.DeveloperConfig
	err   error
	calls int
}

func (f *fakeSource) Latest(ctx context.Context) (*models.DeveloperConfig, error) {
	f.calls++
	return f.cfg, f.err
}

func TestResolveSecretPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		persisted  *models.DeveloperConfig
		static     Static
		wantSecret string
		wantSource Source
		wantErr    error
	}{
		{
			name:       "persisted wins over static",
			persisted:  &models.DeveloperConfig{WebhookSecret: "db-secret"},
			static:     Static{WebhookSecret: "env-secret"},
			wantSecret: "db-secret",
			wantSource: SourcePersisted,
		},
		{
			name:       "blank persisted falls back to static",
			persisted:  &models.DeveloperConfig{WebhookSecret: "  ", KeyID: "rzp"},
			static:     Static{WebhookSecret: "env-secret"},
			wantSecret: "env-secret",
			wantSource: SourceStatic,
		},
		{
			name:       "no row falls back to static",
			static:     Static{WebhookSecret: "env-secret"},
			wantSecret: "env-secret",
			wantSource: SourceStatic,
		},
		{
			name:    "nothing configured",
			wantErr: ErrConfigurationMissing,
		},
		{
			name:      "api key secret is not a signing secret",
			persisted: &models.DeveloperConfig{KeySecret: "api-secret"},
			static:    Static{KeySecret: "api-secret"},
			wantErr:   ErrConfigurationMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&fakeSource{cfg: tt.persisted}, tt.static)
			secret, source, err := r.ResolveSecret(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSecret, string(secret))
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestCurrentSecretReadsSourceEveryCall(t *testing.T) {
	src := &fakeSource{cfg: &models.DeveloperConfig{WebhookSecret: "first"}}
	r := NewResolver(src, Static{})

	s, err := r.CurrentSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", string(s))

	src.cfg = &models.DeveloperConfig{WebhookSecret: "rotated"}
	s, err = r.CurrentSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated", string(s))
	assert.Equal(t, 2, src.calls)
}

func TestCurrentSecretSourceError(t *testing.T) {
	boom := errors.New("db down")
	r := NewResolver(&fakeSource{err: boom}, Static{WebhookSecret: "env"})

	_, err := r.CurrentSecret(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrConfigurationMissing)
}

func TestCurrentCredentials(t *testing.T) {
	r := NewResolver(&fakeSource{cfg: &models.DeveloperConfig{KeyID: "rzp_db"}}, Static{KeyID: "rzp_env", KeySecret: "env_secret"})
	creds, err := r.CurrentCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credentials{KeyID: "rzp_db", KeySecret: "env_secret"}, creds)

	r = NewResolver(&fakeSource{}, Static{KeyID: "rzp_env"})
	_, err = r.CurrentCredentials(context.Background())
	assert.ErrorIs(t, err, ErrConfigurationMissing)

	r = NewResolver(nil, Static{KeyID: "id", KeySecret: "secret"})
	creds, err = r.CurrentCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.KeyID)
}
