package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := Env
	Env = values
	t.Cleanup(func() { Env = prev })
}

func TestGetEnvPrefersLoadedMap(t *testing.T) {
	withEnv(t, map[string]string{"PAYDEMO_TEST_KEY": "from-file"})
	t.Setenv("PAYDEMO_TEST_KEY", "from-os")

	assert.Equal(t, "from-file", GetEnv("PAYDEMO_TEST_KEY", "def"))
}

func TestGetEnvFallsBackToOSThenDefault(t *testing.T) {
	withEnv(t, map[string]string{})
	t.Setenv("PAYDEMO_TEST_OS", "from-os")

	assert.Equal(t, "from-os", GetEnv("PAYDEMO_TEST_OS", "def"))
	assert.Equal(t, "def", GetEnv("PAYDEMO_TEST_MISSING", "def"))
}

func TestGetDuration(t *testing.T) {
	withEnv(t, map[string]string{"WAIT_OK": "250ms", "WAIT_BAD": "soon", "WAIT_NEG": "-1s"})

	assert.Equal(t, 250*time.Millisecond, GetDuration("WAIT_OK", time.Second))
	assert.Equal(t, time.Second, GetDuration("WAIT_BAD", time.Second))
	assert.Equal(t, time.Second, GetDuration("WAIT_NEG", time.Second))
	assert.Equal(t, time.Second, GetDuration("WAIT_UNSET", time.Second))
}

func TestGetInt(t *testing.T) {
	withEnv(t, map[string]string{"N_OK": "7", "N_BAD": "seven"})

	assert.Equal(t, 7, GetInt("N_OK", 1))
	assert.Equal(t, 1, GetInt("N_BAD", 1))
}

func TestIsDev(t *testing.T) {
	withEnv(t, map[string]string{"APP_ENV": "dev"})
	assert.True(t, IsDev())

	Env["APP_ENV"] = "prod"
	assert.False(t, IsDev())
}
