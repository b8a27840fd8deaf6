package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(WebhookDeliveriesTotal.WithLabelValues("verified"))
	WebhookDeliveriesTotal.WithLabelValues("verified").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(WebhookDeliveriesTotal.WithLabelValues("verified")))

	replays := testutil.ToFloat64(WebhookReplaysTotal)
	WebhookReplaysTotal.Inc()
	assert.Equal(t, replays+1, testutil.ToFloat64(WebhookReplaysTotal))
}
