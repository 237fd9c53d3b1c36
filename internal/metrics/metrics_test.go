package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordDecision("rate-limit", "reject")
	m.RecordDecision("rate-limit", "reject")
	m.RecordBackup("scheduled", nil)
	m.RecordBackup("scheduled", errors.New("disk full"))
	m.RecordCleanupDeleted(3)
	m.RecordDripEmail(1, nil)
	m.RecordNewsletterEmail(errors.New("bounce"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GatekeeperDecisions.WithLabelValues("rate-limit", "reject")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backups.WithLabelValues("scheduled", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backups.WithLabelValues("scheduled", "failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BackupCleanupDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DripEmails.WithLabelValues("1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NewsletterEmails.WithLabelValues("failure")))
}

func TestMetricsSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
