package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GatekeeperDecisions  *prometheus.CounterVec
	Backups              *prometheus.CounterVec
	BackupCleanupDeleted prometheus.Counter
	DripEmails           *prometheus.CounterVec
	NewsletterEmails     *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		GatekeeperDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risegen_gatekeeper_decisions_total",
			Help: "Requests judged by the gatekeeper, by deciding rule and outcome",
		}, []string{"rule", "outcome"}),
		Backups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risegen_backups_total",
			Help: "Backup attempts by trigger and result",
		}, []string{"trigger", "result"}),
		BackupCleanupDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "risegen_backup_cleanup_deleted_total",
			Help: "Backup files removed by retention cleanup",
		}),
		DripEmails: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risegen_drip_emails_total",
			Help: "Drip campaign emails by step and result",
		}, []string{"step", "result"}),
		NewsletterEmails: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risegen_newsletter_emails_total",
			Help: "Newsletter broadcast emails by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) RecordDecision(rule string, outcome string) {
	m.GatekeeperDecisions.WithLabelValues(rule, outcome).Inc()
}

func (m *Metrics) RecordBackup(trigger string, err error) {
	m.Backups.WithLabelValues(trigger, result(err)).Inc()
}

func (m *Metrics) RecordCleanupDeleted(count int) {
	m.BackupCleanupDeleted.Add(float64(count))
}

func (m *Metrics) RecordDripEmail(step int, err error) {
	m.DripEmails.WithLabelValues(strconv.Itoa(step), result(err)).Inc()
}

func (m *Metrics) RecordNewsletterEmail(err error) {
	m.NewsletterEmails.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
