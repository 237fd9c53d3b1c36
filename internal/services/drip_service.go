package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync/atomic"
	"time"

	"github.com/Mirvisek/RiseGen/internal/metrics"
	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Mailer interface {
	Ready() error
	Send(ctx context.Context, email Email) error
}

// DripStep is one message of the onboarding sequence. Delay is measured from
// signup.
type DripStep struct {
	Number  int
	Delay   time.Duration
	Subject string
	Body    *template.Template
}

var emailLayout = template.Must(template.New("layout").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
{{.Content}}
<hr style="border: none; border-top: 1px solid #eee; margin: 40px 0 20px 0;" />
<p style="font-size: 11px; color: #999; text-align: center;">
Otrzymujesz tę wiadomość, ponieważ zapisałeś się na newsletter Stowarzyszenia RiseGen.<br/>
<a href="{{.SiteURL}}/kontakt" style="color: #999;">Skontaktuj się</a> jeśli chcesz się wypisać.
</p>
</div>`))

// DefaultDripSteps: step 0 goes out at signup, the dispatcher only ever
// sends the later ones.
var DefaultDripSteps = []DripStep{
	{
		Number:  0,
		Delay:   0,
		Subject: "Witamy w RiseGen!",
		Body: template.Must(template.New("step0").Parse(`<h1>Cześć{{if .Name}} {{.Name}}{{end}}!</h1>
<p>Dziękujemy za zapisanie się do newslettera RiseGen. Będziemy informować Cię o naszych projektach i wydarzeniach.</p>`)),
	},
	{
		Number:  1,
		Delay:   48 * time.Hour,
		Subject: "Poznaj nasze projekty",
		Body: template.Must(template.New("step1").Parse(`<h1>Co robimy w RiseGen?</h1>
<p>Zajrzyj na <a href="{{.SiteURL}}/projekty">stronę projektów</a> i zobacz, w co możesz się zaangażować.</p>`)),
	},
	{
		Number:  2,
		Delay:   120 * time.Hour,
		Subject: "Dołącz do nas",
		Body: template.Must(template.New("step2").Parse(`<h1>Zostań częścią zespołu</h1>
<p>Sprawdź <a href="{{.SiteURL}}/wydarzenia">nadchodzące wydarzenia</a> albo <a href="{{.SiteURL}}/zgloszenia">wyślij zgłoszenie</a>.</p>`)),
	},
}

func renderEmail(to string, subject string, body *template.Template, data map[string]any) (Email, error) {
	var content bytes.Buffer

	if err := body.Execute(&content, data); err != nil {
		return Email{}, err
	}

	var html bytes.Buffer

	err := emailLayout.Execute(&html, map[string]any{
		"Content": template.HTML(content.String()),
		"SiteURL": data["SiteURL"],
	})

	if err != nil {
		return Email{}, err
	}

	return Email{To: to, Subject: subject, HTML: html.String()}, nil
}

func (s DripStep) Render(subscriber model.Subscriber, siteURL string) (Email, error) {
	return renderEmail(subscriber.Email, s.Subject, s.Body, map[string]any{
		"Name":    subscriber.Name,
		"SiteURL": siteURL,
	})
}

type DripServiceConfig struct {
	BatchSize int
	Lease     time.Duration
	SiteURL   string
}

type DripReport struct {
	Eligible int `json:"eligible"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

type DripService struct {
	config   DripServiceConfig
	database *gorm.DB
	mailer   Mailer
	metrics  *metrics.Metrics
	steps    []DripStep
	now      func() time.Time
}

func NewDripService(config DripServiceConfig, database *gorm.DB, mailer Mailer, metrics *metrics.Metrics) *DripService {
	return &DripService{
		config:   config,
		database: database,
		mailer:   mailer,
		metrics:  metrics,
		steps:    DefaultDripSteps,
		now:      time.Now,
	}
}

func (ds *DripService) WithClock(now func() time.Time) *DripService {
	ds.now = now
	return ds
}

func (ds *DripService) TerminalStep() int {
	return len(ds.steps) - 1
}

func (ds *DripService) WelcomeStep() DripStep {
	return ds.steps[0]
}

// nextStep returns the step that follows the subscriber's last sent step
// when its delay has elapsed.
func (ds *DripService) nextStep(subscriber model.Subscriber, now time.Time) (DripStep, bool) {
	next := subscriber.DripStep + 1

	if next < 1 || next > ds.TerminalStep() {
		return DripStep{}, false
	}

	step := ds.steps[next]

	if now.Sub(subscriber.CreatedAt) < step.Delay {
		return DripStep{}, false
	}

	return step, true
}

// Run sends at most one due step to every active subscriber. It is safe to
// call repeatedly and concurrently, a subscriber is only advanced after the
// provider accepted the email and only from the step that was read.
func (ds *DripService) Run(ctx context.Context) (DripReport, error) {
	if err := ds.mailer.Ready(); err != nil {
		return DripReport{}, err
	}

	now := ds.now().UTC()

	subscribers, err := gorm.G[model.Subscriber](ds.database).
		Where("is_active = ? AND drip_step < ?", true, ds.TerminalStep()).
		Find(ctx)

	if err != nil {
		return DripReport{}, fmt.Errorf("failed to load subscribers: %w", err)
	}

	var (
		report  DripReport
		sent    atomic.Int64
		failed  atomic.Int64
		skipped atomic.Int64
		group   errgroup.Group
	)

	group.SetLimit(ds.config.BatchSize)

	for _, subscriber := range subscribers {
		step, due := ds.nextStep(subscriber, now)

		if !due {
			continue
		}

		report.Eligible++

		group.Go(func() error {
			switch ds.deliver(ctx, subscriber, step, now) {
			case dripSent:
				sent.Add(1)
			case dripFailed:
				failed.Add(1)
			case dripSkipped:
				skipped.Add(1)
			}
			return nil
		})
	}

	_ = group.Wait()

	report.Sent = int(sent.Load())
	report.Failed = int(failed.Load())
	report.Skipped = int(skipped.Load())

	if report.Eligible > 0 {
		log.Info().
			Int("eligible", report.Eligible).
			Int("sent", report.Sent).
			Int("failed", report.Failed).
			Int("skipped", report.Skipped).
			Msg("drip run finished")
	}

	return report, nil
}

type dripOutcome int

const (
	dripSent dripOutcome = iota
	dripFailed
	dripSkipped
)

func (ds *DripService) deliver(ctx context.Context, subscriber model.Subscriber, step DripStep, now time.Time) dripOutcome {
	from := step.Number - 1
	leaseUntil := now.Add(ds.config.Lease).UnixMilli()
	subLogger := log.With().Str("email", subscriber.Email).Int("step", step.Number).Logger()

	claim := ds.database.WithContext(ctx).Model(&model.Subscriber{}).
		Where("id = ? AND is_active = ? AND drip_step = ? AND drip_lease_until < ?", subscriber.ID, true, from, now.UnixMilli()).
		Update("drip_lease_until", leaseUntil)

	if claim.Error != nil {
		subLogger.Error().Err(claim.Error).Msg("failed to claim subscriber for drip")
		return dripFailed
	}

	if claim.RowsAffected == 0 {
		return dripSkipped
	}

	email, err := step.Render(subscriber, ds.config.SiteURL)

	if err == nil {
		err = ds.mailer.Send(ctx, email)
	}

	ds.metrics.RecordDripEmail(step.Number, err)

	if err != nil {
		subLogger.Error().Err(err).Msg("failed to send drip email")

		release := ds.database.WithContext(ctx).Model(&model.Subscriber{}).
			Where("id = ? AND drip_lease_until = ?", subscriber.ID, leaseUntil).
			Update("drip_lease_until", 0)

		if release.Error != nil {
			subLogger.Error().Err(release.Error).Msg("failed to release drip lease")
		}

		return dripFailed
	}

	advance := ds.database.WithContext(ctx).Model(&model.Subscriber{}).
		Where("id = ? AND drip_step = ? AND drip_lease_until = ?", subscriber.ID, from, leaseUntil).
		Updates(map[string]any{
			"drip_step":        step.Number,
			"drip_lease_until": 0,
		})

	if advance.Error != nil {
		subLogger.Error().Err(advance.Error).Msg("drip email sent but step not recorded")
	} else if advance.RowsAffected == 0 {
		subLogger.Warn().Msg("drip lease expired before the step was recorded")
	}

	return dripSent
}
