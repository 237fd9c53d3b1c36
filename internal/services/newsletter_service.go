package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Mirvisek/RiseGen/internal/metrics"
	"github.com/Mirvisek/RiseGen/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrNoSubscribers      = errors.New("no active subscribers")
)

type NewsletterServiceConfig struct {
	BatchSize int
	SiteURL   string
}

type BroadcastReport struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

type NewsletterService struct {
	config   NewsletterServiceConfig
	database *gorm.DB
	mailer   Mailer
	welcome  DripStep
	metrics  *metrics.Metrics
}

func NewNewsletterService(config NewsletterServiceConfig, database *gorm.DB, mailer Mailer, welcome DripStep, metrics *metrics.Metrics) *NewsletterService {
	return &NewsletterService{
		config:   config,
		database: database,
		mailer:   mailer,
		welcome:  welcome,
		metrics:  metrics,
	}
}

// Subscribe creates the subscriber at drip step 0, or re-activates an
// unsubscribed one, and sends the welcome email on a best effort basis.
// created reports whether a new row was inserted.
func (ns *NewsletterService) Subscribe(ctx context.Context, email string, name string) (model.Subscriber, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	subscriber, err := gorm.G[model.Subscriber](ns.database).Where("email = ?", email).First(ctx)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Subscriber{}, false, err
	}

	if err == nil {
		if !subscriber.IsActive {
			_, err = gorm.G[model.Subscriber](ns.database).Where("id = ?", subscriber.ID).Update(ctx, "is_active", true)
			if err != nil {
				return model.Subscriber{}, false, err
			}
			subscriber.IsActive = true
		}
		return subscriber, false, nil
	}

	subscriber = model.Subscriber{
		Email:     email,
		Name:      name,
		IsActive:  true,
		DripStep:  0,
		CreatedAt: time.Now().UTC(),
	}

	if err := gorm.G[model.Subscriber](ns.database).Create(ctx, &subscriber); err != nil {
		return model.Subscriber{}, false, err
	}

	ns.sendWelcome(ctx, subscriber)

	return subscriber, true, nil
}

func (ns *NewsletterService) sendWelcome(ctx context.Context, subscriber model.Subscriber) {
	if err := ns.mailer.Ready(); err != nil {
		log.Warn().Err(err).Str("email", subscriber.Email).Msg("welcome email not sent")
		return
	}

	email, err := ns.welcome.Render(subscriber, ns.config.SiteURL)

	if err == nil {
		err = ns.mailer.Send(ctx, email)
	}

	ns.metrics.RecordDripEmail(ns.welcome.Number, err)

	if err != nil {
		log.Error().Err(err).Str("email", subscriber.Email).Msg("failed to send welcome email")
	}
}

var broadcastBody = template.Must(template.New("broadcast").Parse(`{{.Content}}`))

// Broadcast sends one email to every active subscriber. Individual failures
// are counted, not returned.
func (ns *NewsletterService) Broadcast(ctx context.Context, subject string, content string) (BroadcastReport, error) {
	if err := ns.mailer.Ready(); err != nil {
		return BroadcastReport{}, err
	}

	subscribers, err := gorm.G[model.Subscriber](ns.database).Where("is_active = ?", true).Find(ctx)

	if err != nil {
		return BroadcastReport{}, fmt.Errorf("failed to load subscribers: %w", err)
	}

	if len(subscribers) == 0 {
		return BroadcastReport{}, ErrNoSubscribers
	}

	var (
		sent   atomic.Int64
		failed atomic.Int64
		group  errgroup.Group
	)

	group.SetLimit(ns.config.BatchSize)

	for _, subscriber := range subscribers {
		group.Go(func() error {
			email, err := renderEmail(subscriber.Email, subject, broadcastBody, map[string]any{
				"Content": template.HTML(content),
				"SiteURL": ns.config.SiteURL,
			})

			if err == nil {
				err = ns.mailer.Send(ctx, email)
			}

			ns.metrics.RecordNewsletterEmail(err)

			if err != nil {
				log.Error().Err(err).Str("email", subscriber.Email).Msg("failed to send newsletter")
				failed.Add(1)
				return nil
			}

			sent.Add(1)
			return nil
		})
	}

	_ = group.Wait()

	report := BroadcastReport{
		Recipients: len(subscribers),
		Sent:       int(sent.Load()),
		Failed:     int(failed.Load()),
	}

	log.Info().Int("sent", report.Sent).Int("failed", report.Failed).Msg("newsletter broadcast finished")

	return report, nil
}

func (ns *NewsletterService) List(ctx context.Context) ([]model.Subscriber, error) {
	return gorm.G[model.Subscriber](ns.database).Order("created_at DESC").Find(ctx)
}

func (ns *NewsletterService) Delete(ctx context.Context, email string) error {
	rows, err := gorm.G[model.Subscriber](ns.database).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Delete(ctx)

	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrSubscriberNotFound
	}

	return nil
}

// ExportCSV writes all subscribers, newest first.
func (ns *NewsletterService) ExportCSV(ctx context.Context, w io.Writer) error {
	subscribers, err := ns.List(ctx)

	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"Email", "Imię", "Aktywny", "Krok", "Data zapisu"}); err != nil {
		return err
	}

	for _, subscriber := range subscribers {
		active := "Nie"
		if subscriber.IsActive {
			active = "Tak"
		}

		err := writer.Write([]string{
			subscriber.Email,
			subscriber.Name,
			active,
			strconv.Itoa(subscriber.DripStep),
			subscriber.CreatedAt.Format("2006-01-02 15:04"),
		})

		if err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
