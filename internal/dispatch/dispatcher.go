// Package dispatch delivers a rendered campaign to a resolved recipient list
// in fixed-size batches with bounded concurrency.
package dispatch

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/foxzi/alumnet/internal/mailer"
	"github.com/foxzi/alumnet/internal/metrics"
	"github.com/foxzi/alumnet/internal/models"
)

// Config holds dispatcher configuration
type Config struct {
	From        string // From header for every message
	BatchSize   int
	Concurrency int
	RatePerSec  float64 // 0 = unlimited
	RetryMax    int     // extra attempts for temporary failures
	RetryDelay  time.Duration
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:   50,
		Concurrency: 5,
		RetryDelay:  200 * time.Millisecond,
	}
}

// ProgressSink receives a snapshot after every batch
type ProgressSink interface {
	Publish(p models.BatchProgress)
}

// Dispatcher sends campaigns. It holds no per-dispatch state and is safe
// for concurrent use.
type Dispatcher struct {
	sender   mailer.Sender
	cfg      Config
	progress ProgressSink
	logger   *slog.Logger
}

// New creates a new dispatcher
func New(sender mailer.Sender, cfg Config, logger *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		sender: sender,
		cfg:    cfg,
		logger: logger.With("component", "dispatcher"),
	}
}

// SetProgressSink sets where per-batch progress is published
func (d *Dispatcher) SetProgressSink(p ProgressSink) {
	d.progress = p
}

// result of one recipient, kept in recipient order
type result struct {
	err      error
	attempts int
}

// Dispatch attempts every recipient once and returns the report. Individual
// failures are recorded and never stop the campaign. Cancellation of ctx is
// honored between batches only: a started batch always finishes and the
// report is marked Aborted.
func (d *Dispatcher) Dispatch(ctx context.Context, c *models.Campaign, recipients []models.ResolvedRecipient) *models.DispatchReport {
	report := &models.DispatchReport{
		CampaignID:  c.ID,
		ListingType: c.ListingType,
		ListingID:   c.ListingID,
		Total:       len(recipients),
		Failed:      []models.FailedRecipient{},
		Delivered:   []string{},
		StartedAt:   time.Now(),
	}

	batches := (len(recipients) + d.cfg.BatchSize - 1) / d.cfg.BatchSize
	listingType := string(c.ListingType)

	metrics.DispatchStarted()
	d.logger.Info("dispatch started",
		"campaign_id", c.ID,
		"listing_type", listingType,
		"listing_id", c.ListingID,
		"recipients", len(recipients),
		"batches", batches,
	)

	limiter := d.newLimiter()
	// batches in flight finish even after ctx is canceled
	sendCtx := context.WithoutCancel(ctx)

	for b := 0; b < batches; b++ {
		if ctx.Err() != nil {
			report.Aborted = true
			d.logger.Warn("dispatch canceled between batches",
				"campaign_id", c.ID,
				"attempted", report.TotalAttempted,
				"total", report.Total,
			)
			break
		}

		start := b * d.cfg.BatchSize
		end := min(start+d.cfg.BatchSize, len(recipients))
		batch := recipients[start:end]

		results := d.sendBatch(sendCtx, limiter, c, batch)

		for i, res := range results {
			addr := batch[i].Address
			for range res.attempts - 1 {
				metrics.IncSendRetries(listingType)
			}
			if res.err == nil {
				report.Sent++
				report.Delivered = append(report.Delivered, addr)
				metrics.IncMessagesSent(listingType)
				continue
			}
			report.Failed = append(report.Failed, models.FailedRecipient{
				Address: addr,
				Reason:  mailer.Reason(res.err),
			})
			metrics.IncMessagesFailed(listingType, mailer.IsTemporary(res.err))
		}
		report.TotalAttempted += len(batch)

		d.publish(models.BatchProgress{
			CampaignID: c.ID,
			Total:      report.Total,
			Processed:  report.TotalAttempted,
			Sent:       report.Sent,
			Failed:     len(report.Failed),
			Batch:      b + 1,
			Batches:    batches,
			UpdatedAt:  time.Now(),
		})
	}

	report.FinishedAt = time.Now()
	d.publish(models.BatchProgress{
		CampaignID: c.ID,
		Total:      report.Total,
		Processed:  report.TotalAttempted,
		Sent:       report.Sent,
		Failed:     len(report.Failed),
		Batch:      batches,
		Batches:    batches,
		Done:       true,
		UpdatedAt:  report.FinishedAt,
	})

	duration := report.FinishedAt.Sub(report.StartedAt)
	metrics.DispatchFinished(listingType, report.Aborted, duration)

	fields := []any{
		"campaign_id", c.ID,
		"total", report.Total,
		"attempted", report.TotalAttempted,
		"sent", report.Sent,
		"failed", len(report.Failed),
		"aborted", report.Aborted,
		"duration", duration,
	}
	if len(report.Failed) > 0 || report.Aborted {
		d.logger.Warn("dispatch finished with failures", fields...)
	} else {
		d.logger.Info("dispatch finished", fields...)
	}

	return report
}

func (d *Dispatcher) sendBatch(ctx context.Context, limiter *rate.Limiter, c *models.Campaign, batch []models.ResolvedRecipient) []result {
	results := make([]result, len(batch))

	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, r := range batch {
		sem <- struct{}{}
		wg.Add(1)

		go func(i int, r models.ResolvedRecipient) {
			defer func() {
				<-sem
				wg.Done()
			}()

			msg := &mailer.Message{
				From:    d.cfg.From,
				ReplyTo: c.ReplyTo,
				To:      r.Address,
				Subject: c.Subject,
				HTML:    c.Body,
			}
			results[i] = d.sendOne(ctx, limiter, c.ID, msg)
		}(i, r)
	}

	wg.Wait()
	return results
}

// sendOne sends msg, retrying temporary failures up to RetryMax times
func (d *Dispatcher) sendOne(ctx context.Context, limiter *rate.Limiter, campaignID string, msg *mailer.Message) result {
	var last error
	attempts := 0
	for i := 0; i <= d.cfg.RetryMax; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return result{err: &mailer.SendError{Temporary: true, Reason: "rate limiter: " + err.Error()}, attempts: attempts}
			}
		}

		attempts++
		err := d.sender.Send(ctx, msg)
		if err == nil {
			return result{attempts: attempts}
		}
		last = err
		if !mailer.IsTemporary(err) || i == d.cfg.RetryMax {
			break
		}

		delay := d.cfg.RetryDelay + time.Duration(i)*d.cfg.RetryDelay/2
		d.logger.Debug("send retry scheduled",
			"campaign_id", campaignID,
			"to", msg.To,
			"attempt", i+2,
			"delay", delay,
			"error", err,
		)
		time.Sleep(delay)
	}

	d.logger.Debug("send failed", "campaign_id", campaignID, "to", msg.To, "attempts", attempts, "error", last)
	return result{err: last, attempts: attempts}
}

func (d *Dispatcher) newLimiter() *rate.Limiter {
	if d.cfg.RatePerSec <= 0 {
		return nil
	}
	burst := int(math.Ceil(d.cfg.RatePerSec))
	return rate.NewLimiter(rate.Limit(d.cfg.RatePerSec), max(burst, 1))
}

func (d *Dispatcher) publish(p models.BatchProgress) {
	if d.progress != nil {
		d.progress.Publish(p)
	}
}
