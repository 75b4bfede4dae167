package newsletter

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"forkfire/internal/external"
	"forkfire/internal/types"
)

// SubscriberSource lists the current subscriber emails for a dispatch.
// Implemented by db.SubscriptionRepository.
type SubscriberSource interface {
	ListEmails(ctx context.Context) ([]string, error)
}

// NameResolver resolves subscriber emails to registered display names in a
// single batch query. Implemented by db.UserRepository.
type NameResolver interface {
	ListNamesByEmail(ctx context.Context, emails []string) (map[string]string, error)
}

// Dispatcher orchestrates one bulk newsletter send: it reads the subscriber
// set, batch-resolves display names, renders one personalized document per
// recipient, fans the sends out concurrently, and aggregates the outcomes
// into a DispatchReport.
//
// Per-recipient transport failures are recorded and absorbed; they never
// cancel sibling sends and never escape to the caller. Only validation
// failures and the empty-subscriber case are returned as errors.
type Dispatcher struct {
	subs     SubscriberSource
	names    NameResolver
	renderer *Renderer
	provider external.EmailProvider
	metrics  DispatchMetrics
	logger   *slog.Logger
	from     types.SenderIdentity

	// maxConcurrent bounds in-flight provider calls. The fan-out still
	// covers every subscriber.
	maxConcurrent int
}

// DispatcherConfig holds the dependencies for a Dispatcher.
type DispatcherConfig struct {
	Subscribers SubscriberSource
	Names       NameResolver
	Renderer    *Renderer
	Provider    external.EmailProvider
	Metrics     DispatchMetrics
	Logger      *slog.Logger
	From        types.SenderIdentity

	// MaxConcurrentSends defaults to 16 when zero or negative.
	MaxConcurrentSends int
}

// defaultMaxConcurrentSends caps parallel provider calls when the config
// does not specify a limit.
const defaultMaxConcurrentSends = 16

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopDispatchMetrics{}
	}
	maxConcurrent := cfg.MaxConcurrentSends
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentSends
	}

	return &Dispatcher{
		subs:          cfg.Subscribers,
		names:         cfg.Names,
		renderer:      cfg.Renderer,
		provider:      cfg.Provider,
		metrics:       metrics,
		logger:        logger,
		from:          cfg.From,
		maxConcurrent: maxConcurrent,
	}
}

// Send dispatches the newsletter to every current subscriber and returns
// the aggregate report.
//
// Validation runs before any I/O. An empty subscriber set fails with
// "not_found_no_subscribers"; that is the only post-validation failure mode.
// Once the fan-out starts, the call runs to completion of all sends: the
// fan-out context is detached from the caller's cancellation because an
// email already handed to the provider cannot be un-sent.
func (d *Dispatcher) Send(ctx context.Context, subject, htmlContent string) (*types.DispatchReport, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(htmlContent) == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"Subject and content are required.",
			nil,
		)
	}

	emails, err := d.subs.ListEmails(ctx)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundNoSubscribers,
			"No subscribers found.",
			nil,
		)
	}

	names, err := d.names.ListNamesByEmail(ctx, emails)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	// Detach from caller cancellation: dropping the request stops the
	// caller consuming the result, not the in-flight sends.
	sendCtx := context.WithoutCancel(ctx)

	var successes atomic.Int64

	g, _ := errgroup.WithContext(sendCtx)
	g.SetLimit(d.maxConcurrent)

	for _, email := range emails {
		g.Go(func() error {
			if d.sendOne(sendCtx, email, names[email], subject, htmlContent) {
				successes.Add(1)
			}
			// Failures are recorded per recipient; never propagate into the
			// group, so one bad address cannot disturb the rest.
			return nil
		})
	}

	// Join: every send reaches a terminal outcome before aggregation.
	_ = g.Wait()

	report := &types.DispatchReport{
		Total:     len(emails),
		Successes: int(successes.Load()),
	}
	report.Failures = report.Total - report.Successes

	d.metrics.RecordDispatch(sendCtx, *report, time.Since(start))
	d.logger.Info("newsletter dispatch completed",
		"total", report.Total,
		"successes", report.Successes,
		"failures", report.Failures,
		"duration", time.Since(start),
	)

	return report, nil
}

// sendOne renders and delivers to a single recipient, reporting success.
// All failures are contained here: logged with a redacted address, counted
// through metrics, and converted into a false return.
func (d *Dispatcher) sendOne(ctx context.Context, email, fullName, subject, htmlContent string) bool {
	body, err := d.renderer.Render(FirstName(fullName), subject, htmlContent, email)
	if err != nil {
		d.logger.Error("failed to render newsletter",
			"email", RedactEmail(email),
			"error", err.Error(),
		)
		d.metrics.RecordSend(ctx, SendResultFailure)
		return false
	}

	msgID, err := d.provider.Send(ctx, types.SendInput{
		To:          email,
		From:        d.from,
		Subject:     subject,
		BodyHTML:    body,
		ReferenceID: types.GetRequestID(ctx),
	})
	if err != nil {
		d.logger.Warn("newsletter send failed",
			"email", RedactEmail(email),
			"error", err.Error(),
		)
		d.metrics.RecordSend(ctx, SendResultFailure)
		return false
	}

	d.logger.Info("newsletter sent",
		"email", RedactEmail(email),
		"provider_message_id", msgID,
	)
	d.metrics.RecordSend(ctx, SendResultSuccess)
	return true
}
