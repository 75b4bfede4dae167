package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sony/gobreaker/v2"

	"forkfire/internal/types"
)

// SESAPI defines the subset of the SES v2 client used by SESClient.
// Extracted for testability; tests provide a mock implementation.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClientConfig holds the configuration for creating an SESClient.
type SESClientConfig struct {
	// ConfigSetName is the SES configuration set name for tracking.
	// Optional; if empty, no configuration set is used.
	ConfigSetName string
	// Logger for SES operations.
	Logger *slog.Logger
}

// SESClient implements EmailProvider using AWS SES v2. Authentication is
// handled via IAM credentials resolved by the SDK, which also provides
// per-call retry. A circuit breaker sits in front of the API so that a hard
// provider outage fails the remaining sends of a dispatch fast instead of
// timing each one out.
type SESClient struct {
	api           SESAPI
	breaker       *gobreaker.CircuitBreaker[*sesv2.SendEmailOutput]
	configSetName string
	logger        *slog.Logger
}

// newSendBreaker builds the circuit breaker guarding SES sends. The breaker
// opens after a run of consecutive failures; a tripped breaker surfaces as a
// per-recipient upstream error, which the dispatch engine absorbs like any
// other send failure.
func newSendBreaker() *gobreaker.CircuitBreaker[*sesv2.SendEmailOutput] {
	return gobreaker.NewCircuitBreaker[*sesv2.SendEmailOutput](gobreaker.Settings{
		Name:        "ses-send",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// NewSESClient creates an SESClient from an AWS config.
func NewSESClient(awsCfg aws.Config, cfg SESClientConfig) *SESClient {
	return NewSESClientWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESClientWithAPI creates an SESClient with a pre-configured SESAPI.
// Useful for testing with a mock SES interface.
func NewSESClientWithAPI(api SESAPI, cfg SESClientConfig) *SESClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SESClient{
		api:           api,
		breaker:       newSendBreaker(),
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// Send transmits an email using SES v2 SendEmail with simple content. The
// input carries a pre-rendered HTML body; no server-side templates.
//
// Error mapping:
//   - MessageRejected → email_blocked
//   - TooManyRequestsException → upstream_rate_limited
//   - SendingPausedException → upstream_unavailable
//   - open circuit breaker → upstream_email_provider_unavailable
//   - other → upstream_email_provider_unavailable
func (s *SESClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	fromAddr := input.From.Address
	if input.From.Name != "" {
		fromAddr = fmt.Sprintf("%s <%s>", input.From.Name, input.From.Address)
	}

	emailInput := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddr),
		Destination: &sestypes.Destination{
			ToAddresses: []string{input.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(input.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{
					Html: &sestypes.Content{
						Data:    aws.String(input.BodyHTML),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if s.configSetName != "" {
		emailInput.ConfigurationSetName = aws.String(s.configSetName)
	}

	// Tag the message with the dispatch correlation ID when present.
	if input.ReferenceID != "" {
		emailInput.EmailTags = []sestypes.MessageTag{
			{
				Name:  aws.String("ReferenceID"),
				Value: aws.String(input.ReferenceID),
			},
		}
	}

	result, err := s.breaker.Execute(func() (*sesv2.SendEmailOutput, error) {
		return s.api.SendEmail(ctx, emailInput)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", types.NewAppError(
				types.ErrCodeUpstreamEmailProvider,
				"email provider circuit open",
				err,
			)
		}
		return "", mapSESError(err)
	}

	msgID := ""
	if result.MessageId != nil {
		msgID = *result.MessageId
	}

	return msgID, nil
}

// mapSESError translates AWS SES errors into domain AppErrors.
func mapSESError(err error) error {
	var msgRejected *sestypes.MessageRejected
	if errors.As(err, &msgRejected) {
		return types.NewAppError(
			types.ErrCodeEmailBlocked,
			fmt.Sprintf("SES rejected message: %v", err),
			err,
		)
	}

	var tooManyReqs *sestypes.TooManyRequestsException
	if errors.As(err, &tooManyReqs) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("SES rate limit exceeded: %v", err),
			err,
		)
	}

	var sendingPaused *sestypes.SendingPausedException
	if errors.As(err, &sendingPaused) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("SES account sending paused: %v", err),
			err,
		)
	}

	return types.NewAppError(
		types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("SES error: %v", err),
		err,
	)
}

// Compile-time assertion that SESClient satisfies EmailProvider.
var _ EmailProvider = (*SESClient)(nil)
