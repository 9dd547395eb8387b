package external

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"caldigest/internal/types"
)

// SESAPI defines the subset of the SES v2 client used by SESChannel.
// Extracted for testability — tests provide a mock implementation.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds the parameters for creating an SESChannel.
type SESConfig struct {
	FromAddr string
	FromName string
}

// SESChannel is the secondary (fallback) send channel, backed by AWS SES
// v2. Authentication is handled via IAM credentials from the environment.
type SESChannel struct {
	api SESAPI
	cfg SESConfig
}

// NewSESChannel creates an SESChannel from an AWS config.
func NewSESChannel(awsCfg aws.Config, cfg SESConfig) *SESChannel {
	return &SESChannel{
		api: sesv2.NewFromConfig(awsCfg),
		cfg: cfg,
	}
}

// NewSESChannelWithAPI creates an SESChannel with a pre-built SESAPI.
// Useful for testing with a mock.
func NewSESChannelWithAPI(api SESAPI, cfg SESConfig) *SESChannel {
	return &SESChannel{api: api, cfg: cfg}
}

// Name identifies the channel in logs and retry operation names.
func (s *SESChannel) Name() string { return "ses" }

// Send transmits one message via SES simple content. Error mapping:
//   - MessageRejected / account suspension -> ErrCodeEmailBlocked (terminal)
//   - TooManyRequestsException -> ErrCodeUpstreamRateLimited (transient)
//   - anything else -> ErrCodeUpstreamEmailProvider, left to the message
//     pattern classification
func (s *SESChannel) Send(ctx context.Context, msg types.OutboundMessage) error {
	from := s.cfg.FromAddr
	if s.cfg.FromName != "" {
		from = s.cfg.FromName + " <" + s.cfg.FromAddr + ">"
	}

	body := &sestypes.Body{
		Text: &sestypes.Content{Data: aws.String(msg.Body)},
	}
	if msg.HTMLBody != "" {
		body.Html = &sestypes.Content{Data: aws.String(msg.HTMLBody)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
				Body:    body,
			},
		},
	}

	if _, err := s.api.SendEmail(ctx, input); err != nil {
		return mapSESError(err)
	}
	return nil
}

// mapSESError translates SES API failures onto the error taxonomy.
func mapSESError(err error) error {
	var rejected *sestypes.MessageRejected
	if errors.As(err, &rejected) {
		return types.NewAppError(types.ErrCodeEmailBlocked,
			"recipient rejected by ses", err)
	}

	var suspended *sestypes.AccountSuspendedException
	if errors.As(err, &suspended) {
		return types.NewAppError(types.ErrCodeEmailBlocked,
			"ses sending suspended", err)
	}

	var throttled *sestypes.TooManyRequestsException
	if errors.As(err, &throttled) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"ses rate limit exceeded", err)
	}

	return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
		"ses send failed: "+err.Error(), err)
}

// Compile-time assertion that SESChannel implements types.SendChannel.
var _ types.SendChannel = (*SESChannel)(nil)
