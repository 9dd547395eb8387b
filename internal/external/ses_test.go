package external

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caldigest/internal/retry"
	"caldigest/internal/types"
)

// mockSESAPI records the last SendEmail input and returns a canned error.
type mockSESAPI struct {
	lastInput *sesv2.SendEmailInput
	err       error
}

func (m *mockSESAPI) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESChannel_Send(t *testing.T) {
	api := &mockSESAPI{}
	ch := NewSESChannelWithAPI(api, SESConfig{
		FromAddr: "digest@example.com",
		FromName: "Calendar Digest",
	})

	require.NoError(t, ch.Send(context.Background(), testMessage()))

	in := api.lastInput
	require.NotNil(t, in)
	assert.Equal(t, "Calendar Digest <digest@example.com>", *in.FromEmailAddress)
	assert.Equal(t, []string{"ann@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Your Events for the Day", *in.Content.Simple.Subject.Data)
	assert.Equal(t, "plain body", *in.Content.Simple.Body.Text.Data)
	require.NotNil(t, in.Content.Simple.Body.Html)
	assert.Equal(t, "<p>html body</p>", *in.Content.Simple.Body.Html.Data)
}

func TestSESChannel_SendWithoutFromName(t *testing.T) {
	api := &mockSESAPI{}
	ch := NewSESChannelWithAPI(api, SESConfig{FromAddr: "digest@example.com"})

	require.NoError(t, ch.Send(context.Background(), testMessage()))
	assert.Equal(t, "digest@example.com", *api.lastInput.FromEmailAddress)
}

func TestSESChannel_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  types.ErrorCode
		transient bool
	}{
		{
			name:      "message rejected is blocked",
			err:       &sestypes.MessageRejected{},
			wantCode:  types.ErrCodeEmailBlocked,
			transient: false,
		},
		{
			name:      "account suspended is blocked",
			err:       &sestypes.AccountSuspendedException{},
			wantCode:  types.ErrCodeEmailBlocked,
			transient: false,
		},
		{
			name:      "throttled is rate limited",
			err:       &sestypes.TooManyRequestsException{},
			wantCode:  types.ErrCodeUpstreamRateLimited,
			transient: true,
		},
		{
			name:      "unknown failure is provider error",
			err:       errors.New("dial tcp: connection refused"),
			wantCode:  types.ErrCodeUpstreamEmailProvider,
			transient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewSESChannelWithAPI(&mockSESAPI{err: tt.err}, SESConfig{FromAddr: "digest@example.com"})
			err := ch.Send(context.Background(), testMessage())

			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.transient, retry.IsTransient(err))
		})
	}
}
