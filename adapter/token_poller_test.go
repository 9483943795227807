package adapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/botmesh/core"
)

func TestPollTransition(t *testing.T) {
	now := time.Now()
	base := pollState{interval: time.Second, deadline: now.Add(time.Minute)}

	tests := []struct {
		name     string
		state    pollState
		response *core.TokenResponse
		now      time.Time
		want     pollAction
		interval time.Duration
	}{
		{
			name:     "deadline passed",
			state:    base,
			response: &core.TokenResponse{Token: "tok"},
			now:      now.Add(2 * time.Minute),
			want:     pollStop,
			interval: time.Second,
		},
		{
			name:     "no response keeps waiting",
			state:    base,
			response: nil,
			now:      now,
			want:     pollWait,
			interval: time.Second,
		},
		{
			name:     "token present emits",
			state:    base,
			response: &core.TokenResponse{Token: "tok"},
			now:      now,
			want:     pollEmit,
			interval: time.Second,
		},
		{
			name:     "service ends polling",
			state:    base,
			response: &core.TokenResponse{PollingSettings: &core.TokenPollingSettings{Timeout: 0}},
			now:      now,
			want:     pollStop,
			interval: time.Second,
		},
		{
			name:     "service adjusts interval",
			state:    base,
			response: &core.TokenResponse{PollingSettings: &core.TokenPollingSettings{Timeout: 60000, Interval: 250}},
			now:      now,
			want:     pollWait,
			interval: 250 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, action := pollTransition(tt.state, tt.response, tt.now)
			assert.Equal(t, tt.want, action)
			assert.Equal(t, tt.interval, state.interval)
		})
	}
}

type fakeTokenProvider struct {
	response *core.TokenResponse
}

func (f *fakeTokenProvider) GetUserToken(context.Context, string, string, string, string) (*core.TokenResponse, error) {
	return f.response, nil
}

func (f *fakeTokenProvider) SignOutUser(context.Context, string, string, string) error { return nil }

func (f *fakeTokenProvider) GetTokenStatus(context.Context, string, string, string) ([]core.TokenStatus, error) {
	return nil, nil
}

func TestOAuthCardArmsPollerAndEmitsTokenTurn(t *testing.T) {
	client := &fakeConnectorClient{}
	provider := &fakeTokenProvider{response: &core.TokenResponse{ConnectionName: "github", Token: "tok-1"}}
	a := newTestAdapter(client, WithTokenProvider(provider))

	tokenTurn := make(chan *core.Activity, 1)
	logic := func(tc *core.TurnContext) error {
		activity := tc.Activity()
		if activity.Type == core.ActivityTypeEvent && activity.Name == "tokens/response" {
			tokenTurn <- activity
			return nil
		}
		card := &core.Activity{
			Type: core.ActivityTypeMessage,
			Attachments: []core.Attachment{{
				ContentType: OAuthCardContentType,
				Content:     json.RawMessage(`{"connectionName":"github","text":"sign in"}`),
			}},
		}
		_, err := tc.SendActivity(card)
		return err
	}

	_, err := a.ProcessActivity(context.Background(), inboundBody(t, inboundMessage("login")), "", logic)
	require.NoError(t, err)

	// The provider answers with a token on the first probe, so the poller
	// re-enters the pipeline without sleeping.
	select {
	case activity := <-tokenTurn:
		assert.Equal(t, "conv-1", activity.Conversation.ID)
		assert.Equal(t, "user-1", activity.From.ID)
		var response core.TokenResponse
		require.NoError(t, json.Unmarshal(activity.Value, &response))
		assert.Equal(t, "tok-1", response.Token)
	case <-time.After(2 * time.Second):
		t.Fatal("token turn never arrived")
	}
}

func TestGetUserTokenValidation(t *testing.T) {
	a := newTestAdapter(&fakeConnectorClient{}, WithTokenProvider(&fakeTokenProvider{}))

	_, err := a.ProcessActivity(context.Background(), inboundBody(t, inboundMessage("hi")), "", func(tc *core.TurnContext) error {
		_, err := a.GetUserToken(tc, "", "")
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
		return nil
	})
	require.NoError(t, err)
}
