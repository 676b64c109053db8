package oauth2_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-broker/internal/utils"
	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/stretchr/testify/require"
)

func TestTokenResponseExpiresIn(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int64
		wantErr bool
	}{
		{name: "number", body: `{"access_token":"a","expires_in":1799}`, want: 1799},
		{name: "numeric string", body: `{"access_token":"a","expires_in":"1799"}`, want: 1799},
		{name: "float", body: `{"access_token":"a","expires_in":59.9}`, want: 59},
		{name: "missing", body: `{"access_token":"a"}`, want: 0},
		{name: "null", body: `{"access_token":"a","expires_in":null}`, want: 0},
		{name: "garbage", body: `{"access_token":"a","expires_in":"soon"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp oauth2.TokenResponse
			err := json.Unmarshal([]byte(tt.body), &resp)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "a", resp.AccessToken)
			require.Equal(t, tt.want, resp.ExpiresIn)
		})
	}
}

func TestTokenResponseRefreshToken(t *testing.T) {
	var resp oauth2.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(`{"access_token":"a","refresh_token":"r","token_type":"bearer","scope":"read write"}`), &resp))
	require.True(t, resp.HasRefreshToken())
	require.Equal(t, "read write", resp.Scope)

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tok := resp.Token(now)
	require.Equal(t, "r", tok.RefreshToken)
	require.Equal(t, "bearer", tok.TokenType)
	require.True(t, tok.Expiry.IsZero())

	resp.ExpiresIn = 60
	require.Equal(t, now.Add(time.Minute), resp.Token(now).Expiry)

	require.False(t, oauth2.TokenResponse{AccessToken: "a", RefreshToken: utils.Ptr("")}.HasRefreshToken())
	require.False(t, oauth2.TokenResponse{AccessToken: "a"}.HasRefreshToken())
}

func TestServiceErrorMatching(t *testing.T) {
	timeout := fmt.Errorf("wrapped: %w", &oauth2.ServiceError{Kind: oauth2.Timeout, URI: "https://a.example.com"})
	require.ErrorIs(t, timeout, oauth2.ErrTimeout)
	require.ErrorIs(t, timeout, oauth2.ErrTokenExchange)

	client := &oauth2.ServiceError{Kind: oauth2.ClientError, StatusCode: 400, Body: "bad", URI: "https://a.example.com"}
	require.ErrorIs(t, client, oauth2.ErrTokenExchange)
	require.NotErrorIs(t, client, oauth2.ErrTimeout)
	require.Contains(t, client.Error(), "400")
	require.Contains(t, client.Error(), "bad")

	cause := errors.New("signature mismatch")
	decodeErr := oauth2.NewDecodeError(cause)
	require.ErrorIs(t, decodeErr, oauth2.ErrAccessDenied)
	require.ErrorIs(t, decodeErr, oauth2.ErrDecode)
	require.ErrorIs(t, decodeErr, cause)
}

func TestClientCredentialsStringHidesSecret(t *testing.T) {
	creds := oauth2.NewClientCredentials("c1", "s3cr3t")
	require.NotContains(t, creds.String(), "s3cr3t")
	require.NoError(t, creds.Validate(true))
	require.ErrorIs(t, oauth2.NewClientCredentials("c1", "").Validate(true), oauth2.ErrInvalidArgument)
	require.NoError(t, oauth2.NewClientCredentials("c1", "").Validate(false))
}
