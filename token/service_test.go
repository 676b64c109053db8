package token_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/oauthmodel"
	"github.com/jrsteele09/go-token-broker/token"
	"github.com/stretchr/testify/require"
)

const testTokenEndpoint = "https://auth.example.com/oauth/token"

type recordedCall struct {
	method  string
	uri     string
	headers http.Header
	body    string
}

// stubRequester answers every call with a canned response and records what it was asked.
type stubRequester struct {
	mu        sync.Mutex
	calls     []recordedCall
	post      func(ctx context.Context) (*token.Response, error)
	probeBody string
}

func (s *stubRequester) PostForm(ctx context.Context, uri string, headers http.Header, body string) (*token.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, recordedCall{method: http.MethodPost, uri: uri, headers: headers, body: body})
	s.mu.Unlock()
	return s.post(ctx)
}

func (s *stubRequester) Get(_ context.Context, uri string, headers http.Header) (*token.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, recordedCall{method: http.MethodGet, uri: uri, headers: headers})
	s.mu.Unlock()
	return &token.Response{StatusCode: http.StatusOK, Body: []byte(s.probeBody)}, nil
}

func (s *stubRequester) recorded() []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedCall(nil), s.calls...)
}

func respondWith(status int, body string) func(context.Context) (*token.Response, error) {
	return func(context.Context) (*token.Response, error) {
		return &token.Response{StatusCode: status, Body: []byte(body)}, nil
	}
}

func endpoint(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(testTokenEndpoint)
	require.NoError(t, err)
	return u
}

func newService(t *testing.T, requester token.Requester, options ...token.ServiceOption) *token.TokenService {
	t.Helper()
	s, err := token.NewTokenService(requester, options...)
	require.NoError(t, err)
	return s
}

func TestExchangeClientCredentialsAgainstTenantHost(t *testing.T) {
	requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"tok123","expires_in":"1799"}`)}
	service := newService(t, requester)

	resp, err := service.RetrieveAccessTokenViaClientCredentialsGrant(context.Background(), endpoint(t),
		oauth2.NewClientCredentials("c1", "s1"), "tenantA", nil)
	require.NoError(t, err)
	require.Equal(t, "tok123", resp.AccessToken)
	require.Equal(t, int64(1799), resp.ExpiresIn)
	require.Nil(t, resp.RefreshToken)

	calls := requester.recorded()
	require.Len(t, calls, 1)
	require.Equal(t, http.MethodPost, calls[0].method)
	require.Equal(t, "https://tenantA.example.com/oauth/token", calls[0].uri)
	require.Equal(t, "grant_type=client_credentials&client_id=c1&client_secret=s1", calls[0].body)
	require.Equal(t, "application/x-www-form-urlencoded", calls[0].headers.Get("Content-Type"))
	require.Empty(t, calls[0].headers.Get("Authorization"))
}

func TestExchangeParsesNumericExpiresAndRefreshToken(t *testing.T) {
	requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"a","expires_in":43199,"refresh_token":"r"}`)}
	service := newService(t, requester)

	resp, err := service.RetrieveAccessTokenViaPasswordGrant(context.Background(), endpoint(t),
		oauth2.NewClientCredentials("c1", "s1"), "john", "pw", "", nil)
	require.NoError(t, err)
	require.Equal(t, int64(43199), resp.ExpiresIn)
	require.NotNil(t, resp.RefreshToken)
	require.Equal(t, "r", *resp.RefreshToken)
}

func TestExchangeUserTokenSendsBearer(t *testing.T) {
	requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"a","expires_in":1}`)}
	service := newService(t, requester)

	_, err := service.RetrieveAccessTokenViaUserTokenGrant(context.Background(), endpoint(t),
		oauth2.NewClientCredentials("c1", ""), "user-jwt", "", nil)
	require.NoError(t, err)

	calls := requester.recorded()
	require.Len(t, calls, 1)
	require.Equal(t, "Bearer user-jwt", calls[0].headers.Get("Authorization"))
	require.Equal(t, testTokenEndpoint, calls[0].uri)
}

func TestExchangeErrors(t *testing.T) {
	creds := oauth2.NewClientCredentials("c1", "s1")

	t.Run("4xx is a client error carrying the body", func(t *testing.T) {
		service := newService(t, &stubRequester{post: respondWith(http.StatusUnauthorized, `{"error":"unauthorized"}`)})
		_, err := service.RetrieveAccessTokenViaRefreshToken(context.Background(), endpoint(t), creds, "rt", "")
		require.ErrorIs(t, err, oauth2.ErrTokenExchange)

		var serviceErr *oauth2.ServiceError
		require.True(t, errors.As(err, &serviceErr))
		require.Equal(t, oauth2.ClientError, serviceErr.Kind)
		require.Equal(t, http.StatusUnauthorized, serviceErr.StatusCode)
		require.Equal(t, `{"error":"unauthorized"}`, serviceErr.Body)
	})

	t.Run("5xx is a server error", func(t *testing.T) {
		service := newService(t, &stubRequester{post: respondWith(http.StatusBadGateway, "upstream down")})
		_, err := service.RetrieveAccessTokenViaClientCredentialsGrant(context.Background(), endpoint(t), creds, "", nil)

		var serviceErr *oauth2.ServiceError
		require.True(t, errors.As(err, &serviceErr))
		require.Equal(t, oauth2.ServerError, serviceErr.Kind)
		require.Equal(t, "upstream down", serviceErr.Body)
		require.NotErrorIs(t, err, oauth2.ErrTimeout)
	})

	t.Run("unparseable body", func(t *testing.T) {
		service := newService(t, &stubRequester{post: respondWith(http.StatusOK, "<html/>")})
		_, err := service.RetrieveAccessTokenViaClientCredentialsGrant(context.Background(), endpoint(t), creds, "", nil)

		var serviceErr *oauth2.ServiceError
		require.True(t, errors.As(err, &serviceErr))
		require.Equal(t, oauth2.ResponseError, serviceErr.Kind)
	})

	t.Run("transport failure", func(t *testing.T) {
		service := newService(t, &stubRequester{post: func(context.Context) (*token.Response, error) {
			return nil, errors.New("connection refused")
		}})
		_, err := service.RetrieveAccessTokenViaClientCredentialsGrant(context.Background(), endpoint(t), creds, "", nil)

		var serviceErr *oauth2.ServiceError
		require.True(t, errors.As(err, &serviceErr))
		require.Equal(t, oauth2.TransportError, serviceErr.Kind)
	})

	t.Run("timeout", func(t *testing.T) {
		requester := &stubRequester{post: func(ctx context.Context) (*token.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		service := newService(t, requester, token.WithExchangeTimeout(20*time.Millisecond))
		_, err := service.RetrieveAccessTokenViaClientCredentialsGrant(context.Background(), endpoint(t), creds, "", nil)
		require.ErrorIs(t, err, oauth2.ErrTimeout)
		require.ErrorIs(t, err, oauth2.ErrTokenExchange)
	})

	t.Run("invalid input never reaches the network", func(t *testing.T) {
		requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"a"}`)}
		service := newService(t, requester)
		_, err := service.RetrieveAccessTokenViaPasswordGrant(context.Background(), endpoint(t), creds, "", "pw", "", nil)
		require.ErrorIs(t, err, oauth2.ErrInvalidArgument)
		require.Empty(t, requester.recorded())
	})

	t.Run("subdomain that would redirect the host", func(t *testing.T) {
		requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"a"}`)}
		service := newService(t, requester)
		_, err := service.RetrieveAccessTokenViaClientCredentialsGrant(context.Background(), endpoint(t), creds, "evil.com/#", nil)
		require.ErrorIs(t, err, oauth2.ErrInvalidArgument)
		require.Empty(t, requester.recorded())
	})
}

func TestDelegationGrantProbe(t *testing.T) {
	creds := oauth2.NewClientCredentials("master", "")
	probeURL := "https://show-headers.cert.example.com"

	t.Run("no probe means no result", func(t *testing.T) {
		requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"a"}`)}
		service := newService(t, requester)
		resp, err := service.RetrieveDelegationAccessTokenViaJwtBearerTokenGrant(context.Background(), endpoint(t), creds, "oidc", "MIIC", "", nil)
		require.NoError(t, err)
		require.Nil(t, resp)
		require.Empty(t, requester.recorded())
	})

	t.Run("probe without marker short-circuits", func(t *testing.T) {
		requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"a"}`), probeBody: "host: x\naccept: */*"}
		service := newService(t, requester, token.WithCertificateProbe(token.NewCertificateProbe(requester, probeURL, time.Minute)))
		resp, err := service.RetrieveDelegationAccessTokenViaJwtBearerTokenGrant(context.Background(), endpoint(t), creds, "oidc", "MIIC", "", nil)
		require.NoError(t, err)
		require.Nil(t, resp)

		calls := requester.recorded()
		require.Len(t, calls, 1)
		require.Equal(t, http.MethodGet, calls[0].method)
		require.Equal(t, probeURL, calls[0].uri)
	})

	t.Run("probe with marker exchanges and is remembered", func(t *testing.T) {
		requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"delegated","expires_in":60}`), probeBody: "X-Forwarded-Client-Cert: Hash=abc"}
		service := newService(t, requester, token.WithCertificateProbe(token.NewCertificateProbe(requester, probeURL, time.Minute)))

		for i := 0; i < 2; i++ {
			resp, err := service.RetrieveDelegationAccessTokenViaJwtBearerTokenGrant(context.Background(), endpoint(t), creds, "oidc", "MIIC", "", nil)
			require.NoError(t, err)
			require.Equal(t, "delegated", resp.AccessToken)
		}

		var gets, posts int
		for _, c := range requester.recorded() {
			switch c.method {
			case http.MethodGet:
				gets++
			case http.MethodPost:
				posts++
				require.Equal(t, "master_client_id=master&clone_certificate=MIIC", c.body)
			}
		}
		require.Equal(t, 1, gets)
		require.Equal(t, 2, posts)
	})
}

func TestHTTPRequesterAgainstServer(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotBody = r.PostForm.Encode()
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"from-server","expires_in":"30","token_type":"bearer"}`))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL + "/oauth/token")
	require.NoError(t, err)

	service := newService(t, token.NewHTTPRequester(srv.Client()))
	// IP literal host: subdomain cannot be applied and the call goes to the server as is.
	resp, err := service.RetrieveAccessTokenViaClientCredentialsGrant(context.Background(), u, oauth2.NewClientCredentials("c1", "s1"), "tenantA", nil)
	require.NoError(t, err)
	require.Equal(t, "from-server", resp.AccessToken)
	require.Equal(t, int64(30), resp.ExpiresIn)
	require.Equal(t, "client_id=c1&client_secret=s1&grant_type=client_credentials", gotBody)
	require.Equal(t, "application/x-www-form-urlencoded", gotContentType)
}

func TestTokenSourceReusesToken(t *testing.T) {
	requester := &stubRequester{post: respondWith(http.StatusOK, `{"access_token":"a","expires_in":3600}`)}
	now := time.Now().Truncate(time.Second)
	service := newService(t, requester, token.WithNowFunc(func() time.Time { return now }))

	grant, err := oauthmodel.NewClientCredentialsGrant(endpoint(t), oauth2.NewClientCredentials("c1", "s1"), "", nil)
	require.NoError(t, err)

	ts := service.TokenSource(context.Background(), grant)
	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, "a", tok.AccessToken)
	require.Equal(t, now.Add(time.Hour), tok.Expiry)
	require.Equal(t, "Bearer", tok.TokenType)

	// Still an hour from expiry, so the token is reused.
	_, err = ts.Token()
	require.NoError(t, err)
	require.Len(t, requester.recorded(), 1)
}

func TestNewTokenServiceRequiresRequester(t *testing.T) {
	_, err := token.NewTokenService(nil)
	require.ErrorIs(t, err, oauth2.ErrInvalidArgument)
}
