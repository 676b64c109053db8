package token

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-token-broker/oauthmodel"
	xoauth2 "golang.org/x/oauth2"
)

// ErrNoResult is returned by a TokenSource whose grant produced no token
// (certificate delegation in an environment without forwarded certificates).
var ErrNoResult = errors.New("no token issued for grant")

type grantTokenSource struct {
	ctx     context.Context
	service *TokenService
	grant   *oauthmodel.GrantRequest
}

// TokenSource adapts a grant to golang.org/x/oauth2. The token is reused until it
// expires, so an *http.Client from oauth2.NewClient only calls the token endpoint when needed.
func (s *TokenService) TokenSource(ctx context.Context, grant *oauthmodel.GrantRequest) xoauth2.TokenSource {
	return xoauth2.ReuseTokenSource(nil, &grantTokenSource{ctx: ctx, service: s, grant: grant})
}

func (ts *grantTokenSource) Token() (*xoauth2.Token, error) {
	resp, err := ts.service.Exchange(ts.ctx, ts.grant)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrNoResult
	}
	return resp.Token(ts.service.nowFunc()), nil
}
