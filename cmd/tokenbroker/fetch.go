package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/jrsteele09/go-token-broker/server"
	"github.com/spf13/cobra"
)

type fetchFlags struct {
	grant        string
	subdomain    string
	username     string
	password     string
	token        string
	refreshToken string
	certificate  string
	params       []string
}

func newFetchCmd() *cobra.Command {
	var f fetchFlags
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Retrieve an access token and print the token response",
		Long: `Retrieve an access token from TOKEN_ENDPOINT with CLIENT_ID and CLIENT_SECRET.

Grants: client_credentials, password, refresh_token, user_token, jwt_bearer.`,
		Example: `  tokenbroker fetch --grant client_credentials --subdomain tenantA
  tokenbroker fetch --grant password --username john --password secret --param scope=openid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.grant, "grant", "client_credentials", "grant type")
	cmd.Flags().StringVar(&f.subdomain, "subdomain", "", "tenant subdomain of the token endpoint")
	cmd.Flags().StringVar(&f.username, "username", "", "resource owner username (password grant)")
	cmd.Flags().StringVar(&f.password, "password", "", "resource owner password (password grant)")
	cmd.Flags().StringVar(&f.token, "token", "", "user token (user_token grant) or OIDC token (jwt_bearer grant)")
	cmd.Flags().StringVar(&f.refreshToken, "refresh-token", "", "refresh token (refresh_token grant)")
	cmd.Flags().StringVar(&f.certificate, "certificate", "", "PEM clone certificate (jwt_bearer grant)")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "optional parameter as name=value, repeatable")
	return cmd
}

func runFetch(cmd *cobra.Command, f fetchFlags) error {
	c := config.New()
	service, err := server.NewTokenService(c, nil)
	if err != nil {
		return err
	}

	endpoint, err := url.Parse(c.GetTokenEndpoint())
	if err != nil {
		return fmt.Errorf("invalid token endpoint: %w", err)
	}
	optional, err := parseParams(f.params)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	creds := oauth2.NewClientCredentials(c.GetClientID(), c.GetClientSecret())
	var resp *oauth2.TokenResponse
	switch strings.ToLower(f.grant) {
	case "client_credentials":
		resp, err = service.RetrieveAccessTokenViaClientCredentialsGrant(ctx, endpoint, creds, f.subdomain, optional)
	case "password":
		resp, err = service.RetrieveAccessTokenViaPasswordGrant(ctx, endpoint, creds, f.username, f.password, f.subdomain, optional)
	case "refresh_token":
		resp, err = service.RetrieveAccessTokenViaRefreshToken(ctx, endpoint, creds, f.refreshToken, f.subdomain)
	case "user_token":
		resp, err = service.RetrieveAccessTokenViaUserTokenGrant(ctx, endpoint, creds, f.token, f.subdomain, optional)
	case "jwt_bearer":
		resp, err = service.RetrieveDelegationAccessTokenViaJwtBearerTokenGrant(ctx, endpoint, creds, f.token, f.certificate, f.subdomain, optional)
	default:
		return fmt.Errorf("%w: unknown grant %q", oauth2.ErrInvalidArgument, f.grant)
	}
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("no token issued: client certificates are not forwarded in this environment")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func parseParams(params []string) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(params))
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: parameter %q must be name=value", oauth2.ErrInvalidArgument, p)
		}
		out[name] = value
	}
	return out, nil
}
