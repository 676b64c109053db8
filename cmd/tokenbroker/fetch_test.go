package main

import (
	"testing"

	"github.com/jrsteele09/go-token-broker/oauth2"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"scope=openid read", "login_hint=john=doe"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"scope": "openid read", "login_hint": "john=doe"}, params)

	params, err = parseParams(nil)
	require.NoError(t, err)
	require.Nil(t, params)

	_, err = parseParams([]string{"novalue"})
	require.ErrorIs(t, err, oauth2.ErrInvalidArgument)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "fetch"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, cmd.Name())
	}
}
