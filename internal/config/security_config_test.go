package config_test

import (
	"os"
	"testing"

	"github.com/jrsteele09/go-token-broker/internal/config"
	"github.com/stretchr/testify/require"
)

func TestGetRequiredAuthority(t *testing.T) {
	t.Setenv("REQUIRED_AUTHORITY", "")
	require.Equal(t, "", config.Security{}.GetRequiredAuthority())

	t.Setenv("REQUIRED_AUTHORITY", "admin")
	require.Equal(t, "admin", config.Security{}.GetRequiredAuthority())

	require.NoError(t, os.Unsetenv("REQUIRED_AUTHORITY"))
	require.Equal(t, "openid", config.Security{}.GetRequiredAuthority())
}
