package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xconn/xconn-go/pkg/resolver"
)

const systemYAML = "accounts:\n  - id: alice@example.org\ndns:\n  resolver: system\n"

const dnsclientYAML = "accounts:\n  - id: alice@example.org\ndns:\n  resolver: dnsclient\n  nameserver: 127.0.0.1\nprotocol_debug: true\n"

func TestLive_AttemptConfig(t *testing.T) {
	live, err := NewLive(writeConfig(t, systemYAML), nil)
	require.NoError(t, err)
	defer live.Close()

	ac := live.AttemptConfig()
	require.NotNil(t, ac.Resolver)
	assert.Equal(t, resolver.StrategySystem, ac.Resolver.Strategy())
	assert.False(t, ac.ProtocolDebug)
}

func TestLive_SetResolver(t *testing.T) {
	live, err := NewLive(writeConfig(t, dnsclientYAML), nil)
	require.NoError(t, err)
	defer live.Close()

	require.NoError(t, live.SetResolver(resolver.StrategySystem))
	assert.Equal(t, resolver.StrategySystem, live.AttemptConfig().Resolver.Strategy())
	assert.Equal(t, "system", live.Config().DNS.Resolver)

	assert.Error(t, live.SetResolver("minidns"))
	assert.Equal(t, resolver.StrategySystem, live.AttemptConfig().Resolver.Strategy())
}

func TestLive_Reload(t *testing.T) {
	path := writeConfig(t, systemYAML)
	live, err := NewLive(path, nil)
	require.NoError(t, err)
	defer live.Close()

	reloaded := make(chan *Config, 1)
	live.OnReload(func(c *Config) { reloaded <- c })

	require.NoError(t, os.WriteFile(path, []byte(dnsclientYAML), 0600))
	require.NoError(t, live.Reload())

	c := <-reloaded
	assert.Equal(t, "dnsclient", c.DNS.Resolver)
	ac := live.AttemptConfig()
	assert.Equal(t, resolver.StrategyDNSClient, ac.Resolver.Strategy())
	assert.True(t, ac.ProtocolDebug)

	// A broken file keeps the current settings.
	require.NoError(t, os.WriteFile(path, []byte("accounts: ["), 0600))
	assert.Error(t, live.Reload())
	assert.Equal(t, resolver.StrategyDNSClient, live.AttemptConfig().Resolver.Strategy())
}

func TestLive_Watch(t *testing.T) {
	orig := reloadDelay
	reloadDelay = 10 * time.Millisecond
	defer func() { reloadDelay = orig }()

	path := writeConfig(t, systemYAML)
	live, err := NewLive(path, nil)
	require.NoError(t, err)
	defer live.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, live.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(dnsclientYAML), 0600))

	assert.Eventually(t, func() bool {
		return live.AttemptConfig().Resolver.Strategy() == resolver.StrategyDNSClient
	}, 2*time.Second, 10*time.Millisecond)
}
