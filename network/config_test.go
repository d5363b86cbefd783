package network

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flags(t *testing.T, values map[string]string) *viper.Viper {
	cmd := &cobra.Command{}
	v := viper.New()
	RegisterFlags(cmd, v, "gossip", 0)
	for key, value := range values {
		require.NoError(t, cmd.Flags().Set(key, value))
	}
	return v
}

func TestConfigurationFromFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config, err := ConfigurationFromFlags(flags(t, map[string]string{
			"gossip-bind-address": "127.0.0.1",
		}), "gossip")
		require.NoError(t, err)
		assert.Equal(t, "gossip", config.Name())
		assert.NotEmpty(t, config.ID())
		assert.Equal(t, "127.0.0.1", config.AdvertisedAddress())
		assert.NotZero(t, config.BindPort())
		assert.Equal(t, config.BindPort(), config.AdvertisedPort())
	})
	t.Run("explicit", func(t *testing.T) {
		config, err := ConfigurationFromFlags(flags(t, map[string]string{
			"gossip-id":                 "node-1",
			"gossip-bind-address":       "0.0.0.0",
			"gossip-bind-port":          "3500",
			"gossip-advertised-address": "10.0.0.1",
			"gossip-advertised-port":    "4500",
		}), "gossip")
		require.NoError(t, err)
		assert.Equal(t, "node-1", config.ID())
		assert.Equal(t, "0.0.0.0", config.BindAddress())
		assert.Equal(t, 3500, config.BindPort())
		assert.Equal(t, "10.0.0.1:4500", config.Advertised())
		assert.Contains(t, config.Describe(), "gossip")
	})
	t.Run("invalid address", func(t *testing.T) {
		_, err := ConfigurationFromFlags(flags(t, map[string]string{
			"gossip-bind-address": "somewhere",
		}), "gossip")
		assert.Equal(t, ErrInvalidAddress, errors.Cause(err))
	})
	t.Run("privileged port", func(t *testing.T) {
		_, err := ConfigurationFromFlags(flags(t, map[string]string{
			"gossip-bind-address": "127.0.0.1",
			"gossip-bind-port":    "80",
		}), "gossip")
		assert.Equal(t, ErrInvalidPort, errors.Cause(err))
	})
	t.Run("empty id", func(t *testing.T) {
		_, err := ConfigurationFromFlags(flags(t, map[string]string{
			"gossip-id": "",
		}), "gossip")
		assert.Equal(t, ErrEmptyID, err)
	})
}
