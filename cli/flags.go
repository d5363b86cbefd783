package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vx-labs/caucus/network"
)

const (
	FlagBackend       = "backend"
	FlagJoin          = "join"
	FlagConsulService = "consul-service"
	FlagRaftDir       = "raft-dir"
	FlagRaftBootstrap = "raft-bootstrap"
	FlagRaftPeers     = "raft-peers"
	FlagMetricsPort   = "metrics-port"
	FlagDebug         = "debug"
	FlagName          = "name"
	FlagEmail         = "email"
	FlagKeyServer     = "key-server-url"
	FlagVault         = "vault"
	FlagActivityDB    = "activity-db"

	ListenerGossip = "gossip"
	ListenerRaft   = "raft"

	BackendMemory = "memory"
	BackendGossip = "gossip"
	BackendRaft   = "raft"
)

// NewViper returns a viper reading CAUCUS_* environment variables, dashes in
// keys being underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("caucus")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// AddFlags registers the flags Bootstrap and OpenBackend read.
func AddFlags(root *cobra.Command, v *viper.Viper) {
	root.Flags().StringP(FlagBackend, "b", BackendMemory, "Shared store backend: memory, gossip or raft")
	v.BindPFlag(FlagBackend, root.Flags().Lookup(FlagBackend))

	root.Flags().StringSliceP(FlagJoin, "j", []string{}, "Join these gossip members")
	v.BindPFlag(FlagJoin, root.Flags().Lookup(FlagJoin))

	root.Flags().StringP(FlagConsulService, "", "", "Discover gossip members among the instances of this consul service")
	v.BindPFlag(FlagConsulService, root.Flags().Lookup(FlagConsulService))

	root.Flags().StringP(FlagRaftDir, "", "/tmp/caucus", "Raft data directory")
	v.BindPFlag(FlagRaftDir, root.Flags().Lookup(FlagRaftDir))

	root.Flags().BoolP(FlagRaftBootstrap, "", false, "Bootstrap a new raft cluster")
	v.BindPFlag(FlagRaftBootstrap, root.Flags().Lookup(FlagRaftBootstrap))

	root.Flags().StringSliceP(FlagRaftPeers, "", []string{}, "Raft voters to bootstrap with, as id=host:port")
	v.BindPFlag(FlagRaftPeers, root.Flags().Lookup(FlagRaftPeers))

	root.Flags().IntP(FlagMetricsPort, "", 9000, "Serve /metrics and /health on this port, 0 to disable")
	v.BindPFlag(FlagMetricsPort, root.Flags().Lookup(FlagMetricsPort))

	root.Flags().BoolP(FlagDebug, "", false, "Enable debug logs")
	v.BindPFlag(FlagDebug, root.Flags().Lookup(FlagDebug))

	root.Flags().StringP(FlagName, "n", "", "Display name")
	v.BindPFlag(FlagName, root.Flags().Lookup(FlagName))

	root.Flags().StringP(FlagEmail, "", "", "Email recorded in the activity log")
	v.BindPFlag(FlagEmail, root.Flags().Lookup(FlagEmail))

	root.Flags().StringP(FlagKeyServer, "", "", "Resolve join keys against this key server")
	v.BindPFlag(FlagKeyServer, root.Flags().Lookup(FlagKeyServer))

	root.Flags().BoolP(FlagVault, "", false, "Resolve join keys against vault")
	v.BindPFlag(FlagVault, root.Flags().Lookup(FlagVault))

	root.Flags().StringP(FlagActivityDB, "", "", "Record sign-ins in this bolt database")
	v.BindPFlag(FlagActivityDB, root.Flags().Lookup(FlagActivityDB))

	network.RegisterFlags(root, v, ListenerGossip, 3500)
	network.RegisterFlags(root, v, ListenerRaft, 3600)
}
