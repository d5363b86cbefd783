package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	consul "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"github.com/vx-labs/caucus/activity"
	"github.com/vx-labs/caucus/connection"
	"github.com/vx-labs/caucus/discovery"
	"github.com/vx-labs/caucus/gossip"
	"github.com/vx-labs/caucus/keys"
	"github.com/vx-labs/caucus/network"
	"github.com/vx-labs/caucus/raftmap"
	"github.com/vx-labs/caucus/streaming"
	"go.uber.org/zap"
)

// JoinKeyParam is the query parameter a join key is sent under.
const JoinKeyParam = "JoinKey"

var (
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrInvalidRaftPeer = errors.New("invalid raft peer")
	ErrRaftFollower    = errors.New("raft member is not the leader")
)

var Version = "dev"

type healthChecker interface {
	Health() string
}

// Context holds what a running node shares between its components.
type Context struct {
	ID       string
	Logger   *zap.Logger
	Registry *streaming.Registry

	config  *viper.Viper
	hub     *connection.Hub
	health  []healthChecker
	closers []func() error
}

// Bootstrap builds the logger and the type registry. The logger is a
// development one when --debug or ENABLE_PRETTY_LOG is set.
func Bootstrap(v *viper.Viper) (*Context, error) {
	gossipConf, err := network.ConfigurationFromFlags(v, ListenerGossip)
	if err != nil {
		return nil, err
	}
	id := gossipConf.ID()
	fields := []zap.Field{
		zap.String("node_id", id), zap.String("version", Version),
	}
	if allocID := os.Getenv("NOMAD_ALLOC_ID"); allocID != "" {
		fields = append(fields,
			zap.String("nomad_alloc_id", os.Getenv("NOMAD_ALLOC_ID")),
			zap.String("nomad_alloc_name", os.Getenv("NOMAD_ALLOC_NAME")),
			zap.String("nomad_alloc_index", os.Getenv("NOMAD_ALLOC_INDEX")),
		)
	}
	opts := []zap.Option{
		zap.Fields(fields...),
	}
	var logger *zap.Logger
	if v.GetBool(FlagDebug) || os.Getenv("ENABLE_PRETTY_LOG") == "true" {
		logger, err = zap.NewDevelopment(opts...)
	} else {
		logger, err = zap.NewProduction(opts...)
	}
	if err != nil {
		return nil, err
	}
	return newContext(id, logger, v)
}

func newContext(id string, logger *zap.Logger, v *viper.Viper) (*Context, error) {
	registry := streaming.NewRegistry()
	if err := connection.RegisterAll(registry); err != nil {
		return nil, err
	}
	return &Context{
		ID:       id,
		Logger:   logger,
		Registry: registry,
		config:   v,
	}, nil
}

func (ctx *Context) onClose(f func() error) {
	ctx.closers = append(ctx.closers, f)
}

// Close releases what the context opened, last opened first.
func (ctx *Context) Close() {
	for idx := len(ctx.closers) - 1; idx >= 0; idx-- {
		if err := ctx.closers[idx](); err != nil {
			ctx.Logger.Warn("failed to close component", zap.Error(err))
		}
	}
	ctx.closers = nil
	ctx.Logger.Sync()
}

// Health is the worst status of the running backends.
func (ctx *Context) Health() string {
	status := "ok"
	for _, checker := range ctx.health {
		switch checker.Health() {
		case "critical":
			return "critical"
		case "warning":
			status = "warning"
		}
	}
	return status
}

// Retriever returns the key retriever configured by flags, or nil.
func (ctx *Context) Retriever() (keys.Retriever, error) {
	if url := ctx.config.GetString(FlagKeyServer); url != "" {
		return keys.NewHTTPRetriever(url, &http.Client{Timeout: 10 * time.Second}, ctx.Logger), nil
	}
	if ctx.config.GetBool(FlagVault) {
		client, err := keys.NewVaultClient()
		if err != nil {
			return nil, err
		}
		return keys.NewVaultRetriever(client, ""), nil
	}
	return nil, nil
}

// ResolveJoinKey returns the container a join key grants access to. An empty
// input starts a new conversation. A key without a container is resolved by
// the retriever when there is one, and names its own container otherwise.
func (ctx *Context) ResolveJoinKey(c context.Context, input string, retriever keys.Retriever) (keys.JoinKey, error) {
	if input == "" {
		return keys.JoinKey{Key: keys.Generate(), ContainerID: keys.Generate()}, nil
	}
	joinKey, err := keys.ParseJoinKey(input)
	if err != nil {
		return joinKey, err
	}
	if joinKey.HasContainer() {
		return joinKey, nil
	}
	if retriever == nil {
		joinKey.ContainerID = joinKey.Key
		return joinKey, nil
	}
	containerID, err := retriever.RequestKey(c, JoinKeyParam, joinKey.Key)
	if err != nil {
		return joinKey, err
	}
	joinKey.ContainerID = strings.TrimSpace(containerID)
	return joinKey, nil
}

// Activity opens the activity recorder configured by flags, or returns nil.
func (ctx *Context) Activity() (*activity.Recorder, error) {
	path := ctx.config.GetString(FlagActivityDB)
	if path == "" {
		return nil, nil
	}
	repository, err := activity.NewBoltRepository(activity.Options{Path: path}, ctx.Registry)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open activity database")
	}
	recorder := activity.NewRecorder(repository, ctx.Logger)
	ctx.onClose(func() error {
		recorder.Close()
		return repository.Close()
	})
	return recorder, nil
}

// OpenContainer attaches to the container id on the backend selected by flags.
func (ctx *Context) OpenContainer(c context.Context, id, participantID string) (connection.Container, error) {
	switch backend := ctx.config.GetString(FlagBackend); backend {
	case BackendMemory:
		if ctx.hub == nil {
			ctx.hub = connection.NewHub()
		}
		return ctx.hub.Open(id, participantID), nil
	case BackendGossip:
		layer, err := ctx.openGossip(c)
		if err != nil {
			return nil, err
		}
		return connection.NewGossipContainer(id, layer, ctx.Logger), nil
	case BackendRaft:
		m, err := ctx.openRaft(c)
		if err != nil {
			return nil, err
		}
		return connection.NewRaftContainer(id, m), nil
	default:
		return nil, errors.Wrap(ErrUnknownBackend, backend)
	}
}

func (ctx *Context) openGossip(c context.Context) (*gossip.MemberlistLayer, error) {
	conf, err := network.ConfigurationFromFlags(ctx.config, ListenerGossip)
	if err != nil {
		return nil, err
	}
	ctx.Logger.Info("loaded listener config", zap.String("listener", conf.Describe()))
	layer, err := gossip.NewMemberlistLayer(ctx.Logger, gossip.Config{
		ID:            ctx.ID,
		BindAddress:   conf.BindAddress(),
		BindPort:      conf.BindPort(),
		AdvertiseAddr: conf.AdvertisedAddress(),
		AdvertisePort: conf.AdvertisedPort(),
	})
	if err != nil {
		return nil, err
	}
	ctx.health = append(ctx.health, layer)
	ctx.onClose(func() error {
		layer.Leave()
		return nil
	})
	fmt.Printf("Use the following address to join the cluster: %s\n", conf.Advertised())

	if err := discovery.JoinStatic(c, ctx.config.GetStringSlice(FlagJoin), layer, 30*time.Second, ctx.Logger); err != nil {
		ctx.Logger.Warn("failed to join static peers", zap.Error(err))
	}
	if service := ctx.config.GetString(FlagConsulService); service != "" {
		if err := ctx.joinConsulPeers(c, service, conf, layer); err != nil {
			return nil, err
		}
	}
	return layer, nil
}

func (ctx *Context) joinConsulPeers(c context.Context, service string, conf network.Configuration, layer discovery.Joiner) error {
	api, err := consul.NewClient(consul.DefaultConfig())
	if err != nil {
		return errors.Wrap(err, "failed to connect to consul")
	}
	registry := discovery.NewConsul(api, service, ctx.Logger)
	if err := registry.Register(ctx.ID, conf.AdvertisedAddress(), conf.AdvertisedPort()); err != nil {
		return err
	}
	ctx.onClose(func() error { return registry.Deregister(ctx.ID) })
	go func() {
		if err := registry.JoinPeers(c, conf.AdvertisedAddress(), conf.AdvertisedPort(), 1, layer); err != nil {
			ctx.Logger.Warn("stopped consul discovery", zap.Error(err))
		}
	}()
	return nil
}

// ParseRaftPeers reads "id=host:port" voter definitions.
func ParseRaftPeers(definitions []string) ([]raftmap.Peer, error) {
	peers := make([]raftmap.Peer, 0, len(definitions))
	for _, definition := range definitions {
		tokens := strings.SplitN(definition, "=", 2)
		if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
			return nil, errors.Wrap(ErrInvalidRaftPeer, definition)
		}
		peers = append(peers, raftmap.Peer{ID: tokens[0], Address: tokens[1]})
	}
	return peers, nil
}

type raftMember interface {
	Address() string
	WaitForLeader(ctx context.Context) (string, error)
}

// requireRaftLeader fails unless m leads its cluster: followers cannot write,
// so a chat attached to one could not even list its participant.
func requireRaftLeader(c context.Context, m raftMember, timeout time.Duration) error {
	c, cancel := context.WithTimeout(c, timeout)
	defer cancel()
	leader, err := m.WaitForLeader(c)
	if err != nil {
		return err
	}
	if leader != m.Address() {
		return errors.Wrapf(ErrRaftFollower, "writes are only accepted by the leader at %s, run the chat there", leader)
	}
	return nil
}

func (ctx *Context) openRaft(c context.Context) (*raftmap.Map, error) {
	conf, err := network.ConfigurationFromFlags(ctx.config, ListenerRaft)
	if err != nil {
		return nil, err
	}
	ctx.Logger.Info("loaded listener config", zap.String("listener", conf.Describe()))
	peers, err := ParseRaftPeers(ctx.config.GetStringSlice(FlagRaftPeers))
	if err != nil {
		return nil, err
	}
	m, err := raftmap.Open(raftmap.Config{
		ID:            conf.ID(),
		BindAddress:   fmt.Sprintf("%s:%d", conf.BindAddress(), conf.BindPort()),
		AdvertiseAddr: conf.Advertised(),
		DataDir:       filepath.Join(ctx.config.GetString(FlagRaftDir), conf.ID()),
		Bootstrap:     ctx.config.GetBool(FlagRaftBootstrap),
		Peers:         peers,
	}, ctx.Logger)
	if err != nil {
		return nil, err
	}
	if err := requireRaftLeader(c, m, 10*time.Second); err != nil {
		m.Shutdown()
		return nil, err
	}
	ctx.health = append(ctx.health, m)
	ctx.onClose(m.Shutdown)
	return m, nil
}

// ServeHTTPHealth serves prometheus metrics on /metrics, and the node health
// on /health, until the context is closed.
func (ctx *Context) ServeHTTPHealth(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", ctx.serveHealth)
	server := &http.Server{Addr: fmt.Sprintf("[::]:%d", port), Handler: mux}
	ctx.onClose(server.Close)
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			ctx.Logger.Error("failed to run healthcheck endpoint", zap.Error(err))
		}
	}()
}

func (ctx *Context) serveHealth(w http.ResponseWriter, _ *http.Request) {
	switch ctx.Health() {
	case "warning":
		w.WriteHeader(http.StatusTooManyRequests)
	case "critical":
		w.WriteHeader(http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusOK)
	}
}
