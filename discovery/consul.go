package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	consul "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Consul finds gossip peers among the instances of a consul service.
type Consul struct {
	api     *consul.Client
	service string
	logger  *zap.Logger
}

func NewConsul(api *consul.Client, service string, logger *zap.Logger) *Consul {
	return &Consul{api: api, service: service, logger: logger}
}

// Register announces the local gossip listener as an instance of the service.
func (c *Consul) Register(id, address string, port int) error {
	err := c.api.Agent().ServiceRegister(&consul.AgentServiceRegistration{
		ID:      id,
		Name:    c.service,
		Address: address,
		Port:    port,
	})
	return errors.Wrap(err, "failed to register service")
}

func (c *Consul) Deregister(id string) error {
	return errors.Wrap(c.api.Agent().ServiceDeregister(id), "failed to deregister service")
}

// Peers returns the healthy instances of the service other than self, as
// host:port. It blocks until the catalog index moves past index, or the
// consul wait time elapses. foundSelf reports whether self is registered.
func (c *Consul) Peers(ctx context.Context, selfAddress string, selfPort int, index uint64) (peers []string, foundSelf bool, lastIndex uint64, err error) {
	services, meta, err := c.api.Health().Service(
		c.service,
		"",
		false,
		(&consul.QueryOptions{
			WaitIndex: index,
			WaitTime:  15 * time.Second,
		}).WithContext(ctx),
	)
	if err != nil {
		return nil, false, index, errors.Wrap(err, "failed to list service instances")
	}
	peers = []string{}
	for _, service := range services {
		c.logger.Debug("discovered node", zap.String("node_address", service.Service.Address), zap.Int("node_port", service.Service.Port), zap.String("node_health", service.Checks.AggregatedStatus()))
		if service.Checks.AggregatedStatus() == consul.HealthCritical {
			continue
		}
		if service.Service.Address == selfAddress &&
			service.Service.Port == selfPort {
			foundSelf = true
			continue
		}
		peers = append(peers, fmt.Sprintf("%s:%d", service.Service.Address, service.Service.Port))
	}
	return peers, foundSelf, meta.LastIndex, nil
}

// JoinPeers watches the service until self is registered and at least
// minPeers other instances are healthy, then joins them. Lookup and join
// failures are retried with an exponential backoff until ctx is done.
func (c *Consul) JoinPeers(ctx context.Context, selfAddress string, selfPort int, minPeers int, joiner Joiner) error {
	var index uint64
	return backoff.Retry(func() error {
		peers, foundSelf, lastIndex, err := c.Peers(ctx, selfAddress, selfPort, index)
		if err != nil {
			c.logger.Warn("failed to discover peers", zap.Error(err))
			return err
		}
		index = lastIndex
		if !foundSelf || len(peers) < minPeers {
			return ErrNoPeers
		}
		if err := joiner.Join(peers); err != nil {
			return err
		}
		c.logger.Info("joined peers", zap.Strings("peers", peers))
		return nil
	}, newBackOff(ctx, 0))
}
