package network

import (
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ErrEmptyID        = errors.New("empty listener id")
	ErrInvalidAddress = errors.New("invalid listener address")
	ErrInvalidPort    = errors.New("invalid listener port")
)

// Configuration describes where a listener binds and how peers reach it.
type Configuration struct {
	id                string
	name              string
	advertisedAddress string
	advertisedPort    int
	bindAddress       string
	bindPort          int
}

func (c *Configuration) Name() string {
	return c.name
}
func (c *Configuration) ID() string {
	return c.id
}
func (c *Configuration) AdvertisedAddress() string {
	return c.advertisedAddress
}
func (c *Configuration) AdvertisedPort() int {
	return c.advertisedPort
}
func (c *Configuration) BindPort() int {
	return c.bindPort
}
func (c *Configuration) BindAddress() string {
	return c.bindAddress
}

// Advertised returns the host:port peers should dial.
func (c *Configuration) Advertised() string {
	return net.JoinHostPort(c.advertisedAddress, fmt.Sprintf("%d", c.advertisedPort))
}

func randomFreePort(host string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:0", host))
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil

}

// localPrivateHost returns the first IPv4 address of a hardware interface
// that is up, or 127.0.0.1 when there is none.
func localPrivateHost() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		addresses, err := iface.Addrs()
		if err != nil || len(addresses) == 0 {
			continue
		}
		if ipnet, ok := addresses[0].(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}

// flagNames are the viper keys of a listener's settings.
type flagNames struct {
	id, bindAddress, bindPort, advertisedAddress, advertisedPort string
}

func flagsFor(name string) flagNames {
	return flagNames{
		id:                name + "-id",
		bindAddress:       name + "-bind-address",
		bindPort:          name + "-bind-port",
		advertisedAddress: name + "-advertised-address",
		advertisedPort:    name + "-advertised-port",
	}
}

func (c Configuration) Describe() string {
	return fmt.Sprintf("listener %s is running on %s:%d and exposed on %s:%d",
		c.name,
		c.bindAddress, c.bindPort,
		c.advertisedAddress, c.advertisedPort,
	)
}

// ConfigurationFromFlags reads the flags registered by RegisterFlags for
// name. A zero bind port is replaced by a free one.
func ConfigurationFromFlags(v *viper.Viper, name string) (Configuration, error) {
	flags := flagsFor(name)
	config := Configuration{
		id:                v.GetString(flags.id),
		name:              name,
		advertisedAddress: v.GetString(flags.advertisedAddress),
		advertisedPort:    v.GetInt(flags.advertisedPort),
		bindAddress:       v.GetString(flags.bindAddress),
		bindPort:          v.GetInt(flags.bindPort),
	}

	if len(config.id) == 0 {
		return config, ErrEmptyID
	}
	if len(config.advertisedAddress) == 0 {
		config.advertisedAddress = config.bindAddress
	}
	if net.ParseIP(config.bindAddress) == nil {
		return config, errors.Wrapf(ErrInvalidAddress, "bind address of %s: %q", name, config.bindAddress)
	}
	if net.ParseIP(config.advertisedAddress) == nil {
		return config, errors.Wrapf(ErrInvalidAddress, "advertised address of %s: %q", name, config.advertisedAddress)
	}
	if config.bindPort == 0 {
		randomPort, err := randomFreePort(config.bindAddress)
		if err != nil {
			return config, errors.Wrapf(err, "failed to allocate a port for %s", name)
		}
		config.bindPort = randomPort
	}
	if config.advertisedPort == 0 {
		config.advertisedPort = config.bindPort
	}
	if config.advertisedPort < 1024 || config.advertisedPort > 65535 {
		return config, errors.Wrapf(ErrInvalidPort, "advertised port of %s: %d", name, config.advertisedPort)
	}
	if config.bindPort < 1024 || config.bindPort > 65535 {
		return config, errors.Wrapf(ErrInvalidPort, "bind port of %s: %d", name, config.bindPort)
	}
	return config, nil
}

// RegisterFlags adds the id, bind and advertise flags of the listener name
// to cmd, and binds them into v. Nomad port and address variables override
// the defaults.
func RegisterFlags(cmd *cobra.Command, v *viper.Viper, name string, defaultPort int) {
	flags := flagsFor(name)
	defaultAddr := localPrivateHost()

	cmd.Flags().String(flags.id, uuid.New().String(), fmt.Sprintf("%s unique id", name))
	cmd.Flags().Int(flags.bindPort, defaultPort, fmt.Sprintf("Start %s listener on this port", name))
	cmd.Flags().String(flags.bindAddress, defaultAddr, fmt.Sprintf("Start %s listener on this address", name))
	cmd.Flags().String(flags.advertisedAddress, "", fmt.Sprintf("Advertise %s listener on this address", name))
	cmd.Flags().Int(flags.advertisedPort, 0, fmt.Sprintf("Advertise %s listener on this port", name))
	for _, key := range []string{flags.id, flags.bindPort, flags.bindAddress, flags.advertisedAddress, flags.advertisedPort} {
		v.BindPFlag(key, cmd.Flags().Lookup(key))
	}
	v.BindEnv(flags.bindPort, fmt.Sprintf("NOMAD_PORT_%s", name))
	v.BindEnv(flags.advertisedAddress, fmt.Sprintf("NOMAD_IP_%s", name))
	v.BindEnv(flags.advertisedPort, fmt.Sprintf("NOMAD_HOST_PORT_%s", name))
}
