// Package device resolves device connection parameters and provides the
// SSH CLI and NETCONF transports used to reach the managed device.
package device

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/newtron-network/devapi/pkg/command"
	"github.com/newtron-network/devapi/pkg/settings"
	"github.com/newtron-network/devapi/pkg/util"
)

const (
	// NetconfPort is the IANA NETCONF-over-SSH port; it is not configurable.
	NetconfPort = 830

	// CLIDeviceType is the CLI platform of the managed device.
	CLIDeviceType = "cisco_xr"

	// NetconfCapability is the NETCONF device handler of the managed device.
	NetconfCapability = "iosxr"
)

// Params holds everything needed to open one session to a device.
// Values are built per request and never modified afterwards.
type Params struct {
	Host     string
	Port     int
	Username string
	Password string

	// Secret is the enable secret for CLI sessions; empty means Password.
	Secret string

	Timeout  time.Duration
	Protocol command.Protocol

	// DeviceType is the CLI platform (CLI sessions only).
	DeviceType string
	// DeviceCapability is the NETCONF device handler (NETCONF sessions only).
	DeviceCapability string

	// KnownHostsFile enables host-key verification when set.
	KnownHostsFile string
}

// Address returns host:port
func (p Params) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// EnableSecret returns the secret used to enter privileged mode
func (p Params) EnableSecret() string {
	if p.Secret != "" {
		return p.Secret
	}
	return p.Password
}

// Provider builds Params from the runtime settings source. It reads the
// source on every call; nothing is cached.
type Provider struct {
	runtime *settings.Runtime
}

// NewProvider creates a Provider backed by rt
func NewProvider(rt *settings.Runtime) *Provider {
	return &Provider{runtime: rt}
}

// CLISessionParams returns the parameters for an SSH CLI session
func (p *Provider) CLISessionParams() (Params, error) {
	d, err := p.current()
	if err != nil {
		return Params{}, err
	}
	if d.SSHPort <= 0 || d.SSHPort > 65535 {
		return Params{}, util.NewConfigurationError(settings.EnvPort, "must be a valid TCP port")
	}
	if d.TimeoutSeconds <= 0 {
		return Params{}, util.NewConfigurationError(settings.EnvTimeout, "must be a positive number of seconds")
	}

	return Params{
		Host:           d.Host,
		Port:           d.SSHPort,
		Username:       d.Username,
		Password:       d.Password,
		Secret:         d.Secret,
		Timeout:        d.Timeout(),
		Protocol:       command.ProtocolCLI,
		DeviceType:     CLIDeviceType,
		KnownHostsFile: d.KnownHostsFile,
	}, nil
}

// StructuredSessionParams returns the parameters for a NETCONF session.
// The port is always 830.
func (p *Provider) StructuredSessionParams() (Params, error) {
	d, err := p.current()
	if err != nil {
		return Params{}, err
	}

	timeout := d.Timeout()
	if timeout <= 0 {
		timeout = settings.DefaultTimeoutSeconds * time.Second
	}

	return Params{
		Host:             d.Host,
		Port:             NetconfPort,
		Username:         d.Username,
		Password:         d.Password,
		Timeout:          timeout,
		Protocol:         command.ProtocolNETCONF,
		DeviceCapability: NetconfCapability,
		KnownHostsFile:   d.KnownHostsFile,
	}, nil
}

func (p *Provider) current() (*settings.DeviceSettings, error) {
	d, err := p.runtime.Device()
	if err != nil {
		return nil, err
	}

	required := []struct {
		name  string
		value string
	}{
		{settings.EnvHost, d.Host},
		{settings.EnvUsername, d.Username},
		{settings.EnvPassword, d.Password},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, util.NewConfigurationError(r.name, "is not set")
		}
	}
	return d, nil
}
