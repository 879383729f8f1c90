// Package command builds the device command sequences and query filters
// for loopback management. Builders are pure: they never touch the network
// and never fail; callers pass already validated intent.
package command

import (
	"fmt"
	"strings"
)

// Protocol identifies the device-management protocol a Sequence targets
type Protocol string

const (
	// ProtocolCLI is an interactive SSH command-line session
	ProtocolCLI Protocol = "cli"
	// ProtocolNETCONF is a structured NETCONF RPC session
	ProtocolNETCONF Protocol = "netconf"
)

// InterfaceConfigNamespace is the IOS-XR YANG namespace for interface configuration.
const InterfaceConfigNamespace = "http://cisco.com/ns/yang/Cisco-IOS-XR-ifmgr-cfg"

// interfaceFilter selects the interface-configurations subtree.
var interfaceFilter = fmt.Sprintf(`<interface-configurations xmlns="%s"/>`, InterfaceConfigNamespace)

// Sequence is an ordered CLI command list or a NETCONF subtree filter,
// tagged by protocol.
type Sequence struct {
	Protocol Protocol `json:"protocol"`
	Commands []string `json:"commands,omitempty"`
	Filter   string   `json:"filter,omitempty"`
}

// BuildLoopbackCreate returns the commands that create Loopback<number>
// with the given address, in order: enter interface, description, address, commit.
func BuildLoopbackCreate(number int, ip, mask string) Sequence {
	return Sequence{
		Protocol: ProtocolCLI,
		Commands: []string{
			fmt.Sprintf("interface Loopback%d", number),
			fmt.Sprintf("description Loopback interface %d", number),
			fmt.Sprintf("ipv4 address %s %s", ip, mask),
			"commit",
		},
	}
}

// BuildLoopbackDelete returns the commands that remove Loopback<number>,
// in order: enter config, remove interface, commit, exit config.
func BuildLoopbackDelete(number int) Sequence {
	return Sequence{
		Protocol: ProtocolCLI,
		Commands: []string{
			"configure terminal",
			fmt.Sprintf("no interface Loopback%d", number),
			"commit",
			"end",
		},
	}
}

// InterfaceQueryFilter returns the fixed NETCONF subtree filter for the
// device's interface configuration.
func InterfaceQueryFilter() Sequence {
	return Sequence{
		Protocol: ProtocolNETCONF,
		Filter:   interfaceFilter,
	}
}

// IsEmpty returns true if the sequence carries no payload.
func (s Sequence) IsEmpty() bool {
	return len(s.Commands) == 0 && s.Filter == ""
}

// Clone returns a deep copy; Outcomes hand previews out to callers.
func (s Sequence) Clone() Sequence {
	c := s
	if s.Commands != nil {
		c.Commands = append([]string(nil), s.Commands...)
	}
	return c
}

// String returns a human-readable rendering of the sequence.
func (s Sequence) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Protocol: %s\n", s.Protocol))
	switch s.Protocol {
	case ProtocolNETCONF:
		sb.WriteString(fmt.Sprintf("Filter:\n  %s\n", s.Filter))
	default:
		sb.WriteString("Commands:\n")
		for i, c := range s.Commands {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, c))
		}
	}
	return sb.String()
}
