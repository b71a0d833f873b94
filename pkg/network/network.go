// Package network reports whether the host has a usable network connection.
package network

import (
	"net"
	"sync/atomic"
)

// Probe reports network availability. Available must not block.
type Probe interface {
	Available() bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func() bool

// Available calls f.
func (f ProbeFunc) Available() bool { return f() }

// InterfaceProbe treats the network as available when at least one
// non-loopback interface is up and has an address.
type InterfaceProbe struct {
	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

// NewInterfaceProbe creates an InterfaceProbe over the host interfaces.
func NewInterfaceProbe() *InterfaceProbe {
	return &InterfaceProbe{
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

// Available reports whether a usable interface exists.
func (p *InterfaceProbe) Available() bool {
	ifaces, err := p.interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := p.addrs(iface)
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// Switch is a Probe with a manually controlled state. The zero value
// reports the network as unavailable.
type Switch struct {
	up atomic.Bool
}

// NewSwitch creates a Switch in the given state.
func NewSwitch(up bool) *Switch {
	s := &Switch{}
	s.up.Store(up)
	return s
}

// Set changes the reported state.
func (s *Switch) Set(up bool) { s.up.Store(up) }

// Available returns the current state.
func (s *Switch) Available() bool { return s.up.Load() }

// Compile-time interface satisfaction checks.
var (
	_ Probe = ProbeFunc(nil)
	_ Probe = (*InterfaceProbe)(nil)
	_ Probe = (*Switch)(nil)
)
