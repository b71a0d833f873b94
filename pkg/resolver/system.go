package resolver

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// System resolves through net.Resolver.
type System struct {
	resolver *net.Resolver
	timeout  time.Duration
}

// NewSystem creates a System resolver using net.DefaultResolver.
func NewSystem(timeout time.Duration) *System {
	return &System{resolver: net.DefaultResolver, timeout: timeout}
}

// Strategy returns StrategySystem.
func (s *System) Strategy() Strategy { return StrategySystem }

// LookupClient looks up _xmpp-client._tcp.<domain>.
func (s *System) LookupClient(ctx context.Context, domain string) ([]Target, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, addrs, err := s.resolver.LookupSRV(ctx, ServiceClient, ProtoTCP, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, nil
		}
		return nil, err
	}

	targets := make([]Target, 0, len(addrs))
	for _, a := range addrs {
		host := strings.TrimSuffix(a.Target, ".")
		if host == "" {
			continue
		}
		targets = append(targets, Target{
			Host:     host,
			Port:     a.Port,
			Priority: a.Priority,
			Weight:   a.Weight,
		})
	}
	sortTargets(targets)
	return targets, nil
}

// Compile-time interface satisfaction check.
var _ Resolver = (*System)(nil)
