package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Service and protocol of the client SRV record (_xmpp-client._tcp).
const (
	ServiceClient = "xmpp-client"
	ProtoTCP      = "tcp"
)

// DefaultTimeout is the query timeout when none is configured.
const DefaultTimeout = 5 * time.Second

// Resolver errors.
var (
	ErrUnknownStrategy = errors.New("unknown resolver strategy")
	ErrNoNameserver    = errors.New("no nameserver configured")
	ErrLookupFailed    = errors.New("lookup failed")
)

// Strategy selects a DNS resolution implementation.
type Strategy string

const (
	// StrategySystem uses the platform resolver.
	StrategySystem Strategy = "system"

	// StrategyDNSClient queries a nameserver directly.
	StrategyDNSClient Strategy = "dnsclient"
)

// ParseStrategy parses a strategy name (case-insensitive). Empty selects
// StrategySystem.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(StrategySystem):
		return StrategySystem, nil
	case string(StrategyDNSClient):
		return StrategyDNSClient, nil
	default:
		return "", fmt.Errorf("%w: %q (must be system or dnsclient)", ErrUnknownStrategy, s)
	}
}

// Target is one resolved service endpoint.
type Target struct {
	Host     string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// Address returns host:port.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

// Resolver looks up client endpoints for a domain.
// An empty result with a nil error means the domain publishes no record.
type Resolver interface {
	LookupClient(ctx context.Context, domain string) ([]Target, error)
	Strategy() Strategy
}

// Config configures resolver construction.
type Config struct {
	Strategy Strategy

	// Nameserver is "host" or "host:port". Only used by StrategyDNSClient;
	// empty reads /etc/resolv.conf.
	Nameserver string

	// Timeout bounds each query (default: 5s).
	Timeout time.Duration
}

// New builds the resolver selected by cfg.Strategy.
func New(cfg Config) (Resolver, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch cfg.Strategy {
	case "", StrategySystem:
		return NewSystem(cfg.Timeout), nil
	case StrategyDNSClient:
		return NewDNSClient(cfg.Nameserver, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}

// sortTargets orders targets by ascending priority, then descending weight.
func sortTargets(targets []Target) {
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Priority != targets[j].Priority {
			return targets[i].Priority < targets[j].Priority
		}
		return targets[i].Weight > targets[j].Weight
	})
}
