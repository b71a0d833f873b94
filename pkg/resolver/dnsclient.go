package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// resolvConfPath is read when no nameserver is configured.
var resolvConfPath = "/etc/resolv.conf"

// DNSClient queries a single nameserver with github.com/miekg/dns.
type DNSClient struct {
	nameserver string
	timeout    time.Duration
}

// NewDNSClient creates a DNSClient for nameserver ("host" or "host:port").
// An empty nameserver is taken from /etc/resolv.conf.
func NewDNSClient(nameserver string, timeout time.Duration) (*DNSClient, error) {
	if nameserver == "" {
		cc, err := dns.ClientConfigFromFile(resolvConfPath)
		if err != nil || len(cc.Servers) == 0 {
			return nil, ErrNoNameserver
		}
		nameserver = net.JoinHostPort(cc.Servers[0], cc.Port)
	}
	if _, _, err := net.SplitHostPort(nameserver); err != nil {
		nameserver = net.JoinHostPort(nameserver, "53")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DNSClient{nameserver: nameserver, timeout: timeout}, nil
}

// Strategy returns StrategyDNSClient.
func (c *DNSClient) Strategy() Strategy { return StrategyDNSClient }

// Nameserver returns the queried nameserver address.
func (c *DNSClient) Nameserver() string { return c.nameserver }

// LookupClient looks up _xmpp-client._tcp.<domain>. A truncated UDP answer is
// retried over TCP.
func (c *DNSClient) LookupClient(ctx context.Context, domain string) ([]Target, error) {
	name := dns.Fqdn("_" + ServiceClient + "._" + ProtoTCP + "." + strings.TrimSuffix(domain, "."))

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeSRV)
	msg.RecursionDesired = true

	in, err := c.exchange(ctx, msg, "udp")
	if err != nil {
		return nil, err
	}
	if in.Truncated {
		if in, err = c.exchange(ctx, msg, "tcp"); err != nil {
			return nil, err
		}
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s %s", ErrLookupFailed, name, dns.RcodeToString[in.Rcode])
	}

	var targets []Target
	for _, rr := range in.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		host := strings.TrimSuffix(srv.Target, ".")
		if host == "" {
			// "." target: service decidedly not available
			continue
		}
		targets = append(targets, Target{
			Host:     host,
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
		})
	}
	sortTargets(targets)
	return targets, nil
}

func (c *DNSClient) exchange(ctx context.Context, msg *dns.Msg, network string) (*dns.Msg, error) {
	client := &dns.Client{Net: network, Timeout: c.timeout}
	in, _, err := client.ExchangeContext(ctx, msg, c.nameserver)
	if err != nil {
		return nil, fmt.Errorf("query %s over %s: %w", c.nameserver, network, err)
	}
	return in, nil
}

// Compile-time interface satisfaction check.
var _ Resolver = (*DNSClient)(nil)
