// Package resolver locates client service endpoints through DNS SRV records.
//
// Two strategies are available, selected by configuration:
//
//	system     the platform resolver (net.Resolver)
//	dnsclient  direct queries to a configured nameserver (github.com/miekg/dns)
//
// The strategy is chosen per connection attempt and passed to the transport
// explicitly; nothing here mutates process-wide resolver state.
package resolver
