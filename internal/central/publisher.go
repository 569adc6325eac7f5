package central

import (
	"context"
	"fmt"
	"sort"
)

// Publisher writes this server's listener address into a network's
// advertised DNS block, idempotently: it reads the current configuration
// and writes only when the desired block differs.
type Publisher struct {
	client    *Client
	networkID string
}

// NewPublisher constructs a Publisher for one network.
func NewPublisher(client *Client, networkID string) *Publisher {
	return &Publisher{client: client, networkID: networkID}
}

// Publish compares the network's current DNS block to the desired one
// (domain plus this node's advertised server addresses) and writes only on
// difference. Safe to call every reconciler tick; repeated calls with the
// same desired state are no-ops after the first.
func (p *Publisher) Publish(ctx context.Context, domain string, servers []string) error {
	desired := DNS{Domain: domain, Servers: append([]string(nil), servers...)}

	current, err := p.client.GetNetwork(ctx, p.networkID)
	if err != nil {
		return fmt.Errorf("fetching network %s before publish: %w", p.networkID, err)
	}

	if dnsEqual(current.Config.DNS, desired) {
		return nil
	}

	if err := p.client.SetNetworkDNS(ctx, p.networkID, desired); err != nil {
		return fmt.Errorf("publishing DNS block for network %s: %w", p.networkID, err)
	}
	return nil
}

func dnsEqual(a, b DNS) bool {
	if a.Domain != b.Domain {
		return false
	}
	as, bs := sortedCopy(a.Servers), sortedCopy(b.Servers)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
