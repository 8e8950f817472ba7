package evidence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// HostResolver resolves hostnames to addresses. *net.Resolver satisfies it.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// resolveHosts looks up every host. Hosts that fail to resolve are left out
// of the result.
func (g *Gatherer) resolveHosts(ctx context.Context, hosts []string) (map[string][]string, []error) {
	if g.clients.DNS == nil {
		return nil, []error{unavailable("dns", errors.New("no resolver configured"))}
	}

	answers := make(map[string][]string, len(hosts))
	var errs []error
	for _, host := range hosts {
		if strings.ContainsAny(host, "<>") {
			continue
		}
		ips, err := g.clients.DNS.LookupHost(ctx, host)
		if err != nil {
			g.logFailure("LookupHost", host, err)
			errs = append(errs, unavailable("dns "+host, fmt.Errorf("resolve %s: %w", host, err)))
			continue
		}
		sort.Strings(ips)
		answers[host] = ips
	}
	return answers, errs
}
