// Package pathcheck classifies whether traffic to a resolved S3 endpoint is
// expected to stay on a private network path, using evidence gathered
// elsewhere. Classification performs no I/O and every verdict carries the
// ordered reasons that produced it.
package pathcheck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/13rac1/s3path/internal/endpoint"
)

// DefaultPrivateHopThreshold is the largest hop count still read as private.
const DefaultPrivateHopThreshold = 3

// Signal is a structural fact that may not have been observed.
type Signal int

const (
	Unknown Signal = iota
	Present
	Absent
)

// SignalOf converts an observed boolean into a Signal.
func SignalOf(b bool) Signal {
	if b {
		return Present
	}
	return Absent
}

func (s Signal) String() string {
	switch s {
	case Present:
		return "yes"
	case Absent:
		return "no"
	default:
		return "unknown"
	}
}

// Evidence is gathered fresh for each diagnostic run and not modified once
// handed to Classify.
type Evidence struct {
	RouteTableHasEndpointRoute Signal
	VPCEndpointExists          Signal

	// DNSAnswers maps each hostname variant to the addresses it resolved to.
	DNSAnswers map[string][]string

	// HopCount is nil when no trace was taken.
	HopCount *int

	// PrefixListMatches maps each hostname variant to how many of its DNS
	// answers fall inside the service prefix list. Informational only.
	PrefixListMatches map[string]int

	// Unavailable lists the signals that could not be gathered and why.
	Unavailable []string
}

// Hops returns a pointer suitable for Evidence.HopCount.
func Hops(n int) *int {
	return &n
}

// Verdict is the classification outcome.
type Verdict int

const (
	Indeterminate Verdict = iota
	Private
	Public
)

func (v Verdict) String() string {
	switch v {
	case Private:
		return "private"
	case Public:
		return "public"
	default:
		return "indeterminate"
	}
}

// Confidence says whether a verdict rests on control-plane state or on a
// network heuristic.
type Confidence int

const (
	Heuristic Confidence = iota
	Definitive
)

func (c Confidence) String() string {
	if c == Definitive {
		return "definitive"
	}
	return "heuristic"
}

// Classification is a terminal verdict with its reasoning trail.
type Classification struct {
	Verdict    Verdict
	Confidence Confidence
	Reasons    []string
}

// Options configure a Classifier.
type Options struct {
	// PrivateHopThreshold is the largest hop count read as private.
	// Zero selects DefaultPrivateHopThreshold.
	PrivateHopThreshold int

	// TrustDeclaredMode prevents the hop-count heuristic from reporting a
	// private path for an endpoint whose mode declares it public.
	TrustDeclaredMode bool
}

// Classifier applies the decision table.
type Classifier struct {
	threshold         int
	trustDeclaredMode bool
}

// NewClassifier returns a Classifier for opts.
func NewClassifier(opts Options) *Classifier {
	c := &Classifier{
		threshold:         opts.PrivateHopThreshold,
		trustDeclaredMode: opts.TrustDeclaredMode,
	}
	if c.threshold <= 0 {
		c.threshold = DefaultPrivateHopThreshold
	}
	return c
}

// Classify classifies with default options.
func Classify(ev Evidence, resolved endpoint.Resolved) Classification {
	return NewClassifier(Options{}).Classify(ev, resolved)
}

type rule struct {
	name    string
	matches func() bool
	verdict Verdict
	conf    Confidence
}

// Classify evaluates the rules top to bottom. The first matching rule sets
// the verdict; every rule still records whether it matched.
func (c *Classifier) Classify(ev Evidence, resolved endpoint.Resolved) Classification {
	var out Classification
	out.Reasons = append(out.Reasons, fmt.Sprintf("endpoint %s (%s) declares %s path",
		resolved.Hostname, resolved.Mode, resolved.ExpectedPrivate))
	if resolved.LegacyGlobal {
		out.Reasons = append(out.Reasons, "endpoint uses the legacy global hostname; regional private routing is not guaranteed")
	}

	hopKnown := ev.HopCount != nil
	hops := 0
	if hopKnown {
		hops = *ev.HopCount
	}

	rules := []rule{
		{
			name: "endpoint declared private, route table carries endpoint route, endpoint exists",
			matches: func() bool {
				return resolved.ExpectedPrivate == endpoint.PrivacyPrivate &&
					ev.RouteTableHasEndpointRoute == Present &&
					ev.VPCEndpointExists == Present
			},
			verdict: Private,
			conf:    Definitive,
		},
		{
			name: "endpoint exists but is not wired to this route table",
			matches: func() bool {
				return ev.VPCEndpointExists == Present && ev.RouteTableHasEndpointRoute == Absent
			},
			verdict: Public,
			conf:    Heuristic,
		},
		{
			name: "no S3 VPC endpoint exists",
			matches: func() bool {
				return ev.VPCEndpointExists == Absent
			},
			verdict: Public,
			conf:    Definitive,
		},
		{
			name: fmt.Sprintf("hop count at most %d", c.threshold),
			matches: func() bool {
				return hopKnown && hops <= c.threshold
			},
			verdict: Private,
			conf:    Heuristic,
		},
		{
			name: fmt.Sprintf("hop count above %d", c.threshold),
			matches: func() bool {
				return hopKnown && hops > c.threshold
			},
			verdict: Public,
			conf:    Heuristic,
		},
	}

	decided := false
	for i, r := range rules {
		matched := r.matches()
		switch {
		case matched && !decided:
			decided = true
			out.Verdict, out.Confidence = r.verdict, r.conf
			out.Reasons = append(out.Reasons, fmt.Sprintf("rule %d matched: %s -> %s (%s)", i+1, r.name, r.verdict, r.conf))
		case matched:
			out.Reasons = append(out.Reasons, fmt.Sprintf("rule %d also matched: %s", i+1, r.name))
		default:
			out.Reasons = append(out.Reasons, fmt.Sprintf("rule %d not matched: %s", i+1, r.name))
		}
	}

	if !decided {
		out.Verdict, out.Confidence = Indeterminate, Heuristic
		out.Reasons = append(out.Reasons, "no rule matched: evidence is insufficient")
	}

	if out.Verdict == Private && out.Confidence == Heuristic && resolved.ExpectedPrivate == endpoint.PrivacyPublic {
		if c.trustDeclaredMode {
			out.Verdict = Public
			out.Reasons = append(out.Reasons, fmt.Sprintf("declared %s mode kept: hop count may not override it", resolved.Mode))
		} else {
			out.Reasons = append(out.Reasons, fmt.Sprintf("declared public mode %s overridden by hop count", resolved.Mode))
		}
	}

	out.Reasons = append(out.Reasons, describeSignals(ev)...)
	return out
}

// describeSignals renders the remaining evidence as informational reasons.
func describeSignals(ev Evidence) []string {
	var reasons []string
	reasons = append(reasons,
		fmt.Sprintf("route table endpoint route: %s", ev.RouteTableHasEndpointRoute),
		fmt.Sprintf("vpc endpoint exists: %s", ev.VPCEndpointExists),
	)
	if ev.HopCount != nil {
		reasons = append(reasons, fmt.Sprintf("hop count: %d", *ev.HopCount))
	} else {
		reasons = append(reasons, "hop count: unknown")
	}

	hosts := make([]string, 0, len(ev.DNSAnswers))
	for host := range ev.DNSAnswers {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	for _, host := range hosts {
		answers := ev.DNSAnswers[host]
		line := fmt.Sprintf("dns %s: %s", host, strings.Join(answers, ", "))
		if n, ok := ev.PrefixListMatches[host]; ok {
			line += fmt.Sprintf(" (%d/%d in service prefix list)", n, len(answers))
		}
		reasons = append(reasons, line)
	}

	for _, u := range ev.Unavailable {
		reasons = append(reasons, "evidence unavailable: "+u)
	}
	return reasons
}
