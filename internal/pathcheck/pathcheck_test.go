package pathcheck

import (
	"strings"
	"testing"

	"github.com/13rac1/s3path/internal/endpoint"
)

func mustResolve(t *testing.T, cfg endpoint.Config) endpoint.Resolved {
	t.Helper()
	res, err := endpoint.Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve(%+v) unexpected error: %v", cfg, err)
	}
	return res
}

func TestClassify(t *testing.T) {
	privateLink := mustResolve(t, endpoint.Config{Mode: endpoint.ModeInterfacePrivateLink, Region: "us-east-1", PrivateLinkID: "abc"})
	accelerated := mustResolve(t, endpoint.Config{Mode: endpoint.ModeAccelerated})
	regional := mustResolve(t, endpoint.Config{Region: "us-east-1"})

	tests := []struct {
		name     string
		evidence Evidence
		resolved endpoint.Resolved
		wantV    Verdict
		wantC    Confidence
	}{
		{
			name:     "declared private with route and endpoint",
			evidence: Evidence{RouteTableHasEndpointRoute: Present, VPCEndpointExists: Present},
			resolved: privateLink,
			wantV:    Private,
			wantC:    Definitive,
		},
		{
			name:     "endpoint exists without route",
			evidence: Evidence{RouteTableHasEndpointRoute: Absent, VPCEndpointExists: Present, HopCount: Hops(1)},
			resolved: privateLink,
			wantV:    Public,
			wantC:    Heuristic,
		},
		{
			name:     "no endpoint",
			evidence: Evidence{RouteTableHasEndpointRoute: Present, VPCEndpointExists: Absent, HopCount: Hops(1)},
			resolved: privateLink,
			wantV:    Public,
			wantC:    Definitive,
		},
		{
			name:     "accelerated with structural evidence falls to hop count",
			evidence: Evidence{RouteTableHasEndpointRoute: Present, VPCEndpointExists: Present, HopCount: Hops(2)},
			resolved: accelerated,
			wantV:    Private,
			wantC:    Heuristic,
		},
		{
			name:     "many hops",
			evidence: Evidence{RouteTableHasEndpointRoute: Present, VPCEndpointExists: Present, HopCount: Hops(9)},
			resolved: regional,
			wantV:    Public,
			wantC:    Heuristic,
		},
		{
			name:     "threshold is inclusive",
			evidence: Evidence{HopCount: Hops(3)},
			resolved: regional,
			wantV:    Private,
			wantC:    Heuristic,
		},
		{
			name:     "nothing known",
			evidence: Evidence{},
			resolved: regional,
			wantV:    Indeterminate,
			wantC:    Heuristic,
		},
		{
			name:     "route unknown, endpoint present, no trace",
			evidence: Evidence{VPCEndpointExists: Present},
			resolved: regional,
			wantV:    Indeterminate,
			wantC:    Heuristic,
		},
		{
			name:     "gateway-refined regional endpoint",
			evidence: Evidence{RouteTableHasEndpointRoute: Present, VPCEndpointExists: Present},
			resolved: regional.WithGatewayRoute(true),
			wantV:    Private,
			wantC:    Definitive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.evidence, tt.resolved)
			if got.Verdict != tt.wantV {
				t.Errorf("Verdict = %v, want %v\nreasons:\n%s", got.Verdict, tt.wantV, strings.Join(got.Reasons, "\n"))
			}
			if got.Confidence != tt.wantC {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantC)
			}
		})
	}
}

func TestClassifyNoEndpointIsAlwaysPublicDefinitive(t *testing.T) {
	resolutions := []endpoint.Resolved{
		mustResolve(t, endpoint.Config{Region: "us-east-1"}),
		mustResolve(t, endpoint.Config{}),
		mustResolve(t, endpoint.Config{Mode: endpoint.ModeAccelerated}),
		mustResolve(t, endpoint.Config{Mode: endpoint.ModeMultiRegionAccessPoint, AccessPointAlias: "a.mrap"}),
		mustResolve(t, endpoint.Config{Mode: endpoint.ModeInterfacePrivateLink, Region: "us-east-1", PrivateLinkID: "abc"}),
	}
	routes := []Signal{Unknown, Present, Absent}
	hops := []*int{nil, Hops(0), Hops(3), Hops(30)}

	for _, res := range resolutions {
		for _, route := range routes {
			for _, h := range hops {
				ev := Evidence{
					RouteTableHasEndpointRoute: route,
					VPCEndpointExists:          Absent,
					HopCount:                   h,
					Unavailable:                []string{"trace: timed out"},
				}
				got := Classify(ev, res)
				if got.Verdict != Public || got.Confidence != Definitive {
					t.Errorf("Classify(route=%v, hops=%v, %s) = %v/%v, want public/definitive",
						route, h, res.Mode, got.Verdict, got.Confidence)
				}
			}
		}
	}
}

func TestClassifyEndpointWithoutRouteIsPublicHeuristic(t *testing.T) {
	for _, res := range []endpoint.Resolved{
		mustResolve(t, endpoint.Config{Region: "us-east-1"}),
		mustResolve(t, endpoint.Config{Mode: endpoint.ModeInterfacePrivateLink, Region: "us-east-1", PrivateLinkID: "abc"}),
	} {
		for _, h := range []*int{nil, Hops(1), Hops(12)} {
			got := Classify(Evidence{VPCEndpointExists: Present, RouteTableHasEndpointRoute: Absent, HopCount: h}, res)
			if got.Verdict != Public || got.Confidence != Heuristic {
				t.Errorf("Classify() = %v/%v, want public/heuristic", got.Verdict, got.Confidence)
			}
		}
	}
}

func TestClassifyTrustDeclaredMode(t *testing.T) {
	accelerated := mustResolve(t, endpoint.Config{Mode: endpoint.ModeAccelerated})
	ev := Evidence{RouteTableHasEndpointRoute: Present, VPCEndpointExists: Present, HopCount: Hops(2)}

	lenient := NewClassifier(Options{}).Classify(ev, accelerated)
	if lenient.Verdict != Private {
		t.Errorf("default policy Verdict = %v, want private", lenient.Verdict)
	}
	if !containsReason(lenient.Reasons, "overridden by hop count") {
		t.Errorf("default policy should flag the override, reasons: %v", lenient.Reasons)
	}

	strict := NewClassifier(Options{TrustDeclaredMode: true}).Classify(ev, accelerated)
	if strict.Verdict != Public || strict.Confidence != Heuristic {
		t.Errorf("strict policy = %v/%v, want public/heuristic", strict.Verdict, strict.Confidence)
	}
}

func TestClassifyCustomThreshold(t *testing.T) {
	regional := mustResolve(t, endpoint.Config{Region: "us-east-1"})
	c := NewClassifier(Options{PrivateHopThreshold: 1})
	if got := c.Classify(Evidence{HopCount: Hops(2)}, regional); got.Verdict != Public {
		t.Errorf("Verdict = %v, want public", got.Verdict)
	}
}

func TestClassifyReasonsAreAuditable(t *testing.T) {
	global := mustResolve(t, endpoint.Config{})
	ev := Evidence{
		RouteTableHasEndpointRoute: Present,
		VPCEndpointExists:          Present,
		HopCount:                   Hops(2),
		DNSAnswers: map[string][]string{
			"b.s3.us-east-1.amazonaws.com": {"52.216.0.1"},
			"b.s3.amazonaws.com":           {"3.5.0.1", "3.5.0.2"},
		},
		PrefixListMatches: map[string]int{"b.s3.amazonaws.com": 1},
		Unavailable:       []string{"prefix list: access denied"},
	}
	got := Classify(ev, global)

	for _, want := range []string{
		"legacy global hostname",
		"rule 1 not matched",
		"rule 2 not matched",
		"rule 3 not matched",
		"rule 4 matched",
		"rule 5 not matched",
		"dns b.s3.amazonaws.com: 3.5.0.1, 3.5.0.2 (1/2 in service prefix list)",
		"evidence unavailable: prefix list: access denied",
	} {
		if !containsReason(got.Reasons, want) {
			t.Errorf("reasons missing %q:\n%s", want, strings.Join(got.Reasons, "\n"))
		}
	}

	// Sorted hostnames keep output stable between runs.
	var dnsLines []string
	for _, r := range got.Reasons {
		if strings.HasPrefix(r, "dns ") {
			dnsLines = append(dnsLines, r)
		}
	}
	if len(dnsLines) != 2 || !strings.HasPrefix(dnsLines[0], "dns b.s3.amazonaws.com") {
		t.Errorf("dns reasons not sorted: %v", dnsLines)
	}
}

func containsReason(reasons []string, substr string) bool {
	for _, r := range reasons {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}
