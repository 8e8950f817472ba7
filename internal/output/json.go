package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/evidence"
	"github.com/13rac1/s3path/internal/pathcheck"
)

// Resolution is one resolved profile as shown by the resolve command.
type Resolution struct {
	Profile         string `json:"profile"`
	Hostname        string `json:"hostname"`
	URL             string `json:"url"`
	Mode            string `json:"mode"`
	Region          string `json:"region,omitempty"`
	AddressingStyle string `json:"addressingStyle"`
	ExpectedPrivate string `json:"expectedPrivate"`
	LegacyGlobal    bool   `json:"legacyGlobal"`
}

// NewResolution converts a resolved endpoint for display.
func NewResolution(profile string, r endpoint.Resolved) Resolution {
	return Resolution{
		Profile:         profile,
		Hostname:        r.Hostname,
		URL:             r.URL(),
		Mode:            r.Mode.String(),
		Region:          r.Region,
		AddressingStyle: r.AddressingStyle.String(),
		ExpectedPrivate: r.ExpectedPrivate.String(),
		LegacyGlobal:    r.LegacyGlobal,
	}
}

// ResolveOutput is the JSON document printed by the resolve command.
type ResolveOutput struct {
	GeneratedAt string       `json:"generatedAt"`
	Profiles    []Resolution `json:"profiles"`
}

// VerifyOutput is the JSON document printed by the verify command.
type VerifyOutput struct {
	GeneratedAt  string                 `json:"generatedAt"`
	Bucket       string                 `json:"bucket"`
	InstanceID   string                 `json:"instanceId,omitempty"`
	Endpoint     Resolution             `json:"endpoint"`
	Signals      Signals                `json:"signals"`
	DNS          []HostAnswer           `json:"dns"`
	Connectivity *evidence.Connectivity `json:"connectivity,omitempty"`
	Verdict      string                 `json:"verdict"`
	Confidence   string                 `json:"confidence"`
	Reasons      []string               `json:"reasons"`
	Unavailable  []string               `json:"unavailable"`
}

// Signals are the structural classifier inputs.
type Signals struct {
	RouteTableHasEndpointRoute string `json:"routeTableHasEndpointRoute"`
	VPCEndpointExists          string `json:"vpcEndpointExists"`
	HopCount                   *int   `json:"hopCount"`
}

// HostAnswer is the DNS result for one hostname variant.
type HostAnswer struct {
	Host         string   `json:"host"`
	Addresses    []string `json:"addresses"`
	InPrefixList int      `json:"inPrefixList"`
	HopCount     *int     `json:"hopCount,omitempty"`
}

// NewVerifyOutput builds the verify document from a gathered report and its
// classification.
func NewVerifyOutput(profile string, report *evidence.Report, c pathcheck.Classification) VerifyOutput {
	ev := report.Evidence
	out := VerifyOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Bucket:      report.Request.Bucket,
		InstanceID:  report.Request.InstanceID,
		Endpoint:    NewResolution(profile, report.Resolved()),
		Signals: Signals{
			RouteTableHasEndpointRoute: ev.RouteTableHasEndpointRoute.String(),
			VPCEndpointExists:          ev.VPCEndpointExists.String(),
			HopCount:                   ev.HopCount,
		},
		DNS:          HostAnswers(report),
		Connectivity: report.Connectivity,
		Verdict:      c.Verdict.String(),
		Confidence:   c.Confidence.String(),
		Reasons:      c.Reasons,
		Unavailable:  ev.Unavailable,
	}
	if out.Unavailable == nil {
		out.Unavailable = make([]string, 0)
	}
	return out
}

// HostAnswers lists the DNS answers of a report sorted by hostname.
func HostAnswers(report *evidence.Report) []HostAnswer {
	answers := make([]HostAnswer, 0, len(report.DNS))
	for host, ips := range report.DNS {
		a := HostAnswer{
			Host:         host,
			Addresses:    ips,
			InPrefixList: report.Evidence.PrefixListMatches[host],
		}
		if t, ok := report.Traces[host]; ok {
			a.HopCount = pathcheck.Hops(t.Hops)
		}
		answers = append(answers, a)
	}
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].Host < answers[j].Host
	})
	return answers
}

// PrintJSON formats v as indented JSON on stdout.
func PrintJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

// PrintResolveJSON prints resolutions as a ResolveOutput document.
func PrintResolveJSON(rows []Resolution) error {
	if rows == nil {
		rows = make([]Resolution, 0)
	}
	return PrintJSON(ResolveOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Profiles:    rows,
	})
}
