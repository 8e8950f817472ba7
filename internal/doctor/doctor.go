package doctor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/13rac1/s3path/internal/config"
	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/evidence"
	"github.com/13rac1/s3path/internal/output"
	"github.com/13rac1/s3path/internal/pathcheck"
	"github.com/13rac1/s3path/internal/types"
)

const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorReset  = "\033[0m"
)

func checkmark() string {
	return colorGreen + "✓" + colorReset
}

func warnmark() string {
	return colorYellow + "!" + colorReset
}

func crossmark() string {
	return colorRed + "✗" + colorReset
}

// RunChecks performs the configuration and profile checks and returns whether
// all passed.
func RunChecks(cfg *types.Config, configPath string) bool {
	fmt.Println("s3path doctor - Configuration and endpoint check")
	fmt.Println()

	allPassed := true

	fmt.Println("Configuration:")
	fmt.Printf("  %s Config file loaded: %s\n", checkmark(), configPath)
	fmt.Printf("  %s Default region: %s\n", checkmark(), cfg.AWS.Region)

	switch {
	case cfg.Auth.AccessKeyID != "":
		fmt.Printf("  %s Credentials: static keys from config\n", checkmark())
	case cfg.Auth.Profile != "":
		fmt.Printf("  %s Credentials: shared profile %q\n", checkmark(), cfg.Auth.Profile)
	default:
		fmt.Printf("  %s Credentials: default provider chain\n", checkmark())
	}

	account := cfg.AWS.AccountID
	if hasMode(cfg, endpoint.ModeMultiRegionAccessPoint) && (account == "" || account == "YOUR-ACCOUNT-ID") {
		fmt.Printf("  %s Account ID not configured (required for multi-region access points)\n", crossmark())
		fmt.Printf("    → Edit %s and set aws.account_id\n", configPath)
		allPassed = false
	}

	fmt.Println()

	fmt.Println("Profiles:")
	resolver := config.NewResolver(cfg, "")
	for _, name := range config.ProfileNames(cfg) {
		if !checkProfile(resolver, name, cfg.Profiles[name]) {
			allPassed = false
		}
	}

	fmt.Println()
	printSummary(allPassed)
	return allPassed
}

// checkProfile prints the resolution of one profile. Legacy global hostnames
// fail the check because they never take the regional private route.
func checkProfile(resolver *endpoint.Resolver, name string, p types.ProfileConfig) bool {
	ec, err := config.EndpointConfig(p)
	if err != nil {
		fmt.Printf("  %s %s: %v\n", crossmark(), name, err)
		return false
	}
	res, err := resolver.Resolve(ec)
	if err != nil {
		fmt.Printf("  %s %s: %v\n", crossmark(), name, err)
		return false
	}

	if p.Bucket == "YOUR-BUCKET-NAME" {
		fmt.Printf("  %s %s: bucket not configured (still set to placeholder)\n", crossmark(), name)
		fmt.Printf("    → Set profiles.%s.bucket\n", name)
		return false
	}

	switch {
	case res.LegacyGlobal:
		fmt.Printf("  %s %s: %s (legacy global hostname)\n", crossmark(), name, res.Hostname)
		fmt.Printf("    → Set profiles.%s.region so requests use the regional endpoint\n", name)
		return false
	case res.ExpectedPrivate == endpoint.PrivacyPublic:
		fmt.Printf("  %s %s: %s (%s, public path)\n", warnmark(), name, res.Hostname, res.Mode)
	default:
		fmt.Printf("  %s %s: %s (%s)\n", checkmark(), name, res.Hostname, res.Mode)
	}
	return true
}

func hasMode(cfg *types.Config, mode endpoint.Mode) bool {
	for _, p := range cfg.Profiles {
		if m, err := endpoint.ParseMode(p.Mode); err == nil && m == mode {
			return true
		}
	}
	return false
}

func printSummary(allPassed bool) {
	if allPassed {
		fmt.Println("All checks passed! Ready to use s3path.")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}
}

// PrintReport prints a gathered verification report section by section,
// followed by the classification and recommendations.
func PrintReport(report *evidence.Report, c pathcheck.Classification) {
	req := report.Request
	fmt.Printf("s3path verify - %s", req.Bucket)
	if req.Region != "" {
		fmt.Printf(" (%s)", req.Region)
	}
	fmt.Println()
	fmt.Println()

	printInstance(report)
	printEndpoints(report)
	printPrefixList(report)
	printDNS(report)
	printTraces(report)
	printConnectivity(report)

	if len(report.Evidence.Unavailable) > 0 {
		fmt.Println("Unavailable signals:")
		for _, s := range report.Evidence.Unavailable {
			fmt.Printf("  %s %s\n", warnmark(), s)
		}
		fmt.Println()
	}

	output.PrintClassification(c)
	fmt.Println()

	headline, steps := Summary(report.Evidence)
	fmt.Println(headline)
	for i, s := range steps {
		fmt.Printf("  %d. %s\n", i+1, s)
	}
	fmt.Println()
	fmt.Println("Definitive proof requires VPC Flow Logs: send a request, then check that the")
	fmt.Println("destination addresses in the flow log fall inside the S3 prefix list.")
}

func printInstance(report *evidence.Report) {
	fmt.Println("Instance:")
	inst := report.Instance
	if inst == nil {
		fmt.Printf("  %s Instance unknown, route table not checked\n", crossmark())
		fmt.Println("    → Pass --instance-id or run on an EC2 instance")
		fmt.Println()
		return
	}
	fmt.Printf("  %s %s in %s (%s)\n", checkmark(), inst.ID, inst.SubnetID, inst.VPCID)

	rt := report.RouteTable
	switch {
	case rt == nil:
		fmt.Printf("  %s Route table unknown\n", crossmark())
	case len(rt.EndpointRoutes) == 0:
		fmt.Printf("  %s Route table %s%s has no VPC endpoint routes\n", crossmark(), rt.ID, mainSuffix(rt.Main))
	default:
		fmt.Printf("  %s Route table %s%s\n", checkmark(), rt.ID, mainSuffix(rt.Main))
		for _, r := range rt.EndpointRoutes {
			fmt.Printf("    %s → %s\n", r.Destination, r.Gateway)
		}
	}
	fmt.Println()
}

func mainSuffix(main bool) string {
	if main {
		return " (main)"
	}
	return ""
}

func printEndpoints(report *evidence.Report) {
	fmt.Println("VPC endpoints:")
	switch {
	case report.Endpoints == nil:
		fmt.Printf("  %s VPC endpoints unknown\n", crossmark())
	case len(report.Endpoints) == 0:
		fmt.Printf("  %s No S3 VPC endpoint found\n", crossmark())
	default:
		for _, e := range report.Endpoints {
			fmt.Printf("  %s %s (%s, %s) in %s\n", checkmark(), e.ID, e.Type, e.State, e.VPCID)
			if len(e.RouteTableIDs) > 0 {
				fmt.Printf("    route tables: %s\n", strings.Join(e.RouteTableIDs, ", "))
			}
		}
	}
	fmt.Println()
}

func printPrefixList(report *evidence.Report) {
	fmt.Println("Prefix list:")
	if pl := report.PrefixList; pl != nil {
		fmt.Printf("  %s %s (%s), %d CIDR blocks\n", checkmark(), pl.Name, pl.ID, len(pl.CIDRs))
	} else {
		fmt.Printf("  %s S3 prefix list unknown\n", crossmark())
	}
	fmt.Println()
}

func printDNS(report *evidence.Report) {
	fmt.Println("DNS:")
	answers := output.HostAnswers(report)
	if len(answers) == 0 {
		fmt.Printf("  %s No hostnames resolved\n", crossmark())
	}
	for _, a := range answers {
		fmt.Printf("  %s %s → %s", checkmark(), a.Host, strings.Join(a.Addresses, ", "))
		if report.PrefixList != nil {
			fmt.Printf(" (%d/%d in prefix list)", a.InPrefixList, len(a.Addresses))
		}
		fmt.Println()
	}
	fmt.Println()
}

func printTraces(report *evidence.Report) {
	if len(report.Traces) == 0 {
		return
	}
	fmt.Println("Trace:")
	hosts := make([]string, 0, len(report.Traces))
	for h := range report.Traces {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	for _, h := range hosts {
		t := report.Traces[h]
		fmt.Printf("  %s %s: %d hops\n", checkmark(), t.Host, t.Hops)
	}
	fmt.Println()
}

func printConnectivity(report *evidence.Report) {
	fmt.Println("Connectivity:")
	c := report.Connectivity
	switch {
	case c == nil:
		fmt.Printf("  %s Not probed\n", crossmark())
	case c.Reachable:
		fmt.Printf("  %s HeadBucket %s succeeded in %s", checkmark(), c.BucketRef, c.Latency.Round(time.Millisecond))
		if endpoint.IsAccessPointARN(c.BucketRef) {
			fmt.Print(" via multi-region access point")
		}
		if c.RequestID != "" {
			fmt.Printf(" (request %s)", c.RequestID)
		}
		fmt.Println()
	default:
		fmt.Printf("  %s HeadBucket %s failed: %s\n", crossmark(), c.BucketRef, c.Error)
	}
	fmt.Println()
}

// Summary returns a headline and remediation steps for the structural
// signals in ev.
func Summary(ev pathcheck.Evidence) (string, []string) {
	route := ev.RouteTableHasEndpointRoute
	vpce := ev.VPCEndpointExists

	switch {
	case route == pathcheck.Present && vpce == pathcheck.Present:
		return "VPC endpoint is configured and active: S3 traffic from this subnet stays on the private network.", nil
	case vpce == pathcheck.Present:
		return "VPC endpoint exists but is not in this subnet's route table.", []string{
			"Associate the gateway endpoint with the subnet's route table",
			"Check that the instance runs in the intended subnet and VPC",
		}
	case vpce == pathcheck.Absent:
		return "No VPC endpoint found: S3 traffic leaves through the internet or NAT gateway.", []string{
			"Create a gateway VPC endpoint for S3",
			"Associate it with the route tables of the subnets that reach S3",
		}
	default:
		return "VPC endpoint presence could not be determined.", []string{
			"Grant ec2:DescribeVpcEndpoints and ec2:DescribeRouteTables to the credentials in use",
		}
	}
}
