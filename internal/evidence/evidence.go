// Package evidence gathers the network signals the path classifier consumes:
// route tables, VPC endpoints and prefix lists from the EC2 API, DNS answers,
// a hop count from the system trace utility, and a connectivity probe.
//
// Gathering never aborts on a failed signal. The signal is left unknown and
// the failure is recorded as ErrEvidenceUnavailable in Report.Problems.
package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/pathcheck"
)

// ErrEvidenceUnavailable marks a signal that could not be gathered.
var ErrEvidenceUnavailable = errors.New("evidence unavailable")

// UnavailableError records why one signal is missing.
type UnavailableError struct {
	Signal string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Signal, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrEvidenceUnavailable) true for every UnavailableError.
func (e *UnavailableError) Is(target error) bool { return target == ErrEvidenceUnavailable }

func unavailable(signal string, err error) error {
	return &UnavailableError{Signal: signal, Err: err}
}

// Request describes what to gather evidence about.
type Request struct {
	// Bucket is the plain bucket name used to build hostname variants.
	Bucket string

	// BucketRef is what the connectivity probe addresses; an access point
	// ARN for multi-region access points. Defaults to Bucket.
	BucketRef string

	// InstanceID is the compute instance whose route table is inspected.
	// Empty means discover it from instance metadata.
	InstanceID string

	// Region scopes EC2 lookups and regional hostname variants.
	Region string

	// ServiceDomain overrides the partition domain for hostname variants.
	ServiceDomain string

	Resolved endpoint.Resolved
}

// Clients are the external collaborators. Nil clients skip their signals.
type Clients struct {
	EC2      EC2API
	Metadata MetadataAPI
	Bucket   BucketAPI
	DNS      HostResolver
	Tracer   Tracer
}

// Gatherer collects evidence for a Request.
type Gatherer struct {
	clients Clients
	log     logrus.FieldLogger
}

// NewGatherer returns a Gatherer using clients.
func NewGatherer(clients Clients, log logrus.FieldLogger) *Gatherer {
	return &Gatherer{clients: clients, log: log}
}

// Report holds everything gathered in one run along with the assembled
// classifier input.
type Report struct {
	Request      Request
	Instance     *Instance
	RouteTable   *RouteTable
	Endpoints    []VPCEndpoint
	PrefixList   *PrefixList
	DNS          map[string][]string
	Traces       map[string]Trace
	Connectivity *Connectivity

	Evidence pathcheck.Evidence

	// Problems is nil or a *multierror.Error of *UnavailableError.
	Problems error
}

// Hostnames returns the hostname variants checked for req: the legacy
// global form, the regional form and the profile's own hostname.
func Hostnames(req Request) []string {
	domain := req.ServiceDomain
	if domain == "" {
		domain = endpoint.DomainForRegion(req.Region)
	}

	bucket := req.Bucket
	if bucket == "" {
		bucket = req.Resolved.Placeholder
	}

	var hosts []string
	add := func(h string) {
		for _, existing := range hosts {
			if existing == h {
				return
			}
		}
		hosts = append(hosts, h)
	}

	if bucket != "" {
		add(fmt.Sprintf("%s.s3.%s", bucket, domain))
		if req.Region != "" {
			add(fmt.Sprintf("%s.s3.%s.%s", bucket, req.Region, domain))
		}
	}
	add(profileHost(req))
	return hosts
}

// profileHost is the hostname requests through the profile actually use.
func profileHost(req Request) string {
	if req.Resolved.Mode == endpoint.ModeInterfacePrivateLink {
		return req.Resolved.HostFor(endpoint.PrivateLinkBucketLabel)
	}
	return req.Resolved.HostFor(req.Bucket)
}

// Gather collects every available signal. It only returns an error when ctx
// is done; individual failures end up in Report.Problems.
func (g *Gatherer) Gather(ctx context.Context, req Request) (*Report, error) {
	if req.BucketRef == "" {
		req.BucketRef = req.Bucket
	}

	report := &Report{Request: req}
	var problems *multierror.Error

	instance, err := g.instance(ctx, &req)
	if err != nil {
		problems = multierror.Append(problems, err)
	}
	report.Instance = instance
	report.Request = req

	hosts := Hostnames(req)

	var (
		routeErr, endpointsErr, prefixErr, connErr error
		dnsErrs, traceErrs                         []error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		report.RouteTable, routeErr = g.routeTable(egCtx, instance)
		return nil
	})
	eg.Go(func() error {
		report.Endpoints, endpointsErr = g.vpcEndpoints(egCtx, req.Region, instance)
		return nil
	})
	eg.Go(func() error {
		report.PrefixList, prefixErr = g.prefixList(egCtx, req.Region)
		return nil
	})
	eg.Go(func() error {
		report.DNS, dnsErrs = g.resolveHosts(egCtx, hosts)
		return nil
	})
	eg.Go(func() error {
		report.Traces, traceErrs = g.traceHosts(egCtx, hosts)
		return nil
	})
	eg.Go(func() error {
		report.Connectivity, connErr = g.probe(egCtx, req.BucketRef)
		return nil
	})
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, err := range []error{routeErr, endpointsErr, prefixErr, connErr} {
		if err != nil {
			problems = multierror.Append(problems, err)
		}
	}
	problems = multierror.Append(problems, dnsErrs...)
	problems = multierror.Append(problems, traceErrs...)

	report.Problems = problems.ErrorOrNil()
	report.Evidence = assemble(report, profileHost(req))
	return report, nil
}

// Resolved returns the request's resolution refined by the gathered route
// table signal.
func (r *Report) Resolved() endpoint.Resolved {
	return r.Request.Resolved.WithGatewayRoute(r.Evidence.RouteTableHasEndpointRoute == pathcheck.Present)
}

// Classify runs c over the gathered evidence.
func (r *Report) Classify(c *pathcheck.Classifier) pathcheck.Classification {
	return c.Classify(r.Evidence, r.Resolved())
}

// assemble builds the classifier input from a report.
func assemble(r *Report, host string) pathcheck.Evidence {
	ev := pathcheck.Evidence{
		DNSAnswers: r.DNS,
	}

	if r.RouteTable != nil {
		ev.RouteTableHasEndpointRoute = pathcheck.SignalOf(len(r.RouteTable.EndpointRoutes) > 0)
	}
	if r.Request.Resolved.Mode == endpoint.ModeInterfacePrivateLink && ev.RouteTableHasEndpointRoute != pathcheck.Present {
		// Interface endpoints are wired through network interfaces in the VPC
		// rather than route table entries.
		if ep, ok := matchInterfaceEndpoint(r.Endpoints, r.Request.Resolved); ok && r.Instance != nil && ep.VPCID == r.Instance.VPCID {
			ev.RouteTableHasEndpointRoute = pathcheck.Present
		}
	}

	if r.Endpoints != nil {
		ev.VPCEndpointExists = pathcheck.SignalOf(len(r.Endpoints) > 0)
	}

	if t, ok := r.Traces[host]; ok {
		ev.HopCount = pathcheck.Hops(t.Hops)
	}

	if r.PrefixList != nil && len(r.DNS) > 0 {
		ev.PrefixListMatches = r.PrefixList.Matches(r.DNS)
	}

	if merr, ok := r.Problems.(*multierror.Error); ok {
		for _, err := range merr.Errors {
			ev.Unavailable = append(ev.Unavailable, err.Error())
		}
	}
	return ev
}
