package evidence

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/gaissmai/bart"

	"github.com/13rac1/s3path/internal/endpoint"
)

// EC2API is the subset of the EC2 client used for network evidence.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeRouteTables(ctx context.Context, params *ec2.DescribeRouteTablesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error)
	DescribeVpcEndpoints(ctx context.Context, params *ec2.DescribeVpcEndpointsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error)
	DescribePrefixLists(ctx context.Context, params *ec2.DescribePrefixListsInput, optFns ...func(*ec2.Options)) (*ec2.DescribePrefixListsOutput, error)
}

var errNoEC2 = errors.New("no EC2 client configured")

// Instance locates the compute instance in its network.
type Instance struct {
	ID       string
	SubnetID string
	VPCID    string
}

// Route is a route table entry that targets a VPC endpoint.
type Route struct {
	Destination string
	Gateway     string
}

// RouteTable is the table governing the instance's subnet.
type RouteTable struct {
	ID             string
	Main           bool
	EndpointRoutes []Route
}

// VPCEndpoint is an S3 endpoint found in the account.
type VPCEndpoint struct {
	ID            string
	Type          string
	State         string
	VPCID         string
	RouteTableIDs []string
	DNSNames      []string
}

// PrefixList is the managed list of service address ranges.
type PrefixList struct {
	ID    string
	Name  string
	CIDRs []string

	table *bart.Table[string]
}

// ServiceName returns the VPC endpoint service name for S3 in region.
func ServiceName(region string) string {
	if endpoint.PartitionForRegion(region) == "aws-cn" {
		return fmt.Sprintf("cn.com.amazonaws.%s.s3", region)
	}
	return fmt.Sprintf("com.amazonaws.%s.s3", region)
}

func filter(name string, values ...string) ec2types.Filter {
	return ec2types.Filter{Name: aws.String(name), Values: values}
}

// describeInstance looks up the subnet and VPC of id.
func (g *Gatherer) describeInstance(ctx context.Context, id string) (*Instance, error) {
	if g.clients.EC2 == nil {
		return nil, unavailable("instance", errNoEC2)
	}

	out, err := g.clients.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		g.logFailure("DescribeInstances", id, err)
		return nil, unavailable("instance", fmt.Errorf("describe instance %s: %w", id, err))
	}

	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			return &Instance{
				ID:       aws.ToString(inst.InstanceId),
				SubnetID: aws.ToString(inst.SubnetId),
				VPCID:    aws.ToString(inst.VpcId),
			}, nil
		}
	}
	return nil, unavailable("instance", fmt.Errorf("instance %s not found", id))
}

// routeTable finds the subnet's route table, falling back to the VPC main
// table when the subnet has no explicit association.
func (g *Gatherer) routeTable(ctx context.Context, inst *Instance) (*RouteTable, error) {
	if inst == nil {
		return nil, unavailable("route table", errors.New("no instance to inspect"))
	}
	if g.clients.EC2 == nil {
		return nil, unavailable("route table", errNoEC2)
	}

	out, err := g.clients.EC2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{filter("association.subnet-id", inst.SubnetID)},
	})
	if err != nil {
		g.logFailure("DescribeRouteTables", inst.SubnetID, err)
		return nil, unavailable("route table", fmt.Errorf("describe route tables for subnet %s: %w", inst.SubnetID, err))
	}

	main := false
	if len(out.RouteTables) == 0 {
		out, err = g.clients.EC2.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
			Filters: []ec2types.Filter{
				filter("vpc-id", inst.VPCID),
				filter("association.main", "true"),
			},
		})
		if err != nil {
			g.logFailure("DescribeRouteTables", inst.VPCID, err)
			return nil, unavailable("route table", fmt.Errorf("describe main route table for %s: %w", inst.VPCID, err))
		}
		main = true
	}

	if len(out.RouteTables) == 0 {
		return nil, unavailable("route table", fmt.Errorf("no route table found for subnet %s", inst.SubnetID))
	}

	rt := out.RouteTables[0]
	table := &RouteTable{ID: aws.ToString(rt.RouteTableId), Main: main}
	for _, r := range rt.Routes {
		gw := aws.ToString(r.GatewayId)
		if !strings.HasPrefix(gw, "vpce-") {
			continue
		}
		dest := aws.ToString(r.DestinationPrefixListId)
		if dest == "" {
			dest = aws.ToString(r.DestinationCidrBlock)
		}
		table.EndpointRoutes = append(table.EndpointRoutes, Route{Destination: dest, Gateway: gw})
	}
	return table, nil
}

// vpcEndpoints lists S3 endpoints in region, scoped to the instance VPC when
// it is known. A nil slice means the lookup failed; an empty one means none.
func (g *Gatherer) vpcEndpoints(ctx context.Context, region string, inst *Instance) ([]VPCEndpoint, error) {
	if g.clients.EC2 == nil {
		return nil, unavailable("vpc endpoints", errNoEC2)
	}

	filters := []ec2types.Filter{filter("service-name", ServiceName(region))}
	if inst != nil && inst.VPCID != "" {
		filters = append(filters, filter("vpc-id", inst.VPCID))
	}

	out, err := g.clients.EC2.DescribeVpcEndpoints(ctx, &ec2.DescribeVpcEndpointsInput{Filters: filters})
	if err != nil {
		g.logFailure("DescribeVpcEndpoints", ServiceName(region), err)
		return nil, unavailable("vpc endpoints", fmt.Errorf("describe vpc endpoints for %s: %w", ServiceName(region), err))
	}

	endpoints := make([]VPCEndpoint, 0, len(out.VpcEndpoints))
	for _, ep := range out.VpcEndpoints {
		v := VPCEndpoint{
			ID:            aws.ToString(ep.VpcEndpointId),
			Type:          string(ep.VpcEndpointType),
			State:         string(ep.State),
			VPCID:         aws.ToString(ep.VpcId),
			RouteTableIDs: ep.RouteTableIds,
		}
		if v.Type == "" {
			v.Type = string(ec2types.VpcEndpointTypeGateway)
		}
		for _, d := range ep.DnsEntries {
			if name := aws.ToString(d.DnsName); name != "" {
				v.DNSNames = append(v.DNSNames, name)
			}
		}
		endpoints = append(endpoints, v)
	}
	return endpoints, nil
}

// matchInterfaceEndpoint finds the interface endpoint a private link
// resolution points at.
func matchInterfaceEndpoint(endpoints []VPCEndpoint, res endpoint.Resolved) (VPCEndpoint, bool) {
	label := strings.SplitN(res.ServiceHost(), ".", 2)[0]
	for _, ep := range endpoints {
		if ep.Type != string(ec2types.VpcEndpointTypeInterface) {
			continue
		}
		if ep.ID != "" && strings.HasPrefix(label, ep.ID) {
			return ep, true
		}
		for _, name := range ep.DNSNames {
			if strings.HasPrefix(strings.TrimPrefix(name, "*."), label+".") {
				return ep, true
			}
		}
	}
	return VPCEndpoint{}, false
}

// prefixList fetches the service prefix list for region.
func (g *Gatherer) prefixList(ctx context.Context, region string) (*PrefixList, error) {
	if g.clients.EC2 == nil {
		return nil, unavailable("prefix list", errNoEC2)
	}

	name := ServiceName(region)
	out, err := g.clients.EC2.DescribePrefixLists(ctx, &ec2.DescribePrefixListsInput{
		Filters: []ec2types.Filter{filter("prefix-list-name", name)},
	})
	if err != nil {
		g.logFailure("DescribePrefixLists", name, err)
		return nil, unavailable("prefix list", fmt.Errorf("describe prefix list %s: %w", name, err))
	}
	if len(out.PrefixLists) == 0 {
		return nil, unavailable("prefix list", fmt.Errorf("prefix list %s not found", name))
	}

	pl := out.PrefixLists[0]
	return NewPrefixList(aws.ToString(pl.PrefixListId), aws.ToString(pl.PrefixListName), pl.Cidrs), nil
}

// NewPrefixList indexes cidrs for address lookups. Unparseable entries are
// kept in CIDRs but not indexed.
func NewPrefixList(id, name string, cidrs []string) *PrefixList {
	pl := &PrefixList{ID: id, Name: name, CIDRs: cidrs, table: &bart.Table[string]{}}
	for _, c := range cidrs {
		pfx, err := netip.ParsePrefix(c)
		if err != nil {
			continue
		}
		pl.table.Insert(pfx.Masked(), c)
	}
	return pl
}

// Contains reports whether addr falls inside the prefix list.
func (p *PrefixList) Contains(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil || p.table == nil {
		return false
	}
	_, ok := p.table.Lookup(ip)
	return ok
}

// Matches counts, per hostname, the answers inside the prefix list.
func (p *PrefixList) Matches(answers map[string][]string) map[string]int {
	out := make(map[string]int, len(answers))
	for host, ips := range answers {
		n := 0
		for _, ip := range ips {
			if p.Contains(ip) {
				n++
			}
		}
		out[host] = n
	}
	return out
}
