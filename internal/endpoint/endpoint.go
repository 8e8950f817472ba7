// Package endpoint derives the hostname a storage client will address from a
// declarative description of how the caller wants to reach S3.
// Resolution is pure: no network calls, no shared state.
package endpoint

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidConfiguration is returned when a Config violates the per-mode rules.
var ErrInvalidConfiguration = errors.New("invalid endpoint configuration")

const (
	defaultServiceDomain     = "amazonaws.com"
	chinaServiceDomain       = "amazonaws.com.cn"
	defaultBucketPlaceholder = "<bucket>"

	// PrivateLinkBucketLabel is the literal first label interface endpoints expect
	// in front of the vpce-specific DNS name.
	PrivateLinkBucketLabel = "bucket"
)

// Mode selects how the storage service is addressed.
type Mode int

const (
	ModeStandard Mode = iota
	ModeAccelerated
	ModeMultiRegionAccessPoint
	ModeInterfacePrivateLink
)

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeAccelerated:
		return "accelerated"
	case ModeMultiRegionAccessPoint:
		return "mrap"
	case ModeInterfacePrivateLink:
		return "privatelink"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the names used in configuration files.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "gateway":
		return ModeStandard, nil
	case "accelerated", "accelerate", "acceleration":
		return ModeAccelerated, nil
	case "mrap", "multi-region-access-point":
		return ModeMultiRegionAccessPoint, nil
	case "privatelink", "interface", "vpce":
		return ModeInterfacePrivateLink, nil
	default:
		return ModeStandard, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfiguration, s)
	}
}

// AddressingStyle controls where the bucket name goes in a request URL.
type AddressingStyle int

const (
	AddressingVirtual AddressingStyle = iota
	AddressingPath
)

func (a AddressingStyle) String() string {
	if a == AddressingPath {
		return "path"
	}
	return "virtual"
}

// ParseAddressingStyle accepts "virtual" (the default) or "path".
func ParseAddressingStyle(s string) (AddressingStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "virtual", "virtual-hosted":
		return AddressingVirtual, nil
	case "path":
		return AddressingPath, nil
	default:
		return AddressingVirtual, fmt.Errorf("%w: unknown addressing style %q", ErrInvalidConfiguration, s)
	}
}

// Privacy is a three-valued expectation about the network path.
type Privacy int

const (
	PrivacyUnknown Privacy = iota
	PrivacyPrivate
	PrivacyPublic
)

func (p Privacy) String() string {
	switch p {
	case PrivacyPrivate:
		return "private"
	case PrivacyPublic:
		return "public"
	default:
		return "unknown"
	}
}

// Config describes one client profile. It is treated as a value: callers build
// it once and never mutate it after handing it to a Resolver.
type Config struct {
	Region           string
	Mode             Mode
	AccessPointAlias string
	PrivateLinkID    string
	AddressingStyle  AddressingStyle
}

// Resolved is the result of resolving a Config. Two resolutions of equal
// configs compare equal with ==.
type Resolved struct {
	Hostname        string
	Mode            Mode
	Region          string
	AddressingStyle AddressingStyle
	UsesTLS         bool
	ExpectedPrivate Privacy

	// LegacyGlobal marks the region-less s3.<domain> form that bypasses
	// regional private routing.
	LegacyGlobal bool

	// Placeholder is the leading label standing in for a bucket name, empty
	// when the hostname has no bucket label (multi-region access points).
	Placeholder string
}

// URL returns the https base URL for the resolved hostname.
func (r Resolved) URL() string {
	scheme := "https"
	if !r.UsesTLS {
		scheme = "http"
	}
	return scheme + "://" + r.Hostname
}

// HostFor substitutes bucket for the placeholder label.
func (r Resolved) HostFor(bucket string) string {
	if r.Placeholder == "" || bucket == "" {
		return r.Hostname
	}
	return bucket + strings.TrimPrefix(r.Hostname, r.Placeholder)
}

// ServiceHost returns the hostname with the bucket label removed.
func (r Resolved) ServiceHost() string {
	if r.Placeholder == "" {
		return r.Hostname
	}
	return strings.TrimPrefix(r.Hostname, r.Placeholder+".")
}

// WithGatewayRoute refines a regional Standard resolution once the caller
// knows whether a gateway endpoint route covers it. Every other resolution,
// including the legacy global form, is returned unchanged.
func (r Resolved) WithGatewayRoute(present bool) Resolved {
	if r.Mode != ModeStandard || r.LegacyGlobal || !present {
		return r
	}
	r.ExpectedPrivate = PrivacyPrivate
	return r
}

// Options configure a Resolver.
type Options struct {
	// ServiceDomain overrides the partition domain. When empty the domain is
	// chosen from the region.
	ServiceDomain string

	// BucketPlaceholder is the leading label used where a bucket name would go.
	BucketPlaceholder string
}

// Resolver maps Configs to Resolved endpoints.
type Resolver struct {
	serviceDomain     string
	bucketPlaceholder string
}

// NewResolver returns a Resolver with the given options applied over defaults.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		serviceDomain:     strings.Trim(opts.ServiceDomain, "."),
		bucketPlaceholder: opts.BucketPlaceholder,
	}
	if r.bucketPlaceholder == "" {
		r.bucketPlaceholder = defaultBucketPlaceholder
	}
	return r
}

// Resolve resolves cfg with a default Resolver.
func Resolve(cfg Config) (Resolved, error) {
	return NewResolver(Options{}).Resolve(cfg)
}

var (
	regionPattern      = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d+$`)
	privateLinkPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	aliasPattern       = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9]+)*$`)
)

// Resolve applies the endpoint precedence rules, first match wins:
// a private link id, then a multi-region access point, then acceleration,
// then the standard regional or legacy global form.
func (r *Resolver) Resolve(cfg Config) (Resolved, error) {
	if err := validate(cfg); err != nil {
		return Resolved{}, err
	}

	res := Resolved{
		Region:          cfg.Region,
		AddressingStyle: cfg.AddressingStyle,
		UsesTLS:         true,
		Placeholder:     r.bucketPlaceholder,
	}

	switch {
	case cfg.PrivateLinkID != "":
		res.Mode = ModeInterfacePrivateLink
		res.Hostname = fmt.Sprintf("%s.vpce-%s.s3.%s.vpce.%s",
			r.bucketPlaceholder, cfg.PrivateLinkID, cfg.Region, r.domainFor(cfg.Region))
		res.ExpectedPrivate = PrivacyPrivate

	case cfg.Mode == ModeMultiRegionAccessPoint:
		// The alias is global; no region label and no bucket label.
		res.Mode = ModeMultiRegionAccessPoint
		res.Region = ""
		res.Placeholder = ""
		res.Hostname = fmt.Sprintf("%s.accesspoint.s3-global.%s", cfg.AccessPointAlias, r.domainFor(""))
		res.ExpectedPrivate = PrivacyPublic

	case cfg.Mode == ModeAccelerated:
		// Acceleration always exits through the public edge network.
		res.Mode = ModeAccelerated
		res.Hostname = fmt.Sprintf("%s.s3-accelerate.%s", r.bucketPlaceholder, r.domainFor(cfg.Region))
		res.ExpectedPrivate = PrivacyPublic

	default:
		res.Mode = ModeStandard
		if cfg.Region != "" {
			res.Hostname = fmt.Sprintf("%s.s3.%s.%s", r.bucketPlaceholder, cfg.Region, r.domainFor(cfg.Region))
		} else {
			res.Hostname = fmt.Sprintf("%s.s3.%s", r.bucketPlaceholder, r.domainFor(""))
			res.LegacyGlobal = true
		}
		res.ExpectedPrivate = PrivacyUnknown
	}

	return res, nil
}

func (r *Resolver) domainFor(region string) string {
	if r.serviceDomain != "" {
		return r.serviceDomain
	}
	return DomainForRegion(region)
}

// DomainForRegion returns the partition service domain for region.
func DomainForRegion(region string) string {
	if strings.HasPrefix(region, "cn-") {
		return chinaServiceDomain
	}
	return defaultServiceDomain
}

func validate(cfg Config) error {
	if cfg.Region != "" && !regionPattern.MatchString(cfg.Region) {
		return fmt.Errorf("%w: malformed region %q", ErrInvalidConfiguration, cfg.Region)
	}

	if cfg.PrivateLinkID != "" || cfg.Mode == ModeInterfacePrivateLink {
		if cfg.Mode != ModeStandard && cfg.Mode != ModeInterfacePrivateLink {
			return fmt.Errorf("%w: private link id cannot be combined with %s mode", ErrInvalidConfiguration, cfg.Mode)
		}
		if cfg.PrivateLinkID == "" {
			return fmt.Errorf("%w: privatelink mode requires a private link id", ErrInvalidConfiguration)
		}
		if strings.HasPrefix(cfg.PrivateLinkID, "vpce-") {
			return fmt.Errorf("%w: private link id %q must omit the vpce- prefix", ErrInvalidConfiguration, cfg.PrivateLinkID)
		}
		if !privateLinkPattern.MatchString(cfg.PrivateLinkID) {
			return fmt.Errorf("%w: malformed private link id %q", ErrInvalidConfiguration, cfg.PrivateLinkID)
		}
		if cfg.Region == "" {
			return fmt.Errorf("%w: privatelink mode requires a region", ErrInvalidConfiguration)
		}
		return nil
	}

	switch cfg.Mode {
	case ModeMultiRegionAccessPoint:
		if cfg.AccessPointAlias == "" {
			return fmt.Errorf("%w: mrap mode requires an access point alias", ErrInvalidConfiguration)
		}
		if !aliasPattern.MatchString(cfg.AccessPointAlias) {
			return fmt.Errorf("%w: malformed access point alias %q", ErrInvalidConfiguration, cfg.AccessPointAlias)
		}
	case ModeAccelerated:
		if cfg.AddressingStyle == AddressingPath {
			return fmt.Errorf("%w: acceleration requires virtual-hosted addressing", ErrInvalidConfiguration)
		}
	case ModeStandard:
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfiguration, int(cfg.Mode))
	}

	return nil
}
