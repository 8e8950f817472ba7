package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/types"
	"gopkg.in/yaml.v3"
)

const (
	defaultRegion            = "us-east-1"
	defaultTracerouteCommand = "traceroute"
	defaultMaxHops           = 5
	defaultHopWait           = time.Second
	defaultTraceTimeout      = 15 * time.Second
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"

	// DefaultProfile is used when no profile is selected on the command line.
	DefaultProfile = "default"
)

// Load reads and validates configuration from the specified path.
// Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*types.Config, error) {
	expandedPath, err := expandTilde(path)
	if err != nil {
		return nil, fmt.Errorf("expanding config path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", expandedPath, err)
	}

	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional config fields.
func applyDefaults(cfg *types.Config) {
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = defaultRegion
	}

	for name, p := range cfg.Profiles {
		// The hostname template already carries "vpce-".
		p.PrivateLinkID = strings.TrimPrefix(strings.TrimSpace(p.PrivateLinkID), "vpce-")

		mode, err := endpoint.ParseMode(p.Mode)
		if err == nil && p.Region == "" && mode != endpoint.ModeMultiRegionAccessPoint {
			// A standard profile without a region would silently fall into the
			// legacy global hostname. Only an explicit "global" opts into it.
			p.Region = cfg.AWS.Region
		}
		if p.Region == "global" {
			p.Region = ""
		}

		if p.AddressingStyle == "" {
			if mode == endpoint.ModeInterfacePrivateLink {
				p.AddressingStyle = "path"
			} else {
				p.AddressingStyle = "virtual"
			}
		}
		cfg.Profiles[name] = p
	}

	d := &cfg.Diagnostics
	if d.TracerouteCommand == "" {
		d.TracerouteCommand = defaultTracerouteCommand
	}
	if d.MaxHops <= 0 {
		d.MaxHops = defaultMaxHops
	}
	if d.HopWait <= 0 {
		d.HopWait = defaultHopWait
	}
	if d.TraceTimeout <= 0 {
		d.TraceTimeout = defaultTraceTimeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
}

// validate ensures required config fields are present and valid.
func validate(cfg *types.Config) error {
	if len(cfg.Profiles) == 0 {
		return fmt.Errorf("at least one profile is required")
	}

	for _, name := range ProfileNames(cfg) {
		if _, err := EndpointConfig(cfg.Profiles[name]); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	return nil
}

// EndpointConfig converts a profile into the resolver's input and checks it
// resolves.
func EndpointConfig(p types.ProfileConfig) (endpoint.Config, error) {
	mode, err := endpoint.ParseMode(p.Mode)
	if err != nil {
		return endpoint.Config{}, err
	}
	style, err := endpoint.ParseAddressingStyle(p.AddressingStyle)
	if err != nil {
		return endpoint.Config{}, err
	}

	ec := endpoint.Config{
		Region:           p.Region,
		Mode:             mode,
		AccessPointAlias: p.AccessPointAlias,
		PrivateLinkID:    p.PrivateLinkID,
		AddressingStyle:  style,
	}
	if _, err := endpoint.Resolve(ec); err != nil {
		return endpoint.Config{}, err
	}
	return ec, nil
}

// Profile looks up a profile by name.
func Profile(cfg *types.Config, name string) (types.ProfileConfig, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := cfg.Profiles[name]
	if !ok {
		return types.ProfileConfig{}, fmt.Errorf("profile %q not found (have: %s)", name, strings.Join(ProfileNames(cfg), ", "))
	}
	return p, nil
}

// ProfileNames returns the configured profile names in sorted order.
func ProfileNames(cfg *types.Config) []string {
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewResolver builds the endpoint resolver configured for cfg.
func NewResolver(cfg *types.Config, bucket string) *endpoint.Resolver {
	return endpoint.NewResolver(endpoint.Options{
		ServiceDomain:     cfg.AWS.ServiceDomain,
		BucketPlaceholder: bucket,
	})
}

// expandTilde replaces ~ at the start of a path with the user's home directory.
func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	if path == "~" {
		return homeDir, nil
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}
