package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantErr  bool
		errMsg   string
		validate func(*testing.T, *types.Config)
	}{
		{
			name: "valid minimal config",
			content: `
profiles:
  default:
    bucket: test-bucket
`,
			validate: func(t *testing.T, cfg *types.Config) {
				p := cfg.Profiles["default"]
				if p.Region != "us-east-1" {
					t.Errorf("region = %q, want inherited %q", p.Region, "us-east-1")
				}
				if p.AddressingStyle != "virtual" {
					t.Errorf("addressing_style = %q, want %q", p.AddressingStyle, "virtual")
				}
				if cfg.Diagnostics.TracerouteCommand != "traceroute" {
					t.Errorf("traceroute_command = %q", cfg.Diagnostics.TracerouteCommand)
				}
				if cfg.Diagnostics.MaxHops != 5 {
					t.Errorf("max_hops = %d, want 5", cfg.Diagnostics.MaxHops)
				}
				if cfg.Diagnostics.TraceTimeout != 15*time.Second {
					t.Errorf("trace_timeout = %v, want 15s", cfg.Diagnostics.TraceTimeout)
				}
				if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
					t.Errorf("log = %+v", cfg.Log)
				}
			},
		},
		{
			name: "profile region inherits aws.region",
			content: `
aws:
  region: eu-west-1
profiles:
  default:
    mode: accelerated
`,
			validate: func(t *testing.T, cfg *types.Config) {
				if got := cfg.Profiles["default"].Region; got != "eu-west-1" {
					t.Errorf("region = %q, want %q", got, "eu-west-1")
				}
			},
		},
		{
			name: "explicit global region selects the legacy hostname",
			content: `
profiles:
  legacy:
    region: global
`,
			validate: func(t *testing.T, cfg *types.Config) {
				if got := cfg.Profiles["legacy"].Region; got != "" {
					t.Errorf("region = %q, want empty", got)
				}
			},
		},
		{
			name: "privatelink defaults to path style and strips vpce prefix",
			content: `
profiles:
  private:
    mode: privatelink
    region: us-east-1
    private_link_id: vpce-1a2b3c4d-5e6f
`,
			validate: func(t *testing.T, cfg *types.Config) {
				p := cfg.Profiles["private"]
				if p.PrivateLinkID != "1a2b3c4d-5e6f" {
					t.Errorf("private_link_id = %q", p.PrivateLinkID)
				}
				if p.AddressingStyle != "path" {
					t.Errorf("addressing_style = %q, want path", p.AddressingStyle)
				}
			},
		},
		{
			name: "mrap keeps region empty",
			content: `
profiles:
  global:
    mode: mrap
    access_point_alias: mfzwi23gnjvgw.mrap
`,
			validate: func(t *testing.T, cfg *types.Config) {
				if got := cfg.Profiles["global"].Region; got != "" {
					t.Errorf("region = %q, want empty", got)
				}
			},
		},
		{
			name: "durations parse",
			content: `
profiles:
  default: {}
diagnostics:
  hop_wait: 2s
  trace_timeout: 1m
`,
			validate: func(t *testing.T, cfg *types.Config) {
				if cfg.Diagnostics.HopWait != 2*time.Second {
					t.Errorf("hop_wait = %v", cfg.Diagnostics.HopWait)
				}
				if cfg.Diagnostics.TraceTimeout != time.Minute {
					t.Errorf("trace_timeout = %v", cfg.Diagnostics.TraceTimeout)
				}
			},
		},
		{
			name:    "no profiles",
			content: `aws: {region: us-east-1}`,
			wantErr: true,
			errMsg:  "at least one profile is required",
		},
		{
			name: "mrap without alias",
			content: `
profiles:
  global:
    mode: mrap
`,
			wantErr: true,
			errMsg:  "requires an access point alias",
		},
		{
			name: "accelerated with path style",
			content: `
profiles:
  fast:
    mode: accelerated
    addressing_style: path
`,
			wantErr: true,
			errMsg:  "virtual-hosted addressing",
		},
		{
			name: "unknown mode",
			content: `
profiles:
  default:
    mode: teleport
`,
			wantErr: true,
			errMsg:  "unknown mode",
		},
		{
			name: "bad log format",
			content: `
profiles:
  default: {}
log:
  format: xml
`,
			wantErr: true,
			errMsg:  "log.format",
		},
		{
			name:    "invalid YAML",
			content: "profiles: [unclosed",
			wantErr: true,
			errMsg:  "parsing config YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Load() expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Load() error = %q, want it to contain %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for nonexistent file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want not-exist", err)
	}
}

func TestCreateStarterConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := CreateStarterConfig(path); err != nil {
		t.Fatalf("CreateStarterConfig() unexpected error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("starter config does not load: %v", err)
	}
	if _, ok := cfg.Profiles[DefaultProfile]; !ok {
		t.Errorf("starter config has no %q profile", DefaultProfile)
	}

	if err := CreateStarterConfig(path); err == nil {
		t.Error("CreateStarterConfig() overwrote an existing file")
	}
}

func TestEndpointConfig(t *testing.T) {
	ec, err := EndpointConfig(types.ProfileConfig{
		Mode:             "mrap",
		AccessPointAlias: "abc.mrap",
		AddressingStyle:  "virtual",
	})
	if err != nil {
		t.Fatalf("EndpointConfig() unexpected error: %v", err)
	}
	if ec.Mode != endpoint.ModeMultiRegionAccessPoint || ec.AccessPointAlias != "abc.mrap" {
		t.Errorf("EndpointConfig() = %+v", ec)
	}

	if _, err := EndpointConfig(types.ProfileConfig{AddressingStyle: "sideways"}); err == nil {
		t.Error("EndpointConfig() accepted unknown addressing style")
	}

	_, err = EndpointConfig(types.ProfileConfig{
		Mode:            "accelerated",
		Region:          "us-east-1",
		PrivateLinkID:   "1a2b3c4d",
		AddressingStyle: "virtual",
	})
	if !errors.Is(err, endpoint.ErrInvalidConfiguration) {
		t.Errorf("EndpointConfig() error = %v, want ErrInvalidConfiguration for accelerated profile with a private link id", err)
	}
}

func TestProfile(t *testing.T) {
	cfg := &types.Config{Profiles: map[string]types.ProfileConfig{
		"default": {Bucket: "a"},
		"fast":    {Bucket: "b"},
	}}

	p, err := Profile(cfg, "")
	if err != nil || p.Bucket != "a" {
		t.Errorf("Profile(\"\") = %+v, %v", p, err)
	}

	_, err = Profile(cfg, "missing")
	if err == nil || !strings.Contains(err.Error(), "default, fast") {
		t.Errorf("Profile(missing) error = %v", err)
	}
}

func TestExpandTilde(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get home directory: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"tilde only", "~", homeDir},
		{"tilde with path", "~/.s3path/config.yaml", filepath.Join(homeDir, ".s3path/config.yaml")},
		{"absolute path", "/etc/s3path.yaml", "/etc/s3path.yaml"},
		{"relative path", "config.yaml", "config.yaml"},
		{"tilde user form untouched", "~other/config.yaml", "~other/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandTilde(tt.input)
			if err != nil {
				t.Fatalf("expandTilde() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expandTilde(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
