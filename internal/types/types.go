// Package types defines the configuration structures shared across s3path.
package types

import "time"

// Config represents the complete configuration for s3path.
type Config struct {
	AWS         AWSConfig                `yaml:"aws"`
	Auth        AuthConfig               `yaml:"auth"`
	Profiles    map[string]ProfileConfig `yaml:"profiles"`
	Diagnostics DiagnosticsConfig        `yaml:"diagnostics"`
	Log         LogConfig                `yaml:"log"`
}

// AWSConfig holds account-wide settings.
type AWSConfig struct {
	Region        string `yaml:"region"`
	AccountID     string `yaml:"account_id"`
	ServiceDomain string `yaml:"service_domain"`
}

// AuthConfig holds authentication credentials.
type AuthConfig struct {
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// ProfileConfig describes one way of reaching S3.
type ProfileConfig struct {
	Mode             string `yaml:"mode"`
	Region           string `yaml:"region"`
	Bucket           string `yaml:"bucket"`
	AccessPointAlias string `yaml:"access_point_alias"`
	PrivateLinkID    string `yaml:"private_link_id"`
	AddressingStyle  string `yaml:"addressing_style"`
}

// DiagnosticsConfig tunes evidence gathering and classification.
type DiagnosticsConfig struct {
	InstanceID          string        `yaml:"instance_id"`
	TracerouteCommand   string        `yaml:"traceroute_command"`
	MaxHops             int           `yaml:"max_hops"`
	HopWait             time.Duration `yaml:"hop_wait"`
	TraceTimeout        time.Duration `yaml:"trace_timeout"`
	PrivateHopThreshold int           `yaml:"private_hop_threshold"`
	TrustDeclaredMode   bool          `yaml:"trust_declared_mode"`
}

// LogConfig selects logger verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
