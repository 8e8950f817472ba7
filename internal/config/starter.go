package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const starterConfig = `# s3path configuration
aws:
  region: us-east-1
  account_id: "YOUR-ACCOUNT-ID"

auth:
  # Static credentials take precedence over the shared profile.
  profile: ""

profiles:
  default:
    mode: standard
    region: us-east-1
    bucket: YOUR-BUCKET-NAME
    addressing_style: virtual

  # accelerated:
  #   mode: accelerated
  #   bucket: YOUR-BUCKET-NAME

  # global:
  #   mode: mrap
  #   access_point_alias: YOUR-ALIAS.mrap

  # private:
  #   mode: privatelink
  #   region: us-east-1
  #   private_link_id: 1a2b3c4d-5e6f
  #   bucket: YOUR-BUCKET-NAME

diagnostics:
  traceroute_command: traceroute
  max_hops: 5
  hop_wait: 1s
  trace_timeout: 15s
  private_hop_threshold: 3
  trust_declared_mode: false

log:
  level: info
  format: text
`

// CreateStarterConfig writes a commented starter configuration to path.
// It refuses to overwrite an existing file.
func CreateStarterConfig(path string) error {
	expandedPath, err := expandTilde(path)
	if err != nil {
		return fmt.Errorf("expanding config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(expandedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(starterConfig); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
