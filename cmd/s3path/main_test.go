package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/mrap"
	"github.com/13rac1/s3path/internal/output"
	"github.com/13rac1/s3path/internal/types"
)

const testConfig = `aws:
  region: us-east-1
  account_id: "123456789012"

profiles:
  default:
    mode: standard
    region: us-east-1
    bucket: logs
  fast:
    mode: accelerated
    region: us-east-1
    bucket: logs
  global:
    mode: mrap
    access_point_alias: mfzwi23gnjvgw.mrap
  private:
    mode: privatelink
    region: us-east-1
    private_link_id: 1a2b3c4d
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	if err := w.Close(); err != nil {
		t.Logf("failed to close pipe writer: %v", err)
	}
	os.Stdout = oldStdout

	var out bytes.Buffer
	io.Copy(&out, r)
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "--json=false", "resolve", "--all")
	if err != nil {
		t.Fatalf("resolve command failed: %v", err)
	}

	for _, want := range []string{"default", "fast", "global", "private", "accelerated", "mrap", "privatelink"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestResolveCommandJSON(t *testing.T) {
	path := writeConfig(t, testConfig)

	out, err := run(t, "--config", path, "--json", "resolve", "--all=false", "--profile", "private", "--bucket", "")
	if err != nil {
		t.Fatalf("resolve command failed: %v", err)
	}

	var doc output.ResolveOutput
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}

	want := []output.Resolution{{
		Profile:         "private",
		Hostname:        "<bucket>.vpce-1a2b3c4d.s3.us-east-1.vpce.amazonaws.com",
		URL:             "https://<bucket>.vpce-1a2b3c4d.s3.us-east-1.vpce.amazonaws.com",
		Mode:            "privatelink",
		Region:          "us-east-1",
		AddressingStyle: "path",
		ExpectedPrivate: "private",
	}}
	if diff := cmp.Diff(want, doc.Profiles); diff != "" {
		t.Errorf("resolve --json mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveCommandUnknownProfile(t *testing.T) {
	path := writeConfig(t, testConfig)

	_, err := run(t, "--config", path, "--json=false", "resolve", "--all=false", "--profile", "missing")
	if err == nil || !strings.Contains(err.Error(), `profile "missing" not found`) {
		t.Errorf("resolve error = %v, want profile not found", err)
	}
}

func TestDoctorCommandExitCode(t *testing.T) {
	path := writeConfig(t, `profiles:
  default:
    mode: standard
    region: global
`)

	oldExitFunc := exitFunc
	defer func() { exitFunc = oldExitFunc }()
	exitCode := -1
	exitFunc = func(code int) { exitCode = code }

	out, err := run(t, "--config", path, "--profile", "default", "doctor")
	if err != nil {
		t.Fatalf("doctor command failed: %v", err)
	}
	if exitCode != 1 {
		t.Errorf("doctor exit code = %d, want 1 for a legacy global profile", exitCode)
	}
	if !strings.Contains(out, "legacy global hostname") {
		t.Errorf("doctor output missing legacy global warning:\n%s", out)
	}
}

func TestSessionTarget(t *testing.T) {
	regional, err := endpoint.Resolve(endpoint.Config{Region: "us-east-1"})
	if err != nil {
		t.Fatal(err)
	}
	global, err := endpoint.Resolve(endpoint.Config{Mode: endpoint.ModeMultiRegionAccessPoint, AccessPointAlias: "mfzwi23gnjvgw.mrap"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		s          *session
		flag       string
		wantBucket string
		wantRef    string
		wantErr    bool
	}{
		{
			name:       "flag wins",
			s:          &session{cfg: &types.Config{}, profile: types.ProfileConfig{Bucket: "logs"}, resolved: regional},
			flag:       "other",
			wantBucket: "other",
			wantRef:    "other",
		},
		{
			name:       "profile bucket",
			s:          &session{cfg: &types.Config{}, profile: types.ProfileConfig{Bucket: "logs"}, resolved: regional},
			wantBucket: "logs",
			wantRef:    "logs",
		},
		{
			name:    "placeholder bucket",
			s:       &session{cfg: &types.Config{}, name: "default", profile: types.ProfileConfig{Bucket: placeholderBucket}, resolved: regional},
			wantErr: true,
		},
		{
			name: "access point arn",
			s: &session{
				cfg:      &types.Config{AWS: types.AWSConfig{AccountID: "123456789012"}},
				profile:  types.ProfileConfig{AccessPointAlias: "mfzwi23gnjvgw.mrap"},
				resolved: global,
			},
			wantRef: "arn:aws:s3::123456789012:accesspoint/mfzwi23gnjvgw.mrap",
		},
		{
			name: "access point arn in china",
			s: &session{
				cfg:      &types.Config{AWS: types.AWSConfig{Region: "cn-north-1", AccountID: "123456789012"}},
				profile:  types.ProfileConfig{AccessPointAlias: "mfzwi23gnjvgw.mrap"},
				resolved: global,
			},
			wantRef: "arn:aws-cn:s3::123456789012:accesspoint/mfzwi23gnjvgw.mrap",
		},
		{
			name:    "access point without account",
			s:       &session{cfg: &types.Config{}, name: "global", profile: types.ProfileConfig{AccessPointAlias: "mfzwi23gnjvgw.mrap"}, resolved: global},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, ref, err := tt.s.target(tt.flag)
			if tt.wantErr {
				if err == nil {
					t.Error("target() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("target() unexpected error: %v", err)
			}
			if bucket != tt.wantBucket || ref != tt.wantRef {
				t.Errorf("target() = %q, %q, want %q, %q", bucket, ref, tt.wantBucket, tt.wantRef)
			}
		})
	}
}

func TestParseBucketRegions(t *testing.T) {
	got, err := parseBucketRegions([]string{"logs-east:us-east-1", "logs-west"})
	if err != nil {
		t.Fatalf("parseBucketRegions() unexpected error: %v", err)
	}
	want := []mrap.BucketRegion{
		{Bucket: "logs-east", Region: "us-east-1"},
		{Bucket: "logs-west"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseBucketRegions() mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseBucketRegions([]string{":us-east-1"}); err == nil {
		t.Error("parseBucketRegions() accepted an empty bucket name")
	}
}

func TestLoadConfigAutoCreation(t *testing.T) {
	tmpDir := t.TempDir()
	testConfigPath := filepath.Join(tmpDir, ".s3path", "config.yaml")

	oldConfigPath := configPath
	oldDefaultConfigPath := defaultConfigPath
	oldExitFunc := exitFunc
	oldStdout := os.Stdout
	defer func() {
		configPath = oldConfigPath
		defaultConfigPath = oldDefaultConfigPath
		exitFunc = oldExitFunc
		os.Stdout = oldStdout
	}()

	configPath = testConfigPath
	defaultConfigPath = testConfigPath

	r, w, _ := os.Pipe()
	os.Stdout = w

	exitCalled := false
	exitCode := -1
	exitFunc = func(code int) {
		exitCalled = true
		exitCode = code
	}

	_, err := loadConfig()

	if err := w.Close(); err != nil {
		t.Logf("failed to close pipe writer: %v", err)
	}
	os.Stdout = oldStdout
	io.Copy(io.Discard, r)

	if !exitCalled {
		t.Error("expected exitFunc to be called after creating starter config")
	}
	if exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if err != nil && !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("loadConfig() unexpected error = %v", err)
	}

	content, err := os.ReadFile(testConfigPath)
	if err != nil {
		t.Fatalf("failed to read created config: %v", err)
	}
	if !strings.Contains(string(content), "YOUR-BUCKET-NAME") {
		t.Error("created config missing expected placeholder content")
	}
}

func TestLoadConfigCustomPathNoAutoCreation(t *testing.T) {
	tmpDir := t.TempDir()
	customPath := filepath.Join(tmpDir, "custom-config.yaml")

	oldConfigPath := configPath
	oldDefaultConfigPath := defaultConfigPath
	defer func() {
		configPath = oldConfigPath
		defaultConfigPath = oldDefaultConfigPath
	}()
	defaultConfigPath = filepath.Join(tmpDir, ".s3path", "config.yaml")
	configPath = customPath

	_, err := loadConfig()
	if err == nil {
		t.Fatal("loadConfig() error = nil, want error for missing custom config")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("loadConfig() error = %q, want error containing 'config file not found'", err.Error())
	}
	if _, err := os.Stat(customPath); !os.IsNotExist(err) {
		t.Error("custom config path should not be auto-created")
	}
}

func TestPrintWelcomeMessage(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	configPath := "/test/path/config.yaml"
	printWelcomeMessage(configPath)

	if err := w.Close(); err != nil {
		t.Logf("failed to close pipe writer: %v", err)
	}
	os.Stdout = oldStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	outputStr := buf.String()

	for _, phrase := range []string{
		"Welcome to s3path!",
		configPath,
		"aws.region",
		"profiles.default.bucket",
		"auth.profile",
		"aws.account_id",
		"s3path doctor",
		"s3path resolve --all",
		"s3path verify",
	} {
		if !strings.Contains(outputStr, phrase) {
			t.Errorf("welcome message missing expected phrase: %q", phrase)
		}
	}
}
