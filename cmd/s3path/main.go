package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/13rac1/s3path/internal/config"
	"github.com/13rac1/s3path/internal/doctor"
	"github.com/13rac1/s3path/internal/endpoint"
	"github.com/13rac1/s3path/internal/logging"
	"github.com/13rac1/s3path/internal/output"
	"github.com/13rac1/s3path/internal/redactor"
	"github.com/13rac1/s3path/internal/types"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const placeholderBucket = "YOUR-BUCKET-NAME"

var (
	configPath        string
	defaultConfigPath string
	profileName       string
	logLevel          string
	jsonOutput        bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", redactor.Redact(err.Error()))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "s3path",
	Short:   "S3 endpoint resolver and network path checker",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Long: `s3path resolves the hostname each configured S3 client profile will use
(standard, accelerated, multi-region access point or PrivateLink) and checks
whether traffic from this host to that endpoint stays on a private network
path or leaves through the public internet.`,
	SilenceUsage: true,
}

var (
	resolveAll    bool
	resolveBucket string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the endpoint hostname of a profile",
	Long: `Resolves the selected profile (or every profile with --all) and prints the
hostname, addressing mode and whether the hostname is expected to stay private.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		names := []string{selectedProfile()}
		if resolveAll {
			names = config.ProfileNames(cfg)
		}

		resolver := config.NewResolver(cfg, resolveBucket)
		rows := make([]output.Resolution, 0, len(names))
		for _, name := range names {
			res, err := resolveProfile(cfg, resolver, name)
			if err != nil {
				return err
			}
			rows = append(rows, output.NewResolution(name, res))
		}

		if jsonOutput {
			return output.PrintResolveJSON(rows)
		}
		output.PrintResolutions(rows)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate configuration and profile endpoints",
	Long: `Checks that the configuration is valid and that every profile resolves to
a regional hostname. Profiles that fall back to the legacy global hostname fail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		allPassed := doctor.RunChecks(cfg, configPath)
		if !allPassed {
			exitFunc(1)
		}
		return nil
	},
}

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to get home directory: %v\n", err)
		homeDir = "~"
	}
	defaultConfigPath = filepath.Join(homeDir, ".s3path", "config.yaml")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	flags.StringVarP(&profileName, "profile", "p", config.DefaultProfile, "client profile to use")
	flags.StringVar(&logLevel, "log-level", "", "override log.level from the config file")
	flags.BoolVar(&jsonOutput, "json", false, "output in JSON format")

	resolveCmd.Flags().BoolVar(&resolveAll, "all", false, "resolve every configured profile")
	resolveCmd.Flags().StringVar(&resolveBucket, "bucket", "", "bucket name to show in hostnames instead of a placeholder")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(presignCmd)
	rootCmd.AddCommand(objectCmd)
	rootCmd.AddCommand(mrapCmd)
	rootCmd.AddCommand(accelCmd)
	rootCmd.AddCommand(doctorCmd)
}

var exitFunc = os.Exit

func loadConfig() (*types.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			isDefaultPath := configPath == defaultConfigPath
			if isDefaultPath {
				if err := config.CreateStarterConfig(configPath); err != nil {
					return nil, fmt.Errorf("creating starter config: %w", err)
				}
				printWelcomeMessage(configPath)
				exitFunc(0)
			}
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	return cfg, nil
}

func printWelcomeMessage(configPath string) {
	fmt.Println("Welcome to s3path!")
	fmt.Println()
	fmt.Printf("A starter configuration file has been created at:\n")
	fmt.Printf("  %s\n", configPath)
	fmt.Println()
	fmt.Println("Please edit this file and configure:")
	fmt.Println("  1. aws.region - Your default AWS region")
	fmt.Println("  2. profiles.default.bucket - The bucket to check")
	fmt.Println("  3. auth.profile - Your AWS profile (or use static credentials)")
	fmt.Println()
	fmt.Println("For multi-region access points, also set aws.account_id.")
	fmt.Println()
	fmt.Println("After configuration, run:")
	fmt.Println("  s3path doctor          # Validate configuration")
	fmt.Println("  s3path resolve --all   # Show every profile's endpoint")
	fmt.Println("  s3path verify          # Check the network path to the bucket")
}

func selectedProfile() string {
	if profileName == "" {
		return config.DefaultProfile
	}
	return profileName
}

func newLogger(cfg *types.Config) (*logrus.Logger, error) {
	lc := cfg.Log
	if logLevel != "" {
		lc.Level = logLevel
	}
	log, err := logging.New(lc, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	return log, nil
}

func resolveProfile(cfg *types.Config, resolver *endpoint.Resolver, name string) (endpoint.Resolved, error) {
	p, err := config.Profile(cfg, name)
	if err != nil {
		return endpoint.Resolved{}, err
	}
	ec, err := config.EndpointConfig(p)
	if err != nil {
		return endpoint.Resolved{}, fmt.Errorf("profile %q: %w", name, err)
	}
	res, err := resolver.Resolve(ec)
	if err != nil {
		return endpoint.Resolved{}, fmt.Errorf("resolving profile %q: %w", name, err)
	}
	return res, nil
}

// session is a loaded config with one profile selected and resolved.
type session struct {
	cfg      *types.Config
	log      *logrus.Logger
	name     string
	profile  types.ProfileConfig
	resolved endpoint.Resolved
}

func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	name := selectedProfile()
	res, err := resolveProfile(cfg, config.NewResolver(cfg, ""), name)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:      cfg,
		log:      log,
		name:     name,
		profile:  cfg.Profiles[name],
		resolved: res,
	}, nil
}

// region is the region EC2 lookups and regional clients use.
func (s *session) region() string {
	if s.resolved.Region != "" {
		return s.resolved.Region
	}
	return s.cfg.AWS.Region
}

// target returns the bucket named by flag, falling back to the profile's
// configured bucket, and the bucket-ref object requests address. For multi-region
// access point profiles the ref is the access point ARN and the bucket may be
// empty.
func (s *session) target(flag string) (bucket, ref string, err error) {
	bucket = flag
	if bucket == "" && s.profile.Bucket != placeholderBucket {
		bucket = s.profile.Bucket
	}

	if s.resolved.Mode == endpoint.ModeMultiRegionAccessPoint {
		if s.cfg.AWS.AccountID == "" {
			return "", "", fmt.Errorf("profile %q: aws.account_id is required for multi-region access points", s.name)
		}
		return bucket, endpoint.AccessPointARN(endpoint.PartitionForRegion(s.region()), s.cfg.AWS.AccountID, s.profile.AccessPointAlias), nil
	}

	if bucket == "" {
		return "", "", fmt.Errorf("no bucket: pass --bucket or set profiles.%s.bucket", s.name)
	}
	return bucket, bucket, nil
}
