package objects

import (
	"fmt"
	"net/url"
	"strings"
)

// URLCheck describes which endpoint form a presigned URL targets.
type URLCheck struct {
	Host        string `json:"host"`
	HasRegion   bool   `json:"hasRegion"`
	Global      bool   `json:"global"`
	Accelerated bool   `json:"accelerated"`
	MultiRegion bool   `json:"multiRegion"`
	PrivateLink bool   `json:"privateLink"`
}

// Verdict summarizes the check for display.
func (c URLCheck) Verdict(region string) string {
	switch {
	case c.PrivateLink:
		return "interface endpoint hostname"
	case c.HasRegion:
		return fmt.Sprintf("regional endpoint (contains %s)", region)
	case c.Accelerated:
		return "accelerate edge endpoint (public path)"
	case c.MultiRegion:
		return "multi-region access point (public path)"
	case c.Global:
		return "global endpoint: traffic may leave the private path"
	default:
		return "unexpected URL format"
	}
}

// CheckURL inspects the host of raw relative to region.
func CheckURL(raw, region string) (URLCheck, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URLCheck{}, fmt.Errorf("parsing URL: %w", err)
	}

	host := u.Hostname()
	labels := strings.Split(host, ".")
	check := URLCheck{Host: host}

	for _, l := range labels {
		switch {
		case region != "" && l == region:
			check.HasRegion = true
		case l == "s3-accelerate":
			check.Accelerated = true
		case l == "s3-global":
			check.MultiRegion = true
		case strings.HasPrefix(l, "vpce-"):
			check.PrivateLink = true
		}
	}

	if !check.HasRegion && !check.Accelerated && !check.MultiRegion && !check.PrivateLink {
		check.Global = strings.HasPrefix(host, "s3.") || strings.Contains(host, ".s3.")
	}
	return check, nil
}
