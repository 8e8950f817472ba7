package output

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/13rac1/s3path/internal/mrap"
	"github.com/13rac1/s3path/internal/objects"
	"github.com/13rac1/s3path/internal/pathcheck"
)

// Title capitalizes an enum name for display, e.g. "private" -> "Private".
func Title(s string) string {
	return cases.Title(language.English).String(s)
}

// PrintResolutions formats and prints resolved endpoints as an ASCII table.
func PrintResolutions(rows []Resolution) {
	if len(rows) == 0 {
		fmt.Println("No profiles configured.")
		return
	}

	fmt.Println("Endpoints")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Profile", "Hostname", "Mode", "Region", "Addressing", "Expected Path", "Legacy Global")

	for _, r := range rows {
		table.Append(
			r.Profile,
			r.Hostname,
			r.Mode,
			formatRegion(r.Region),
			r.AddressingStyle,
			Title(r.ExpectedPrivate),
			formatFlag(r.LegacyGlobal),
		)
	}

	table.Render()
}

// PrintClassification prints a verdict line followed by the reasoning trail.
func PrintClassification(c pathcheck.Classification) {
	fmt.Printf("Verdict: %s (%s)\n", Title(c.Verdict.String()), c.Confidence)
	for _, r := range c.Reasons {
		fmt.Printf("  - %s\n", r)
	}
}

// PrintObjects formats and prints an object listing.
func PrintObjects(objs []objects.Object) {
	if len(objs) == 0 {
		fmt.Println("No objects found.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Size", "Last Modified")

	var total int64
	for _, o := range objs {
		table.Append(o.Key, objects.FormatSize(o.Size), formatTime(o.LastModified))
		total += o.Size
	}

	table.Render()
	fmt.Printf("%d objects, %s\n", len(objs), objects.FormatSize(total))
}

// PrintAccessPoints formats and prints multi-region access points.
func PrintAccessPoints(points []mrap.AccessPoint) {
	if len(points) == 0 {
		fmt.Println("No multi-region access points found.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Name", "Alias", "Status", "Buckets", "Created")

	for _, p := range points {
		table.Append(p.Name, p.Alias, p.Status, strconv.Itoa(len(p.Regions)), formatTime(p.CreatedAt))
	}

	table.Render()
}

// formatRegion formats a region for display, using "-" for region-less hostnames.
func formatRegion(region string) string {
	if region == "" {
		return "-"
	}
	return region
}

func formatFlag(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
