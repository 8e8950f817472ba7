// Package redactor masks signing material in presigned URLs and other strings
// before they reach logs. Masked values become deterministic placeholders like
// <SIGNATURE-9f86d081> so repeated occurrences can still be correlated.
package redactor

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// pattern represents a redaction pattern with its tag and compiled regex.
type pattern struct {
	tag string
	re  *regexp.Regexp
}

// queryParams maps signing query parameters to their placeholder tags.
var queryParams = map[string]string{
	"x-amz-signature":      "SIGNATURE",
	"x-amz-credential":     "CREDENTIAL",
	"x-amz-security-token": "SECURITY_TOKEN",
	"signature":            "SIGNATURE",
	"awsaccesskeyid":       "AWS_KEY",
}

// patterns apply to free text. Each has three groups: a prefix kept as is,
// the secret, and a suffix kept as is. Query parameters are masked before the
// bare key pattern can match inside a credential scope.
var patterns = []pattern{
	{"SIGNATURE", regexp.MustCompile(`(?i)(X-Amz-Signature=)([0-9a-f]{64})()`)},
	{"CREDENTIAL", regexp.MustCompile(`(?i)(X-Amz-Credential=)([^&\s]+)()`)},
	{"SECURITY_TOKEN", regexp.MustCompile(`(?i)(X-Amz-Security-Token=)([^&\s]+)()`)},
	{"AWS_SECRET", regexp.MustCompile(`(?i)((?:aws_secret_access_key|secret_access_key)["'\s:=]+)([A-Za-z0-9/+=]{40})()`)},
	{"AWS_KEY", regexp.MustCompile(`\b()((?:AKIA|ASIA)[0-9A-Z]{16})()\b`)},
	{"URL_CREDS", regexp.MustCompile(`(://)([^/:@\s]+:[^/@\s]+)(@)`)},
}

// placeholder generates a deterministic placeholder for a redacted value.
// Format: <TAG-XXXXXXXX> where XXXXXXXX is the first 4 bytes of SHA-256 hash.
func placeholder(tag, original string) string {
	hash := sha256.Sum256([]byte(original))
	return fmt.Sprintf("<%s-%x>", tag, hash[:4])
}

// Redact masks signing material in s.
func Redact(s string) string {
	out, _ := RedactWithStats(s)
	return out
}

// RedactWithStats masks signing material in s and reports what it masked.
func RedactWithStats(s string) (string, *Stats) {
	stats := NewStats()
	for _, p := range patterns {
		s = p.re.ReplaceAllStringFunc(s, func(m string) string {
			sub := p.re.FindStringSubmatch(m)
			stats.record(p.tag)
			return sub[1] + placeholder(p.tag, sub[2]) + sub[3]
		})
	}
	return s, stats
}

// RedactURL masks the signing query parameters of a presigned URL. Values
// that do not parse as URLs fall back to Redact.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return Redact(raw)
	}

	q := u.Query()
	changed := false
	for name, values := range q {
		tag, ok := queryParams[strings.ToLower(name)]
		if !ok {
			continue
		}
		for i, v := range values {
			values[i] = placeholder(tag, v)
		}
		changed = true
	}
	if !changed {
		return Redact(raw)
	}

	u.RawQuery = q.Encode()
	out := u.String()
	// Encode escapes the placeholder brackets; keep them readable.
	out = strings.NewReplacer("%3C", "<", "%3E", ">").Replace(out)
	return out
}
