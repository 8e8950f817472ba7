package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/smithy-go/logging"
	"github.com/sirupsen/logrus"

	"github.com/13rac1/s3path/internal/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       types.LogConfig
		wantLevel logrus.Level
		wantErr   bool
	}{
		{"text info", types.LogConfig{Level: "info", Format: "text"}, logrus.InfoLevel, false},
		{"json debug", types.LogConfig{Level: "debug", Format: "json"}, logrus.DebugLevel, false},
		{"default format", types.LogConfig{Level: "warn"}, logrus.WarnLevel, false},
		{"bad level", types.LogConfig{Level: "loud", Format: "text"}, 0, true},
		{"bad format", types.LogConfig{Level: "info", Format: "xml"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg, &bytes.Buffer{})
			if tt.wantErr {
				if err == nil {
					t.Error("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", log.GetLevel(), tt.wantLevel)
			}
		})
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(types.LogConfig{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	log.WithField("op", "describe route tables").Info("lookup failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if entry["op"] != "describe route tables" || entry["msg"] != "lookup failed" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSDKLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(types.LogConfig{Level: "warn", Format: "text"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	sdk := SDKLogger{Log: log}

	sdk.Logf(logging.Debug, "retry attempt %d", 2)
	if buf.Len() != 0 {
		t.Errorf("debug SDK message logged at warn level: %q", buf.String())
	}

	sdk.Logf(logging.Warn, "clock skew %s", "detected")
	out := buf.String()
	if !strings.Contains(out, "clock skew detected") || !strings.Contains(out, "source=aws-sdk") {
		t.Errorf("warn SDK message = %q", out)
	}
}
