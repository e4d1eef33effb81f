package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"StepID", KeyStepID, "build-abc", StepID("build-abc")},
		{"StepName", KeyStepName, "build", StepName("build")},
		{"Runner", KeyRunner, "package", Runner("package")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Architecture", KeyArchitecture, "x86_64", Architecture("x86_64")},
		{"Image", KeyImage, "ubuntu:22.04", Image("ubuntu:22.04")},
		{"Container", KeyContainer, "c1", Container("c1")},
		{"DockerHost", KeyDockerHost, "ssh://u@h", DockerHost("ssh://u@h")},
		{"RunID", KeyRunID, "rid", RunID("rid")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if v := Stage(2); v.Key != KeyStage || v.Value.Int64() != 2 {
		t.Fatalf("Stage mismatch: %v", v)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
	if v := CacheHit(true); v.Key != KeyCacheHit || !v.Value.Bool() {
		t.Fatalf("CacheHit mismatch: %v", v)
	}
	if v := Count(3); v.Key != KeyCount {
		t.Fatalf("Count key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
