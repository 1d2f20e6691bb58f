package version

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.Commit != Commit {
		t.Errorf("Commit = %q, want %q", info.Commit, Commit)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion is empty")
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q, want os/arch form", info.Platform)
	}
}

func TestShort(t *testing.T) {
	info := Info{Version: "1.2.3"}
	if got := info.Short(); got != "1.2.3" {
		t.Errorf("Short() = %q, want %q", got, "1.2.3")
	}
}

func TestString(t *testing.T) {
	info := Info{Version: "1.2.3", Commit: "abc1234", Date: "2026-02-01T00:00:00Z"}
	got := info.String()
	for _, want := range []string{"1.2.3", "abc1234", "2026-02-01T00:00:00Z"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestInfoMarshalsWithSnakeCaseKeys(t *testing.T) {
	out, err := json.Marshal(Get())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, key := range []string{`"version"`, `"commit"`, `"go_version"`, `"platform"`} {
		if !strings.Contains(string(out), key) {
			t.Errorf("marshalled info %s missing key %s", out, key)
		}
	}
}
