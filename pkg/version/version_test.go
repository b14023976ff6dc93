package version

import (
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo("scribe")
	if info.Version == "" || info.GitCommit == "" || info.BuildDate == "" {
		t.Fatalf("expected non-empty version info")
	}
	if info.Component != "scribe" {
		t.Fatalf("expected component, got %q", info.Component)
	}
}

func TestGetShortCommit(t *testing.T) {
	old := GitCommit
	t.Cleanup(func() { GitCommit = old })

	GitCommit = "abcdef123456"
	if GetShortCommit() != "abcdef1" {
		t.Fatalf("expected short commit")
	}
	if s := GetInfo("ankh").String(); !strings.HasPrefix(s, "ankh ") || !strings.Contains(s, "abcdef1") {
		t.Fatalf("unexpected String() %q", s)
	}
}
