package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "show", "export", "cursors", "reset", "prune", "simulate-alert", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == rootCmd {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--config", "/does/not/exist.yaml"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version should not need a config file: %v", err)
	}
	if !strings.HasPrefix(out.String(), "nftalerts ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestParseTimeFlag(t *testing.T) {
	if got, err := parseTimeFlag("from", ""); err != nil || got != nil {
		t.Fatalf("empty flag should yield nil, got %v %v", got, err)
	}
	got, err := parseTimeFlag("from", "2024-05-01T00:00:00Z")
	if err != nil || got == nil || got.Year() != 2024 {
		t.Fatalf("unexpected parse result %v %v", got, err)
	}
	if _, err := parseTimeFlag("from", "yesterday"); err == nil || !strings.Contains(err.Error(), "--from") {
		t.Fatalf("bad value should name the flag, got %v", err)
	}
}
