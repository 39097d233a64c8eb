package main

import "testing"

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCmd()
	args := []string{
		"--addr", ":7000",
		"--write-timeout", "3s",
		"--outbound-queue", "32",
		"--messages-per-minute", "20",
		"--max-message-size", "2048",
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	want := map[string]string{
		"addr":                ":7000",
		"write-timeout":       "3s",
		"outbound-queue":      "32",
		"messages-per-minute": "20",
		"max-message-size":    "2048",
	}
	for name, value := range want {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("flag --%s not registered", name)
		}
		if f.Value.String() != value {
			t.Fatalf("--%s = %q, want %q", name, f.Value.String(), value)
		}
	}
}
