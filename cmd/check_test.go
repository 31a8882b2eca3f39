package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunCheck_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "valid.hcl")

	validConfig := `
store {
    path = "/var/lib/warden/users.db"
}

service {
    port = 51820
}

sync {
    interval_seconds = 10
    vip_every        = 6
}
`
	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := RunCheck(configPath, true); err != nil {
		t.Errorf("RunCheck() error = %v, want nil", err)
	}
}

func TestRunCheck_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.hcl")

	invalidConfig := `
service {
    # Missing closing brace
`
	if err := os.WriteFile(configPath, []byte(invalidConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := RunCheck(configPath, false); err == nil {
		t.Error("RunCheck() error = nil, want parse error")
	}
}

func TestRunCheck_MissingFile(t *testing.T) {
	if err := RunCheck(filepath.Join(t.TempDir(), "nope.hcl"), false); err == nil {
		t.Error("RunCheck() error = nil, want read error")
	}
}
