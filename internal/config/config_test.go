package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateBackupDir(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"empty", "", false},
		{"existing dir", tmpDir, false},
		{"missing", filepath.Join(tmpDir, "missing"), true},
		{"file not dir", file, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBackupDir(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBackupDir(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateLibrary_HomeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if _, err := os.Stat(home); err != nil {
		t.Skip("Home directory does not exist")
	}

	if err := ValidateLibrary("~"); err != nil {
		t.Errorf("ValidateLibrary(~) error = %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~", home},
		{"~/Pictures", filepath.Join(home, "Pictures")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExpandPath(tt.input); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidKeys(t *testing.T) {
	cfg := &GlobalConfig{Library: "a", BackupDir: "b", SecurityScope: "c"}
	for _, key := range ValidKeys {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}
