package config

import (
	"testing"
)

func TestDefaultDataDirXDGOverride(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/frontier" {
		t.Fatalf("expected /custom/data/frontier, got %s", got)
	}
}

func TestDefaultDataDirNonEmpty(t *testing.T) {
	if DefaultDataDir() == "" {
		t.Fatal("DefaultDataDir should not return empty string")
	}
}

func TestIsDir(t *testing.T) {
	if !isDir(".") {
		t.Fatal("current directory should be a directory")
	}
	if isDir("/non/existent/path/that/does/not/exist") {
		t.Fatal("missing path should not be a directory")
	}
}
