package storage

import (
	"strings"
	"testing"
)

func TestNewProviderLocalFS(t *testing.T) {
	sp, err := NewProvider(Config{Provider: "localfs", LocalRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if sp.Provider() != "localfs" {
		t.Fatalf("provider = %q, want localfs", sp.Provider())
	}
}

func TestNewProviderDefaultsToLocalFS(t *testing.T) {
	sp, err := NewProvider(Config{LocalRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if sp.Provider() != "localfs" {
		t.Fatalf("provider = %q, want localfs", sp.Provider())
	}
}

func TestNewProviderLocalFSRequiresRoot(t *testing.T) {
	_, err := NewProvider(Config{Provider: "localfs"})
	if err == nil {
		t.Fatal("expected error for missing root directory")
	}
	if !strings.Contains(err.Error(), "root directory") {
		t.Fatalf("error = %v", err)
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "s3"})
	if err == nil || !strings.Contains(err.Error(), "unknown storage provider") {
		t.Fatalf("error = %v", err)
	}
}
