package checkpoint

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"linkreach/pkg/models"
)

const rootURL = "https://www.linkedin.com/in/acme-founder"

func TestCheckpointManager(t *testing.T) {
	dir := t.TempDir()

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(dir, rootURL)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(rootURL)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.RootURL != rootURL {
			t.Errorf("Expected root URL %s, got %s", rootURL, cp.RootURL)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Version != currentVersion {
			t.Errorf("Expected version %d, got %d", currentVersion, loaded.Version)
		}
	})

	t.Run("RecordPage", func(t *testing.T) {
		mgr, err := NewManager(dir, rootURL)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		cp, err := mgr.Create(rootURL)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		page := []models.Profile{{ProfileURL: "https://www.linkedin.com/in/a"}, {ProfileURL: "https://www.linkedin.com/in/b"}}
		if err := mgr.RecordPage(cp, page, "2", 40); err != nil {
			t.Fatalf("Failed to record page: %v", err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded.NextCursor != "2" {
			t.Errorf("Expected cursor 2, got %s", loaded.NextCursor)
		}
		if len(loaded.Profiles) != 2 || loaded.Pages != 1 || loaded.TotalCount != 40 {
			t.Errorf("Unexpected checkpoint state: %+v", loaded)
		}
	})

	t.Run("LoadMissing", func(t *testing.T) {
		mgr, err := NewManager(dir, "https://www.linkedin.com/in/nobody")
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		cp, err := mgr.Load()
		if err != nil || cp != nil {
			t.Errorf("Expected nil checkpoint and nil error, got %v, %v", cp, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManager(dir, rootURL)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if !mgr.Exists() {
			t.Fatal("Expected checkpoint to exist")
		}
		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Checkpoint should not exist after deletion")
		}
		if err := mgr.Delete(); err != nil {
			t.Errorf("Deleting a missing checkpoint should not fail: %v", err)
		}
	})
}

func TestCorruptedCheckpoint(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir, rootURL)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if err := os.WriteFile(mgr.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupted checkpoint: %v", err)
	}
	if _, err := mgr.Load(); err == nil {
		t.Error("Expected error loading corrupted checkpoint")
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		rootURL:                                  "acme-founder.checkpoint.json",
		"https://www.linkedin.com/in/jöhn.doe/": "j_hn_doe.checkpoint.json",
		"":                                       "profile.checkpoint.json",
	}
	for in, want := range tests {
		if got := fileName(in); got != want {
			t.Errorf("fileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDataDirectoryHonorsXDG(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG_DATA_HOME only applies on Unix-like systems")
	}
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := DataDirectory()
	if err != nil {
		t.Fatalf("DataDirectory: %v", err)
	}
	if filepath.Base(dir) != "linkreach" {
		t.Errorf("unexpected data directory %s", dir)
	}
}
