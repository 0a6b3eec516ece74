package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBackupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectConfigName)

	t.Run("no file", func(t *testing.T) {
		backup, err := BackupFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backup != "" {
			t.Errorf("expected no backup, got %s", backup)
		}
	})

	t.Run("existing file", func(t *testing.T) {
		content := "index:\n  page_size: 50\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		backup, err := BackupFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := os.ReadFile(backup)
		if err != nil {
			t.Fatalf("failed to read backup: %v", err)
		}
		if string(data) != content {
			t.Errorf("backup content mismatch: %q", data)
		}
	})
}

func TestBackupFile_PrunesOldBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	defer func() { now = time.Now }()

	for i := 0; i < MaxBackups+2; i++ {
		now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		if _, err := BackupFile(path); err != nil {
			t.Fatalf("backup %d failed: %v", i, err)
		}
	}

	backups, err := ListBackups(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != MaxBackups {
		t.Fatalf("expected %d backups, got %d", MaxBackups, len(backups))
	}
	newest := fmt.Sprintf("%s%s.%s", path, BackupSuffix, base.Add(time.Duration(MaxBackups+1)*time.Second).Format("20060102-150405.000"))
	if backups[0] != newest {
		t.Errorf("expected newest first (%s), got %s", newest, backups[0])
	}
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ProjectConfigName)

	backup, err := WriteTemplate(path, "first\n")
	if err != nil || backup != "" {
		t.Fatalf("first write: backup=%q err=%v", backup, err)
	}

	backup, err = WriteTemplate(path, "second\n")
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if backup == "" {
		t.Fatal("expected a backup of the first template")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "second\n" {
		t.Errorf("unexpected content: %q", data)
	}
}
