package ledger_test

import (
	"os"
	"path/filepath"
	"testing"

	"inkwell/internal/ledger"
	"inkwell/internal/testsupport"
)

func TestHashStableAcrossRenames(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "recording.m4a")
	testsupport.WriteFile(t, original, 4096)

	first, err := ledger.Hash(original)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	renamed := filepath.Join(dir, "renamed.m4a")
	if err := os.Rename(original, renamed); err != nil {
		t.Fatalf("rename: %v", err)
	}

	second, err := ledger.Hash(renamed)
	if err != nil {
		t.Fatalf("Hash after rename returned error: %v", err)
	}
	if first != second {
		t.Fatalf("hash changed across rename: %q vs %q", first, second)
	}
}

func TestHashDiffersForDifferentContent(t *testing.T) {
	dir := t.TempDir()
	one := filepath.Join(dir, "one.txt")
	two := filepath.Join(dir, "two.txt")
	testsupport.WriteText(t, one, "first document")
	testsupport.WriteText(t, two, "second document")

	hashOne, err := ledger.Hash(one)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	hashTwo, err := ledger.Hash(two)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if hashOne == hashTwo {
		t.Fatal("different content produced identical hashes")
	}
}

func TestHashDirectoryUsesPathIdentity(t *testing.T) {
	dir := t.TempDir()
	folder := filepath.Join(dir, "session-folder")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	first, err := ledger.Hash(folder)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	testsupport.WriteText(t, filepath.Join(folder, "audio.txt"), "contents")

	second, err := ledger.Hash(folder)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if first != second {
		t.Fatal("directory hash must depend on path, not contents")
	}
}

func TestHashMissingFile(t *testing.T) {
	if _, err := ledger.Hash(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
