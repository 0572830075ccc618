package delta

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHashFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "compose-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("services: {}\n")
	f.Close()

	hash, err := HashFile(f.Name())
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if !strings.HasPrefix(hash, "sha256:") {
		t.Errorf("expected sha256: prefix, got %q", hash)
	}
	hash2, _ := HashFile(f.Name())
	if hash != hash2 {
		t.Errorf("hashes differ for same file: %q vs %q", hash, hash2)
	}
}

func TestHashFile_DifferentContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.env")
	b := filepath.Join(dir, "b.env")
	os.WriteFile(a, []byte("PORT=80"), 0644)
	os.WriteFile(b, []byte("PORT=81"), 0644)

	ha, _ := HashFile(a)
	hb, _ := HashFile(b)
	if ha == hb {
		t.Errorf("files with different content should have different hashes")
	}
}

func TestHashFile_Missing(t *testing.T) {
	_, err := HashFile("/nonexistent/path/docker-compose.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestHashExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "deploy.sh")
	os.WriteFile(existing, []byte("#!/bin/sh\n"), 0755)
	missing := filepath.Join(dir, "missing.sh")

	result := HashExistingFiles([]string{existing, missing})

	if !strings.HasPrefix(result[existing], "sha256:") {
		t.Errorf("expected sha256 hash for %q, got %q", existing, result[existing])
	}
	want, err := HashFile(existing)
	if err != nil {
		t.Fatal(err)
	}
	if result[existing] != want {
		t.Errorf("HashExistingFiles = %q, HashFile = %q", result[existing], want)
	}
	if _, ok := result[missing]; ok {
		t.Errorf("missing file should not appear in result")
	}
}

func TestHashDir_ShallowAndSorted(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "z.env.sops"), []byte("enc"), 0644)
	os.WriteFile(filepath.Join(dir, "docker-compose.yaml"), []byte("services: {}"), 0644)
	os.MkdirAll(filepath.Join(dir, "config"), 0755)
	os.WriteFile(filepath.Join(dir, "config", "nested.yml"), []byte("x"), 0644)

	got := HashDir(dir)
	if len(got) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(got), got)
	}
	if got[0].Name != "docker-compose.yaml" || got[1].Name != "z.env.sops" {
		t.Errorf("unexpected order: %v", got)
	}
	if want, _ := HashFile(filepath.Join(dir, "docker-compose.yaml")); got[0].Hash != want {
		t.Errorf("HashDir hash = %q, want %q", got[0].Hash, want)
	}
}

func TestHashDir_Missing(t *testing.T) {
	if got := HashDir(filepath.Join(t.TempDir(), "nope")); len(got) != 0 {
		t.Errorf("expected no files, got %v", got)
	}
}
