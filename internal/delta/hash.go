package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
)

// FileHash holds a file name and its SHA256 hash.
type FileHash struct {
	Name string
	Hash string
}

// HashDir hashes the regular files directly inside dir, in name order.
// Subdirectories are not entered and unreadable files are left out.
func HashDir(dir string) []FileHash {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	hashes := HashExistingFiles(paths)
	results := make([]FileHash, 0, len(hashes))
	for i, p := range paths {
		if h, ok := hashes[p]; ok {
			results = append(results, FileHash{Name: names[i], Hash: h})
		}
	}
	return results
}

// HashFile computes the SHA256 hash of a single file and returns "sha256:<hex>".
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// HashExistingFiles computes SHA256 hashes for files already on disk.
// Returns a map of path to hash for files that exist.
func HashExistingFiles(paths []string) map[string]string {
	result := make(map[string]string, len(paths))
	for _, p := range paths {
		h, err := HashFile(p)
		if err != nil {
			// missing or unreadable
			continue
		}
		result[p] = h
	}
	return result
}
