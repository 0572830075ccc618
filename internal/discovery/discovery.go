// Package discovery builds the host → stack inventory from a directory tree
// laid out as <scan root>/<host>/<stack>.
//
// The walk is shallow and best-effort: every entry that cannot be read is
// dropped on its own and the scan carries on. Scan never returns an error.
package discovery

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/flo-mic/stackdash/internal/api"
)

// Compose manifests recognised inside a stack directory, in lookup order.
var ManifestNames = []string{"docker-compose.yaml", "docker-compose.tpl.yaml"}

const (
	sopsSuffix = ".env.sops"
	sopsInfix  = ".sops."
)

// ErrNotFound is returned by Lookup when the host or stack does not exist.
var ErrNotFound = errors.New("stack not found")

// Scan returns the inventory under root. A missing or unreadable root
// yields an empty inventory. Hosts and stacks are sorted by name.
func Scan(root string, logger *slog.Logger) api.Inventory {
	if logger == nil {
		logger = slog.Default()
	}
	inv := api.Inventory{Hosts: []api.Host{}}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Debug("scan root unreadable", "root", root, "err", err)
		return inv
	}

	for _, e := range entries {
		if h, ok := scanHost(filepath.Join(root, e.Name()), logger); ok {
			inv.Hosts = append(inv.Hosts, h)
		}
	}
	slices.SortFunc(inv.Hosts, func(a, b api.Host) int { return strings.Compare(a.Host, b.Host) })
	return inv
}

// scanHost returns ok=false when dir is not a directory. A host whose
// stack list cannot be read is kept with no stacks.
func scanHost(dir string, logger *slog.Logger) (api.Host, bool) {
	if !isDir(dir) {
		return api.Host{}, false
	}
	h := api.Host{
		Host:   filepath.Base(dir),
		Groups: []string{},
		Stacks: []api.Stack{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Debug("host unreadable, skipping stacks", "host", h.Host, "err", err)
		return h, true
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !isDir(path) {
			continue
		}
		h.Stacks = append(h.Stacks, ClassifyStack(path))
	}
	slices.SortFunc(h.Stacks, func(a, b api.Stack) int { return strings.Compare(a.Name, b.Name) })
	return h, true
}

// ClassifyStack describes the stack rooted at dir without descending
// into its subdirectories.
func ClassifyStack(dir string) api.Stack {
	typ := api.StackScript
	if ManifestName(dir) != "" {
		typ = api.StackCompose
	}
	return api.Stack{
		Name:       filepath.Base(dir),
		Type:       typ,
		Path:       dir,
		Sops:       HasSopsFile(dir),
		Containers: []api.Container{},
	}
}

// ManifestName returns the first compose manifest present in dir, or "".
func ManifestName(dir string) string {
	for _, name := range ManifestNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return name
		}
	}
	return ""
}

// HasSopsFile reports whether a regular file directly inside dir follows
// the sops naming convention. It stops at the first match.
func HasSopsFile(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Type().IsRegular() && IsSopsName(e.Name()) {
			return true
		}
	}
	return false
}

// IsSopsName reports whether a file name marks a sops-encrypted secret.
// The match is case-insensitive.
func IsSopsName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, sopsSuffix) || strings.Contains(lower, sopsInfix)
}

// Lookup classifies root/host/stack. Both names must be single path
// elements naming existing directories.
func Lookup(root, host, stack string) (api.Stack, error) {
	if !validName(host) || !validName(stack) {
		return api.Stack{}, ErrNotFound
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	dir := filepath.Join(root, host, stack)
	if !isDir(filepath.Join(root, host)) || !isDir(dir) {
		return api.Stack{}, ErrNotFound
	}
	return ClassifyStack(dir), nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// isDir follows symlinks, so a link to a directory counts as one.
func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
