// Package groups resolves host-group membership from a YAML file and
// attaches it to a discovered inventory.
package groups

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/flo-mic/stackdash/internal/api"
)

// groupsFile mirrors groups.yaml:
//
//	groups:
//	  edge: [hostA, hostB]
type groupsFile struct {
	Groups map[string][]string `yaml:"groups"`
}

// Resolver maps host names to the groups they belong to.
type Resolver struct {
	byHost map[string][]string
}

// Load reads the groups file at path. A missing file, or an empty path,
// gives an empty Resolver.
func Load(path string) (*Resolver, error) {
	r := &Resolver{byHost: map[string][]string{}}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return r, fmt.Errorf("reading groups file: %w", err)
	}

	var f groupsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return r, fmt.Errorf("parsing %s: %w", path, err)
	}
	for group, hosts := range f.Groups {
		for _, h := range hosts {
			if !slices.Contains(r.byHost[h], group) {
				r.byHost[h] = append(r.byHost[h], group)
			}
		}
	}
	for h := range r.byHost {
		slices.Sort(r.byHost[h])
	}
	return r, nil
}

// Groups returns the sorted groups of host, never nil.
func (r *Resolver) Groups(host string) []string {
	if r == nil || len(r.byHost[host]) == 0 {
		return []string{}
	}
	return slices.Clone(r.byHost[host])
}

// Apply fills in Host.Groups for every host of inv.
func (r *Resolver) Apply(inv *api.Inventory) {
	for i := range inv.Hosts {
		inv.Hosts[i].Groups = r.Groups(inv.Hosts[i].Host)
	}
}
