// Package compose reads the services a stack declares in its compose
// manifest. It never talks to a docker daemon.
package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"

	"github.com/flo-mic/stackdash/internal/api"
)

var projRe = regexp.MustCompile(`[^a-z0-9_-]+`)

// ProjectName turns a stack directory name into a valid compose project
// name, the same way docker compose labels its containers.
func ProjectName(stack string) string {
	s := strings.ToLower(strings.TrimSpace(stack))
	s = strings.ReplaceAll(s, " ", "_")
	s = projRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_-")
	if s == "" {
		s = "default"
	}
	return s
}

// Load parses dir/manifest into a compose project. Variables are
// interpolated from the process environment; env_file entries are not
// resolved, so a stack with undecrypted secrets still loads.
func Load(ctx context.Context, dir, manifest string) (*composetypes.Project, error) {
	if manifest == "" {
		return nil, errors.New("no compose manifest")
	}
	path := filepath.Join(dir, manifest)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file %s: %w", path, err)
	}

	env := make(composetypes.Mapping)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[key] = value
	}

	details := composetypes.ConfigDetails{
		WorkingDir:  dir,
		ConfigFiles: []composetypes.ConfigFile{{Filename: path, Content: data}},
		Environment: env,
	}
	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(ProjectName(filepath.Base(dir)), true)
		o.SkipResolveEnvironment = true
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", manifest, err)
	}
	return project, nil
}

// Services lists the project's services sorted by name.
func Services(project *composetypes.Project) []api.Service {
	out := make([]api.Service, 0, len(project.Services))
	for name, svc := range project.Services {
		out = append(out, api.Service{
			Name:          name,
			Image:         svc.Image,
			ContainerName: svc.ContainerName,
		})
	}
	slices.SortFunc(out, func(a, b api.Service) int { return strings.Compare(a.Name, b.Name) })
	return out
}
