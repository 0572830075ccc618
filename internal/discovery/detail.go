package discovery

import (
	"context"

	"github.com/flo-mic/stackdash/internal/api"
	"github.com/flo-mic/stackdash/internal/compose"
	"github.com/flo-mic/stackdash/internal/delta"
)

// Detail describes one stack in depth: its declared services and the
// files at its top level. A manifest that fails to load is reported in
// the Error field rather than as an error.
func Detail(ctx context.Context, stack api.Stack) api.StackDetail {
	d := api.StackDetail{
		Stack:    stack,
		Services: []api.Service{},
		Files:    []api.StackFile{},
	}

	for _, fh := range delta.HashDir(stack.Path) {
		d.Files = append(d.Files, api.StackFile{
			Name: fh.Name,
			Hash: fh.Hash,
			Sops: IsSopsName(fh.Name),
		})
	}

	if stack.Type != api.StackCompose {
		return d
	}
	d.Manifest = ManifestName(stack.Path)
	project, err := compose.Load(ctx, stack.Path, d.Manifest)
	if err != nil {
		d.Error = err.Error()
		return d
	}
	d.Services = compose.Services(project)
	return d
}
