package compose

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"grafana", "grafana"},
		{"My Stack", "my_stack"},
		{"-traefik.v2-", "traefik_v2"},
		{"", "default"},
		{"___", "default"},
		{"home-assistant", "home-assistant"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ProjectName(c.in), "ProjectName(%q)", c.in)
	}
}

func TestLoadServices(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "monitoring")
	require.NoError(t, os.MkdirAll(dir, 0755))
	manifest := `services:
  prometheus:
    image: prom/prometheus:v2.53.0
  grafana:
    image: grafana/grafana:11.1.0
    container_name: grafana
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yaml"), []byte(manifest), 0644))

	project, err := Load(context.Background(), dir, "docker-compose.yaml")
	require.NoError(t, err)
	assert.Equal(t, "monitoring", project.Name)

	services := Services(project)
	require.Len(t, services, 2)
	assert.Equal(t, "grafana", services[0].Name)
	assert.Equal(t, "grafana/grafana:11.1.0", services[0].Image)
	assert.Equal(t, "grafana", services[0].ContainerName)
	assert.Equal(t, "prometheus", services[1].Name)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yaml"), []byte("services: [not, a, map]\n"), 0644))

	_, err := Load(context.Background(), dir, "docker-compose.yaml")
	assert.Error(t, err)
}

func TestLoad_NoManifest(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), "")
	assert.Error(t, err)
}
