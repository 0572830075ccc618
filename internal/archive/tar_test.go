package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShouldExclude(t *testing.T) {
	cases := []struct {
		rel     string
		isDir   bool
		pattern string
		want    bool
	}{
		{".git", true, ".git/", true},
		{".git/HEAD", false, ".git/", true},
		{"sub/.git", true, ".git/", true},
		{"app/.git", false, ".git/", false},
		{".env", false, ".env", true},
		{"app/.env", false, ".env", true},
		{"prod.env", false, "*.env", true},
		{"config/prod.env", false, "*.env", true},
		{"secrets.env.sops", false, "*.env", false},
		{"docker-compose.yaml", false, "*.env", false},
	}

	for _, c := range cases {
		got := ShouldExclude(c.rel, c.isDir, []string{c.pattern})
		if got != c.want {
			t.Errorf("ShouldExclude(%q, isDir=%v, %q) = %v, want %v", c.rel, c.isDir, c.pattern, got, c.want)
		}
	}
}

func TestExcluding_Keep(t *testing.T) {
	keepSops := func(name string) bool { return strings.Contains(name, ".sops.") }
	skip := Excluding(BundleExcludes, keepSops)

	if skip("app.sops.env", false) {
		t.Error("sops file should be kept even though *.env matches")
	}
	if !skip("app.env", false) {
		t.Error("plain env file should be skipped")
	}
	if !skip(".git", true) {
		t.Error(".git should be skipped")
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		mode := os.FileMode(0644)
		if strings.HasSuffix(rel, ".sh") {
			mode = 0755
		}
		if err := os.WriteFile(p, []byte(content), mode); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWriteDirAndExtract(t *testing.T) {
	srcDir := t.TempDir()
	writeTree(t, srcDir, map[string]string{
		"docker-compose.yaml": "services: {}\n",
		"deploy.sh":           "#!/bin/sh\n",
		".env":                "PASSWORD=hunter2\n",
		"secrets.env.sops":    "ENC[...]\n",
		".git/HEAD":           "ref: refs/heads/main\n",
		"conf/app.conf":       "x=1\n",
	})

	var buf bytes.Buffer
	if err := WriteDir(&buf, srcDir, "web", Excluding(BundleExcludes, nil)); err != nil {
		t.Fatal(err)
	}

	destDir := t.TempDir()
	n, err := Extract(bytes.NewReader(buf.Bytes()), destDir, "web/")
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("extracted %d files, want 4", n)
	}

	for _, rel := range []string{"docker-compose.yaml", "deploy.sh", "secrets.env.sops", "conf/app.conf"} {
		if _, err := os.Stat(filepath.Join(destDir, "web", rel)); err != nil {
			t.Errorf("%s should exist: %v", rel, err)
		}
	}
	for _, rel := range []string{".env", ".git"} {
		if _, err := os.Stat(filepath.Join(destDir, "web", rel)); err == nil {
			t.Errorf("%s should have been excluded", rel)
		}
	}

	info, err := os.Stat(filepath.Join(destDir, "web", "deploy.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("deploy.sh lost its exec bit: %v", info.Mode())
	}
}

func TestExtract_PathTraversal(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, name := range []string{"web/../../evil", "other/file", "web/ok"} {
		body := []byte("x")
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		tw.Write(body)
	}
	tw.Close()
	gw.Close()

	parent := t.TempDir()
	destDir := filepath.Join(parent, "dest")
	n, err := Extract(&buf, destDir, "web/")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("extracted %d files, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(parent, "evil")); err == nil {
		t.Error("entry escaped the destination directory")
	}
	if _, err := os.Stat(filepath.Join(destDir, "evil")); err != nil {
		t.Errorf("traversal entry should be clamped into dest: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "other")); err == nil {
		t.Error("entry outside the allowed prefix was extracted")
	}
}

func TestWriteDir_Symlinks(t *testing.T) {
	outside := t.TempDir()
	writeTree(t, outside, map[string]string{"passwd": "root:x:0:0\n"})

	srcDir := t.TempDir()
	writeTree(t, srcDir, map[string]string{
		"docker-compose.yaml": "services: {}\n",
		".env":                "PASSWORD=hunter2\n",
		"conf/base.conf":      "x=1\n",
	})
	links := map[string]string{
		"leak":        filepath.Join(outside, "passwd"),
		"up":          "../" + filepath.Base(outside) + "/passwd",
		"outdir":      outside,
		"env-alias":   ".env",
		"compose.yml": "docker-compose.yaml",
		"conf/app":    "base.conf",
		"dangling":    "missing",
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(srcDir, name)); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := WriteDir(&buf, srcDir, "web", Excluding(BundleExcludes, nil)); err != nil {
		t.Fatal(err)
	}
	destDir := t.TempDir()
	if _, err := Extract(bytes.NewReader(buf.Bytes()), destDir, "web/"); err != nil {
		t.Fatal(err)
	}

	for _, rel := range []string{"leak", "up", "outdir", "env-alias", "dangling"} {
		if _, err := os.Lstat(filepath.Join(destDir, "web", rel)); err == nil {
			t.Errorf("symlink %s should not have been bundled", rel)
		}
	}
	for rel, want := range map[string]string{"compose.yml": "services: {}\n", "conf/app": "x=1\n"} {
		data, err := os.ReadFile(filepath.Join(destDir, "web", rel))
		if err != nil {
			t.Errorf("symlink %s inside the directory should be bundled: %v", rel, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", rel, data, want)
		}
	}
}
