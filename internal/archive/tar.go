package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BundleExcludes are never shipped in a stack bundle: VCS metadata and
// plaintext env files.
var BundleExcludes = []string{".git/", ".env", "*.env"}

// SkipFunc decides whether a path relative to the archived directory is left out.
type SkipFunc func(rel string, isDir bool) bool

// Excluding returns a SkipFunc backed by ShouldExclude. Files for which keep
// returns true are included even when a pattern matches them.
func Excluding(excludes []string, keep func(name string) bool) SkipFunc {
	return func(rel string, isDir bool) bool {
		if !isDir && keep != nil && keep(filepath.Base(rel)) {
			return false
		}
		return ShouldExclude(rel, isDir, excludes)
	}
}

// AddFile adds a single file to a tar writer under the given archive path.
func AddFile(tw *tar.Writer, srcPath, archivePath string, mode int64) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:     archivePath,
		Mode:     mode,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// AddDir recursively adds srcDir to the tar writer under archivePrefix,
// keeping file permissions. A symlink is stored as a regular file only when
// it resolves to a regular file inside srcDir that skip would also keep.
// Other symlinks and special files are skipped.
func AddDir(tw *tar.Writer, srcDir, archivePrefix string, skip SkipFunc) error {
	root, err := filepath.EvalSymlinks(srcDir)
	if err != nil {
		return err
	}
	return filepath.Walk(srcDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if skip != nil && skip(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		archivePath := path.Join(archivePrefix, filepath.ToSlash(rel))

		switch {
		case info.IsDir():
			return tw.WriteHeader(&tar.Header{
				Name:     archivePath + "/",
				Mode:     int64(info.Mode().Perm()),
				Typeflag: tar.TypeDir,
				ModTime:  info.ModTime(),
			})
		case info.Mode().IsRegular():
			return AddFile(tw, p, archivePath, int64(info.Mode().Perm()))
		case info.Mode()&os.ModeSymlink != 0:
			target, st, ok := containedTarget(root, p, skip)
			if !ok {
				return nil
			}
			return AddFile(tw, target, archivePath, int64(st.Mode().Perm()))
		}
		return nil
	})
}

// containedTarget resolves the symlink at p and reports whether it points
// at a regular file under root that skip does not exclude.
func containedTarget(root, p string, skip SkipFunc) (string, os.FileInfo, bool) {
	target, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", nil, false
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", nil, false
	}
	if skip != nil && skip(rel, false) {
		return "", nil, false
	}
	st, err := os.Stat(target)
	if err != nil || !st.Mode().IsRegular() {
		return "", nil, false
	}
	return target, st, true
}

// ShouldExclude returns true if the relative path matches any exclude pattern.
// Patterns ending with "/" match directories only.
func ShouldExclude(rel string, isDir bool, excludes []string) bool {
	for _, pattern := range excludes {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			if isDir && (rel == dirPattern || filepath.Base(rel) == dirPattern) {
				return true
			}
			if strings.HasPrefix(rel, dirPattern+string(filepath.Separator)) {
				return true
			}
			continue
		}

		if matched, _ := filepath.Match(pattern, filepath.Base(rel)); matched {
			return true
		}
		if rel == pattern || strings.HasPrefix(rel, pattern+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// NewWriter returns a gzip+tar writer wrapping w.
// The caller must close both the returned *tar.Writer and *gzip.Writer.
func NewWriter(w io.Writer) (*tar.Writer, *gzip.Writer) {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)
	return tw, gw
}

// WriteDir writes srcDir as a complete tar.gz stream to w.
func WriteDir(w io.Writer, srcDir, archivePrefix string, skip SkipFunc) error {
	tw, gw := NewWriter(w)
	if err := AddDir(tw, srcDir, archivePrefix, skip); err != nil {
		tw.Close()
		gw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

// Extract unpacks a tar.gz from r into destDir.
// Only entries whose name starts with allowedPrefix are extracted, and no
// entry may resolve outside destDir.
func Extract(r io.Reader, destDir, allowedPrefix string) (int, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("gzip: %w", err)
	}
	defer gr.Close()

	root := filepath.Clean(destDir)
	files := 0
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return files, fmt.Errorf("tar: %w", err)
		}

		if !strings.HasPrefix(hdr.Name, allowedPrefix) {
			continue
		}

		target := filepath.Join(root, filepath.Clean("/"+hdr.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0700); err != nil {
				return files, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return files, err
			}
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return files, err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return files, err
			}
			if err := f.Close(); err != nil {
				return files, err
			}
			files++
		}
	}
	return files, nil
}
