package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/flo-mic/stackdash/internal/archive"
)

// Pull downloads <host>/<stack> as a bundle and unpacks it under --dest.
func Pull(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("pull", pflag.ContinueOnError)
	dest := fs.StringP("dest", "d", ".", "directory to unpack the stack into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: stackdash pull <host>/<stack> [--dest dir]")
	}
	host, stack, ok := strings.Cut(fs.Arg(0), "/")
	if !ok || host == "" || stack == "" || strings.Contains(stack, "/") {
		return fmt.Errorf("expected <host>/<stack>, got %q", fs.Arg(0))
	}

	c, err := loadAPIClient()
	if err != nil {
		return err
	}
	return c.pull(context.Background(), host, stack, *dest, stdout)
}

func (c *apiClient) pull(ctx context.Context, host, stack, dest string, stdout io.Writer) error {
	path := fmt.Sprintf("/api/inventory/%s/%s/bundle", url.PathEscape(host), url.PathEscape(stack))
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	n, err := archive.Extract(resp.Body, dest, stack+"/")
	if err != nil {
		return fmt.Errorf("extracting bundle: %w", err)
	}
	fmt.Fprintf(stdout, "Pulled %s/%s: %d files into %s\n", host, stack, n, filepath.Join(dest, stack))
	return nil
}
