package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/pflag"

	"github.com/flo-mic/stackdash/internal/api"
)

// Inventory prints the server's inventory as a table, or as raw JSON with --json.
func Inventory(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("inventory", pflag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the raw inventory JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := loadAPIClient()
	if err != nil {
		return err
	}
	return c.inventory(context.Background(), stdout, *asJSON)
}

func (c *apiClient) inventory(ctx context.Context, stdout io.Writer, asJSON bool) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/inventory", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if asJSON {
		_, err := io.Copy(stdout, resp.Body)
		return err
	}

	var inv api.Inventory
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return fmt.Errorf("parsing inventory: %w", err)
	}
	fmt.Fprintln(stdout, renderInventory(inv))
	return nil
}

func renderInventory(inv api.Inventory) string {
	if len(inv.Hosts) == 0 {
		return "No hosts found."
	}
	var rows [][]string
	stacks := 0
	for _, h := range inv.Hosts {
		groups := strings.Join(h.Groups, ",")
		if len(h.Stacks) == 0 {
			rows = append(rows, []string{h.Host, groups, "-", "", ""})
			continue
		}
		for _, st := range h.Stacks {
			sops := ""
			if st.Sops {
				sops = "yes"
			}
			rows = append(rows, []string{h.Host, groups, st.Name, string(st.Type), sops})
			stacks++
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("HOST", "GROUPS", "STACK", "TYPE", "SOPS").
		Rows(rows...)
	return fmt.Sprintf("%s\n%d hosts, %d stacks", t.Render(), len(inv.Hosts), stacks)
}
