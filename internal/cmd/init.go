package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/flo-mic/stackdash/internal/config"
	"github.com/flo-mic/stackdash/internal/entitlements"
)

// initAnswers is everything the init wizard collects.
type initAnswers struct {
	ScanRoot    string
	Bind        string
	Token       string
	License     *entitlements.Entitlements
	LicensePath string
}

// serverFile is the on-disk form of server.yaml written by init. Durations
// are kept as strings so the file stays readable.
type serverFile struct {
	Bind        string `yaml:"bind"`
	ScanKind    string `yaml:"scan_kind"`
	ScanRoot    string `yaml:"scan_root"`
	LicensePath string `yaml:"license_path,omitempty"`
	RunInterval string `yaml:"run_interval"`
	Token       string `yaml:"token,omitempty"`
	LogLevel    string `yaml:"log_level"`
}

// Init runs the interactive setup wizard for a stackdashd host and points
// the local CLI at it.
func Init(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	reinit := fs.BoolP("reinit", "r", false, "overwrite an existing server config")
	configPath := fs.String("config", config.DefaultServerConfigPath, "where to write the server config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*configPath); err == nil && !*reinit {
		fmt.Fprintf(stdout, "%s already exists. Run with --reinit to overwrite.\n", *configPath)
		return nil
	}

	fmt.Fprintln(stdout, "Welcome to stackdash init. Let's configure the dashboard daemon.")
	fmt.Fprintln(stdout)

	defaults := config.DefaultServerConfig()
	a := initAnswers{ScanRoot: defaults.ScanRoot, Bind: defaults.Bind}

	// --- Step 1: Inventory location and listener ---
	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Stack inventory root").
			Description("Directory holding one subdirectory per host.").
			Value(&a.ScanRoot).
			Validate(func(s string) error {
				if !filepath.IsAbs(s) {
					return fmt.Errorf("must be an absolute path")
				}
				return nil
			}),
		huh.NewInput().
			Title("Listen address").
			Description("host:port, e.g. 0.0.0.0:3000").
			Value(&a.Bind).
			Validate(func(s string) error {
				_, _, err := net.SplitHostPort(s)
				return err
			}),
	)).Run(); err != nil {
		return err
	}

	// --- Step 2: Auth ---
	var protect bool
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Protect the API with a bearer token?").
			Description("A random token is generated and stored for this CLI.").
			Value(&protect),
	)).Run(); err != nil {
		return err
	}
	if protect {
		token, err := generateToken()
		if err != nil {
			return fmt.Errorf("generating token: %w", err)
		}
		a.Token = token
	}

	// --- Step 3: License ---
	var withLicense bool
	if err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Install a license file?").
			Description("No = run as Community edition").
			Value(&withLicense),
	)).Run(); err != nil {
		return err
	}
	if withLicense {
		lic, path, err := promptLicense(defaults.LicensePath)
		if err != nil {
			return err
		}
		a.License = lic
		a.LicensePath = path
	}

	if err := writeInit(a, *configPath, stdout); err != nil {
		return err
	}

	if err := config.SaveClientConfig(&config.ClientConfig{Server: clientURL(a.Bind), Token: a.Token}); err != nil {
		return fmt.Errorf("saving client config: %w", err)
	}
	fmt.Fprintln(stdout, "Updated ~/.config/stackdash/client.yaml")

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Done! Next steps:")
	fmt.Fprintf(stdout, "  1. Start the daemon: stackdashd --config %s\n", *configPath)
	fmt.Fprintln(stdout, "  2. Check the inventory: stackdash inventory")
	if a.Token != "" {
		fmt.Fprintf(stdout, "  3. Token is in %s (move to DDUI_TOKEN env var for better security)\n", *configPath)
	}
	return nil
}

func promptLicense(defaultPath string) (*entitlements.Entitlements, string, error) {
	edition := "Pro"
	org := ""
	path := defaultPath
	historyDays := "90"
	features := []string{entitlements.FeatureCIAPI, entitlements.FeatureWizards}

	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Edition").
			Options(huh.NewOptions("Community", "Pro", "Enterprise")...).
			Value(&edition),
		huh.NewInput().
			Title("Organisation").
			Value(&org),
		huh.NewMultiSelect[string]().
			Title("Features").
			Options(
				huh.NewOption("CI API (run streams)", entitlements.FeatureCIAPI),
				huh.NewOption("Wizards (stack bundles)", entitlements.FeatureWizards),
			).
			Value(&features),
		huh.NewInput().
			Title("History days").
			Value(&historyDays).
			Validate(validateDays),
		huh.NewInput().
			Title("License file path").
			Value(&path).
			Validate(func(s string) error {
				if !filepath.IsAbs(s) {
					return fmt.Errorf("must be an absolute path")
				}
				return nil
			}),
	)).Run(); err != nil {
		return nil, "", err
	}

	days, _ := strconv.Atoi(strings.TrimSpace(historyDays))
	lic := &entitlements.Entitlements{
		Edition: edition,
		Features: entitlements.Features{
			HistoryDays: days,
		},
	}
	for _, f := range features {
		switch f {
		case entitlements.FeatureCIAPI:
			lic.Features.CIAPI = true
		case entitlements.FeatureWizards:
			lic.Features.Wizards = true
		}
	}
	if org = strings.TrimSpace(org); org != "" {
		lic.Org = &org
	}
	return lic, path, nil
}

// writeInit writes server.yaml and, when a license was entered, the
// license JSON next to it.
func writeInit(a initAnswers, configPath string, stdout io.Writer) error {
	sf := serverFile{
		Bind:        a.Bind,
		ScanKind:    "local",
		ScanRoot:    a.ScanRoot,
		RunInterval: config.DefaultServerConfig().RunInterval.String(),
		Token:       a.Token,
		LogLevel:    "info",
	}
	if a.License != nil {
		sf.LicensePath = a.LicensePath
	}

	data, err := yaml.Marshal(sf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	mode := os.FileMode(0644)
	if a.Token != "" {
		mode = 0600
	}
	if err := os.WriteFile(configPath, data, mode); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created %s\n", configPath)

	if a.License == nil {
		return nil
	}
	lic, err := json.MarshalIndent(a.License, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.LicensePath), 0755); err != nil {
		return fmt.Errorf("creating license dir: %w", err)
	}
	if err := os.WriteFile(a.LicensePath, append(lic, '\n'), 0600); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created %s\n", a.LicensePath)
	return nil
}

// clientURL turns a listen address into something the local CLI can dial.
func clientURL(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return config.DefaultServerURL
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func validateDays(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return fmt.Errorf("must be a whole number of days")
	}
	return nil
}
