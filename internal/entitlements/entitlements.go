// Package entitlements holds the licensed feature tier of a running daemon.
//
// An Entitlements value is built once at startup and passed by value into
// every handler that needs it. Nothing mutates it afterwards.
package entitlements

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Feature names accepted by Allows.
const (
	FeatureCIAPI       = "ciApi"
	FeatureWizards     = "wizards"
	FeatureHistoryDays = "historyDays"
)

// Where an Entitlements value was loaded from.
const (
	SourceEnv     = "env"
	SourceFile    = "file"
	SourceDefault = "default"
)

// DefaultEdition is the tier used when no license is present.
const DefaultEdition = "Community"

// Features are the named toggles of a license.
type Features struct {
	CIAPI       bool `json:"ciApi"`
	Wizards     bool `json:"wizards"`
	HistoryDays int  `json:"historyDays"`
}

// Entitlements is the license payload.
type Entitlements struct {
	Edition    string   `json:"edition"`
	MaxHosts   *int     `json:"maxHosts"`
	DemoStacks *int     `json:"demoStacks"`
	Features   Features `json:"features"`
	Org        *string  `json:"org"`

	// Source is not part of the license schema.
	Source string `json:"-"`
}

// Default returns the community tier.
func Default() Entitlements {
	maxHosts, demoStacks := 15, 3
	return Entitlements{
		Edition:    DefaultEdition,
		MaxHosts:   &maxHosts,
		DemoStacks: &demoStacks,
		Features: Features{
			CIAPI:       true,
			Wizards:     true,
			HistoryDays: 30,
		},
		Source: SourceDefault,
	}
}

// Allows reports whether the named feature is granted.
// Unknown feature names are never granted.
func (e Entitlements) Allows(feature string) bool {
	switch feature {
	case FeatureCIAPI:
		return e.Features.CIAPI
	case FeatureWizards:
		return e.Features.Wizards
	case FeatureHistoryDays:
		return e.Features.HistoryDays > 0
	}
	return false
}

// Load resolves the license: the JSON value of the environment variable
// envKey first, then the JSON file at path, then Default.
// A present but malformed payload falls through to the next source.
func Load(envKey, path string) Entitlements {
	if envKey != "" {
		if raw, ok := os.LookupEnv(envKey); ok {
			if e, err := Parse([]byte(raw)); err == nil {
				e.Source = SourceEnv
				return e
			}
		}
	}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if e, err := Parse(data); err == nil {
				e.Source = SourceFile
				return e
			}
		}
	}
	return Default()
}

// licenseFile mirrors the license schema with every required field as a
// pointer, so a missing field can be told apart from a zero value.
type licenseFile struct {
	Edition    string  `json:"edition"`
	MaxHosts   *int    `json:"maxHosts"`
	DemoStacks *int    `json:"demoStacks"`
	Org        *string `json:"org"`
	Features   *struct {
		CIAPI       *bool `json:"ciApi"`
		Wizards     *bool `json:"wizards"`
		HistoryDays *int  `json:"historyDays"`
	} `json:"features"`
}

// Parse decodes a license payload. Edition and every feature are required
// so that a partial payload cannot masquerade as a named tier with all
// features switched off. Counts must not be negative.
func Parse(data []byte) (Entitlements, error) {
	var f licenseFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Entitlements{}, fmt.Errorf("parsing license: %w", err)
	}
	if strings.TrimSpace(f.Edition) == "" {
		return Entitlements{}, fmt.Errorf("parsing license: 'edition' is required")
	}
	if f.Features == nil {
		return Entitlements{}, fmt.Errorf("parsing license: 'features' is required")
	}
	if f.Features.CIAPI == nil || f.Features.Wizards == nil || f.Features.HistoryDays == nil {
		return Entitlements{}, fmt.Errorf("parsing license: 'features' must set ciApi, wizards and historyDays")
	}
	if *f.Features.HistoryDays < 0 {
		return Entitlements{}, fmt.Errorf("parsing license: 'historyDays' cannot be negative")
	}
	for name, n := range map[string]*int{"maxHosts": f.MaxHosts, "demoStacks": f.DemoStacks} {
		if n != nil && *n < 0 {
			return Entitlements{}, fmt.Errorf("parsing license: '%s' cannot be negative", name)
		}
	}

	return Entitlements{
		Edition:    f.Edition,
		MaxHosts:   f.MaxHosts,
		DemoStacks: f.DemoStacks,
		Org:        f.Org,
		Features: Features{
			CIAPI:       *f.Features.CIAPI,
			Wizards:     *f.Features.Wizards,
			HistoryDays: *f.Features.HistoryDays,
		},
	}, nil
}
