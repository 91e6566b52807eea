// Package config loads assignbot run configuration.
//
// Values are layered, later layers winning:
//
//  1. Default()
//  2. YAML file (.github/assignbot.yml, or an explicit path)
//  3. Environment (ASSIGNBOT_*, plus GITHUB_TOKEN / GITHUB_REPOSITORY from Actions)
//  4. Command-line flags (applied by the CLI)
package config

import (
	"fmt"
	"strings"

	"github.com/steveyegge/assignbot/internal/priorities"
	"github.com/steveyegge/assignbot/internal/refactor"
	"github.com/steveyegge/assignbot/internal/types"
)

// DefaultBotLogin is the assignee that receives work unless configured otherwise.
const DefaultBotLogin = "Copilot"

// Config holds the configuration for one run
type Config struct {
	// Repository is "owner/name"
	Repository string `yaml:"repository"`

	// Token authenticates against the tracker. Never read from the YAML file.
	Token string `yaml:"-"`

	// BotLogin is the login of the bot account among the repository's assignable actors
	// Default: Copilot
	BotLogin string `yaml:"bot"`

	// Mode is "auto" or "refactor"
	// Default: auto
	Mode string `yaml:"mode"`

	// Trigger is what started the run: manual, schedule or issue_closed
	// Default: manual
	Trigger string `yaml:"-"`

	// Label restricts the search to a single label pool and disables the fallback scan
	Label string `yaml:"-"`

	// Force assigns even when the bot already holds issues (auto mode only)
	Force bool `yaml:"force"`

	// DryRun runs the full decision without mutating the tracker
	DryRun bool `yaml:"dry_run"`

	// AllowParentIssues lets issues with sub-issues be assigned
	// Default: false
	AllowParentIssues bool `yaml:"allow_parent_issues"`

	// SkipLabels excludes issues carrying any of these labels
	SkipLabels []string `yaml:"skip_labels"`

	// LabelPriority is the pool search order
	// Default: bug, documentation, refactor, enhancement
	LabelPriority []string `yaml:"label_priority"`

	// RefactorThreshold is the number of recent closed issues inspected by the cadence check
	// Default: 4, Range: 1-50
	RefactorThreshold int `yaml:"refactor_threshold"`

	// RefactorTitle prefixes the title of created refactor issues
	RefactorTitle string `yaml:"refactor_title"`

	// Concurrency bounds concurrent sub-issue lookups
	// Default: 4, Range: 1-32
	Concurrency int `yaml:"concurrency"`

	// FailSafeHasChildren is the sub-issue answer when nothing could be verified
	// Default: true
	FailSafeHasChildren bool `yaml:"fail_safe_has_children"`

	// Transport tunes API access
	Transport TransportConfig `yaml:"transport"`

	// LogFormat is "text" or "json"
	LogFormat string `yaml:"log_format"`

	// LogLevel is "debug", "info", "warn" or "error"
	LogLevel string `yaml:"log_level"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		BotLogin:            DefaultBotLogin,
		Mode:                "auto",
		Trigger:             string(types.TriggerManual),
		LabelPriority:       priorities.Default(),
		RefactorThreshold:   refactor.DefaultThreshold,
		RefactorTitle:       refactor.DefaultTitlePrefix,
		Concurrency:         4,
		FailSafeHasChildren: true,
		Transport:           DefaultTransportConfig(),
		LogFormat:           "text",
		LogLevel:            "info",
	}
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if _, _, err := c.RepoParts(); err != nil {
		return err
	}
	if strings.TrimSpace(c.BotLogin) == "" {
		return fmt.Errorf("bot login is required")
	}
	if _, err := types.ParseMode(c.Mode); err != nil {
		return err
	}
	if !types.Trigger(c.Trigger).IsValid() {
		return fmt.Errorf("invalid trigger %q (want manual, schedule or issue_closed)", c.Trigger)
	}
	if c.RefactorThreshold < 1 || c.RefactorThreshold > 50 {
		return fmt.Errorf("refactor_threshold must be between 1 and 50 (got %d)", c.RefactorThreshold)
	}
	if c.Concurrency < 1 || c.Concurrency > 32 {
		return fmt.Errorf("concurrency must be between 1 and 32 (got %d)", c.Concurrency)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be 'text' or 'json' (got %q)", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	return c.Transport.Validate()
}

// RepoParts splits Repository into owner and name.
func (c *Config) RepoParts() (owner, name string, err error) {
	parts := strings.Split(strings.TrimSpace(c.Repository), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be owner/name (got %q)", c.Repository)
	}
	return parts[0], parts[1], nil
}

// Policy builds the decision policy for this run. Call Validate first.
func (c *Config) Policy() types.Policy {
	mode, _ := types.ParseMode(c.Mode)
	return types.Policy{
		AllowParentIssues: c.AllowParentIssues,
		SkipLabels:        append([]string(nil), c.SkipLabels...),
		LabelPriority:     priorities.PoolOrder("", c.LabelPriority),
		Force:             c.Force,
		Mode:              mode,
	}
}

// String returns a human-readable representation of the config with the token redacted
func (c *Config) String() string {
	token := "unset"
	if c.Token != "" {
		token = "set"
	}
	return fmt.Sprintf(
		"Config{Repository: %s, Bot: %s, Token: %s, Mode: %s, Trigger: %s, Label: %q, "+
			"Force: %t, DryRun: %t, AllowParentIssues: %t, SkipLabels: %v, LabelPriority: %v, "+
			"RefactorThreshold: %d, Concurrency: %d, FailSafeHasChildren: %t, %s}",
		c.Repository, c.BotLogin, token, c.Mode, c.Trigger, c.Label,
		c.Force, c.DryRun, c.AllowParentIssues, c.SkipLabels, c.LabelPriority,
		c.RefactorThreshold, c.Concurrency, c.FailSafeHasChildren, c.Transport,
	)
}
