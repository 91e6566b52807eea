package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFilePath is read when no explicit config file is given. It is optional.
const DefaultFilePath = ".github/assignbot.yml"

// Load builds a configuration from defaults, the config file and the environment.
// An empty path reads DefaultFilePath if it exists; an explicit path must exist.
// The result is not validated so flags can still be applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFilePath
	}
	if err := cfg.applyFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays the YAML file at path. Keys absent from the file keep their
// current values; unknown keys are rejected.
func (c *Config) applyFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables.
//
// Environment variables:
//   - ASSIGNBOT_REPOSITORY, then GITHUB_REPOSITORY: owner/name
//   - ASSIGNBOT_TOKEN, then GITHUB_TOKEN: API token
//   - ASSIGNBOT_BOT: bot login (default: Copilot)
//   - ASSIGNBOT_MODE: auto or refactor
//   - ASSIGNBOT_TRIGGER: manual, schedule or issue_closed
//   - ASSIGNBOT_LABEL: single label pool override
//   - ASSIGNBOT_FORCE, ASSIGNBOT_DRY_RUN, ASSIGNBOT_ALLOW_PARENT_ISSUES: booleans
//   - ASSIGNBOT_SKIP_LABELS, ASSIGNBOT_LABEL_PRIORITY: comma-separated lists
//   - ASSIGNBOT_REFACTOR_THRESHOLD, ASSIGNBOT_CONCURRENCY: integers
//   - ASSIGNBOT_FAIL_SAFE_HAS_CHILDREN: boolean (default: true)
//   - ASSIGNBOT_REQUESTS_PER_SECOND: float
//   - ASSIGNBOT_API_URL, then GITHUB_API_URL; ASSIGNBOT_GRAPHQL_URL, then GITHUB_GRAPHQL_URL
//   - ASSIGNBOT_LOG_FORMAT, ASSIGNBOT_LOG_LEVEL
//
// Returns an error if any environment variable has an invalid value.
func (c *Config) ApplyEnv() error {
	stringVars := []struct {
		dest *string
		keys []string
	}{
		{&c.Repository, []string{"ASSIGNBOT_REPOSITORY", "GITHUB_REPOSITORY"}},
		{&c.Token, []string{"ASSIGNBOT_TOKEN", "GITHUB_TOKEN"}},
		{&c.BotLogin, []string{"ASSIGNBOT_BOT"}},
		{&c.Mode, []string{"ASSIGNBOT_MODE"}},
		{&c.Trigger, []string{"ASSIGNBOT_TRIGGER"}},
		{&c.Label, []string{"ASSIGNBOT_LABEL"}},
		{&c.RefactorTitle, []string{"ASSIGNBOT_REFACTOR_TITLE"}},
		{&c.Transport.APIURL, []string{"ASSIGNBOT_API_URL", "GITHUB_API_URL"}},
		{&c.Transport.GraphQLURL, []string{"ASSIGNBOT_GRAPHQL_URL", "GITHUB_GRAPHQL_URL"}},
		{&c.LogFormat, []string{"ASSIGNBOT_LOG_FORMAT"}},
		{&c.LogLevel, []string{"ASSIGNBOT_LOG_LEVEL"}},
	}
	for _, v := range stringVars {
		for _, key := range v.keys {
			if parseEnvString(key, v.dest) {
				break
			}
		}
	}

	if err := parseEnvBool("ASSIGNBOT_FORCE", &c.Force); err != nil {
		return err
	}
	if err := parseEnvBool("ASSIGNBOT_DRY_RUN", &c.DryRun); err != nil {
		return err
	}
	if err := parseEnvBool("ASSIGNBOT_ALLOW_PARENT_ISSUES", &c.AllowParentIssues); err != nil {
		return err
	}
	if err := parseEnvBool("ASSIGNBOT_FAIL_SAFE_HAS_CHILDREN", &c.FailSafeHasChildren); err != nil {
		return err
	}
	if err := parseEnvInt("ASSIGNBOT_REFACTOR_THRESHOLD", &c.RefactorThreshold); err != nil {
		return err
	}
	if err := parseEnvInt("ASSIGNBOT_CONCURRENCY", &c.Concurrency); err != nil {
		return err
	}
	if err := parseEnvFloat("ASSIGNBOT_REQUESTS_PER_SECOND", &c.Transport.RequestsPerSecond); err != nil {
		return err
	}
	parseEnvList("ASSIGNBOT_SKIP_LABELS", &c.SkipLabels)
	parseEnvList("ASSIGNBOT_LABEL_PRIORITY", &c.LabelPriority)
	return nil
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseEnvInt parses an integer from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString sets dest from an environment variable and reports whether it was set
func parseEnvString(key string, dest *string) bool {
	value := os.Getenv(key)
	if value == "" {
		return false
	}
	*dest = value
	return true
}

// parseEnvList parses a comma-separated list from an environment variable
func parseEnvList(key string, dest *[]string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	*dest = SplitList(value)
}
