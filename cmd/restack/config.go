package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrbonezy/restack/gh"
	"github.com/mrbonezy/restack/gitops"
	"github.com/mrbonezy/restack/stack"
)

type Config struct {
	Remote                string `json:"remote,omitempty"`
	ConflictPolicy        string `json:"conflict_policy,omitempty"`
	Autostash             *bool  `json:"autostash,omitempty"`
	PRLimit               int    `json:"pr_limit,omitempty"`
	NetworkTimeoutSeconds int    `json:"network_timeout_seconds,omitempty"`
	ConfirmPush           *bool  `json:"confirm_push,omitempty"`
}

const (
	defaultPRLimit               = gh.DefaultLimit
	defaultNetworkTimeoutSeconds = int(gitops.DefaultNetworkTimeout / time.Second)
)

func defaultConfig() Config {
	return normalizeConfig(Config{})
}

// LoadConfig reads ~/.restack/config.json. A missing file yields defaults.
func LoadConfig() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg = normalizeConfig(cfg)
	if _, err := stack.ParseConflictPolicy(cfg.ConflictPolicy); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func normalizeConfig(cfg Config) Config {
	cfg.Remote = strings.TrimSpace(cfg.Remote)
	if cfg.Remote == "" {
		cfg.Remote = stack.DefaultRemote
	}
	cfg.ConflictPolicy = strings.ToLower(strings.TrimSpace(cfg.ConflictPolicy))
	if cfg.ConflictPolicy == "" {
		cfg.ConflictPolicy = string(stack.ConflictLeave)
	}
	if cfg.Autostash == nil {
		v := true
		cfg.Autostash = &v
	}
	if cfg.PRLimit <= 0 {
		cfg.PRLimit = defaultPRLimit
	}
	if cfg.NetworkTimeoutSeconds <= 0 {
		cfg.NetworkTimeoutSeconds = defaultNetworkTimeoutSeconds
	}
	if cfg.ConfirmPush == nil {
		v := false
		cfg.ConfirmPush = &v
	}
	return cfg
}

func (c Config) NetworkTimeout() time.Duration {
	return time.Duration(c.NetworkTimeoutSeconds) * time.Second
}

func ConfigExists() (bool, error) {
	path, err := configPath()
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func SaveConfig(cfg Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func configPath() (string, error) {
	home := os.Getenv("HOME")
	if strings.TrimSpace(home) == "" {
		return "", errors.New("HOME not set")
	}
	return filepath.Join(home, ".restack", "config.json"), nil
}

// runSettings is the config with command-line flags applied on top.
type runSettings struct {
	Remote         string
	Policy         stack.ConflictPolicy
	Push           bool
	Autostash      bool
	DryRun         bool
	Confirm        bool
	Debug          bool
	PRLimit        int
	NetworkTimeout time.Duration
}

func resolveSettings(cfg Config, flags restackFlags) (runSettings, error) {
	cfg = normalizeConfig(cfg)
	s := runSettings{
		Remote:         cfg.Remote,
		Push:           !flags.noPush,
		Autostash:      *cfg.Autostash && !flags.noAutostash,
		DryRun:         flags.dryRun,
		Confirm:        *cfg.ConfirmPush && !flags.yes,
		Debug:          flags.debug || envFlagEnabled("RESTACK_DEBUG"),
		PRLimit:        cfg.PRLimit,
		NetworkTimeout: cfg.NetworkTimeout(),
	}
	if r := strings.TrimSpace(flags.remote); r != "" {
		s.Remote = r
	}
	policy := cfg.ConflictPolicy
	if strings.TrimSpace(flags.conflict) != "" {
		policy = flags.conflict
	}
	parsed, err := stack.ParseConflictPolicy(policy)
	if err != nil {
		return runSettings{}, err
	}
	s.Policy = parsed
	return s, nil
}

func runConfigShow(cmd *cobra.Command) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}
	exists, err := ConfigExists()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if exists {
		fmt.Fprintf(out, "# %s\n", path)
	} else {
		fmt.Fprintf(out, "# %s (not found, showing defaults)\n", path)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// runConfigInit writes the defaults, leaving an existing file alone.
func runConfigInit(cmd *cobra.Command) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	exists, err := ConfigExists()
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := SaveConfig(defaultConfig()); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return err
}
