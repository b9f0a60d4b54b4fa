// Package config loads dvgov settings: built-in defaults, overlaid by an
// optional YAML file, overlaid by DVGOV_* environment variables. The
// genesis section is validated against an embedded CUE schema.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the environment variable prefix, e.g. DVGOV_DATABASE_PATH.
const EnvPrefix = "dvgov"

// Config is the process configuration.
type Config struct {
	DatabasePath string `yaml:"databasePath" split_words:"true"`
	LogLevel     string `yaml:"logLevel"     split_words:"true"`
	Format       string `yaml:"format"`
	MetricsAddr  string `yaml:"metricsAddr"  split_words:"true"`

	// Genesis configures the one-time DAO deployment.
	Genesis Genesis `yaml:"genesis" ignored:"true"`
}

// Genesis mirrors the deployment script. Accounts are names ("voter1")
// or 0x-prefixed addresses; amounts are decimal wei or "<n> ether".
type Genesis struct {
	Deployer    string       `yaml:"deployer"    json:"deployer"`
	Funding     []Allocation `yaml:"funding"     json:"funding"`
	Token       TokenGenesis `yaml:"token"       json:"token"`
	Allocations []Allocation `yaml:"allocations" json:"allocations"`

	Timelock   TimelockGenesis   `yaml:"timelock"   json:"timelock"`
	Governance GovernanceGenesis `yaml:"governance" json:"governance"`
	Treasury   TreasuryGenesis   `yaml:"treasury"   json:"treasury"`
}

// Allocation credits an amount to an account.
type Allocation struct {
	Account string `yaml:"account" json:"account"`
	Amount  string `yaml:"amount"  json:"amount"`
}

type TokenGenesis struct {
	Name          string `yaml:"name"          json:"name"`
	Symbol        string `yaml:"symbol"        json:"symbol"`
	InitialSupply string `yaml:"initialSupply" json:"initialSupply"`
}

type TimelockGenesis struct {
	MinDelay  int64    `yaml:"minDelay"  json:"minDelay"`
	Proposers []string `yaml:"proposers" json:"proposers"`
	Executors []string `yaml:"executors" json:"executors"`
}

type GovernanceGenesis struct {
	Name              string `yaml:"name"              json:"name"`
	VotingDelay       int64  `yaml:"votingDelay"       json:"votingDelay"`
	VotingPeriod      int64  `yaml:"votingPeriod"      json:"votingPeriod"`
	ProposalThreshold string `yaml:"proposalThreshold" json:"proposalThreshold"`
	QuorumPercent     int64  `yaml:"quorumPercent"     json:"quorumPercent"`
	GracePeriod       int64  `yaml:"gracePeriod"       json:"gracePeriod"`
}

type TreasuryGenesis struct {
	Funds string `yaml:"funds" json:"funds"`
}

// Default returns the built-in configuration: a DVenture DAO with five
// 1000 DV voters, a 5 block voting period, a 5% quorum and a 25 ether
// treasury.
func Default() *Config {
	voters := []string{"voter1", "voter2", "voter3", "voter4", "voter5"}
	allocs := make([]Allocation, 0, len(voters))
	for _, v := range voters {
		allocs = append(allocs, Allocation{Account: v, Amount: "1000 ether"})
	}
	return &Config{
		DatabasePath: "dvgov.db",
		LogLevel:     "info",
		Format:       "text",
		MetricsAddr:  ":9464",
		Genesis: Genesis{
			Deployer: "executor",
			Funding:  []Allocation{{Account: "executor", Amount: "100 ether"}},
			Token: TokenGenesis{
				Name:          "DVenture DAO",
				Symbol:        "DV",
				// Small enough that the five 1000 DV voters can reach a 5% quorum.
				InitialSupply: "10000 ether",
			},
			Allocations: allocs,
			Timelock: TimelockGenesis{
				MinDelay:  0,
				Proposers: []string{"proposer"},
				Executors: []string{"executor"},
			},
			Governance: GovernanceGenesis{
				Name:              "DVenture Governor",
				VotingDelay:       0,
				VotingPeriod:      5,
				ProposalThreshold: "0",
				QuorumPercent:     5,
				GracePeriod:       50400,
			},
			Treasury: TreasuryGenesis{Funds: "25 ether"},
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.overlay(buf); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay decodes YAML over the current values. Unknown keys are errors.
func (c *Config) overlay(buf []byte) error {
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// Validate checks the process settings and the genesis schema.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("databasePath is empty"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("format %q: want text or json", c.Format))
	}
	if err := ValidateGenesis(c.Genesis); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("logLevel %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
