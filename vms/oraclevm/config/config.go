// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"

	"github.com/luxfi/oraclevm/utils/units"
	"github.com/luxfi/oraclevm/vms/oraclevm/oracle"
)

var (
	ErrInvalidRegistry     = errors.New("invalid registry configuration")
	ErrInvalidReputation   = errors.New("invalid reputation configuration")
	ErrInvalidSlashing     = errors.New("invalid slashing configuration")
	ErrInvalidVerification = errors.New("invalid verification configuration")
)

// RegistryConfig bounds who may register and how many oracles are tracked.
type RegistryConfig struct {
	MinStake       uint64 `json:"minStake"`       // MicroLux. Default: 1,000 LUX
	MaxOracleCount int    `json:"maxOracleCount"` // Default: 100

	// RequireWhitelist restricts registration to whitelisted ids.
	RequireWhitelist bool `json:"requireWhitelist"`
	// MinOracleVersion is a semver constraint every registering oracle must
	// satisfy, e.g. ">= 1.2.0". Empty accepts any valid version.
	MinOracleVersion    string             `json:"minOracleVersion"`
	SupportedAlgorithms []oracle.Algorithm `json:"supportedAlgorithms"`
}

// ReputationConfig tunes the exponential moving average behind an oracle's
// score. Each report yields an observation in [0, 1] that is blended in
// with weight Alpha.
type ReputationConfig struct {
	InitialScore            float64 `json:"initialScore"`            // Default: 1.0
	Alpha                   float64 `json:"alpha"`                   // Default: 0.1
	InaccurateObservation   float64 `json:"inaccurateObservation"`   // Default: 0.0
	InvalidSignaturePenalty float64 `json:"invalidSignaturePenalty"` // Default: 0.15
	MaxResponseTimeMs       uint64  `json:"maxResponseTimeMs"`       // Default: 5000
	MinLatencyFactor        float64 `json:"minLatencyFactor"`        // Default: 0.1
	DecayFactor             float64 `json:"decayFactor"`             // Default: 0.99 per maintenance run
	DailyHistory            int     `json:"dailyHistory"`            // Default: 30 days
}

// SlashingConfig controls stake penalties and the automatic slashing policy.
type SlashingConfig struct {
	Percentage  float64 `json:"percentage"`  // Default: 0.1
	GracePeriod uint64  `json:"gracePeriod"` // seconds. Default: 86400

	ConsecutiveFailureThreshold uint32  `json:"consecutiveFailureThreshold"` // Default: 10
	ReputationFloor             float64 `json:"reputationFloor"`             // Default: 0.3
	InvalidSignatureRatio       float64 `json:"invalidSignatureRatio"`       // Default: 0.2
	MinSampleSize               uint64  `json:"minSampleSize"`               // Default: 50
}

// VerificationConfig is fixed for the lifetime of a verifier. Ages are in
// seconds.
type VerificationConfig struct {
	MinOracleReputation          float64 `json:"minOracleReputation"`          // Default: 0.7
	MaxSignatureAge              uint64  `json:"maxSignatureAge"`              // Default: 600
	MaxResponseAge               uint64  `json:"maxResponseAge"`               // Default: 300
	ClockSkewTolerance           uint64  `json:"clockSkewTolerance"`           // Default: 30
	EnforceCertificateValidation bool    `json:"enforceCertificateValidation"` // Default: true
	EnforceRequestBinding        bool    `json:"enforceRequestBinding"`        // Default: false
	MaxNonceCacheSize            int     `json:"maxNonceCacheSize"`            // Default: 100000
	NonceCacheTTL                uint64  `json:"nonceCacheTTL"`                // Default: 3600
	PublicKeyCacheSize           int     `json:"publicKeyCacheSize"`           // Default: 1024
}

// Config holds configuration for the Oracle VM.
type Config struct {
	Registry     RegistryConfig     `json:"registry"`
	Reputation   ReputationConfig   `json:"reputation"`
	Slashing     SlashingConfig     `json:"slashing"`
	Verification VerificationConfig `json:"verification"`

	// EnableAutoSlashing applies the slashing policy after every reported
	// outcome.
	EnableAutoSlashing bool `json:"enableAutoSlashing"`
	// MaintenanceInterval is the number of seconds between maintenance
	// runs triggered by accepted blocks. Default: 86400
	MaintenanceInterval uint64 `json:"maintenanceInterval"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() Config {
	return Config{
		Registry: RegistryConfig{
			MinStake:            units.KiloLux,
			MaxOracleCount:      100,
			SupportedAlgorithms: []oracle.Algorithm{oracle.MLDSA44, oracle.MLDSA65, oracle.MLDSA87},
		},
		Reputation: ReputationConfig{
			InitialScore:            1.0,
			Alpha:                   0.1,
			InaccurateObservation:   0.0,
			InvalidSignaturePenalty: 0.15,
			MaxResponseTimeMs:       5000,
			MinLatencyFactor:        0.1,
			DecayFactor:             0.99,
			DailyHistory:            30,
		},
		Slashing: SlashingConfig{
			Percentage:                  0.1,
			GracePeriod:                 86400,
			ConsecutiveFailureThreshold: 10,
			ReputationFloor:             0.3,
			InvalidSignatureRatio:       0.2,
			MinSampleSize:               50,
		},
		Verification: VerificationConfig{
			MinOracleReputation:          0.7,
			MaxSignatureAge:              600,
			MaxResponseAge:               300,
			ClockSkewTolerance:           30,
			EnforceCertificateValidation: true,
			EnforceRequestBinding:        false,
			MaxNonceCacheSize:            100_000,
			NonceCacheTTL:                3600,
			PublicKeyCacheSize:           1024,
		},
		EnableAutoSlashing:  true,
		MaintenanceInterval: 86400,
	}
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Reputation.Validate(); err != nil {
		return err
	}
	if err := c.Slashing.Validate(); err != nil {
		return err
	}
	if err := c.Verification.Validate(); err != nil {
		return err
	}
	if c.MaintenanceInterval == 0 {
		return fmt.Errorf("%w: maintenance interval must be positive", ErrInvalidRegistry)
	}
	return nil
}

func (c *RegistryConfig) Validate() error {
	if c.MinStake == 0 {
		return fmt.Errorf("%w: min stake must be positive", ErrInvalidRegistry)
	}
	if c.MaxOracleCount <= 0 {
		return fmt.Errorf("%w: max oracle count must be positive", ErrInvalidRegistry)
	}
	if _, err := c.VersionConstraint(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	if len(c.SupportedAlgorithms) == 0 {
		return fmt.Errorf("%w: no supported algorithms", ErrInvalidRegistry)
	}
	for _, alg := range c.SupportedAlgorithms {
		switch alg {
		case oracle.MLDSA44, oracle.MLDSA65, oracle.MLDSA87:
		default:
			return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidRegistry, alg)
		}
	}
	return nil
}

// VersionConstraint parses MinOracleVersion. It returns nil when no
// constraint is configured.
func (c *RegistryConfig) VersionConstraint() (*semver.Constraints, error) {
	if c.MinOracleVersion == "" {
		return nil, nil
	}
	return semver.NewConstraint(c.MinOracleVersion)
}

// Supports reports whether alg may be used by registering oracles.
func (c *RegistryConfig) Supports(alg oracle.Algorithm) bool {
	for _, supported := range c.SupportedAlgorithms {
		if supported == alg {
			return true
		}
	}
	return false
}

func (c *ReputationConfig) Validate() error {
	switch {
	case !unit(c.InitialScore):
		return fmt.Errorf("%w: initial score must be within [0, 1]", ErrInvalidReputation)
	case c.Alpha <= 0 || c.Alpha > 1:
		return fmt.Errorf("%w: alpha must be within (0, 1]", ErrInvalidReputation)
	case !unit(c.InaccurateObservation):
		return fmt.Errorf("%w: inaccurate observation must be within [0, 1]", ErrInvalidReputation)
	case !unit(c.InvalidSignaturePenalty):
		return fmt.Errorf("%w: invalid signature penalty must be within [0, 1]", ErrInvalidReputation)
	case c.MaxResponseTimeMs == 0:
		return fmt.Errorf("%w: max response time must be positive", ErrInvalidReputation)
	case !unit(c.MinLatencyFactor):
		return fmt.Errorf("%w: min latency factor must be within [0, 1]", ErrInvalidReputation)
	case c.DecayFactor <= 0 || c.DecayFactor > 1:
		return fmt.Errorf("%w: decay factor must be within (0, 1]", ErrInvalidReputation)
	case c.DailyHistory < 0:
		return fmt.Errorf("%w: daily history must not be negative", ErrInvalidReputation)
	}
	return nil
}

func (c *SlashingConfig) Validate() error {
	switch {
	case !unit(c.Percentage):
		return fmt.Errorf("%w: percentage must be within [0, 1]", ErrInvalidSlashing)
	case !unit(c.ReputationFloor):
		return fmt.Errorf("%w: reputation floor must be within [0, 1]", ErrInvalidSlashing)
	case !unit(c.InvalidSignatureRatio):
		return fmt.Errorf("%w: invalid signature ratio must be within [0, 1]", ErrInvalidSlashing)
	case c.ConsecutiveFailureThreshold == 0:
		return fmt.Errorf("%w: consecutive failure threshold must be positive", ErrInvalidSlashing)
	}
	return nil
}

func (c *VerificationConfig) Validate() error {
	switch {
	case !unit(c.MinOracleReputation):
		return fmt.Errorf("%w: min oracle reputation must be within [0, 1]", ErrInvalidVerification)
	case c.MaxNonceCacheSize <= 0:
		return fmt.Errorf("%w: nonce cache size must be positive", ErrInvalidVerification)
	case c.NonceCacheTTL == 0:
		return fmt.Errorf("%w: nonce cache ttl must be positive", ErrInvalidVerification)
	case c.PublicKeyCacheSize <= 0:
		return fmt.Errorf("%w: public key cache size must be positive", ErrInvalidVerification)
	}
	return nil
}

// ParseConfig parses configuration from JSON bytes. Missing fields keep
// their default values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ParseYAML parses configuration from YAML bytes with the same field names
// and defaults as ParseConfig.
func ParseYAML(data []byte) (Config, error) {
	if len(data) == 0 {
		return DefaultConfig(), nil
	}
	jsonBytes, err := yaml.YAMLToJSON(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to convert yaml: %w", err)
	}
	return ParseConfig(jsonBytes)
}
