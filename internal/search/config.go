package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/524D/mzannotate/internal/mass"
)

const fastaPathEnv = "MZANNOTATE_FASTA"

var (
	// ErrConfig means the database parameters are invalid
	ErrConfig = errors.New("search: invalid database parameters")
)

// Config holds the database parameters. The document is JSON (as used by
// sage) or YAML.
type Config struct {
	Fasta             string             `yaml:"fasta"`
	Enzyme            EnzymeConfig       `yaml:"enzyme"`
	PeptideMinMass    float64            `yaml:"peptide_min_mass"`
	PeptideMaxMass    float64            `yaml:"peptide_max_mass"`
	MinIonIndex       int                `yaml:"min_ion_index"`
	StaticMods        map[string]float64 `yaml:"static_mods"`
	DecoyTag          string             `yaml:"decoy_tag"`
	GenerateDecoys    bool               `yaml:"generate_decoys"`
	MaxFragmentCharge int                `yaml:"max_fragment_charge"`
}

// EnzymeConfig describes the digestion rule
type EnzymeConfig struct {
	MissedCleavages int     `yaml:"missed_cleavages"`
	MinLen          int     `yaml:"min_len"`
	MaxLen          int     `yaml:"max_len"`
	CleaveAt        string  `yaml:"cleave_at"`
	Restrict        *string `yaml:"restrict"`
	CTerminal       *bool   `yaml:"c_terminal"`
}

// DefaultConfig returns tryptic digestion with carbamidomethyl cysteine
// and reversed decoys.
func DefaultConfig() Config {
	restrict := "P"
	cTerminal := true
	return Config{
		Enzyme: EnzymeConfig{
			MissedCleavages: 2,
			MinLen:          5,
			MaxLen:          50,
			CleaveAt:        "KR",
			Restrict:        &restrict,
			CTerminal:       &cTerminal,
		},
		PeptideMinMass:    500,
		PeptideMaxMass:    5000,
		MinIonIndex:       2,
		StaticMods:        map[string]float64{"C": 57.021464},
		DecoyTag:          "rev_",
		GenerateDecoys:    true,
		MaxFragmentCharge: 3,
	}
}

// LoadConfig reads the parameter document at path on top of the defaults.
// A relative fasta path is taken relative to the document.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Fasta != "" && !filepath.IsAbs(cfg.Fasta) {
		cfg.Fasta = filepath.Join(filepath.Dir(path), cfg.Fasta)
	}
	return cfg, nil
}

// ParseConfig parses a parameter document on top of the defaults
func ParseConfig(raw []byte) (Config, error) {
	cfg := DefaultConfig()
	// static_mods replaces the default map instead of merging with it
	cfg.StaticMods = nil
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.StaticMods == nil {
		cfg.StaticMods = DefaultConfig().StaticMods
	}
	if v := os.Getenv(fastaPathEnv); v != "" {
		cfg.Fasta = v
	}
	return cfg, cfg.Validate()
}

// Validate checks the parameters for consistency
func (c *Config) Validate() error {
	switch {
	case c.Fasta == "":
		return fmt.Errorf("%w: no fasta file", ErrConfig)
	case c.Enzyme.MinLen < 1 || c.Enzyme.MaxLen < c.Enzyme.MinLen:
		return fmt.Errorf("%w: peptide length %d-%d", ErrConfig, c.Enzyme.MinLen, c.Enzyme.MaxLen)
	case c.Enzyme.MissedCleavages < 0:
		return fmt.Errorf("%w: missed_cleavages %d", ErrConfig, c.Enzyme.MissedCleavages)
	case c.PeptideMaxMass <= c.PeptideMinMass:
		return fmt.Errorf("%w: peptide mass %g-%g", ErrConfig, c.PeptideMinMass, c.PeptideMaxMass)
	case c.MaxFragmentCharge < 1:
		return fmt.Errorf("%w: max_fragment_charge %d", ErrConfig, c.MaxFragmentCharge)
	}
	for k := range c.StaticMods {
		if len(k) != 1 || (k != "^" && !mass.ValidResidue(k[0])) {
			return fmt.Errorf("%w: static modification key %q", ErrConfig, k)
		}
	}
	return nil
}
