// Package config loads EngineConfig from a YAML file with environment
// variable overrides, following the same "env wins, fail loud on bad input,
// sensible defaults otherwise" discipline as cmd/engine/main.go's
// requireEnv/getEnvOrDefault helpers.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/quantcore/lfq-engine/pkg/models"
)

// Default returns the engine configuration defaults from spec §6.
func Default() models.EngineConfig {
	return models.EngineConfig{
		PpmTolerance:                  10,
		IsotopePpmTolerance:           5,
		PeakfindingPpmTolerance:       20,
		NumIsotopesRequired:           2,
		MissedScansAllowed:            1,
		Integrate:                     false,
		IDSpecificChargeState:         false,
		DiscriminationFactorToCutPeak: 0.6,
		MatchBetweenRuns:              false,
		MBRPpmTolerance:               10,
		MBRRTWindow:                   1.0,
		MBRAlignmentWindow:            2.5,
		NumAnchorPeptidesForMBR:       3,
		DonorCriterion:                models.DonorCriterionScore,
		DonorQValueThreshold:          0.01,
		MBRDetectionQValueThreshold:   0.05,
		RequireMsmsIDInCondition:      false,
		QuantifyAmbiguousPeptides:     false,
		MaxThreads:                    defaultMaxThreads(),
		RandomSeed:                    42,
		PepTrainingFraction:           0.25,
	}
}

func defaultMaxThreads() int {
	n := os.Getenv("GOMAXPROCS")
	if n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 1 {
			return v - 1
		}
	}
	return 1
}

// Load reads EngineConfig from a YAML file (if path is non-empty and
// exists), starting from Default(), then applies QENGINE_* environment
// overrides on top.
func Load(path string) (models.EngineConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, fmt.Errorf("applying QENGINE_* env overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides mutates cfg in place for every QENGINE_<FIELD> variable
// that is set, matching the field names used in the YAML tags.
func applyEnvOverrides(cfg *models.EngineConfig) error {
	overrides := map[string]func(string) error{
		"PPM_TOLERANCE":                     floatSetter(&cfg.PpmTolerance),
		"ISOTOPE_PPM_TOLERANCE":             floatSetter(&cfg.IsotopePpmTolerance),
		"PEAKFINDING_PPM_TOLERANCE":         floatSetter(&cfg.PeakfindingPpmTolerance),
		"NUM_ISOTOPES_REQUIRED":             intSetter(&cfg.NumIsotopesRequired),
		"MISSED_SCANS_ALLOWED":              intSetter(&cfg.MissedScansAllowed),
		"INTEGRATE":                         boolSetter(&cfg.Integrate),
		"ID_SPECIFIC_CHARGE_STATE":          boolSetter(&cfg.IDSpecificChargeState),
		"DISCRIMINATION_FACTOR_TO_CUT_PEAK": floatSetter(&cfg.DiscriminationFactorToCutPeak),
		"MATCH_BETWEEN_RUNS":                boolSetter(&cfg.MatchBetweenRuns),
		"MBR_PPM_TOLERANCE":                 floatSetter(&cfg.MBRPpmTolerance),
		"MBR_RT_WINDOW":                     floatSetter(&cfg.MBRRTWindow),
		"MBR_ALIGNMENT_WINDOW":              floatSetter(&cfg.MBRAlignmentWindow),
		"NUM_ANCHOR_PEPTIDES_FOR_MBR":       intSetter(&cfg.NumAnchorPeptidesForMBR),
		"DONOR_Q_VALUE_THRESHOLD":           floatSetter(&cfg.DonorQValueThreshold),
		"MBR_DETECTION_Q_VALUE_THRESHOLD":   floatSetter(&cfg.MBRDetectionQValueThreshold),
		"REQUIRE_MSMS_ID_IN_CONDITION":      boolSetter(&cfg.RequireMsmsIDInCondition),
		"QUANTIFY_AMBIGUOUS_PEPTIDES":       boolSetter(&cfg.QuantifyAmbiguousPeptides),
		"MAX_THREADS":                       intSetter(&cfg.MaxThreads),
		"PEP_TRAINING_FRACTION":             floatSetter(&cfg.PepTrainingFraction),
	}

	for suffix, set := range overrides {
		key := "QENGINE_" + suffix
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		if err := set(val); err != nil {
			return fmt.Errorf("%s=%q: %w", key, val, err)
		}
	}

	if v := os.Getenv("QENGINE_DONOR_CRITERION"); v != "" {
		cfg.DonorCriterion = models.DonorCriterion(strings.TrimSpace(v))
	}
	if v := os.Getenv("QENGINE_RANDOM_SEED"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("QENGINE_RANDOM_SEED=%q: %w", v, err)
		}
		cfg.RandomSeed = parsed
	}

	return nil
}

func floatSetter(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}
