package config

import "testing"

func TestDefaultMatchesSpec(t *testing.T) {
	cfg := Default()

	if cfg.PpmTolerance != 10 {
		t.Errorf("PpmTolerance = %v, want 10", cfg.PpmTolerance)
	}
	if cfg.NumIsotopesRequired != 2 {
		t.Errorf("NumIsotopesRequired = %v, want 2", cfg.NumIsotopesRequired)
	}
	if cfg.MissedScansAllowed != 1 {
		t.Errorf("MissedScansAllowed = %v, want 1", cfg.MissedScansAllowed)
	}
	if cfg.DiscriminationFactorToCutPeak != 0.6 {
		t.Errorf("DiscriminationFactorToCutPeak = %v, want 0.6", cfg.DiscriminationFactorToCutPeak)
	}
	if cfg.MBRRTWindow != 1.0 {
		t.Errorf("MBRRTWindow = %v, want 1.0", cfg.MBRRTWindow)
	}
	if cfg.NumAnchorPeptidesForMBR != 3 {
		t.Errorf("NumAnchorPeptidesForMBR = %v, want 3", cfg.NumAnchorPeptidesForMBR)
	}
	if cfg.RandomSeed != 42 {
		t.Errorf("RandomSeed = %v, want 42", cfg.RandomSeed)
	}
	if cfg.PepTrainingFraction != 0.25 {
		t.Errorf("PepTrainingFraction = %v, want 0.25", cfg.PepTrainingFraction)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/engine.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil (missing file falls back to defaults)", err)
	}
	if cfg.PpmTolerance != 10 {
		t.Errorf("PpmTolerance = %v, want default 10", cfg.PpmTolerance)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	t.Setenv("QENGINE_PPM_TOLERANCE", "15.5")
	t.Setenv("QENGINE_MATCH_BETWEEN_RUNS", "true")
	t.Setenv("QENGINE_DONOR_CRITERION", "Neighbors")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PpmTolerance != 15.5 {
		t.Errorf("PpmTolerance = %v, want 15.5", cfg.PpmTolerance)
	}
	if !cfg.MatchBetweenRuns {
		t.Errorf("MatchBetweenRuns = false, want true")
	}
	if cfg.DonorCriterion != "Neighbors" {
		t.Errorf("DonorCriterion = %v, want Neighbors", cfg.DonorCriterion)
	}
}

func TestLoadRejectsBadEnvValue(t *testing.T) {
	t.Setenv("QENGINE_PPM_TOLERANCE", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Fatal("Load() error = nil, want error for malformed QENGINE_PPM_TOLERANCE")
	}
}
