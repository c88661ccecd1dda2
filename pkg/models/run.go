package models

import (
	"crypto/sha1"
	"fmt"

	"github.com/google/uuid"
)

// runIDNamespace anchors the deterministic RunID derivation. Any two
// processes given the same RunDescriptor fields must derive the same ID.
var runIDNamespace = uuid.MustParse("6f7e6e4c-6e8e-4f0a-9a3e-3f2c9e8a7b10")

// RunDescriptor identifies one LC-MS run and its position in the experimental
// design. Ordering by (Condition, BioReplicate, Fraction, TechReplicate) is
// the canonical, deterministic run-processing order (spec §5).
type RunDescriptor struct {
	FilePath      string `json:"filePath"`
	Condition     string `json:"condition"`
	BioReplicate  int    `json:"bioReplicate"`
	Fraction      int    `json:"fraction"`
	TechReplicate int    `json:"techReplicate"`
}

// RunID returns a deterministic identifier derived from the run's
// experimental-design coordinates, stable across processes for a given
// input (required for the reproducibility invariant in spec §8.6).
func (r RunDescriptor) RunID() string {
	key := fmt.Sprintf("%s|%d|%d|%d", r.Condition, r.BioReplicate, r.Fraction, r.TechReplicate)
	return uuid.NewSHA1(runIDNamespace, []byte(key)).String()
}

// Less implements the deterministic run ordering from spec §5.
func (r RunDescriptor) Less(other RunDescriptor) bool {
	if r.Condition != other.Condition {
		return r.Condition < other.Condition
	}
	if r.BioReplicate != other.BioReplicate {
		return r.BioReplicate < other.BioReplicate
	}
	if r.Fraction != other.Fraction {
		return r.Fraction < other.Fraction
	}
	return r.TechReplicate < other.TechReplicate
}

// DeterministicHash derives a stable uint64 from arbitrary key material,
// used wherever the engine needs reproducible "pseudo-random" choices
// (decoy selection) without depending on a PRNG's internal state (spec §9).
func DeterministicHash(parts ...string) uint64 {
	h := sha1.New()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	var v uint64
	for i := 0; i < 8; i++ {
		v = (v << 8) | uint64(sum[i])
	}
	return v
}
