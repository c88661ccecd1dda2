// Package isotope computes, per distinct modified sequence, the theoretical
// isotope-mass-shift/abundance vector and the derived peakfinding mass
// (spec §4.2). Elemental composition is always read off the base sequence;
// a supplied chemical formula is not used. Any residual mass gap versus the
// identified monoisotopic mass is topped up with averagine.
package isotope

import (
	"sort"

	"github.com/quantcore/lfq-engine/pkg/models"
)

// resolution bins isotope mass shifts into 0.125 Da buckets (spec §4.2).
const resolution = 0.125

// minProbability prunes isotopologues below this abundance during
// convolution, bounding the distribution's size.
const minProbability = 1e-8

// averagineToppingUpThreshold is the monoisotopic-mass gap above which a
// derived composition is padded out with averagine (spec §4.2 step 1).
const averagineToppingUpThreshold = 20.0

// averagine is the elemental composition, per Senko et al., of the
// "average amino acid residue" used to approximate unknown mass.
var averagine = composition{C: 4.9384, H: 7.7583, N: 1.3577, O: 1.4773, S: 0.0417}

// Isotope is one entry of a theoretical distribution: a mass shift relative
// to the monoisotopic peak, and its normalized abundance (max entry = 1.0).
type Isotope struct {
	MassShift float64
	Abundance float64
}

// Profile is the full theoretical envelope for one modified sequence, plus
// the peakfinding mass derived from it (spec §3, "peakfinding_mass").
type Profile struct {
	Isotopes []Isotope
	// PeakfindingIndex is the index into Isotopes of the most-abundant
	// isotope, the one PeakfindingMass was derived from.
	PeakfindingIndex int
	PeakfindingMass  float64
}

// composition counts atoms of each element tracked by the isotope tables.
// Fields are float64 because averagine contributes fractional atom counts.
type composition struct {
	C, H, N, O, S float64
}

func (c composition) add(o composition) composition {
	return composition{C: c.C + o.C, H: c.H + o.H, N: c.N + o.N, O: c.O + o.O, S: c.S + o.S}
}

func (c composition) scale(f float64) composition {
	return composition{C: c.C * f, H: c.H * f, N: c.N * f, O: c.O * f, S: c.S * f}
}

func (c composition) monoisotopicMass() float64 {
	const (
		massC = 12.000000
		massH = 1.0078250319
		massN = 14.0030740052
		massO = 15.9949146221
		massS = 31.97207069
	)
	return c.C*massC + c.H*massH + c.N*massN + c.O*massO + c.S*massS
}

// residueComposition is the monoisotopic elemental composition of each
// standard residue (peptide-bonded, i.e. minus one water), keyed by
// one-letter code. Unrecognized/ambiguous codes fall back to averagine at
// BaseSequenceComposition.
var residueComposition = map[byte]composition{
	'G': {C: 2, H: 3, N: 1, O: 1},
	'A': {C: 3, H: 5, N: 1, O: 1},
	'S': {C: 3, H: 5, N: 1, O: 2},
	'P': {C: 5, H: 7, N: 1, O: 1},
	'V': {C: 5, H: 9, N: 1, O: 1},
	'T': {C: 4, H: 7, N: 1, O: 2},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'L': {C: 6, H: 11, N: 1, O: 1},
	'I': {C: 6, H: 11, N: 1, O: 1},
	'N': {C: 4, H: 6, N: 2, O: 2},
	'D': {C: 4, H: 5, N: 1, O: 3},
	'Q': {C: 5, H: 8, N: 2, O: 2},
	'K': {C: 6, H: 12, N: 2, O: 1},
	'E': {C: 5, H: 7, N: 1, O: 3},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'H': {C: 6, H: 7, N: 3, O: 1},
	'F': {C: 9, H: 9, N: 1, O: 1},
	'R': {C: 6, H: 12, N: 4, O: 1},
	'Y': {C: 9, H: 9, N: 1, O: 2},
	'W': {C: 11, H: 10, N: 2, O: 1},
}

// water is added once per peptide to cap the N- and C-termini.
var water = composition{H: 2, O: 1}

// baseSequenceComposition sums residue compositions plus one water. Any
// unrecognized residue code (ambiguous codes like X, B, Z) is skipped; the
// resulting gap against the identification's monoisotopic mass is covered
// by the averagine top-up in Compute.
func baseSequenceComposition(baseSequence string) composition {
	c := water
	for i := 0; i < len(baseSequence); i++ {
		if r, ok := residueComposition[baseSequence[i]]; ok {
			c = c.add(r)
		}
	}
	return c
}

// Compute derives the full isotope Profile for one identification (spec
// §4.2). Composition always comes from id.BaseSequence;
// id.ChemicalFormula is not read, even when it is non-empty.
func Compute(id models.Identification, numIsotopesRequired int) Profile {
	comp := baseSequenceComposition(id.BaseSequence)
	formulaMass := comp.monoisotopicMass()

	gap := id.MonoisotopicMass - formulaMass
	if gap > averagineToppingUpThreshold || gap < -averagineToppingUpThreshold {
		comp = toppedUp(comp, gap)
		formulaMass = comp.monoisotopicMass()
	}

	dist := distributionFor(comp)
	isotopes := normalize(dist)
	isotopes = trim(isotopes, numIsotopesRequired)

	shift := id.MonoisotopicMass - formulaMass
	peakfindingShift := 0.0
	peakfindingIndex := 0
	if len(isotopes) > 0 {
		bestAbundance := isotopes[0].Abundance
		for i, iso := range isotopes {
			if iso.Abundance > bestAbundance {
				bestAbundance = iso.Abundance
				peakfindingIndex = i
			}
		}
		peakfindingShift = isotopes[peakfindingIndex].MassShift
	}

	return Profile{
		Isotopes:         shiftAll(isotopes, shift),
		PeakfindingIndex: peakfindingIndex,
		PeakfindingMass:  id.MonoisotopicMass + peakfindingShift,
	}
}

func shiftAll(isotopes []Isotope, shift float64) []Isotope {
	shifted := make([]Isotope, len(isotopes))
	for i, iso := range isotopes {
		shifted[i] = Isotope{MassShift: iso.MassShift + shift, Abundance: iso.Abundance}
	}
	return shifted
}

// toppedUp scales averagine residues to cover the residual mass gap and
// appends them to comp (spec §4.2 step 1).
func toppedUp(comp composition, gap float64) composition {
	residueMass := averagine.monoisotopicMass()
	if residueMass <= 0 {
		return comp
	}
	n := gap / residueMass
	return comp.add(averagine.scale(n))
}

// dist is a working isotope distribution keyed by round(massShift/resolution).
type dist map[int]float64

// elementDist is the natural-abundance isotope pattern of one atom of each
// tracked element, keyed by round(massShift/resolution). Shift 0 is always
// the lightest isotope, which is also the most abundant one for every
// tracked element, S included.
var elementDist = map[string]dist{
	"C": {0: 0.9893, round1(1.003355): 0.0107},
	"H": {0: 0.999885, round1(1.006277): 0.000115},
	"N": {0: 0.99636, round1(0.997035): 0.00364},
	"O": {0: 0.99757, round1(1.00422): 0.00038, round1(2.00425): 0.00205},
	"S": {0: 0.9499, round1(0.99939): 0.0075, round1(1.99579): 0.0425, round1(3.99501): 0.0001},
}

func round1(massShift float64) int {
	return int(massShift/resolution + 0.5)
}

func convolve(a, b dist) dist {
	out := make(dist, len(a)+len(b))
	for ka, pa := range a {
		for kb, pb := range b {
			p := pa * pb
			if p < minProbability {
				continue
			}
			out[ka+kb] += p
		}
	}
	return out
}

// power convolves base with itself n times via exponentiation by squaring,
// so the cost stays logarithmic in atom count.
func power(base dist, n int) dist {
	result := dist{0: 1.0}
	for n > 0 {
		if n&1 == 1 {
			result = convolve(result, base)
		}
		base = convolve(base, base)
		n >>= 1
	}
	return result
}

// distributionFor convolves each element's per-atom pattern, raised to the
// element's (rounded) atom count, into the overall isotope distribution.
func distributionFor(c composition) dist {
	result := dist{0: 1.0}
	for elem, count := range map[string]float64{"C": c.C, "H": c.H, "N": c.N, "O": c.O, "S": c.S} {
		n := int(count + 0.5)
		if n <= 0 {
			continue
		}
		result = convolve(result, power(elementDist[elem], n))
	}
	return result
}

func normalize(d dist) []Isotope {
	if len(d) == 0 {
		return nil
	}
	maxProb := 0.0
	for _, p := range d {
		if p > maxProb {
			maxProb = p
		}
	}
	if maxProb <= 0 {
		return nil
	}

	keys := make([]int, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	isotopes := make([]Isotope, 0, len(keys))
	for _, k := range keys {
		isotopes = append(isotopes, Isotope{
			MassShift: float64(k) * resolution,
			Abundance: d[k] / maxProb,
		})
	}
	return isotopes
}

// trim keeps isotopes until at least numRequired are kept AND any further
// isotope has normalized abundance <= 0.1 (spec §4.2 step 5).
func trim(isotopes []Isotope, numRequired int) []Isotope {
	for i := range isotopes {
		if i+1 >= numRequired && i+1 < len(isotopes) && isotopes[i+1].Abundance <= 0.1 {
			return isotopes[:i+1]
		}
	}
	return isotopes
}
