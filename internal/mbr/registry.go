package mbr

import (
	"sync"

	"github.com/quantcore/lfq-engine/pkg/models"
)

// shardCount bounds contention on the candidate dictionary; spec §5 calls
// for a concurrent map keyed by modified sequence, updated from worker
// goroutines processing donor runs in parallel.
const shardCount = 32

// Registry is the per-sequence MBR candidate dictionary (spec §4.9 step 3):
// sequence -> every target/decoy candidate peak registered for it across
// all donor runs. Safe for concurrent Add from multiple donor-loop workers.
type Registry struct {
	shards [shardCount]registryShard
}

type registryShard struct {
	mu   sync.Mutex
	data map[string][]*models.ChromatographicPeak
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].data = make(map[string][]*models.ChromatographicPeak)
	}
	return r
}

func (r *Registry) shardFor(seq string) *registryShard {
	h := models.DeterministicHash(seq)
	return &r.shards[h%uint64(shardCount)]
}

// Add registers peak under its modified sequence.
func (r *Registry) Add(seq string, peak *models.ChromatographicPeak) {
	s := r.shardFor(seq)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[seq] = append(s.data[seq], peak)
}

// Sequences returns every modified sequence with at least one candidate.
func (r *Registry) Sequences() []string {
	var seqs []string
	for i := range r.shards {
		r.shards[i].mu.Lock()
		for seq := range r.shards[i].data {
			seqs = append(seqs, seq)
		}
		r.shards[i].mu.Unlock()
	}
	return seqs
}

// Get returns every candidate registered for seq.
func (r *Registry) Get(seq string) []*models.ChromatographicPeak {
	s := r.shardFor(seq)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.ChromatographicPeak{}, s.data[seq]...)
}
