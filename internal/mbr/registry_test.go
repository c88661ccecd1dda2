package mbr

import (
	"sync"
	"testing"

	"github.com/quantcore/lfq-engine/pkg/models"
)

func TestRegistryAddAndGet(t *testing.T) {
	r := NewRegistry()
	p1 := &models.ChromatographicPeak{}
	p2 := &models.ChromatographicPeak{}

	r.Add("PEPTIDEK", p1)
	r.Add("PEPTIDEK", p2)
	r.Add("OTHERSEQ", &models.ChromatographicPeak{})

	got := r.Get("PEPTIDEK")
	if len(got) != 2 {
		t.Fatalf("Get() returned %d peaks, want 2", len(got))
	}

	seqs := r.Sequences()
	if len(seqs) != 2 {
		t.Fatalf("Sequences() returned %d entries, want 2", len(seqs))
	}
}

func TestRegistryGetUnknownSequenceReturnsEmpty(t *testing.T) {
	r := NewRegistry()
	if got := r.Get("NOPE"); len(got) != 0 {
		t.Errorf("Get() on unknown sequence = %v, want empty", got)
	}
}

func TestRegistryConcurrentAddIsSafe(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Add("SHARED", &models.ChromatographicPeak{})
		}(i)
	}
	wg.Wait()

	if got := len(r.Get("SHARED")); got != 100 {
		t.Errorf("Get(\"SHARED\") returned %d peaks, want 100", got)
	}
}
