package mbr

import "github.com/quantcore/lfq-engine/pkg/models"

// postPass implements spec §4.9's post-pass: for each modified sequence, for
// each random_rt group (true target vs random-RT decoy), take the
// highest-scoring non-conflicting peak. A peak conflicts if its apex
// IndexedPeak is already the apex of an MS2 peak of a whitelisted peptide in
// the acceptor run; on conflict the next-best hypothesis in that group is
// tried instead. Charge-state variants of the chosen peak are merged when
// within its RT span.
func postPass(cfg models.EngineConfig, registry *Registry, acceptorPeaks []*models.ChromatographicPeak) []*models.ChromatographicPeak {
	msmsApex := make(map[string]bool)
	for _, p := range acceptorPeaks {
		if p.IsMBR || !cfg.IsWhitelisted(p.ModifiedSequence()) {
			continue
		}
		if apex, ok := p.Apex(); ok {
			msmsApex[apex.Peak.Key()] = true
		}
	}

	var chosen []*models.ChromatographicPeak
	for _, seq := range registry.Sequences() {
		candidates := registry.Get(seq)

		target := bestNonConflicting(filterByRandomRT(candidates, false), msmsApex)
		decoyPeak := bestNonConflicting(filterByRandomRT(candidates, true), msmsApex)

		if target != nil {
			chosen = append(chosen, mergeChargeVariants(target, filterByRandomRT(candidates, false)))
		}
		if decoyPeak != nil {
			chosen = append(chosen, mergeChargeVariants(decoyPeak, filterByRandomRT(candidates, true)))
		}
	}
	return chosen
}

func filterByRandomRT(peaks []*models.ChromatographicPeak, randomRT bool) []*models.ChromatographicPeak {
	var out []*models.ChromatographicPeak
	for _, p := range peaks {
		if p.RandomRT == randomRT {
			out = append(out, p)
		}
	}
	return out
}

// bestNonConflicting returns the highest-scoring candidate in group whose
// apex does not collide with a whitelisted MS2 peak's apex, falling through
// to the next-best candidate on conflict.
func bestNonConflicting(group []*models.ChromatographicPeak, msmsApex map[string]bool) *models.ChromatographicPeak {
	ordered := append([]*models.ChromatographicPeak{}, group...)
	sortByScoreDesc(ordered)
	for _, c := range ordered {
		apex, ok := c.Apex()
		if !ok {
			continue
		}
		if msmsApex[apex.Peak.Key()] {
			continue
		}
		return c
	}
	return nil
}

func sortByScoreDesc(peaks []*models.ChromatographicPeak) {
	for i := 1; i < len(peaks); i++ {
		for j := i; j > 0 && score(peaks[j]) > score(peaks[j-1]); j-- {
			peaks[j], peaks[j-1] = peaks[j-1], peaks[j]
		}
	}
}

func score(p *models.ChromatographicPeak) float64 {
	if p.MBRScore == nil {
		return 0
	}
	return *p.MBRScore
}

// mergeChargeVariants folds any other candidate in group sharing chosen's
// modified sequence and random_rt group into chosen's envelope list, when
// its apex RT falls within chosen's RT span (spec §4.9, "merge charge-state
// variants of the chosen peak when within its RT span").
func mergeChargeVariants(chosen *models.ChromatographicPeak, group []*models.ChromatographicPeak) *models.ChromatographicPeak {
	if _, ok := chosen.Apex(); !ok {
		return chosen
	}
	loRT, hiRT := rtSpan(chosen)

	for _, other := range group {
		if other == chosen {
			continue
		}
		otherApex, ok := other.Apex()
		if !ok || otherApex.Peak.RetentionTime < loRT || otherApex.Peak.RetentionTime > hiRT {
			continue
		}
		chosen.Envelopes = append(chosen.Envelopes, other.Envelopes...)
		for _, ch := range other.ChargeList {
			chosen.ChargeList = appendUnique(chosen.ChargeList, ch)
		}
	}
	chosen.RecalculateApex()
	return chosen
}

func rtSpan(p *models.ChromatographicPeak) (lo, hi float64) {
	if len(p.Envelopes) == 0 {
		return 0, 0
	}
	lo, hi = p.Envelopes[0].Peak.RetentionTime, p.Envelopes[0].Peak.RetentionTime
	for _, e := range p.Envelopes[1:] {
		if e.Peak.RetentionTime < lo {
			lo = e.Peak.RetentionTime
		}
		if e.Peak.RetentionTime > hi {
			hi = e.Peak.RetentionTime
		}
	}
	return lo, hi
}

// mergeAndResolve runs the per-run error-checking pass (spec §4.9): when two
// peaks share the same apex IndexedPeak, two whitelisted MS2 peaks merge;
// an MS2 peak beats an MBR peak unless the MS2 peak is a decoy peptide or
// not whitelisted; two MBR peaks of the same sequence merge; two MBR peaks
// of different sequences keep the higher MBR score.
func mergeAndResolve(cfg models.EngineConfig, acceptorPeaks, mbrPeaks []*models.ChromatographicPeak) []*models.ChromatographicPeak {
	byApex := make(map[string][]*models.ChromatographicPeak)
	order := make([]string, 0, len(acceptorPeaks)+len(mbrPeaks))

	add := func(p *models.ChromatographicPeak) {
		apex, ok := p.Apex()
		if !ok {
			return
		}
		key := apex.Peak.Key()
		if _, seen := byApex[key]; !seen {
			order = append(order, key)
		}
		byApex[key] = append(byApex[key], p)
	}
	for _, p := range acceptorPeaks {
		add(p)
	}
	for _, p := range mbrPeaks {
		add(p)
	}

	var result []*models.ChromatographicPeak
	for _, key := range order {
		group := byApex[key]
		if len(group) == 1 {
			result = append(result, group[0])
			continue
		}
		result = append(result, resolveApexCollision(cfg, group))
	}
	return result
}

func resolveApexCollision(cfg models.EngineConfig, group []*models.ChromatographicPeak) *models.ChromatographicPeak {
	winner := group[0]
	for _, candidate := range group[1:] {
		winner = resolvePair(cfg, winner, candidate)
	}
	return winner
}

func resolvePair(cfg models.EngineConfig, a, b *models.ChromatographicPeak) *models.ChromatographicPeak {
	if !a.IsMBR && !b.IsMBR {
		a.Envelopes = append(a.Envelopes, b.Envelopes...)
		a.Identifications = append(a.Identifications, b.Identifications...)
		a.RecalculateApex()
		return a
	}
	if a.IsMBR != b.IsMBR {
		msms, mbrPeak := a, b
		if !b.IsMBR {
			msms, mbrPeak = b, a
		}
		if msms.DecoyPeptide || !cfg.IsWhitelisted(msms.ModifiedSequence()) {
			return mbrPeak
		}
		return msms
	}
	if a.ModifiedSequence() == b.ModifiedSequence() {
		a.Envelopes = append(a.Envelopes, b.Envelopes...)
		a.RecalculateApex()
		return a
	}
	if score(b) > score(a) {
		return b
	}
	return a
}
