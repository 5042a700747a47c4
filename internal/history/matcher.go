package history

import "github.com/neurodeck/mindlink/internal/eeg"

// fieldSpec pairs a sample accessor with its tolerance accessor so the
// filter can walk all fields without stringly-typed lookups.
type fieldSpec struct {
	sample func(eeg.Sample) int
	fault  func(eeg.FaultProfile) int
}

var matchFields = [...]fieldSpec{
	{func(s eeg.Sample) int { return s.Attention }, func(f eeg.FaultProfile) int { return f.Attention }},
	{func(s eeg.Sample) int { return s.Meditation }, func(f eeg.FaultProfile) int { return f.Meditation }},
	{func(s eeg.Sample) int { return s.Signal }, func(f eeg.FaultProfile) int { return f.Signal }},
	{func(s eeg.Sample) int { return s.Delta }, func(f eeg.FaultProfile) int { return f.Delta }},
	{func(s eeg.Sample) int { return s.Theta }, func(f eeg.FaultProfile) int { return f.Theta }},
	{func(s eeg.Sample) int { return s.HighBeta }, func(f eeg.FaultProfile) int { return f.HighBeta }},
	{func(s eeg.Sample) int { return s.LowBeta }, func(f eeg.FaultProfile) int { return f.LowBeta }},
	{func(s eeg.Sample) int { return s.HighAlpha }, func(f eeg.FaultProfile) int { return f.HighAlpha }},
	{func(s eeg.Sample) int { return s.LowAlpha }, func(f eeg.FaultProfile) int { return f.LowAlpha }},
	{func(s eeg.Sample) int { return s.HighGamma }, func(f eeg.FaultProfile) int { return f.HighGamma }},
	{func(s eeg.Sample) int { return s.LowGamma }, func(f eeg.FaultProfile) int { return f.LowGamma }},
}

// EventFor classifies a live sample against the log using the tolerance
// cascade. The cascade is defined narrow to wide (level 0 is the base
// profile). Filtering starts from the whole log with the widest level
// and narrows through the levels in reverse, producing nested candidate
// sets; those sets are then consulted narrowest first and the first one
// holding any labeled match decides by majority vote. Ties between
// labels are broken by the fixed eeg.Events order.
func (l *Log) EventFor(current eeg.Sample, cascade []eeg.FaultProfile) eeg.Event {
	records := l.Records()
	if len(records) == 0 || len(cascade) == 0 {
		return eeg.EventNone
	}

	// Widest profile first.
	faults := make([]eeg.FaultProfile, len(cascade))
	for i, f := range cascade {
		faults[len(cascade)-1-i] = f
	}

	rounds := make([][]Record, 0, len(faults))
	candidates := records
	for i, fault := range faults {
		if i != 0 {
			candidates = rounds[i-1]
		}
		rounds = append(rounds, filterByFault(candidates, current, fault))
	}

	// Narrowest surviving set first.
	for i := len(rounds) - 1; i >= 0; i-- {
		if ev := majority(rounds[i]); ev != eeg.EventNone {
			return ev
		}
	}
	return eeg.EventNone
}

// filterByFault keeps the records within the per-field tolerance
// window. A tolerance of 0 excludes that field from filtering entirely.
// Filters are conjunctive, so the function short-circuits as soon as a
// field eliminates every candidate.
func filterByFault(records []Record, current eeg.Sample, fault eeg.FaultProfile) []Record {
	results := records
	for _, field := range matchFields {
		tol := field.fault(fault)
		if tol == 0 {
			continue
		}
		want := field.sample(current)

		kept := results[:0:0]
		for _, r := range results {
			got := field.sample(r.Sample)
			if got >= want-tol && got <= want+tol {
				kept = append(kept, r)
			}
		}
		results = kept
		if len(results) == 0 {
			return results
		}
	}
	return results
}

// majority returns the most frequent label in the set, EventNone when
// the set holds no labeled records. The scan over eeg.Events with a
// strict greater-than comparison makes the tie-break deterministic.
func majority(records []Record) eeg.Event {
	if len(records) == 0 {
		return eeg.EventNone
	}

	counts := make(map[eeg.Event]int, len(eeg.Events))
	for _, r := range records {
		if r.EventName.Valid() {
			counts[r.EventName]++
		}
	}

	best := eeg.EventNone
	bestCount := 0
	for _, ev := range eeg.Events {
		if counts[ev] > bestCount {
			best = ev
			bestCount = counts[ev]
		}
	}
	return best
}
