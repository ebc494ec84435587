package core

import (
	"sort"
	"time"
)

// Reconciliation is the plan produced by Reconcile for one batch.
type Reconciliation struct {
	Mode Mode

	// Upserts holds the deduplicated batch in first-appearance order. These
	// are the records the executor writes; MERGE pass-through entries are
	// already stored unchanged.
	Upserts []PersonRecord

	// FinalSet is the directory as it will be after the batch, ordered by key.
	FinalSet []PersonRecord

	// ToDelete lists prior keys absent from a REPLACE batch, ordered.
	ToDelete []string

	AddedCount     int
	UpdatedCount   int
	UnchangedCount int
}

// DeletedCount is the number of keys removed by the batch.
func (r *Reconciliation) DeletedCount() int {
	return len(r.ToDelete)
}

// Reconcile merges batch into existing according to mode.
//
// Duplicate keys inside the batch collapse to the last occurrence, kept at
// the position of the first. Batch keys missing from existing are added and
// present ones with different content are updated; both get UpdatedAt = now.
// Batch entries identical to the stored record keep their UpdatedAt and,
// together with MERGE pass-through entries, count as unchanged. In REPLACE
// mode every existing key absent from the batch is scheduled for deletion.
func Reconcile(batch []PersonRecord, existing map[string]PersonRecord, mode Mode, now time.Time) *Reconciliation {
	r := &Reconciliation{Mode: mode}

	pos := make(map[string]int, len(batch))
	for _, rec := range batch {
		if i, ok := pos[rec.Key]; ok {
			r.Upserts[i] = rec
			continue
		}
		pos[rec.Key] = len(r.Upserts)
		r.Upserts = append(r.Upserts, rec)
	}

	for i := range r.Upserts {
		rec := &r.Upserts[i]
		prev, ok := existing[rec.Key]
		switch {
		case !ok:
			rec.UpdatedAt = now
			r.AddedCount++
		case rec.SameContent(prev):
			rec.UpdatedAt = prev.UpdatedAt
			r.UnchangedCount++
		default:
			rec.UpdatedAt = now
			r.UpdatedCount++
		}
	}

	r.FinalSet = append(r.FinalSet, r.Upserts...)

	for key, prev := range existing {
		if _, inBatch := pos[key]; inBatch {
			continue
		}
		switch mode {
		case ModeReplace:
			r.ToDelete = append(r.ToDelete, key)
		default:
			r.FinalSet = append(r.FinalSet, prev)
			r.UnchangedCount++
		}
	}

	sort.Strings(r.ToDelete)
	sort.Slice(r.FinalSet, func(i, j int) bool { return r.FinalSet[i].Key < r.FinalSet[j].Key })

	return r
}
