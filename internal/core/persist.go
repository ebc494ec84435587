package core

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is used when an Executor has no chunk size configured.
const DefaultChunkSize = 750

// Executor writes a reconciliation plan to a Directory in bounded chunks.
type Executor struct {
	ChunkSize int

	// Concurrency above 1 writes that many chunks at once. Keys are unique
	// across chunks after reconciliation, so write order between chunks
	// does not matter.
	Concurrency int
}

// PersistResult counts what reached the store, including on failure.
type PersistResult struct {
	Processed int `json:"processed"`
	Upserted  int `json:"upserted"`
	Deleted   int `json:"deleted"`
}

type chunk struct {
	start int // 0-based offset into the write set
	recs  []PersonRecord
}

func (x Executor) chunks(recs []PersonRecord) []chunk {
	size := x.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out []chunk
	for i := 0; i < len(recs); i += size {
		end := min(i+size, len(recs))
		out = append(out, chunk{start: i, recs: recs[i:end]})
	}
	return out
}

// Execute deletes plan.ToDelete, then upserts plan.Upserts chunk by chunk.
//
// A failed delete aborts before anything is written. A failed chunk stops
// the remaining chunks and is reported as a *PersistenceError naming its
// range; chunks already written stay committed.
func (x Executor) Execute(ctx context.Context, dir Directory, plan *Reconciliation) (PersistResult, error) {
	res := PersistResult{Processed: len(plan.Upserts)}

	if len(plan.ToDelete) > 0 {
		if err := dir.DeleteKeys(ctx, plan.ToDelete); err != nil {
			return res, phaseError(PhaseDelete, &PersistenceError{Op: "delete", Err: err})
		}
		res.Deleted = len(plan.ToDelete)
	}

	chunks := x.chunks(plan.Upserts)
	write := func(ctx context.Context, c chunk) error {
		if err := dir.UpsertMany(ctx, c.recs); err != nil {
			return phaseError(PhaseUpsert, &PersistenceError{
				Op:    "upsert",
				Start: c.start + 1,
				End:   c.start + len(c.recs),
				Err:   err,
			})
		}
		return nil
	}

	if x.Concurrency <= 1 {
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				return res, phaseError(PhaseUpsert, err)
			}
			if err := write(ctx, c); err != nil {
				return res, err
			}
			res.Upserted += len(c.recs)
		}
		return res, nil
	}

	var upserted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.Concurrency)
	for _, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			if err := write(gctx, c); err != nil {
				return err
			}
			upserted.Add(int64(len(c.recs)))
			return nil
		})
	}
	err := g.Wait()
	res.Upserted = int(upserted.Load())
	if err == nil && res.Upserted < res.Processed {
		err = phaseError(PhaseUpsert, ctx.Err())
	}
	return res, err
}
