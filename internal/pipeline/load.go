package pipeline

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"go-sales-etl/internal/model"
	"go-sales-etl/internal/resilience"
)

// Sink is the external persistence target. Upsert must be idempotent
// under retry: the same chunk submitted twice must not double-count.
// Implementations key on (date, product_id) at minimum.
type Sink interface {
	Upsert(ctx context.Context, records []model.Record) error
}

// FailedRecord is a record the sink refused with a non-retryable error.
type FailedRecord struct {
	Record model.Record    `json:"record"`
	Kind   model.ErrorKind `json:"kind"`
	Reason string          `json:"reason"`
}

// LoadResult reports the outcome of the load stage.
type LoadResult struct {
	Loaded   int            `json:"loaded"`
	Failed   []FailedRecord `json:"failed,omitempty"`
	Attempts int            `json:"attempts"`
}

// Load persists a clean batch through the sink in chunks. Chunks are
// dispatched concurrently up to cfg.Load.Parallelism and each chunk is
// retried per the retry config; a chunk the sink rejects outright lands
// in Failed and the stage continues — one bad chunk never aborts the
// run. Only retry exhaustion or cancellation returns an error, which is
// fatal to the run.
func Load(ctx context.Context, batch model.Batch, sink Sink, cfg model.RunConfig) (LoadResult, error) {
	result := LoadResult{}
	if len(batch) == 0 {
		return result, nil
	}

	chunks := splitChunks(batch, cfg.Load.ChunkSize)
	type outcome struct {
		attempts int
		err      error
	}
	outcomes := make([]outcome, len(chunks))

	parallelism := cfg.Load.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	var g errgroup.Group
	g.SetLimit(parallelism)

	for i, chunk := range chunks {
		// honor a stop request between chunk dispatches
		if ctx.Err() != nil {
			outcomes[i] = outcome{err: model.NewError(model.ErrCancellationRequested, "load", ctx.Err())}
			continue
		}
		i, chunk := i, chunk
		g.Go(func() error {
			attempts, err := resilience.WithRetry(ctx, cfg.Retry, model.Retryable, func(ctx context.Context) error {
				return sink.Upsert(ctx, chunk)
			})
			outcomes[i] = outcome{attempts: attempts, err: err}
			return nil
		})
	}
	g.Wait()

	var fatal error
	for i, out := range outcomes {
		result.Attempts += out.attempts
		if out.err == nil {
			result.Loaded += len(chunks[i])
			continue
		}
		kind, _ := model.KindOf(out.err)
		switch kind {
		case model.ErrRetriesExhausted, model.ErrCancellationRequested:
			if fatal == nil {
				fatal = out.err
			}
		default:
			// non-retryable sink rejection: report the chunk's records
			// and keep going
			log.Printf("❌ load: chunk %d rejected (%d records): %v", i, len(chunks[i]), out.err)
			for _, rec := range chunks[i] {
				result.Failed = append(result.Failed, FailedRecord{
					Record: rec,
					Kind:   kind,
					Reason: out.err.Error(),
				})
			}
		}
	}
	return result, fatal
}

// splitChunks slices the batch; size <= 0 submits it whole.
func splitChunks(batch model.Batch, size int) []model.Batch {
	if size <= 0 || size >= len(batch) {
		return []model.Batch{batch}
	}
	var chunks []model.Batch
	for start := 0; start < len(batch); start += size {
		end := start + size
		if end > len(batch) {
			end = len(batch)
		}
		chunks = append(chunks, batch[start:end])
	}
	return chunks
}
