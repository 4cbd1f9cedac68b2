package world

import (
	"context"
	"log/slog"
	"slices"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/steamapi"
)

type batchResult[T any] struct {
	entries []T
	err     error
}

// fetchFunc runs on its own goroutine and must only use the client it was
// handed, never shared world state.
type fetchFunc[T any] func(ctx context.Context, client *steamapi.Client, steamIDs steamid.Collection) ([]T, error)

// applyFunc applies one fetched entry to the world and reports which steam id
// it satisfied.
type applyFunc[T any] func(entry T) steamid.SteamID

// updateQueue batches enrichment requests for one API endpoint. Ids accumulate
// in pending until an update tick launches a single in-flight request of up to
// steamapi.MaxBatchSize ids. Ids leave pending only once a response satisfied
// them; failed batches and ids the API did not return stay pending and are
// retried on a later tick.
//
// queue and update must be called from the world owner goroutine; only the
// fetch itself runs concurrently.
type updateQueue[T any] struct {
	name     string
	pending  steamid.Collection
	inFlight chan batchResult[T]
	fetch    fetchFunc[T]
	apply    applyFunc[T]
}

func newUpdateQueue[T any](name string, fetch fetchFunc[T], apply applyFunc[T]) *updateQueue[T] {
	return &updateQueue[T]{name: name, fetch: fetch, apply: apply}
}

// queue marks a steam id as wanting data. Invalid and already queued ids are
// ignored, so callers may queue on every cache miss without flooding.
func (q *updateQueue[T]) queue(sid steamid.SteamID) {
	if !sid.Valid() || slices.Contains(q.pending, sid) {
		return
	}

	q.pending = append(q.pending, sid)
}

// update drives one tick: harvest a finished request if there is one, then
// launch the next batch when idle. Never blocks. The client is captured here,
// on the owner goroutine, so a concurrent SetClient cannot touch an in-flight
// request.
func (q *updateQueue[T]) update(ctx context.Context, client *steamapi.Client) {
	q.poll()

	if q.inFlight != nil || len(q.pending) == 0 || client == nil {
		return
	}

	steamIDs := slices.Clone(q.pending[:min(len(q.pending), steamapi.MaxBatchSize)])
	result := make(chan batchResult[T], 1)

	go func() {
		entries, errFetch := q.fetch(ctx, client, steamIDs)
		result <- batchResult[T]{entries: entries, err: errFetch}
	}()

	q.inFlight = result
}

func (q *updateQueue[T]) poll() {
	if q.inFlight == nil {
		return
	}

	select {
	case result := <-q.inFlight:
		q.inFlight = nil

		if result.err != nil {
			// Leave the batch pending so the next tick retries it.
			slog.Error("Failed to fetch batch",
				slog.String("queue", q.name), slog.String("error", result.err.Error()))

			return
		}

		// Only ids the response actually covered leave the queue; anything
		// the API left out stays pending and is requested again.
		satisfied := make(map[steamid.SteamID]struct{}, len(result.entries))
		for _, entry := range result.entries {
			satisfied[q.apply(entry)] = struct{}{}
		}

		q.pending = slices.DeleteFunc(q.pending, func(sid steamid.SteamID) bool {
			_, found := satisfied[sid]

			return found
		})
	default:
	}
}
