// Package apply executes deployment plans with bounded concurrency and
// partial failure handling. Independent branches of the dependency DAG
// run in parallel; instructions linked by an edge execute in strict
// order; every success is committed to the state store before its
// dependents dispatch.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/szaher/stratus/internal/events"
	"github.com/szaher/stratus/internal/plan"
	"github.com/szaher/stratus/internal/providers"
	"github.com/szaher/stratus/internal/state"
	"github.com/szaher/stratus/internal/telemetry"
)

// ExecutionError reports one failed or skipped instruction.
type ExecutionError struct {
	ID  string
	Op  plan.Op
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Result summarizes one apply run. Record reflects everything actually
// applied, committed incrementally, so a crash or failure leaves the
// store consistent and a re-run resumes instead of repeating.
type Result struct {
	Created int
	Updated int
	Deleted int
	Failed  int
	Skipped int
	Errors  []ExecutionError
	Record  *state.Record
}

// Executor applies plans through a provider.
type Executor struct {
	provider providers.Provider
	store    state.Store
	workers  int
	retry    RetryPolicy
	logger   *slog.Logger
	emitter  events.Emitter
}

// New creates an Executor with default worker and retry settings.
func New(provider providers.Provider, store state.Store) *Executor {
	return &Executor{
		provider: provider,
		store:    store,
		workers:  4,
		retry:    DefaultRetryPolicy(),
		logger:   slog.Default(),
		emitter:  events.NoopEmitter{},
	}
}

// WithWorkers sets the concurrency bound for independent instructions.
func (e *Executor) WithWorkers(n int) *Executor {
	if n > 0 {
		e.workers = n
	}
	return e
}

// WithRetry sets the backoff policy for transient failures.
func (e *Executor) WithRetry(r RetryPolicy) *Executor {
	e.retry = r
	return e
}

// WithLogger sets the structured logger.
func (e *Executor) WithLogger(l *slog.Logger) *Executor {
	e.logger = l
	return e
}

// WithEmitter sets the lifecycle event emitter.
func (e *Executor) WithEmitter(em events.Emitter) *Executor {
	e.emitter = em
	return e
}

// instrState tracks one instruction through the scheduler.
type instrState int

const (
	instrPending instrState = iota
	instrRunning
	instrDone
	instrFailed
	instrSkipped
)

type execResult struct {
	idx         int
	identifiers map[string]string
	err         error
}

// Apply executes the plan for one stage. It returns the updated record
// together with per-instruction errors; a non-nil error is returned
// only for a state store failure, which aborts further dispatch.
func (e *Executor) Apply(ctx context.Context, p *plan.Plan, previous *state.Record) (*Result, error) {
	cid := telemetry.CorrelationID(ctx)
	e.emitter.Emit(events.New(events.ApplyStarted, cid).
		WithData("stage", p.Stage).
		WithData("instruction_count", len(p.Instructions)))

	record := previous.Clone()
	result := &Result{Record: record}
	n := len(p.Instructions)
	if n == 0 {
		e.emitter.Emit(events.New(events.ApplyCompleted, cid).WithData("message", "no changes"))
		return result, nil
	}

	// Index instructions and wire up dependencies among them. Edges
	// pointing outside the plan are already satisfied by the previous
	// deployment.
	index := make(map[string]int, n)
	for i, in := range p.Instructions {
		index[in.ID] = i
	}
	waiting := make([]int, n)
	dependents := make(map[int][]int, n)
	states := make([]instrState, n)
	for i, in := range p.Instructions {
		for _, dep := range in.DependsOn {
			j, ok := index[dep]
			if !ok {
				continue
			}
			waiting[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	sem := semaphore.NewWeighted(int64(e.workers))
	results := make(chan execResult)

	var mu sync.Mutex // serializes record access and store commits

	dispatch := func(idx int) {
		states[idx] = instrRunning
		in := p.Instructions[idx]
		go func() {
			// The semaphore bounds concurrent provider calls.
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- execResult{idx: idx, err: err}
				return
			}
			defer sem.Release(1)
			ids, err := e.execute(ctx, in, record, &mu)
			results <- execResult{idx: idx, identifiers: ids, err: err}
		}()
	}

	// skip marks a pending instruction and everything depending on it.
	var skip func(idx int, reason error)
	skip = func(idx int, reason error) {
		if states[idx] != instrPending {
			return
		}
		states[idx] = instrSkipped
		result.Skipped++
		result.Errors = append(result.Errors, ExecutionError{
			ID: p.Instructions[idx].ID, Op: p.Instructions[idx].Op, Err: reason,
		})
		for _, d := range dependents[idx] {
			skip(d, fmt.Errorf("dependency %s skipped", p.Instructions[idx].ID))
		}
	}

	inflight := 0
	cancelled := false
	var storeErr error

	launchReady := func() {
		// Cancellation is checked between dispatches: in-flight
		// instructions finish, nothing new starts.
		if cancelled || storeErr != nil {
			return
		}
		if ctx.Err() != nil {
			cancelled = true
			return
		}
		for i := 0; i < n; i++ {
			if states[i] == instrPending && waiting[i] == 0 {
				dispatch(i)
				inflight++
			}
		}
	}

	launchReady()
	for inflight > 0 {
		res := <-results
		inflight--
		in := p.Instructions[res.idx]

		if res.err != nil {
			states[res.idx] = instrFailed
			result.Failed++
			result.Errors = append(result.Errors, ExecutionError{ID: in.ID, Op: in.Op, Err: res.err})
			telemetry.ApplyOperations.WithLabelValues(string(in.Op), "failed").Inc()
			e.logger.Error("instruction failed", "id", in.ID, "op", string(in.Op), "error", res.err)
			e.emitter.Emit(events.New(events.ApplyResource, cid).
				WithData("id", in.ID).
				WithData("op", string(in.Op)).
				WithData("status", "failed"))
			for _, d := range dependents[res.idx] {
				skip(d, fmt.Errorf("dependency %s failed", in.ID))
			}
		} else {
			states[res.idx] = instrDone
			mu.Lock()
			switch in.Op {
			case plan.OpCreate:
				result.Created++
				record.Put(recordedResource(in, res.identifiers))
			case plan.OpUpdate:
				result.Updated++
				record.Put(recordedResource(in, res.identifiers))
			case plan.OpDelete:
				result.Deleted++
				record.Remove(in.ID)
			}
			err := e.store.Commit(p.Stage, record)
			mu.Unlock()

			telemetry.ApplyOperations.WithLabelValues(string(in.Op), "success").Inc()
			e.logger.Info("instruction applied", "id", in.ID, "op", string(in.Op))
			e.emitter.Emit(events.New(events.ApplyResource, cid).
				WithData("id", in.ID).
				WithData("op", string(in.Op)).
				WithData("status", "success"))

			if err != nil {
				// Store failure is fatal for the stage: stop
				// dispatching, drain what is already in flight.
				storeErr = err
			}
			for _, d := range dependents[res.idx] {
				if waiting[d] > 0 {
					waiting[d]--
				}
			}
		}
		launchReady()
	}

	// Whatever never dispatched is reported as skipped.
	for i := 0; i < n; i++ {
		if states[i] == instrPending {
			var reason error
			switch {
			case storeErr != nil:
				reason = fmt.Errorf("apply aborted: %w", storeErr)
			case ctx.Err() != nil:
				reason = ctx.Err()
			default:
				reason = fmt.Errorf("dependencies never completed")
			}
			skip(i, reason)
		}
	}

	e.emitter.Emit(events.New(events.ApplyCompleted, cid).
		WithData("created", result.Created).
		WithData("updated", result.Updated).
		WithData("deleted", result.Deleted).
		WithData("failed", result.Failed).
		WithData("skipped", result.Skipped))

	if storeErr != nil {
		return result, storeErr
	}
	return result, nil
}

func recordedResource(in plan.Instruction, identifiers map[string]string) state.Resource {
	return state.Resource{
		Name:         in.ID,
		ResourceType: string(in.Node.Kind),
		Fingerprint:  in.Node.Fingerprint,
		DependsOn:    append([]string(nil), in.Node.DependsOn...),
		Identifiers:  identifiers,
	}
}

// execute runs one instruction with bounded backoff on transient
// failures. An in-flight call is never interrupted; cancellation only
// stops further retries.
func (e *Executor) execute(ctx context.Context, in plan.Instruction, record *state.Record, mu *sync.Mutex) (map[string]string, error) {
	deps := depSnapshot(in, record, mu)

	start := time.Now()
	defer func() {
		telemetry.ApplyDuration.WithLabelValues(string(in.Op)).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt < e.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			telemetry.ApplyRetries.Inc()
			e.logger.Warn("retrying instruction", "id", in.ID, "attempt", attempt, "error", lastErr)
			if !sleep(ctx, e.retry.delay(attempt-1)) {
				return nil, lastErr
			}
		}

		var (
			ids map[string]string
			err error
		)
		switch in.Op {
		case plan.OpCreate:
			ids, err = e.provider.Create(ctx, in.Node, deps)
		case plan.OpUpdate:
			ids, err = e.provider.Update(ctx, in.Node, *in.Recorded, deps)
		case plan.OpDelete:
			err = e.provider.Delete(ctx, *in.Recorded)
		}
		if err == nil {
			return ids, nil
		}
		lastErr = err
		if !providers.Retryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

// depSnapshot copies the recorded state of an instruction's
// dependencies under the record lock. Dependencies applied earlier in
// this run are visible because their commits happen before dependents
// dispatch.
func depSnapshot(in plan.Instruction, record *state.Record, mu *sync.Mutex) map[string]state.Resource {
	mu.Lock()
	defer mu.Unlock()
	deps := make(map[string]state.Resource, len(in.DependsOn))
	for _, dep := range in.DependsOn {
		if res := record.Get(dep); res != nil {
			deps[dep] = *res
		}
	}
	return deps
}
