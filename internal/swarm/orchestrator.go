package swarm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// EventSink receives lifecycle events for a running query. Implementations
// must not block; a nil sink disables events.
type EventSink interface {
	Publish(queryID, eventType string, data map[string]any)
}

// RunRecorder persists finished runs. A nil recorder disables persistence.
type RunRecorder interface {
	RecordRun(ctx context.Context, res *SwarmResult) error
}

// Orchestrator drives one query through the full pipeline: plan, distribute,
// execute, synthesize, validate.
type Orchestrator struct {
	planner  *Planner
	executor *Executor
	sink     EventSink
	recorder RunRecorder

	mu        sync.Mutex
	active    map[string]*activeQuery
	processed int
	failed    int
	cancelled int
	totalTime time.Duration
}

type activeQuery struct {
	query   Query
	status  Status
	cancel  context.CancelFunc
	aborted bool
}

func NewOrchestrator(executor *Executor) *Orchestrator {
	return &Orchestrator{
		planner:  NewPlanner(),
		executor: executor,
		active:   make(map[string]*activeQuery),
	}
}

func (o *Orchestrator) SetEventSink(sink EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sink = sink
}

func (o *Orchestrator) SetRunRecorder(rec RunRecorder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorder = rec
}

// Submit runs the query to completion and always returns a SwarmResult; all
// failures are folded into a result with Status Failed or Cancelled.
func (o *Orchestrator) Submit(ctx context.Context, q Query) *SwarmResult {
	if q.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.TimeLimit)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	aq := &activeQuery{query: q, status: StatusQueued, cancel: cancel}
	o.mu.Lock()
	o.active[q.ID] = aq
	o.mu.Unlock()

	start := time.Now()
	res := o.run(ctx, q, aq, start)

	o.mu.Lock()
	delete(o.active, q.ID)
	o.processed++
	o.totalTime += res.Duration
	switch res.Status {
	case StatusFailed:
		o.failed++
	case StatusCancelled:
		o.cancelled++
	}
	recorder := o.recorder
	o.mu.Unlock()

	if recorder != nil {
		if err := recorder.RecordRun(context.WithoutCancel(ctx), res); err != nil {
			slog.Error("failed to record run", "query", q.ID, "error", err)
		}
	}
	return res
}

func (o *Orchestrator) run(ctx context.Context, q Query, aq *activeQuery, start time.Time) *SwarmResult {
	o.transition(q.ID, aq, StatusPlanning, nil)
	plan, err := o.planner.Plan(q)
	if err != nil {
		return o.finish(ctx, q, aq, nil, nil, start, err)
	}

	o.transition(q.ID, aq, StatusDistributing, map[string]any{
		"query_type": plan.QueryType,
		"strategy":   string(plan.Strategy),
	})
	tasks := Distribute(q, plan)

	o.transition(q.ID, aq, StatusExecuting, map[string]any{"tasks": len(tasks)})
	results, err := o.executor.Execute(ctx, plan.Strategy, q, tasks)
	if err != nil {
		return o.finish(ctx, q, aq, nil, nil, start, err)
	}
	if err := o.checkpoint(ctx, aq); err != nil {
		return o.finish(ctx, q, aq, results, nil, start, err)
	}

	o.transition(q.ID, aq, StatusSynthesizing, nil)
	syn, err := Synthesize(q, results)
	if err != nil {
		return o.finish(ctx, q, aq, results, nil, start, err)
	}
	if err := o.checkpoint(ctx, aq); err != nil {
		return o.finish(ctx, q, aq, results, syn, start, err)
	}

	o.transition(q.ID, aq, StatusValidating, nil)
	confidence := Validate(results, syn)
	if err := o.checkpoint(ctx, aq); err != nil {
		return o.finish(ctx, q, aq, results, syn, start, err)
	}

	master := results[RoleMaster]
	res := &SwarmResult{
		Query:      q,
		Master:     master,
		Results:    results,
		Synthesis:  syn,
		Confidence: confidence,
		Duration:   time.Since(start),
		Timestamp:  time.Now().UTC(),
		Status:     StatusCompleted,
	}
	o.transition(q.ID, aq, StatusCompleted, map[string]any{
		"confidence":     confidence.String(),
		"duration":       res.Duration.String(),
		"meets_criteria": MeetsCriteria(syn, results, plan.Criteria, confidence),
	})
	return res
}

// checkpoint reports whether the run should stop between stages. Cancellation
// can land while a non-terminal stage is underway; the executor observes the
// context on its own, but the pure synthesis and validation stages do not, so
// the flag is re-read before and after them.
func (o *Orchestrator) checkpoint(ctx context.Context, aq *activeQuery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	aborted := aq.aborted
	o.mu.Unlock()
	if aborted {
		return context.Canceled
	}
	return nil
}

// finish builds the terminal result for a run that did not complete. A
// cancellation observed on the context (or an explicit Cancel) yields a
// Cancelled result; everything else is Failed.
func (o *Orchestrator) finish(ctx context.Context, q Query, aq *activeQuery, results map[Role]AgentResult, syn *Synthesis, start time.Time, cause error) *SwarmResult {
	status := StatusFailed
	o.mu.Lock()
	aborted := aq.aborted
	o.mu.Unlock()
	if aborted || errors.Is(ctx.Err(), context.Canceled) {
		status = StatusCancelled
	}

	res := &SwarmResult{
		Query:      q,
		Results:    results,
		Synthesis:  syn,
		Confidence: ConfidenceLow,
		Duration:   time.Since(start),
		Timestamp:  time.Now().UTC(),
		Status:     status,
	}
	data := map[string]any{}
	if cause != nil {
		res.Master = AgentResult{
			Role:       RoleMaster,
			Content:    "query did not complete: " + cause.Error(),
			Confidence: ConfidenceLow,
			Timestamp:  res.Timestamp,
		}
		data["error"] = cause.Error()
	}
	o.transition(q.ID, aq, status, data)
	if status == StatusFailed {
		slog.Error("query failed", "query", q.ID, "error", cause)
	} else {
		slog.Info("query cancelled", "query", q.ID)
	}
	return res
}

// Cancel aborts an in-flight query. Returns false if the query is not active.
func (o *Orchestrator) Cancel(queryID string) bool {
	o.mu.Lock()
	aq, ok := o.active[queryID]
	if ok {
		aq.aborted = true
	}
	o.mu.Unlock()
	if !ok {
		return false
	}
	aq.cancel()
	return true
}

func (o *Orchestrator) transition(queryID string, aq *activeQuery, status Status, data map[string]any) {
	o.mu.Lock()
	aq.status = status
	sink := o.sink
	o.mu.Unlock()

	slog.Debug("query state", "query", queryID, "status", string(status))
	if sink != nil {
		sink.Publish(queryID, string(status), data)
	}
}

// QueryState is one entry in the orchestrator status snapshot.
type QueryState struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Status   Status `json:"status"`
}

// OrchestratorStatus is a point-in-time snapshot of orchestrator activity.
type OrchestratorStatus struct {
	Active      []QueryState    `json:"active"`
	Processed   int             `json:"processed"`
	Failed      int             `json:"failed"`
	Cancelled   int             `json:"cancelled"`
	AvgDuration time.Duration   `json:"avg_duration"`
	Roles       map[Role]string `json:"roles"`
}

// Status reports active queries, lifetime counters and role availability.
func (o *Orchestrator) Status() OrchestratorStatus {
	o.mu.Lock()
	st := OrchestratorStatus{
		Active:    make([]QueryState, 0, len(o.active)),
		Processed: o.processed,
		Failed:    o.failed,
		Cancelled: o.cancelled,
	}
	if o.processed > 0 {
		st.AvgDuration = o.totalTime / time.Duration(o.processed)
	}
	for _, aq := range o.active {
		st.Active = append(st.Active, QueryState{
			ID:       aq.query.ID,
			Question: aq.query.Question,
			Status:   aq.status,
		})
	}
	o.mu.Unlock()

	st.Roles = o.executor.RoleStatus()
	return st
}
