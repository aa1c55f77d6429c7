package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Collaborator is the consumed contract of one role's responder. Its internal
// reasoning is opaque; it takes a query plus context hints and returns a
// structured result.
type Collaborator interface {
	ProcessQuery(ctx context.Context, q Query, hints map[string]string) (AgentResult, error)
}

// Substrate runs a whole task batch through a shared execution backend. Used
// by the full-orchestration strategy.
type Substrate interface {
	ExecuteBatch(ctx context.Context, q Query, tasks []Task) (map[Role]AgentResult, error)
}

// ErrSubstrateUnavailable signals a substrate-level failure before any role
// ran; the executor falls back to the hierarchical strategy.
var ErrSubstrateUnavailable = errors.New("execution substrate unavailable")

// defaultTimeouts are per-role invocation timeouts. Search and Analysis are
// expected to answer quickly; Master synthesizes and gets the longest budget.
var defaultTimeouts = map[Role]time.Duration{
	RoleMaster:     120 * time.Second,
	RoleSearch:     45 * time.Second,
	RoleInnovation: 60 * time.Second,
	RoleAnalysis:   45 * time.Second,
}

// Executor runs task batches against role collaborators, isolating non-Master
// failures into degraded results.
type Executor struct {
	mu            sync.RWMutex
	collaborators map[Role]Collaborator
	timeouts      map[Role]time.Duration
	substrate     Substrate
	masterFactory func() (Collaborator, error)
	masterRetried bool
}

func NewExecutor(collaborators map[Role]Collaborator) *Executor {
	e := &Executor{
		collaborators: make(map[Role]Collaborator, len(collaborators)),
		timeouts:      make(map[Role]time.Duration, len(defaultTimeouts)),
	}
	for role, c := range collaborators {
		e.collaborators[role] = c
	}
	for role, d := range defaultTimeouts {
		e.timeouts[role] = d
	}
	return e
}

// SetTimeout overrides the invocation timeout for one role.
func (e *Executor) SetTimeout(role Role, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeouts[role] = d
}

// SetSubstrate installs the shared backend used by full orchestration.
func (e *Executor) SetSubstrate(s Substrate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.substrate = s
}

// SetMasterFactory installs a constructor used for the single best-effort
// re-attempt to initialize the Master collaborator.
func (e *Executor) SetMasterFactory(f func() (Collaborator, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterFactory = f
}

// RoleStatus reports ready/unavailable per known role.
func (e *Executor) RoleStatus() map[Role]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	status := make(map[Role]string, len(AllRoles()))
	for _, role := range AllRoles() {
		if e.collaborators[role] != nil {
			status[role] = "ready"
		} else {
			status[role] = "unavailable"
		}
	}
	return status
}

// Execute runs the tasks under the given strategy and returns one AgentResult
// per role. The returned error is non-nil only for Master-path failures;
// every other failure is absorbed into a degraded result.
func (e *Executor) Execute(ctx context.Context, strategy Strategy, q Query, tasks []Task) (map[Role]AgentResult, error) {
	if err := e.ensureMaster(); err != nil {
		return nil, err
	}

	switch strategy {
	case StrategySequential:
		return e.runSequential(ctx, q, tasks)
	case StrategyParallel:
		return e.runParallel(ctx, q, tasks)
	case StrategyHierarchical:
		return e.runHierarchical(ctx, q, tasks)
	case StrategyFullOrchestration:
		return e.runFullOrchestration(ctx, q, tasks)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}
}

// ensureMaster verifies the Master collaborator exists, re-initializing it
// through the factory at most once.
func (e *Executor) ensureMaster() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.collaborators[RoleMaster] != nil {
		return nil
	}
	if e.masterFactory != nil && !e.masterRetried {
		e.masterRetried = true
		c, err := e.masterFactory()
		if err == nil && c != nil {
			e.collaborators[RoleMaster] = c
			slog.Info("master collaborator re-initialized")
			return nil
		}
		if err != nil {
			return &RoleUnavailableError{Role: RoleMaster, Err: err}
		}
	}
	return &RoleUnavailableError{Role: RoleMaster}
}

func (e *Executor) runSequential(ctx context.Context, q Query, tasks []Task) (map[Role]AgentResult, error) {
	results := make(map[Role]AgentResult, len(tasks))

	// Tasks arrive sorted by ascending priority; a failing task does not
	// block the next.
	for _, task := range tasks {
		res, err := e.runTask(ctx, q, task)
		if err != nil {
			return nil, err
		}
		results[task.Role] = res
	}
	return results, nil
}

func (e *Executor) runParallel(ctx context.Context, q Query, tasks []Task) (map[Role]AgentResult, error) {
	results := make(map[Role]AgentResult, len(tasks))
	var resultsMu sync.Mutex

	var masterTask *Task
	var wg sync.WaitGroup
	for i := range tasks {
		task := tasks[i]
		if task.Role == RoleMaster {
			masterTask = &tasks[i]
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := e.runTask(ctx, q, task) // non-Master: runTask never errors
			resultsMu.Lock()
			results[task.Role] = res
			resultsMu.Unlock()
		}()
	}
	wg.Wait()

	// Master runs last and does not consume peer results in this strategy.
	if masterTask != nil {
		res, err := e.runTask(ctx, q, *masterTask)
		if err != nil {
			return nil, err
		}
		results[RoleMaster] = res
	}
	return results, nil
}

func (e *Executor) runHierarchical(ctx context.Context, q Query, tasks []Task) (map[Role]AgentResult, error) {
	byRole := make(map[Role]Task, len(tasks))
	for _, task := range tasks {
		byRole[task.Role] = task
	}

	results := make(map[Role]AgentResult, len(tasks))
	var resultsMu sync.Mutex

	// Phase 1: evidence gathering.
	var searchContext string
	if task, ok := byRole[RoleSearch]; ok {
		res, _ := e.runTask(ctx, q, task)
		results[RoleSearch] = res
		searchContext = res.Content
	}

	// Phase 2: Innovation and Analysis in parallel, each reading phase 1's
	// output.
	var wg sync.WaitGroup
	for _, role := range []Role{RoleInnovation, RoleAnalysis} {
		task, ok := byRole[role]
		if !ok {
			continue
		}
		if searchContext != "" {
			task.Hints = withHint(task.Hints, "search_context", searchContext)
		}
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			res, _ := e.runTask(ctx, q, task)
			resultsMu.Lock()
			results[task.Role] = res
			resultsMu.Unlock()
		}(task)
	}
	wg.Wait()

	// Phase 3: Master reads all peer results.
	if task, ok := byRole[RoleMaster]; ok {
		for role, res := range results {
			if res.Content != "" {
				task.Hints = withHint(task.Hints, "peer_"+string(role), res.Content)
			}
		}
		res, err := e.runTask(ctx, q, task)
		if err != nil {
			return nil, err
		}
		results[RoleMaster] = res
	}
	return results, nil
}

func (e *Executor) runFullOrchestration(ctx context.Context, q Query, tasks []Task) (map[Role]AgentResult, error) {
	e.mu.RLock()
	substrate := e.substrate
	e.mu.RUnlock()

	if substrate == nil {
		return e.runHierarchical(ctx, q, tasks)
	}

	results, err := substrate.ExecuteBatch(ctx, q, tasks)
	if errors.Is(err, ErrSubstrateUnavailable) {
		slog.Warn("execution substrate failed, falling back to hierarchical", "query", q.ID, "error", err)
		return e.runHierarchical(ctx, q, tasks)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// runTask invokes one collaborator. Non-Master failures come back as a
// degraded result with a nil error; Master failures escalate.
func (e *Executor) runTask(ctx context.Context, q Query, task Task) (AgentResult, error) {
	res, err := e.invoke(ctx, q, task)
	if err == nil {
		return res, nil
	}
	if task.Role == RoleMaster {
		return AgentResult{}, err
	}
	slog.Warn("role failed, continuing with degraded result", "query", q.ID, "role", task.Role, "error", err)
	return DegradedResult(task.Role, err), nil
}

func (e *Executor) invoke(ctx context.Context, q Query, task Task) (AgentResult, error) {
	e.mu.RLock()
	collab := e.collaborators[task.Role]
	timeout := e.timeouts[task.Role]
	e.mu.RUnlock()

	if collab == nil {
		return AgentResult{}, &RoleUnavailableError{Role: task.Role}
	}
	if timeout == 0 {
		timeout = defaultTimeouts[task.Role]
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res AgentResult
		err error
	}
	ch := make(chan outcome, 1)
	start := time.Now()

	go func() {
		res, err := collab.ProcessQuery(cctx, q, task.Hints)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return AgentResult{}, classifyInvokeError(task.Role, out.err)
		}
		res := out.res
		res.Role = task.Role
		if res.Duration == 0 {
			res.Duration = time.Since(start)
		}
		if res.Timestamp.IsZero() {
			res.Timestamp = time.Now().UTC()
		}
		for i, src := range res.Sources {
			res.Sources[i] = src.Clamp()
		}
		return res, nil
	case <-cctx.Done():
		// An expired invocation is treated exactly as a raised error; the
		// collaborator call is not force-terminated.
		return AgentResult{}, &RoleTimeoutError{Role: task.Role, Timeout: timeout}
	}
}

func classifyInvokeError(role Role, err error) error {
	var timeoutErr *RoleTimeoutError
	var execErr *RoleExecutionError
	var unavailErr *RoleUnavailableError
	if errors.As(err, &timeoutErr) || errors.As(err, &execErr) || errors.As(err, &unavailErr) {
		return err
	}
	return &RoleExecutionError{Role: role, Err: err}
}

// DegradedResult is the substitute AgentResult for a failed non-Master role:
// LOW confidence, no sources, the error carried in metadata.
func DegradedResult(role Role, err error) AgentResult {
	return AgentResult{
		Role:       role,
		Content:    fmt.Sprintf("%s role did not answer: %v", role, err),
		Confidence: ConfidenceLow,
		Metadata: map[string]string{
			"degraded": "true",
			"error":    err.Error(),
		},
		Timestamp: time.Now().UTC(),
	}
}

func withHint(hints map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(hints)+1)
	for k, v := range hints {
		out[k] = v
	}
	out[key] = value
	return out
}
