// Package scheduler fires standing queries on their schedules.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mberos/quorum/internal/config"
	"github.com/mberos/quorum/internal/natsbus"
	"github.com/mberos/quorum/internal/schedule"
	"github.com/mberos/quorum/internal/store"
	"github.com/mberos/quorum/internal/swarm"
)

// QuerySubmitter runs one query end to end. Satisfied by swarm.Orchestrator.
type QuerySubmitter interface {
	Submit(ctx context.Context, q swarm.Query) *swarm.SwarmResult
}

type Scheduler struct {
	store        *store.Store
	submitter    QuerySubmitter
	natsClient   *natsbus.Client
	pollInterval time.Duration
	reloadCh     chan struct{}
}

func New(s *store.Store, submitter QuerySubmitter, client *natsbus.Client, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:        s,
		submitter:    submitter,
		natsClient:   client,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
	}
}

// UpdatePollInterval changes the polling cadence and resets the run loop's
// ticker.
func (s *Scheduler) UpdatePollInterval(d time.Duration) {
	s.pollInterval = d
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.pollInterval)
			slog.Info("scheduler poll interval updated", "poll_interval", s.pollInterval)
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	due, err := s.store.DueStandingQueries(time.Now())
	if err != nil {
		slog.Error("failed to load due standing queries", "error", err)
		return
	}

	for _, sq := range due {
		s.execute(ctx, sq)
	}
}

func (s *Scheduler) execute(ctx context.Context, sq store.StandingQuery) {
	slog.Info("running standing query", "id", sq.ID, "name", sq.Name)

	q := swarm.NewQuery(sq.Question, sq.Context, swarm.ParseComplexity(sq.Complexity))
	res := s.submitter.Submit(ctx, q)

	var lastError string
	if res.Status != swarm.StatusCompleted {
		lastError = "run ended with status " + string(res.Status)
		slog.Warn("standing query run did not complete", "id", sq.ID, "status", string(res.Status))
	}

	nextRun := schedule.NextRun(sq.Schedule)
	if err := s.store.MarkStandingQueryRun(sq.ID, q.ID, lastError, nextRun); err != nil {
		slog.Error("failed to mark standing query run", "id", sq.ID, "error", err)
	}

	s.publishExecutedEvent(sq, res)

	// One-off schedules fire once and are retired.
	if nextRun == nil {
		slog.Info("no next run, marking standing query completed", "id", sq.ID, "name", sq.Name)
		if err := s.store.SetStandingQueryStatus(sq.ID, "completed"); err != nil {
			slog.Error("failed to complete standing query", "id", sq.ID, "error", err)
		}
	}
}

func (s *Scheduler) publishExecutedEvent(sq store.StandingQuery, res *swarm.SwarmResult) {
	if s.natsClient == nil {
		return
	}

	event := map[string]any{
		"type":      "standing_query_executed",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"id":         sq.ID,
			"name":       sq.Name,
			"query_id":   res.Query.ID,
			"status":     string(res.Status),
			"confidence": res.Confidence.String(),
		},
	}
	_ = s.natsClient.PublishJSON(natsbus.TopicEventsStandingQuery, event)
}
