// Package telemetry collects timing and counter statistics for the
// heartbeat scheduler and agent action dispatch. A Telemetry value is
// created and owned by whoever needs it (the scheduler, a test, an
// inspection server) rather than reached through a package-level
// singleton, so multiple engines in one process don't share counters.
package telemetry

import (
	"math"
	"sync"
	"time"
)

// TimingStats accumulates count/total/min/max for a timed operation.
type TimingStats struct {
	Count  int
	TotalMs float64
	MinMs  float64
	MaxMs  float64
}

func newTimingStats() TimingStats {
	return TimingStats{MinMs: math.Inf(1)}
}

func (s *TimingStats) record(durationMs float64) {
	s.Count++
	s.TotalMs += durationMs
	if durationMs < s.MinMs {
		s.MinMs = durationMs
	}
	if durationMs > s.MaxMs {
		s.MaxMs = durationMs
	}
}

// AvgMs returns the mean duration, or zero if nothing has been recorded.
func (s TimingStats) AvgMs() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.TotalMs / float64(s.Count)
}

// ToMap renders the stats for HUD/inspection JSON output.
func (s TimingStats) ToMap() map[string]any {
	out := map[string]any{
		"count":    s.Count,
		"total_ms": round2(s.TotalMs),
		"avg_ms":   round2(s.AvgMs()),
	}
	if s.Count > 0 {
		out["min_ms"] = round2(s.MinMs)
		out["max_ms"] = round2(s.MaxMs)
	} else {
		out["min_ms"] = nil
		out["max_ms"] = nil
	}
	return out
}

// CounterStats is a simple running count with a first/last-seen rate.
type CounterStats struct {
	Count     int
	FirstSeen *time.Time
	LastSeen  *time.Time
}

func (s *CounterStats) increment(amount int, now time.Time) {
	if s.FirstSeen == nil {
		first := now
		s.FirstSeen = &first
	}
	last := now
	s.LastSeen = &last
	s.Count += amount
}

// DurationSecs returns the span between first and last increment.
func (s CounterStats) DurationSecs() float64 {
	if s.FirstSeen == nil || s.LastSeen == nil {
		return 0
	}
	return s.LastSeen.Sub(*s.FirstSeen).Seconds()
}

// RatePerSec returns Count / DurationSecs, or zero if no span has elapsed.
func (s CounterStats) RatePerSec() float64 {
	d := s.DurationSecs()
	if d <= 0 {
		return 0
	}
	return float64(s.Count) / d
}

// ToMap renders the stats for HUD/inspection JSON output.
func (s CounterStats) ToMap() map[string]any {
	return map[string]any{
		"count":         s.Count,
		"duration_secs": round2(s.DurationSecs()),
		"rate_per_sec":  round4(s.RatePerSec()),
	}
}

// ErrorEntry is one recorded error in the ring buffer.
type ErrorEntry struct {
	Timestamp time.Time
	Type      string
	Message   string
	Context   map[string]any
}

func (e ErrorEntry) ToMap() map[string]any {
	ctx := e.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return map[string]any{
		"timestamp": e.Timestamp.Format(time.RFC3339),
		"type":      e.Type,
		"message":   e.Message,
		"context":   ctx,
	}
}

type hobjStats struct {
	Heartbeats     int
	Actions        int
	TokensReceived int
	TokensSpent    int
	Errors         int
}

func (s hobjStats) ToMap() map[string]any {
	return map[string]any{
		"heartbeats":      s.Heartbeats,
		"actions":         s.Actions,
		"tokens_received": s.TokensReceived,
		"tokens_spent":    s.TokensSpent,
		"errors":          s.Errors,
	}
}

const maxErrors = 100

// Telemetry aggregates timing, counters, and error history for one
// running engine. All methods are safe for concurrent use; the
// scheduler records from its tick goroutine while an inspection server
// reads summaries concurrently.
type Telemetry struct {
	mu sync.Mutex

	heartbeatTiming     TimingStats
	aiCallTiming        TimingStats
	actionTiming        map[string]TimingStats
	serializationTiming TimingStats

	heartbeats        CounterStats
	hobjsProcessed    CounterStats
	actionsDispatched CounterStats
	actionsFailed     CounterStats
	tokensAllocated   CounterStats
	aiCalls           CounterStats

	promptTokensTotal   int
	responseTokensTotal int

	errors []ErrorEntry

	hobjStats map[string]*hobjStats
}

// New returns an empty Telemetry collector.
func New() *Telemetry {
	return &Telemetry{
		heartbeatTiming:     newTimingStats(),
		aiCallTiming:        newTimingStats(),
		actionTiming:        make(map[string]TimingStats),
		serializationTiming: newTimingStats(),
		hobjStats:           make(map[string]*hobjStats),
	}
}

func (t *Telemetry) statsFor(agentID string) *hobjStats {
	s, ok := t.hobjStats[agentID]
	if !ok {
		s = &hobjStats{}
		t.hobjStats[agentID] = s
	}
	return s
}

// RecordHeartbeat records one completed scheduler tick.
func (t *Telemetry) RecordHeartbeat(durationMs float64, agentCount int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.heartbeats.increment(1, now)
	t.heartbeatTiming.record(durationMs)
	t.hobjsProcessed.increment(agentCount, now)
}

// RecordAICall records one round trip through an aitransport.Transport.
func (t *Telemetry) RecordAICall(durationMs float64, promptTokens, responseTokens int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aiCalls.increment(1, now)
	t.aiCallTiming.record(durationMs)
	t.promptTokensTotal += promptTokens
	t.responseTokensTotal += responseTokens
}

// RecordAction records one action dispatch outcome for an agent.
func (t *Telemetry) RecordAction(agentID, actionName string, durationMs float64, success bool, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actionsDispatched.increment(1, now)
	stats := t.actionTiming[actionName]
	stats.record(durationMs)
	t.actionTiming[actionName] = stats
	t.statsFor(agentID).Actions++

	if !success {
		t.actionsFailed.increment(1, now)
		t.statsFor(agentID).Errors++
	}
}

// RecordTokenAllocation records tokens credited to an agent's bank.
func (t *Telemetry) RecordTokenAllocation(agentID string, amount int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokensAllocated.increment(amount, now)
	t.statsFor(agentID).TokensReceived += amount
}

// RecordAgentHeartbeat records that an agent participated in a tick.
func (t *Telemetry) RecordAgentHeartbeat(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statsFor(agentID).Heartbeats++
}

// RecordError appends an error to the ring buffer, dropping the oldest
// entry once the buffer is full.
func (t *Telemetry) RecordError(errType, message string, context map[string]any, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.errors) >= maxErrors {
		t.errors = t.errors[1:]
	}
	t.errors = append(t.errors, ErrorEntry{Timestamp: now, Type: errType, Message: message, Context: context})
}

// Summary renders an aggregate snapshot suitable for the inspection
// surface's telemetry endpoint.
func (t *Telemetry) Summary() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	byName := make(map[string]any, len(t.actionTiming))
	for name, stats := range t.actionTiming {
		byName[name] = stats.ToMap()
	}

	recent := []map[string]any{}
	start := len(t.errors) - 5
	if start < 0 {
		start = 0
	}
	for _, e := range t.errors[start:] {
		recent = append(recent, e.ToMap())
	}

	heartbeats := t.heartbeats.ToMap()
	heartbeats["timing"] = t.heartbeatTiming.ToMap()

	aiCalls := t.aiCalls.ToMap()
	aiCalls["timing"] = t.aiCallTiming.ToMap()
	aiCalls["prompt_tokens_total"] = t.promptTokensTotal
	aiCalls["response_tokens_total"] = t.responseTokensTotal

	return map[string]any{
		"heartbeats": heartbeats,
		"ai_calls":   aiCalls,
		"actions": map[string]any{
			"dispatched": t.actionsDispatched.ToMap(),
			"failed":     t.actionsFailed.ToMap(),
			"by_name":    byName,
		},
		"tokens": map[string]any{
			"allocated": t.tokensAllocated.ToMap(),
		},
		"hobjs": map[string]any{
			"processed":    t.hobjsProcessed.ToMap(),
			"unique_count": len(t.hobjStats),
		},
		"errors": map[string]any{
			"count":  len(t.errors),
			"recent": recent,
		},
	}
}

// AgentSummary returns the per-agent counters, or an empty map if the
// agent has never been recorded.
func (t *Telemetry) AgentSummary(agentID string) map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.hobjStats[agentID]
	if !ok {
		return map[string]any{}
	}
	return s.ToMap()
}

// Reset clears all collected data.
func (t *Telemetry) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.heartbeatTiming = newTimingStats()
	t.aiCallTiming = newTimingStats()
	t.actionTiming = make(map[string]TimingStats)
	t.serializationTiming = newTimingStats()
	t.heartbeats = CounterStats{}
	t.hobjsProcessed = CounterStats{}
	t.actionsDispatched = CounterStats{}
	t.actionsFailed = CounterStats{}
	t.tokensAllocated = CounterStats{}
	t.aiCalls = CounterStats{}
	t.promptTokensTotal = 0
	t.responseTokensTotal = 0
	t.errors = nil
	t.hobjStats = make(map[string]*hobjStats)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
