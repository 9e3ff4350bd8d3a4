package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/picogrid/swarm-autonomy/pkg/logger"
)

// NoEntity marks an event field that does not refer to an agent or target
const NoEntity = -1

// SimulationLogger records simulation events and metrics against the
// simulated clock, prints the notable ones and forwards every event to the
// attached sinks
type SimulationLogger struct {
	runID      string
	simulation string
	startTime  time.Time
	tick       int64
	timeMs     int64
	seq        int64

	events      []SimulationEvent
	eventCounts map[string]int
	agentCounts map[int]map[string]int
	metrics     map[string]Metric
	sinks       []EventSink
	retain      int

	out     io.Writer
	console int
	mu      sync.RWMutex
}

// SimulationEvent represents a logged simulation event
type SimulationEvent struct {
	RunID    string                 `json:"run_id"`
	Seq      int64                  `json:"seq"`
	Tick     int64                  `json:"tick"`
	TimeMs   int64                  `json:"time_ms"`
	Type     string                 `json:"type"`
	Severity string                 `json:"severity"`
	AgentID  int                    `json:"agent_id"`
	TargetID int                    `json:"target_id"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// EventSink receives every event as it is logged
type EventSink interface {
	Record(ev SimulationEvent) error
}

// Metric represents a tracked metric
type Metric struct {
	Name     string        `json:"name"`
	Value    float64       `json:"value"`
	Unit     string        `json:"unit"`
	LastTick int64         `json:"last_tick"`
	History  []MetricPoint `json:"-"`
}

// MetricPoint represents a metric value at a tick
type MetricPoint struct {
	Tick  int64
	Value float64
}

// EventType constants
const (
	EventTypeDetection   = "detection"
	EventTypeAnnounce    = "announce"
	EventTypeBid         = "bid"
	EventTypeAuction     = "auction"
	EventTypeMerge       = "merge"
	EventTypeTask        = "task"
	EventTypeEngagement  = "engagement"
	EventTypeDestruction = "destruction"
	EventTypeWorldKnown  = "world_known"
	EventTypeMilestone   = "milestone"
	EventTypeTermination = "termination"
	EventTypeSystem      = "system"
)

// Severity constants
const (
	SeverityDebug    = "debug"
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

const (
	defaultRetain     = 10000
	maxMetricHistory  = 1000
	defaultConsoleMin = 1
)

var severityRank = map[string]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Color definitions
var (
	colorDebug    = color.New(color.FgHiBlack)
	colorInfo     = color.New(color.FgCyan)
	colorWarning  = color.New(color.FgYellow)
	colorError    = color.New(color.FgRed)
	colorCritical = color.New(color.FgRed, color.Bold)
	colorAgent    = color.New(color.FgBlue, color.Bold)
	colorTarget   = color.New(color.FgMagenta, color.Bold)
	colorSuccess  = color.New(color.FgGreen)
)

// NewSimulationLogger creates a logger for one run of simulation
func NewSimulationLogger(simulation string) *SimulationLogger {
	sl := &SimulationLogger{
		runID:       uuid.NewString(),
		simulation:  simulation,
		startTime:   time.Now(),
		events:      make([]SimulationEvent, 0),
		eventCounts: make(map[string]int),
		agentCounts: make(map[int]map[string]int),
		metrics:     make(map[string]Metric),
		out:         os.Stdout,
		console:     defaultConsoleMin,
		retain:      defaultRetain,
	}

	sl.logColoredMessage(SeverityInfo, logger.IconRocket+" Simulation Started",
		fmt.Sprintf("Run: %s | Simulation: %s", sl.runID[:8], simulation))

	return sl
}

// RunID returns the unique ID of this run
func (sl *SimulationLogger) RunID() string { return sl.runID }

// Simulation returns the simulation name
func (sl *SimulationLogger) Simulation() string { return sl.simulation }

// SetConsole redirects colored event lines to w and prints only events at or
// above minSeverity. A nil writer silences the console.
func (sl *SimulationLogger) SetConsole(w io.Writer, minSeverity string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.out = w
	if rank, ok := severityRank[minSeverity]; ok {
		sl.console = rank
	}
}

// SetRetention sets how many recent events stay in memory for the report.
// Older events are still counted and still reach the sinks.
func (sl *SimulationLogger) SetRetention(n int) {
	if n <= 0 {
		return
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.retain = n
	if len(sl.events) > n {
		sl.events = sl.events[len(sl.events)-n:]
	}
}

// AddSink attaches a sink. A sink that fails is detached and the failure
// logged; the run continues.
func (sl *SimulationLogger) AddSink(sink EventSink) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.sinks = append(sl.sinks, sink)
}

// Advance moves the logger's clock; events logged afterwards carry tick and
// timeMs
func (sl *SimulationLogger) Advance(tick, timeMs int64) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.tick = tick
	sl.timeMs = timeMs
}

// LogDetection logs a sensor detection. first marks a previously unknown
// target.
func (sl *SimulationLogger) LogDetection(agentID, targetID int, distance float64, first bool) {
	severity := SeverityDebug
	if first {
		severity = SeverityInfo
	}
	sl.logEvent(SimulationEvent{
		Type:     EventTypeDetection,
		Severity: severity,
		AgentID:  agentID,
		TargetID: targetID,
		Message:  fmt.Sprintf("Agent %d detected target %d at %.0fm", agentID, targetID, distance),
		Details: map[string]interface{}{
			"distance": distance,
			"first":    first,
		},
	})

	if first {
		sl.logColoredMessage(SeverityInfo, logger.IconTarget+" Detection",
			fmt.Sprintf("%s found %s at %.0fm", sl.agent(agentID), sl.target(targetID), distance))
	}
}

// LogAnnounce logs an auction announcement
func (sl *SimulationLogger) LogAnnounce(agentID int, task string, targetID int) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeAnnounce,
		Severity: SeverityInfo,
		AgentID:  agentID,
		TargetID: targetID,
		Message:  fmt.Sprintf("Agent %d announced %s on target %d", agentID, task, targetID),
		Details:  map[string]interface{}{"task": task},
	})
}

// LogBid logs a bid sent in answer to an announcement
func (sl *SimulationLogger) LogBid(agentID, announcer int, task string, targetID int, score float64) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeBid,
		Severity: SeverityDebug,
		AgentID:  agentID,
		TargetID: targetID,
		Message:  fmt.Sprintf("Agent %d bid %.3f for %s on target %d", agentID, score, task, targetID),
		Details: map[string]interface{}{
			"task":      task,
			"announcer": announcer,
			"score":     score,
		},
	})
}

// LogAuction logs an auction phase change on one agent
func (sl *SimulationLogger) LogAuction(agentID int, task string, targetID int, from, to string) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeAuction,
		Severity: SeverityDebug,
		AgentID:  agentID,
		TargetID: targetID,
		Message:  fmt.Sprintf("Agent %d auction %s/%d: %s -> %s", agentID, task, targetID, from, to),
		Details: map[string]interface{}{
			"task": task,
			"from": from,
			"to":   to,
		},
	})
}

// LogMerge logs a belief snapshot fused into an agent's belief
func (sl *SimulationLogger) LogMerge(agentID, origin, hops, cells, targetsUpdated, targetsAdded int) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeMerge,
		Severity: SeverityDebug,
		AgentID:  agentID,
		TargetID: NoEntity,
		Message:  fmt.Sprintf("Agent %d merged belief from %d", agentID, origin),
		Details: map[string]interface{}{
			"origin":          origin,
			"hops":            hops,
			"cells_updated":   cells,
			"targets_updated": targetsUpdated,
			"targets_added":   targetsAdded,
		},
	})
}

// LogTaskChange logs an agent switching task
func (sl *SimulationLogger) LogTaskChange(agentID int, from, to string, targetID int) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeTask,
		Severity: SeverityInfo,
		AgentID:  agentID,
		TargetID: targetID,
		Message:  fmt.Sprintf("Agent %d: %s -> %s", agentID, from, to),
		Details: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	})
	sl.logColoredMessage(SeverityDebug, logger.IconArrow+" Task",
		fmt.Sprintf("%s %s -> %s", sl.agent(agentID), from, to))
}

// LogEngagement logs an attack roll
func (sl *SimulationLogger) LogEngagement(attackerID, targetID int, distance, probability float64, success bool) {
	result := "miss"
	if success {
		result = "hit"
	}
	sl.logEvent(SimulationEvent{
		Type:     EventTypeEngagement,
		Severity: SeverityInfo,
		AgentID:  attackerID,
		TargetID: targetID,
		Message:  fmt.Sprintf("Engagement: agent %d -> target %d: %s", attackerID, targetID, result),
		Details: map[string]interface{}{
			"distance":    distance,
			"probability": probability,
			"success":     success,
		},
	})

	sl.logColoredMessage(SeverityInfo, "💥 Engagement",
		fmt.Sprintf("%s -> %s at %.0fm (p=%.2f): %s",
			sl.agent(attackerID), sl.target(targetID), distance, probability, result))
}

// LogDestruction logs a target destroyed by attackerID
func (sl *SimulationLogger) LogDestruction(targetID, attackerID int) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeDestruction,
		Severity: SeverityWarning,
		AgentID:  attackerID,
		TargetID: targetID,
		Message:  fmt.Sprintf("Target %d destroyed by agent %d", targetID, attackerID),
	})

	sl.logColoredMessage(SeverityWarning, logger.IconTarget+" Target Destroyed",
		fmt.Sprintf("%s by %s", sl.target(targetID), sl.agent(attackerID)))
}

// LogWorldKnown logs the first time an agent's belief uncertainty falls to
// the world-known threshold
func (sl *SimulationLogger) LogWorldKnown(agentID int, uncertainty float64) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeWorldKnown,
		Severity: SeverityInfo,
		AgentID:  agentID,
		TargetID: NoEntity,
		Message:  fmt.Sprintf("Agent %d considers the world known", agentID),
		Details:  map[string]interface{}{"uncertainty": uncertainty},
	})
}

// LogMilestone logs the first time a fleet-wide run condition holds
func (sl *SimulationLogger) LogMilestone(name string) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeMilestone,
		Severity: SeverityInfo,
		AgentID:  NoEntity,
		TargetID: NoEntity,
		Message:  fmt.Sprintf("Milestone: %s", name),
		Details:  map[string]interface{}{"milestone": name},
	})
}

// LogTermination logs the end of the run
func (sl *SimulationLogger) LogTermination(reason string) {
	sl.logEvent(SimulationEvent{
		Type:     EventTypeTermination,
		Severity: SeverityInfo,
		AgentID:  NoEntity,
		TargetID: NoEntity,
		Message:  fmt.Sprintf("Simulation terminated: %s", reason),
		Details:  map[string]interface{}{"reason": reason},
	})
	sl.logColoredMessage(SeverityInfo, logger.IconCheck+" Termination", reason)
}

// LogError logs an error event
func (sl *SimulationLogger) LogError(message string, err error, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["error"] = err.Error()

	sl.logEvent(SimulationEvent{
		Type:     EventTypeSystem,
		Severity: SeverityError,
		AgentID:  NoEntity,
		TargetID: NoEntity,
		Message:  message,
		Details:  details,
	})

	logger.Errorf("%s: %v", message, err)
}

// UpdateMetric updates a metric value
func (sl *SimulationLogger) UpdateMetric(name string, value float64, unit string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	metric, exists := sl.metrics[name]
	if !exists {
		metric = Metric{
			Name:    name,
			Unit:    unit,
			History: make([]MetricPoint, 0),
		}
	}

	metric.Value = value
	metric.LastTick = sl.tick
	metric.History = append(metric.History, MetricPoint{Tick: sl.tick, Value: value})

	if len(metric.History) > maxMetricHistory {
		metric.History = metric.History[len(metric.History)-maxMetricHistory:]
	}

	sl.metrics[name] = metric
}

// GetEvents returns the retained events, oldest first
func (sl *SimulationLogger) GetEvents() []SimulationEvent {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	events := make([]SimulationEvent, len(sl.events))
	copy(events, sl.events)
	return events
}

// GetMetrics returns current metrics
func (sl *SimulationLogger) GetMetrics() map[string]Metric {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	metrics := make(map[string]Metric)
	for k, v := range sl.metrics {
		metrics[k] = v
	}
	return metrics
}

// SimulationSummary represents a summary of the run so far
type SimulationSummary struct {
	RunID       string
	Simulation  string
	StartTime   time.Time
	Duration    time.Duration
	Ticks       int64
	SimTimeMs   int64
	TotalEvents int
	EventCounts map[string]int
	AgentEvents map[int]map[string]int
	Metrics     map[string]Metric
}

// GetSummary returns a simulation summary. Counts cover every event logged,
// including those no longer retained.
func (sl *SimulationLogger) GetSummary() SimulationSummary {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	total := 0
	counts := make(map[string]int, len(sl.eventCounts))
	for k, v := range sl.eventCounts {
		counts[k] = v
		total += v
	}
	agents := make(map[int]map[string]int, len(sl.agentCounts))
	for id, m := range sl.agentCounts {
		c := make(map[string]int, len(m))
		for k, v := range m {
			c[k] = v
		}
		agents[id] = c
	}
	metrics := make(map[string]Metric, len(sl.metrics))
	for k, v := range sl.metrics {
		metrics[k] = v
	}

	return SimulationSummary{
		RunID:       sl.runID,
		Simulation:  sl.simulation,
		StartTime:   sl.startTime,
		Duration:    time.Since(sl.startTime),
		Ticks:       sl.tick,
		SimTimeMs:   sl.timeMs,
		TotalEvents: total,
		EventCounts: counts,
		AgentEvents: agents,
		Metrics:     metrics,
	}
}

// logEvent stamps, stores and forwards an event
func (sl *SimulationLogger) logEvent(event SimulationEvent) {
	sl.mu.Lock()
	event.RunID = sl.runID
	event.Tick = sl.tick
	event.TimeMs = sl.timeMs
	event.Seq = sl.seq
	sl.seq++

	sl.events = append(sl.events, event)
	if len(sl.events) > sl.retain {
		sl.events = sl.events[len(sl.events)-sl.retain:]
	}
	sl.eventCounts[event.Type]++
	if event.AgentID != NoEntity {
		if sl.agentCounts[event.AgentID] == nil {
			sl.agentCounts[event.AgentID] = make(map[string]int)
		}
		sl.agentCounts[event.AgentID][event.Type]++
	}
	sinks := sl.sinks
	sl.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Record(event); err != nil {
			logger.Warnf("Event sink failed, detaching: %v", err)
			sl.removeSink(sink)
		}
	}
}

func (sl *SimulationLogger) removeSink(sink EventSink) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	kept := make([]EventSink, 0, len(sl.sinks))
	for _, s := range sl.sinks {
		if s != sink {
			kept = append(kept, s)
		}
	}
	sl.sinks = kept
}

// logColoredMessage prints a line colored by severity, stamped with the
// simulated clock
func (sl *SimulationLogger) logColoredMessage(severity, eventType, message string) {
	sl.mu.RLock()
	out, min, tick, timeMs := sl.out, sl.console, sl.tick, sl.timeMs
	sl.mu.RUnlock()
	if out == nil || severityRank[severity] < min {
		return
	}

	var severityColor *color.Color
	switch severity {
	case SeverityDebug:
		severityColor = colorDebug
	case SeverityInfo:
		severityColor = colorInfo
	case SeverityWarning:
		severityColor = colorWarning
	case SeverityError:
		severityColor = colorError
	case SeverityCritical:
		severityColor = colorCritical
	default:
		severityColor = colorInfo
	}

	fmt.Fprintf(out, "[t=%6d %8.1fs] %s %s | %s\n",
		tick,
		float64(timeMs)/1000,
		severityColor.Sprint(fmt.Sprintf("%-8s", severity)),
		eventType,
		message)
}

func (sl *SimulationLogger) agent(id int) string {
	return colorAgent.Sprintf("UAV-%d", id)
}

func (sl *SimulationLogger) target(id int) string {
	return colorTarget.Sprintf("TGT-%d", id)
}

// PrintSummary prints a formatted summary to the console writer
func (sl *SimulationLogger) PrintSummary() {
	sl.mu.RLock()
	out := sl.out
	sl.mu.RUnlock()
	if out == nil {
		return
	}
	sl.FprintSummary(out)
}

// FprintSummary writes a formatted summary to w
func (sl *SimulationLogger) FprintSummary(w io.Writer) {
	summary := sl.GetSummary()

	colorSuccess.Fprintln(w, "\n══════════════════════════════════════════════════")
	colorSuccess.Fprintf(w, "  SIMULATION SUMMARY - %s (%s)\n", summary.Simulation, summary.RunID[:8])
	colorSuccess.Fprintln(w, "══════════════════════════════════════════════════")

	fmt.Fprintf(w, "\nTicks: %d | Simulated: %.1fs | Wall: %v | Events: %d\n",
		summary.Ticks, float64(summary.SimTimeMs)/1000, summary.Duration.Round(time.Millisecond), summary.TotalEvents)

	fmt.Fprintln(w, "\nEvent Distribution:")
	types := make([]string, 0, len(summary.EventCounts))
	for t := range summary.EventCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "   %-20s: %d\n", t, summary.EventCounts[t])
	}

	if len(summary.Metrics) > 0 {
		fmt.Fprintln(w, "\nMetrics:")
		names := make([]string, 0, len(summary.Metrics))
		for n := range summary.Metrics {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			m := summary.Metrics[n]
			fmt.Fprintf(w, "   %-20s: %.2f %s\n", n, m.Value, m.Unit)
		}
	}

	colorSuccess.Fprintln(w, "══════════════════════════════════════════════════")
}
