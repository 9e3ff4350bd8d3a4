package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/models"
)

// ReportGenerator builds end-of-run reports from the event log
type ReportGenerator struct {
	logger *SimulationLogger
	config ReportConfig
}

// ReportConfig configures report generation
type ReportConfig struct {
	OutputDir        string
	Format           string                 // "json", "markdown", "both"
	DetailLevel      string                 // "summary", "detailed", "full"
	SimulationConfig map[string]interface{} // Configuration used for the run
}

// RunOutcome is what the driver knows at the end of a run that the event log
// does not
type RunOutcome struct {
	Reason           string
	Seed             int64
	Ticks            int64
	SimTimeMs        int64
	Agents           int
	Targets          int
	TargetsDestroyed int
	WorldKnownMs     map[int]int64
	Comms            models.CommsStats
	MirrorDropped    int64

	// Fleet milestones in simulated ms; zero when never reached
	AllFoundMs        int64
	AllDestroyedMs    int64
	OutOfAmmoMs       int64
	FleetWorldKnownMs int64

	// BelievedDestroyedMs is when each agent first believed every target
	// destroyed
	BelievedDestroyedMs map[int]int64
	TargetTimes         []TargetTiming
}

// TargetTiming is when one target was first found and destroyed; zero when
// it never was
type TargetTiming struct {
	TargetID    int
	FoundMs     int64
	DestroyedMs int64
}

// RunReport is the end-of-run report
type RunReport struct {
	Metadata        ReportMetadata         `json:"metadata"`
	Summary         ExecutiveSummary       `json:"summary"`
	Timeline        []TimelineEntry        `json:"timeline"`
	Agents          []AgentAnalysis        `json:"agents"`
	Engagements     EngagementAnalysis     `json:"engagements"`
	Auctions        AuctionAnalysis        `json:"auctions"`
	Comms           CommsAnalysis          `json:"comms"`
	Awareness       AwarenessAnalysis      `json:"awareness"`
	Milestones      MilestoneAnalysis      `json:"milestones"`
	EventLog        []SimulationEvent      `json:"event_log,omitempty"`
	Recommendations []Recommendation       `json:"recommendations"`
	Config          map[string]interface{} `json:"config,omitempty"`
}

// ReportMetadata contains report metadata
type ReportMetadata struct {
	RunID       string    `json:"run_id"`
	Simulation  string    `json:"simulation"`
	Seed        int64     `json:"seed"`
	GeneratedAt time.Time `json:"generated_at"`
	StartedAt   time.Time `json:"started_at"`
	WallTime    string    `json:"wall_time"`
	Ticks       int64     `json:"ticks"`
	SimTimeMs   int64     `json:"sim_time_ms"`
}

// ExecutiveSummary provides a high-level overview
type ExecutiveSummary struct {
	Outcome          string   `json:"outcome"`
	Reason           string   `json:"reason"`
	Agents           int      `json:"agents"`
	Targets          int      `json:"targets"`
	TargetsDetected  int      `json:"targets_detected"`
	TargetsDestroyed int      `json:"targets_destroyed"`
	KeyEvents        []string `json:"key_events"`
}

// TimelineEntry is one significant event
type TimelineEntry struct {
	Tick        int64  `json:"tick"`
	SimTime     string `json:"sim_time"`
	EventType   string `json:"event_type"`
	Description string `json:"description"`
}

// AgentAnalysis contains per-agent activity
type AgentAnalysis struct {
	AgentID      int   `json:"agent_id"`
	Detections   int   `json:"detections"`
	Announces    int   `json:"announces"`
	Bids         int   `json:"bids"`
	Merges       int   `json:"merges"`
	TaskChanges  int   `json:"task_changes"`
	Engagements  int   `json:"engagements"`
	Kills        int   `json:"kills"`
	WorldKnownMs int64 `json:"world_known_ms"`

	BelievesAllDestroyedMs int64 `json:"believes_all_destroyed_ms"`
}

// EngagementAnalysis contains engagement statistics
type EngagementAnalysis struct {
	TotalEngagements   int     `json:"total_engagements"`
	SuccessfulHits     int     `json:"successful_hits"`
	HitRate            float64 `json:"hit_rate"`
	AverageRangeM      float64 `json:"avg_range_m"`
	AverageProbability float64 `json:"avg_probability"`
}

// AuctionAnalysis counts auction activity
type AuctionAnalysis struct {
	Announcements int            `json:"announcements"`
	Bids          int            `json:"bids"`
	Outcomes      map[string]int `json:"outcomes"`
}

// CommsAnalysis summarizes the radio model
type CommsAnalysis struct {
	models.CommsStats
	RelayDropRate float64 `json:"relay_drop_rate"`
	Merges        int     `json:"merges"`
	MirrorDropped int64   `json:"mirror_dropped"`
}

// AwarenessAnalysis summarizes how fast the swarm came to know the world
type AwarenessAnalysis struct {
	AgentsWorldKnown   int   `json:"agents_world_known"`
	FirstWorldKnownMs  int64 `json:"first_world_known_ms"`
	MedianWorldKnownMs int64 `json:"median_world_known_ms"`
}

// MilestoneAnalysis holds when the fleet reached each end condition. -1
// means never.
type MilestoneAnalysis struct {
	AllTargetsFoundMs     int64             `json:"all_targets_found_ms"`
	AllTargetsDestroyedMs int64             `json:"all_targets_destroyed_ms"`
	FleetOutOfAmmoMs      int64             `json:"fleet_out_of_ammo_ms"`
	FleetWorldKnownMs     int64             `json:"fleet_world_known_ms"`
	Targets               []TargetMilestone `json:"targets"`
}

// TargetMilestone is one target's find-to-kill timing. -1 means never.
type TargetMilestone struct {
	TargetID    int   `json:"target_id"`
	FoundMs     int64 `json:"found_ms"`
	DestroyedMs int64 `json:"destroyed_ms"`
	KillChainMs int64 `json:"kill_chain_ms"`
}

// Recommendation is a tuning suggestion derived from the run
type Recommendation struct {
	Priority        string `json:"priority"` // "High", "Medium", "Low"
	Category        string `json:"category"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ExpectedBenefit string `json:"expected_benefit"`
}

// NewReportGenerator creates a report generator
func NewReportGenerator(logger *SimulationLogger, config ReportConfig) *ReportGenerator {
	if config.Format == "" {
		config.Format = "json"
	}
	if config.DetailLevel == "" {
		config.DetailLevel = "detailed"
	}
	return &ReportGenerator{
		logger: logger,
		config: config,
	}
}

// GenerateReport creates the report for a finished run
func (g *ReportGenerator) GenerateReport(outcome RunOutcome) (*RunReport, error) {
	if g.logger == nil {
		return nil, fmt.Errorf("no simulation logger")
	}
	summary := g.logger.GetSummary()
	events := g.logger.GetEvents()

	report := &RunReport{
		Metadata: ReportMetadata{
			RunID:       summary.RunID,
			Simulation:  summary.Simulation,
			Seed:        outcome.Seed,
			GeneratedAt: time.Now(),
			StartedAt:   summary.StartTime,
			WallTime:    summary.Duration.Round(time.Millisecond).String(),
			Ticks:       outcome.Ticks,
			SimTimeMs:   outcome.SimTimeMs,
		},
		Config: g.config.SimulationConfig,
	}

	report.Summary = g.generateExecutiveSummary(events, summary, outcome)
	report.Timeline = g.buildTimeline(events)
	report.Agents = g.analyzeAgents(summary, outcome)
	report.Engagements = g.analyzeEngagements(events, summary)
	report.Auctions = g.analyzeAuctions(events, summary)
	report.Comms = g.analyzeComms(summary, outcome)
	report.Awareness = g.analyzeAwareness(outcome)
	report.Milestones = g.analyzeMilestones(outcome)

	if g.config.DetailLevel == "full" {
		report.EventLog = events
	}

	report.Recommendations = g.generateRecommendations(report)

	return report, nil
}

// SaveReport writes the report in the configured formats and returns the
// paths written
func (g *ReportGenerator) SaveReport(report *RunReport) ([]string, error) {
	if err := os.MkdirAll(g.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	id := report.Metadata.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	filename := fmt.Sprintf("report_%s_%s", id, report.Metadata.StartedAt.Format("20060102_150405"))

	var formats []string
	switch g.config.Format {
	case "json", "markdown":
		formats = []string{g.config.Format}
	case "both":
		formats = []string{"json", "markdown"}
	default:
		return nil, fmt.Errorf("unsupported format: %s", g.config.Format)
	}

	var paths []string
	for _, f := range formats {
		var path string
		var err error
		switch f {
		case "json":
			path, err = g.saveJSON(report, filename)
		case "markdown":
			path, err = g.saveMarkdown(report, filename)
		}
		if err != nil {
			return paths, err
		}
		logger.Successf("Report saved to: %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}

func (g *ReportGenerator) saveJSON(report *RunReport, filename string) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(g.config.OutputDir, filename+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func (g *ReportGenerator) saveMarkdown(report *RunReport, filename string) (string, error) {
	path := filepath.Join(g.config.OutputDir, filename+".md")
	if err := os.WriteFile(path, []byte(RenderMarkdown(report, g.config.DetailLevel)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// RenderMarkdown renders a report as Markdown
func RenderMarkdown(report *RunReport, detailLevel string) string {
	var sb strings.Builder

	sb.WriteString("# Run Report\n\n")
	sb.WriteString(fmt.Sprintf("**Run ID:** %s\n", report.Metadata.RunID))
	sb.WriteString(fmt.Sprintf("**Simulation:** %s (seed %d)\n", report.Metadata.Simulation, report.Metadata.Seed))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", report.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Ticks:** %d (%s simulated, %s wall)\n\n",
		report.Metadata.Ticks, formatSimTime(report.Metadata.SimTimeMs), report.Metadata.WallTime))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("**Outcome:** %s\n\n", report.Summary.Outcome))
	sb.WriteString(fmt.Sprintf("- **Agents:** %d\n", report.Summary.Agents))
	sb.WriteString(fmt.Sprintf("- **Targets detected:** %d/%d\n", report.Summary.TargetsDetected, report.Summary.Targets))
	sb.WriteString(fmt.Sprintf("- **Targets destroyed:** %d/%d\n\n", report.Summary.TargetsDestroyed, report.Summary.Targets))

	if len(report.Summary.KeyEvents) > 0 {
		sb.WriteString("### Key Events\n")
		for _, event := range report.Summary.KeyEvents {
			sb.WriteString(fmt.Sprintf("- %s\n", event))
		}
		sb.WriteString("\n")
	}

	m := report.Milestones
	sb.WriteString("## Milestones\n\n")
	sb.WriteString(fmt.Sprintf("- **All targets found:** %s\n", simTimeOrDash(m.AllTargetsFoundMs)))
	sb.WriteString(fmt.Sprintf("- **All targets destroyed:** %s\n", simTimeOrDash(m.AllTargetsDestroyedMs)))
	sb.WriteString(fmt.Sprintf("- **Fleet out of ammunition:** %s\n", simTimeOrDash(m.FleetOutOfAmmoMs)))
	sb.WriteString(fmt.Sprintf("- **Half the fleet knows the world:** %s\n\n", simTimeOrDash(m.FleetWorldKnownMs)))
	if len(m.Targets) > 0 {
		sb.WriteString("| Target | Found | Destroyed | Kill chain |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, t := range m.Targets {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
				t.TargetID, simTimeOrDash(t.FoundMs), simTimeOrDash(t.DestroyedMs), simTimeOrDash(t.KillChainMs)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Agents\n\n")
	sb.WriteString("| Agent | Detections | Announces | Bids | Merges | Engagements | Kills | World known | Believes all destroyed |\n")
	sb.WriteString("|---|---|---|---|---|---|---|---|---|\n")
	for _, a := range report.Agents {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %d | %d | %s | %s |\n",
			a.AgentID, a.Detections, a.Announces, a.Bids, a.Merges, a.Engagements, a.Kills,
			simTimeOrDash(a.WorldKnownMs), simTimeOrDash(a.BelievesAllDestroyedMs)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Engagements\n\n")
	sb.WriteString(fmt.Sprintf("- **Total:** %d\n", report.Engagements.TotalEngagements))
	sb.WriteString(fmt.Sprintf("- **Hits:** %d (%.1f%% hit rate)\n",
		report.Engagements.SuccessfulHits, report.Engagements.HitRate*100))
	sb.WriteString(fmt.Sprintf("- **Average range:** %.0fm\n\n", report.Engagements.AverageRangeM))

	if detailLevel != "summary" {
		sb.WriteString("## Comms\n\n")
		sb.WriteString(fmt.Sprintf("- **Transmitted:** %d\n", report.Comms.Transmitted))
		sb.WriteString(fmt.Sprintf("- **Delivered:** %d\n", report.Comms.Delivered))
		sb.WriteString(fmt.Sprintf("- **Relayed:** %d (%.1f%% dropped)\n", report.Comms.Relayed, report.Comms.RelayDropRate*100))
		sb.WriteString(fmt.Sprintf("- **Hop limit drops:** %d\n", report.Comms.HopLimitDropped))
		sb.WriteString(fmt.Sprintf("- **Queue evictions:** %d\n\n", report.Comms.Evicted))

		sb.WriteString("## Auctions\n\n")
		sb.WriteString(fmt.Sprintf("- **Announcements:** %d\n", report.Auctions.Announcements))
		sb.WriteString(fmt.Sprintf("- **Bids:** %d\n", report.Auctions.Bids))
		outcomes := make([]string, 0, len(report.Auctions.Outcomes))
		for k := range report.Auctions.Outcomes {
			outcomes = append(outcomes, k)
		}
		sort.Strings(outcomes)
		for _, k := range outcomes {
			sb.WriteString(fmt.Sprintf("- **%s:** %d\n", k, report.Auctions.Outcomes[k]))
		}
		sb.WriteString("\n")
	}

	if len(report.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range report.Recommendations {
			sb.WriteString(fmt.Sprintf("### %s (%s Priority)\n", rec.Title, rec.Priority))
			sb.WriteString(fmt.Sprintf("%s\n\n", rec.Description))
			sb.WriteString(fmt.Sprintf("**Expected Benefit:** %s\n\n", rec.ExpectedBenefit))
		}
	}

	return sb.String()
}

func (g *ReportGenerator) generateExecutiveSummary(events []SimulationEvent, summary SimulationSummary, outcome RunOutcome) ExecutiveSummary {
	exec := ExecutiveSummary{
		Reason:           outcome.Reason,
		Agents:           outcome.Agents,
		Targets:          outcome.Targets,
		TargetsDestroyed: outcome.TargetsDestroyed,
		KeyEvents:        make([]string, 0),
	}

	detected := make(map[int]bool)
	for _, event := range events {
		if event.Type == EventTypeDetection {
			detected[event.TargetID] = true
		}
	}
	exec.TargetsDetected = len(detected)

	switch {
	case outcome.Targets > 0 && outcome.TargetsDestroyed == outcome.Targets:
		exec.Outcome = "All targets destroyed"
	case outcome.TargetsDestroyed > 0:
		exec.Outcome = fmt.Sprintf("Partial success: %d of %d targets destroyed", outcome.TargetsDestroyed, outcome.Targets)
	case exec.TargetsDetected > 0:
		exec.Outcome = "Targets found but none destroyed"
	default:
		exec.Outcome = "No targets found"
	}

	for _, event := range events {
		if event.Type == EventTypeDestruction || event.Type == EventTypeTermination ||
			(event.Type == EventTypeDetection && event.Severity == SeverityInfo && len(exec.KeyEvents) < 10) {
			exec.KeyEvents = append(exec.KeyEvents, fmt.Sprintf("[%s] %s", formatSimTime(event.TimeMs), event.Message))
		}
	}

	return exec
}

func (g *ReportGenerator) buildTimeline(events []SimulationEvent) []TimelineEntry {
	timeline := make([]TimelineEntry, 0)
	for _, event := range events {
		if !isSignificantEvent(event) {
			continue
		}
		timeline = append(timeline, TimelineEntry{
			Tick:        event.Tick,
			SimTime:     formatSimTime(event.TimeMs),
			EventType:   event.Type,
			Description: event.Message,
		})
	}
	return timeline
}

func isSignificantEvent(event SimulationEvent) bool {
	switch event.Type {
	case EventTypeEngagement, EventTypeDestruction, EventTypeWorldKnown, EventTypeMilestone, EventTypeTermination, EventTypeAnnounce:
		return true
	case EventTypeDetection:
		return event.Severity == SeverityInfo
	}
	return event.Severity == SeverityError || event.Severity == SeverityCritical
}

func (g *ReportGenerator) analyzeAgents(summary SimulationSummary, outcome RunOutcome) []AgentAnalysis {
	ids := make(map[int]bool)
	for id := range summary.AgentEvents {
		ids[id] = true
	}
	for id := range outcome.WorldKnownMs {
		ids[id] = true
	}
	for id := range outcome.BelievedDestroyedMs {
		ids[id] = true
	}

	out := make([]AgentAnalysis, 0, len(ids))
	for id := range ids {
		counts := summary.AgentEvents[id]
		a := AgentAnalysis{
			AgentID:      id,
			Detections:   counts[EventTypeDetection],
			Announces:    counts[EventTypeAnnounce],
			Bids:         counts[EventTypeBid],
			Merges:       counts[EventTypeMerge],
			TaskChanges:  counts[EventTypeTask],
			Engagements:  counts[EventTypeEngagement],
			Kills:        counts[EventTypeDestruction],
			WorldKnownMs: -1,

			BelievesAllDestroyedMs: -1,
		}
		if ms, ok := outcome.WorldKnownMs[id]; ok {
			a.WorldKnownMs = ms
		}
		if ms, ok := outcome.BelievedDestroyedMs[id]; ok {
			a.BelievesAllDestroyedMs = ms
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

func (g *ReportGenerator) analyzeEngagements(events []SimulationEvent, summary SimulationSummary) EngagementAnalysis {
	analysis := EngagementAnalysis{
		TotalEngagements: summary.EventCounts[EventTypeEngagement],
		SuccessfulHits:   summary.EventCounts[EventTypeDestruction],
	}

	var totalRange, totalProb float64
	var n int
	for _, event := range events {
		if event.Type != EventTypeEngagement {
			continue
		}
		if d, ok := event.Details["distance"].(float64); ok {
			totalRange += d
		}
		if p, ok := event.Details["probability"].(float64); ok {
			totalProb += p
		}
		n++
	}
	if n > 0 {
		analysis.AverageRangeM = totalRange / float64(n)
		analysis.AverageProbability = totalProb / float64(n)
	}
	if analysis.TotalEngagements > 0 {
		analysis.HitRate = float64(analysis.SuccessfulHits) / float64(analysis.TotalEngagements)
	}
	return analysis
}

func (g *ReportGenerator) analyzeAuctions(events []SimulationEvent, summary SimulationSummary) AuctionAnalysis {
	analysis := AuctionAnalysis{
		Announcements: summary.EventCounts[EventTypeAnnounce],
		Bids:          summary.EventCounts[EventTypeBid],
		Outcomes:      make(map[string]int),
	}
	for _, event := range events {
		if event.Type != EventTypeAuction {
			continue
		}
		if to, ok := event.Details["to"].(string); ok {
			analysis.Outcomes[to]++
		}
	}
	return analysis
}

func (g *ReportGenerator) analyzeComms(summary SimulationSummary, outcome RunOutcome) CommsAnalysis {
	analysis := CommsAnalysis{
		CommsStats:    outcome.Comms,
		Merges:        summary.EventCounts[EventTypeMerge],
		MirrorDropped: outcome.MirrorDropped,
	}
	attempts := outcome.Comms.Relayed + outcome.Comms.RelayDropped
	if attempts > 0 {
		analysis.RelayDropRate = float64(outcome.Comms.RelayDropped) / float64(attempts)
	}
	return analysis
}

func (g *ReportGenerator) analyzeAwareness(outcome RunOutcome) AwarenessAnalysis {
	analysis := AwarenessAnalysis{FirstWorldKnownMs: -1, MedianWorldKnownMs: -1}
	times := make([]int64, 0, len(outcome.WorldKnownMs))
	for _, ms := range outcome.WorldKnownMs {
		times = append(times, ms)
	}
	if len(times) == 0 {
		return analysis
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	analysis.AgentsWorldKnown = len(times)
	analysis.FirstWorldKnownMs = times[0]
	analysis.MedianWorldKnownMs = times[len(times)/2]
	return analysis
}

func (g *ReportGenerator) analyzeMilestones(outcome RunOutcome) MilestoneAnalysis {
	analysis := MilestoneAnalysis{
		AllTargetsFoundMs:     reachedOrNever(outcome.AllFoundMs),
		AllTargetsDestroyedMs: reachedOrNever(outcome.AllDestroyedMs),
		FleetOutOfAmmoMs:      reachedOrNever(outcome.OutOfAmmoMs),
		FleetWorldKnownMs:     reachedOrNever(outcome.FleetWorldKnownMs),
		Targets:               make([]TargetMilestone, 0, len(outcome.TargetTimes)),
	}
	for _, t := range outcome.TargetTimes {
		m := TargetMilestone{
			TargetID:    t.TargetID,
			FoundMs:     reachedOrNever(t.FoundMs),
			DestroyedMs: reachedOrNever(t.DestroyedMs),
			KillChainMs: -1,
		}
		if m.FoundMs >= 0 && m.DestroyedMs >= 0 {
			m.KillChainMs = m.DestroyedMs - m.FoundMs
		}
		analysis.Targets = append(analysis.Targets, m)
	}
	sort.Slice(analysis.Targets, func(i, j int) bool { return analysis.Targets[i].TargetID < analysis.Targets[j].TargetID })
	return analysis
}

func reachedOrNever(ms int64) int64 {
	if ms <= 0 {
		return -1
	}
	return ms
}

func simTimeOrDash(ms int64) string {
	if ms < 0 {
		return "-"
	}
	return formatSimTime(ms)
}

func (g *ReportGenerator) generateRecommendations(report *RunReport) []Recommendation {
	recs := make([]Recommendation, 0)

	if report.Comms.RelayDropRate > 0.5 {
		recs = append(recs, Recommendation{
			Priority:        "High",
			Category:        "Comms",
			Title:           "Raise relay probability",
			Description:     fmt.Sprintf("%.0f%% of relay attempts were dropped. Beliefs spread slowly beyond direct radio range.", report.Comms.RelayDropRate*100),
			ExpectedBenefit: "Faster belief convergence across the swarm",
		})
	}

	if report.Comms.Relayed > 0 && report.Comms.HopLimitDropped > report.Comms.Relayed {
		recs = append(recs, Recommendation{
			Priority:        "Medium",
			Category:        "Comms",
			Title:           "Increase the relay hop limit",
			Description:     "More messages expired at the hop limit than were relayed.",
			ExpectedBenefit: "Longer reach for snapshots and announcements",
		})
	}

	if report.Comms.Evicted > 0 {
		recs = append(recs, Recommendation{
			Priority:        "Medium",
			Category:        "Comms",
			Title:           "Lengthen inbound queues",
			Description:     fmt.Sprintf("%d messages were evicted from full inbound queues.", report.Comms.Evicted),
			ExpectedBenefit: "Fewer lost bids and announcements",
		})
	}

	if report.Engagements.TotalEngagements >= 3 && report.Engagements.HitRate < 0.5 {
		recs = append(recs, Recommendation{
			Priority:        "Medium",
			Category:        "Engagement",
			Title:           "Close to shorter range before attacking",
			Description:     fmt.Sprintf("Hit rate was %.0f%% at an average of %.0fm.", report.Engagements.HitRate*100, report.Engagements.AverageRangeM),
			ExpectedBenefit: "Fewer wasted munitions",
		})
	}

	if report.Summary.Targets > 0 && report.Summary.TargetsDetected < report.Summary.Targets {
		recs = append(recs, Recommendation{
			Priority:        "Low",
			Category:        "Search",
			Title:           "Extend search coverage",
			Description:     fmt.Sprintf("Only %d of %d targets were ever detected.", report.Summary.TargetsDetected, report.Summary.Targets),
			ExpectedBenefit: "Higher detection rate",
		})
	}

	return recs
}

func formatSimTime(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	minutes := int(d.Minutes())
	seconds := d.Seconds() - float64(minutes*60)
	if minutes > 0 {
		return fmt.Sprintf("%dm%04.1fs", minutes, seconds)
	}
	return fmt.Sprintf("%.1fs", seconds)
}
