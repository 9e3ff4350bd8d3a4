package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/config"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/controllers"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/core"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/reporting"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/models"
	"github.com/picogrid/swarm-autonomy/pkg/simulation"
	"github.com/picogrid/swarm-autonomy/pkg/wire"
)

// Name is the registry name of the simulation
const Name = "coop-uav"

const (
	reasonStopped   = "stopped"
	reasonCancelled = "cancelled"
)

// CoopUAVSimulation runs a swarm of UAVs that search a grid, share beliefs
// over a lossy relay network and auction monitor and attack tasks among
// themselves
type CoopUAVSimulation struct {
	config     *config.SimulationConfig
	configPath string

	truth      *TargetField
	controller *controllers.SimulationController
	simLogger  *reporting.SimulationLogger
	buffer     *core.UpdateBuffer
	mirror     *MirrorServer
	recorder   *reporting.EventRecorder
	index      *reporting.RunIndex

	seed      int64
	outputDir string
	rate      float64
	startedAt time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewCoopUAVSimulation creates a new instance of the simulation
func NewCoopUAVSimulation() simulation.Simulation {
	return &CoopUAVSimulation{
		stopChan: make(chan struct{}),
	}
}

// Name returns the simulation name
func (s *CoopUAVSimulation) Name() string {
	return Name
}

// Description returns the simulation description
func (s *CoopUAVSimulation) Description() string {
	return "Cooperative UAV search, track and strike with belief sharing and decentralized task auctions"
}

// Configure loads the scenario. params may name a YAML file under
// "config_path"; every other recognised key overrides the loaded values.
func (s *CoopUAVSimulation) Configure(params map[string]interface{}) error {
	logger.Info("Configuring coop-uav simulation...")

	if p, ok := params["config_path"].(string); ok {
		s.configPath = p
	}
	cfg, err := config.LoadConfigWithOverrides(s.configPath, params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	s.config = cfg

	logger.SetLevel(logger.ParseLevel(cfg.Logging.ConsoleLevel))
	logger.Infof("Configuration: %d agents (%.0f%% armed) vs %d targets on a %dx%d grid",
		cfg.Fleet.NumAgents, cfg.Fleet.ArmedFraction*100, cfg.Targets.Count, cfg.World.Rows, cfg.World.Cols)
	return nil
}

// Config returns the loaded configuration
func (s *CoopUAVSimulation) Config() *config.SimulationConfig {
	return s.config
}

// Run executes the simulation until it finishes, ctx is cancelled or Stop
// is called
func (s *CoopUAVSimulation) Run(ctx context.Context, env simulation.RunEnvironment) error {
	if s.config == nil {
		if err := s.Configure(nil); err != nil {
			return err
		}
	}
	logger.Infof("Starting %s simulation", s.Name())

	defer s.closeSinks()
	if err := s.initialize(env); err != nil {
		return fmt.Errorf("failed to initialize simulation: %w", err)
	}

	fwdCtx, cancelForward := context.WithCancel(ctx)
	var fwd sync.WaitGroup
	if s.mirror != nil {
		fwd.Add(1)
		go func() {
			defer fwd.Done()
			s.forwardUpdates(fwdCtx)
		}()
	}

	reason, runErr := s.runSimulationLoop(ctx)

	cancelForward()
	fwd.Wait()

	s.finish(reason)
	return runErr
}

// initialize builds the world and fleet and attaches the output sinks
func (s *CoopUAVSimulation) initialize(env simulation.RunEnvironment) error {
	cfg := s.config
	if env.MaxTicks > 0 {
		cfg.Simulation.MaxTicks = env.MaxTicks
	}
	if env.MirrorAddr != "" {
		cfg.Mirror.Enabled = true
		cfg.Mirror.ListenAddr = env.MirrorAddr
	}
	s.seed = cfg.Simulation.Seed
	if env.Seed != 0 {
		s.seed = env.Seed
	}
	s.outputDir = cfg.Logging.OutputPath
	if env.OutputDir != "" {
		s.outputDir = env.OutputDir
	}
	s.rate = cfg.Simulation.RealtimeFactor
	s.startedAt = time.Now()

	rng := rand.New(rand.NewSource(s.seed))

	world, err := NewGridWorld(cfg.World.Rows, cfg.World.Cols, cfg.World.CellSizeM)
	if err != nil {
		return err
	}
	truth, err := PlaceTargets(world, cfg.Targets.Count, cfg.World.NumTargetTypes, cfg.Targets.TypeWeights, rng)
	if err != nil {
		return err
	}
	sensor := NewProbabilisticSensor(SensorModel{
		RangeM:                 cfg.Fleet.SensorRangeM,
		NumTargetTypes:         cfg.World.NumTargetTypes,
		DetectionProbability:   cfg.Sensor.DetectionProbability,
		ClassificationAccuracy: cfg.Sensor.ClassificationAccuracy,
		FalseAlarmRate:         cfg.Sensor.FalseAlarmProbability,
		TickMs:                 cfg.TickMs(),
	}, world, truth, rng)
	s.truth = truth

	s.simLogger = reporting.NewSimulationLogger(Name)
	s.simLogger.SetConsole(os.Stdout, consoleSeverity(cfg.Logging.ConsoleLevel))
	s.simLogger.SetRetention(cfg.Logging.EventBufferSize)
	s.attachSinks()

	if cfg.Mirror.Enabled {
		s.buffer = core.NewUpdateBuffer(cfg.Mirror.QueueSize)
	}

	s.controller, err = controllers.NewSimulationController(controllers.SimulationConfig{
		TickMs:             cfg.TickMs(),
		MaxTicks:           cfg.Simulation.MaxTicks,
		Belief:             cfg.BeliefSettings(),
		Comms:              cfg.CommsSettings(),
		Engagement:         cfg.EngagementSettings(),
		ScoreDistanceRefM:  cfg.Tasking.ScoreDistanceRefM,
		MonitorDwellMs:     cfg.Tasking.MonitorDwell.Milliseconds(),
		DetectionThreshold: cfg.Tasking.DetectionThreshold,
		LaunchPattern:      cfg.Fleet.LaunchPattern,
		SearchPattern:      cfg.Fleet.SearchPattern,
		RequireExploration: cfg.Simulation.RequireExploration,
	}, fleetSpecs(cfg), controllers.Collaborators{
		Grid:       world,
		Sensor:     sensor,
		Truth:      truth,
		NewPathing: StraightPathingFactory(world, cfg.Fleet.SpeedMps, cfg.Fleet.ArrivalRadiusM),
	}, rng, s.simLogger, s.buffer)
	if err != nil {
		return err
	}

	if cfg.Mirror.Enabled {
		mirror, err := NewMirrorServer(s.worldInit(), cfg.Mirror.Compress)
		if err != nil {
			return err
		}
		if _, err := mirror.Start(cfg.Mirror.ListenAddr); err != nil {
			return err
		}
		s.mirror = mirror
	}

	logger.LogKeyValues(map[string]interface{}{
		"run":     s.simLogger.RunID(),
		"seed":    s.seed,
		"agents":  cfg.Fleet.NumAgents,
		"targets": cfg.Targets.Count,
		"output":  s.outputDir,
	})
	return nil
}

// fleetSpecs numbers agents from 1. The first ArmedFraction of them carry
// weapons.
func fleetSpecs(cfg *config.SimulationConfig) []controllers.AgentSpec {
	armed := int(math.Round(cfg.Fleet.ArmedFraction * float64(cfg.Fleet.NumAgents)))
	specs := make([]controllers.AgentSpec, 0, cfg.Fleet.NumAgents)
	for i := 0; i < cfg.Fleet.NumAgents; i++ {
		spec := controllers.AgentSpec{
			ID:   i + 1,
			Name: fmt.Sprintf("uav-%02d", i+1),
		}
		if i < armed {
			spec.HasWeapon = true
			spec.Ammo = cfg.Fleet.AmmoCapacity
		}
		specs = append(specs, spec)
	}
	return specs
}

func consoleSeverity(level string) string {
	switch level {
	case "debug":
		return reporting.SeverityDebug
	case "warn", "warning":
		return reporting.SeverityWarning
	case "error":
		return reporting.SeverityError
	default:
		return reporting.SeverityInfo
	}
}

func (s *CoopUAVSimulation) attachSinks() {
	if s.outputDir == "" {
		return
	}
	if s.config.Logging.RecordEvents {
		path := filepath.Join(s.outputDir, fmt.Sprintf("events_%s.jsonl.zst", s.simLogger.RunID()[:8]))
		rec, err := reporting.NewEventRecorder(path)
		if err != nil {
			logger.Warnf("Event recording disabled: %v", err)
		} else {
			s.recorder = rec
			s.simLogger.AddSink(rec)
		}
	}
	if s.config.Logging.RunIndex {
		idx, err := reporting.OpenRunIndex(filepath.Join(s.outputDir, reporting.IndexFile))
		if err != nil {
			logger.Warnf("Run index disabled: %v", err)
		} else {
			s.index = idx
			s.simLogger.AddSink(idx)
		}
	}
}

func (s *CoopUAVSimulation) closeSinks() {
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			logger.Warnf("Failed to close recording: %v", err)
		} else {
			logger.Successf("Events recorded to: %s", s.recorder.Path())
		}
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			logger.Warnf("Failed to close run index: %v", err)
		}
	}
}

func (s *CoopUAVSimulation) worldInit() models.WorldInit {
	cfg := s.config
	wi := models.WorldInit{
		RunID:          s.simLogger.RunID(),
		Simulation:     Name,
		Seed:           s.seed,
		Rows:           cfg.World.Rows,
		Cols:           cfg.World.Cols,
		CellSizeM:      cfg.World.CellSizeM,
		NumTargetTypes: cfg.World.NumTargetTypes,
		TickMs:         cfg.TickMs(),
		CommsRangeM:    cfg.Comms.MaxRangeM,
	}
	for _, a := range s.controller.Agents() {
		wi.Agents = append(wi.Agents, models.AgentInfo{
			ID:          a.ID,
			Name:        a.Name,
			HasWeapon:   a.HasWeapon,
			SpeedMps:    cfg.Fleet.SpeedMps,
			SensorRange: cfg.Fleet.SensorRangeM,
		})
	}
	for _, t := range s.truth.Targets() {
		wi.Targets = append(wi.Targets, models.TargetInfo{
			ID:    t.ID,
			Type:  t.Type,
			North: t.Pose.North,
			East:  t.Pose.East,
		})
	}
	return wi
}

// runSimulationLoop steps the controller until it finishes. Observer
// requests are served between ticks.
func (s *CoopUAVSimulation) runSimulationLoop(ctx context.Context) (string, error) {
	logger.Info("Starting main simulation loop...")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	s.setPace(ticker, s.rate)

	requests := s.requests()
	lastSecond := int64(-1)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Simulation cancelled by context")
			return reasonCancelled, ctx.Err()
		case <-s.stopChan:
			logger.Info("Simulation stopped by user")
			return reasonStopped, nil
		case req := <-requests:
			s.serveRequest(req, ticker)
			continue
		default:
		}

		if s.paced() {
			select {
			case <-ctx.Done():
				logger.Info("Simulation cancelled by context")
				return reasonCancelled, ctx.Err()
			case <-s.stopChan:
				logger.Info("Simulation stopped by user")
				return reasonStopped, nil
			case req := <-requests:
				s.serveRequest(req, ticker)
				continue
			case <-ticker.C:
			}
		}

		finished := s.controller.StepSimulation()

		tick, nowMs := s.controller.Tick(), s.controller.NowMs()
		if sec := nowMs / 1000; sec != lastSecond {
			lastSecond = sec
			s.broadcast(wire.TypeSimTime, models.SimTime{Tick: tick, TimeMs: nowMs})
			if sec%10 == 0 {
				logger.Debugf("Simulation progress: tick %d, %s simulated", tick, time.Duration(nowMs)*time.Millisecond)
			}
		}

		if finished {
			_, reason := s.controller.Finished()
			return reason, nil
		}
	}
}

func (s *CoopUAVSimulation) paced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate > 0
}

// setPace runs ticks at factor times real time. Zero or less runs unpaced.
func (s *CoopUAVSimulation) setPace(ticker *time.Ticker, factor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = factor
	if factor <= 0 {
		return
	}
	interval := time.Duration(float64(s.config.Simulation.TickInterval) / factor)
	if interval <= 0 {
		interval = time.Microsecond
	}
	ticker.Reset(interval)
}

func (s *CoopUAVSimulation) requests() <-chan MirrorRequest {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.Requests()
}

func (s *CoopUAVSimulation) serveRequest(req MirrorRequest, ticker *time.Ticker) {
	switch req.Type {
	case wire.TypeBeliefViewRequest:
		view := s.controller.BeliefView(req.AgentID)
		if err := s.mirror.Reply(req.ObserverID, wire.TypeBeliefViewResponse, view); err != nil {
			logger.Warnf("Failed to answer belief request: %v", err)
		}
	case wire.TypeSetStepRate:
		logger.Infof("Observer %d set step rate to %.2fx", req.ObserverID, req.RealtimeFactor)
		s.setPace(ticker, req.RealtimeFactor)
	}
}

func (s *CoopUAVSimulation) forwardUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd := <-s.buffer.Updates():
			s.broadcast(wire.TypeStateUpdate, upd)
		}
	}
}

func (s *CoopUAVSimulation) broadcast(t wire.Type, v any) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Broadcast(t, v); err != nil {
		logger.Warnf("Failed to broadcast %s: %v", t, err)
	}
}

// finish writes the report, indexes the run and releases observers
func (s *CoopUAVSimulation) finish(reason string) {
	outcome := s.controller.Outcome()
	if done, _ := s.controller.Finished(); !done {
		outcome.Reason = reason
	}
	outcome.Seed = s.seed

	var reportPath string
	if s.config.Logging.EnableReport && s.outputDir != "" {
		paths, err := s.generateReport(outcome)
		if err != nil {
			logger.Errorf("Failed to generate report: %v", err)
		} else if len(paths) > 0 {
			reportPath = paths[0]
		}
	}

	if s.index != nil {
		s.index.RecordRun(reporting.RunRow{
			RunID:            s.simLogger.RunID(),
			Simulation:       Name,
			Seed:             s.seed,
			StartedAt:        s.startedAt,
			EndedAt:          time.Now(),
			Ticks:            outcome.Ticks,
			SimTimeMs:        outcome.SimTimeMs,
			Reason:           outcome.Reason,
			Agents:           outcome.Agents,
			Targets:          outcome.Targets,
			TargetsDestroyed: outcome.TargetsDestroyed,
			ReportPath:       reportPath,
		})
	}

	s.simLogger.PrintSummary()

	if s.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.mirror.Shutdown(ctx, outcome.Reason, outcome.Ticks); err != nil {
			logger.Warnf("Mirror shutdown: %v", err)
		}
	}

	logger.Infof("Simulation completed. Outcome: %s after %d ticks, %d/%d targets destroyed",
		outcome.Reason, outcome.Ticks, outcome.TargetsDestroyed, outcome.Targets)
}

func (s *CoopUAVSimulation) generateReport(outcome reporting.RunOutcome) ([]string, error) {
	logger.Info("Generating run report...")

	gen := reporting.NewReportGenerator(s.simLogger, reporting.ReportConfig{
		OutputDir:        s.outputDir,
		Format:           s.config.Logging.ReportFormat,
		SimulationConfig: configMap(s.config),
	})
	report, err := gen.GenerateReport(outcome)
	if err != nil {
		return nil, err
	}
	return gen.SaveReport(report)
}

// configMap renders the configuration as it would appear in config.yaml
func configMap(cfg *config.SimulationConfig) map[string]interface{} {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Stop gracefully shuts down the simulation
func (s *CoopUAVSimulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// GetStatus returns the current state of the run
func (s *CoopUAVSimulation) GetStatus() map[string]interface{} {
	if s.controller == nil {
		return map[string]interface{}{"running": false}
	}
	status := s.controller.GetStatus()
	status["seed"] = s.seed
	if s.mirror != nil {
		status["observers"] = len(s.mirror.Observers())
		status["mirror_frames_dropped"] = s.mirror.Dropped()
	}
	return status
}

// init registers the simulation
func init() {
	simulation.DefaultRegistry.MustRegister(Name, NewCoopUAVSimulation)
}
