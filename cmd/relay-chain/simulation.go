package relaychain

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/comms"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/controllers"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/core"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/reporting"
	uav "github.com/picogrid/swarm-autonomy/cmd/coop-uav/simulation"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/simulation"
)

// Name is the registry name of the demo
const Name = "relay-chain"

const (
	sensorRangeM = 60.0
	cellSizeM    = 50.0
	// the target sits this far past the first agent
	targetOffsetM = 30.0
	targetID      = 0

	reasonInformed  = "all agents informed"
	reasonStopped   = "stopped"
	reasonCancelled = "cancelled"
)

// RelayChainSimulation lines agents up so that each can only hear its
// neighbours, puts one target under the first agent and measures how many
// ticks it takes for the last agent to learn about it
type RelayChainSimulation struct {
	config     *Config
	controller *controllers.SimulationController
	informedAt map[int]int64
	reason     string
	mu         sync.Mutex
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewRelayChainSimulation creates a new instance of the relay chain demo
func NewRelayChainSimulation() simulation.Simulation {
	return &RelayChainSimulation{
		informedAt: make(map[int]int64),
		stopChan:   make(chan struct{}),
	}
}

// Name returns the simulation name
func (s *RelayChainSimulation) Name() string {
	return Name
}

// Description returns the simulation description
func (s *RelayChainSimulation) Description() string {
	return "Hovering agents in a line pass a single detection down the chain by store-and-forward relay"
}

// Configure sets up the simulation with provided parameters
func (s *RelayChainSimulation) Configure(params map[string]interface{}) error {
	config, err := ValidateAndParse(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	s.config = config
	return nil
}

// Run executes the simulation
func (s *RelayChainSimulation) Run(ctx context.Context, env simulation.RunEnvironment) error {
	if s.config == nil {
		if err := s.Configure(map[string]interface{}{}); err != nil {
			return err
		}
	}
	cfg := *s.config
	if env.MaxTicks > 0 {
		cfg.MaxTicks = env.MaxTicks
	}
	seed := env.Seed
	if seed == 0 {
		seed = 1
	}

	logger.Progressf("Building a chain of %d agents %.0fm apart (comms %.0fm, relay p=%.2f)",
		cfg.NumAgents, cfg.SpacingM, cfg.CommsRangeM, cfg.RelayProbability)

	controller, err := buildController(cfg, rand.New(rand.NewSource(seed)))
	if err != nil {
		return fmt.Errorf("failed to build chain: %w", err)
	}
	s.mu.Lock()
	s.controller = controller
	s.mu.Unlock()

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if cfg.Realtime {
		ticker = time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	var runErr error
	for s.currentReason() == "" {
		select {
		case <-ctx.Done():
			s.setReason(reasonCancelled)
			runErr = ctx.Err()
			continue
		case <-s.stopChan:
			logger.Info("Stop signal received")
			s.setReason(reasonStopped)
			continue
		default:
		}

		if tickC != nil {
			select {
			case <-ctx.Done():
				s.setReason(reasonCancelled)
				runErr = ctx.Err()
				continue
			case <-s.stopChan:
				s.setReason(reasonStopped)
				continue
			case <-tickC:
			}
		}

		finished := controller.StepSimulation()
		s.observe(controller)
		switch {
		case s.allInformed(cfg.NumAgents):
			s.setReason(reasonInformed)
		case finished:
			_, reason := controller.Finished()
			s.setReason(reason)
		}
	}

	s.printSummary(cfg)
	return runErr
}

// buildController lays the chain out west to east. Agent 1 is nearest the
// target and every later agent is one spacing further away.
func buildController(cfg Config, rng *rand.Rand) (*controllers.SimulationController, error) {
	length := float64(cfg.NumAgents-1)*cfg.SpacingM + 2*cellSizeM
	world, err := uav.NewGridWorld(2, int(math.Ceil(length/cellSizeM)), cellSizeM)
	if err != nil {
		return nil, err
	}

	truth := uav.NewTargetField(controllers.TrueTarget{
		ID:   targetID,
		Pose: geo.Pose{Point: geo.Point{North: cellSizeM, East: cellSizeM + targetOffsetM}},
	})
	tickMs := cfg.TickInterval.Milliseconds()
	sensor := uav.NewProbabilisticSensor(uav.SensorModel{
		RangeM:                 sensorRangeM,
		NumTargetTypes:         1,
		DetectionProbability:   1,
		ClassificationAccuracy: 1,
		TickMs:                 tickMs,
	}, world, truth, rng)

	specs := make([]controllers.AgentSpec, cfg.NumAgents)
	for i := range specs {
		start := geo.Pose{Point: geo.Point{North: cellSizeM, East: cellSizeM + float64(i)*cfg.SpacingM}}
		specs[i] = controllers.AgentSpec{
			ID:    i + 1,
			Name:  fmt.Sprintf("relay-%02d", i+1),
			Start: &start,
		}
	}

	bcfg := belief.DefaultConfig()
	bcfg.NumTargetTypes = 1
	bcfg.ConfidenceDecayPerSec = 0
	bcfg.BroadcastIntervalMs = cfg.BroadcastEvery.Milliseconds()

	simLogger := reporting.NewSimulationLogger(Name)
	simLogger.SetConsole(nil, reporting.SeverityError)

	return controllers.NewSimulationController(controllers.SimulationConfig{
		TickMs:   tickMs,
		MaxTicks: cfg.MaxTicks,
		Belief:   bcfg,
		Comms: comms.Config{
			RangeM:           cfg.CommsRangeM,
			MaxRelayHops:     cfg.MaxRelayHops,
			RelayProbability: cfg.RelayProbability,
		},
		Engagement:         core.EngagementConfig{RangeM: sensorRangeM, KillProbability: 1},
		ScoreDistanceRefM:  length,
		MonitorDwellMs:     int64(cfg.MaxTicks) * tickMs,
		DetectionThreshold: 0.5,
		LaunchPattern:      "line",
		SearchPattern:      "random",
	}, specs, controllers.Collaborators{
		Grid:       world,
		Sensor:     sensor,
		Truth:      truth,
		NewPathing: uav.StraightPathingFactory(world, 0, 1),
	}, rng, simLogger, nil)
}

func (s *RelayChainSimulation) observe(controller *controllers.SimulationController) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range controller.Agents() {
		if _, done := s.informedAt[a.ID]; done {
			continue
		}
		if _, ok := a.Store.Target(targetID); ok {
			s.informedAt[a.ID] = controller.Tick()
			logger.Debugf("%s learned of the target at tick %d", a.Name, controller.Tick())
		}
	}
}

func (s *RelayChainSimulation) allInformed(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.informedAt) == n
}

func (s *RelayChainSimulation) setReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reason == "" {
		s.reason = reason
	}
}

func (s *RelayChainSimulation) currentReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// InformedAt returns the tick at which agent id first held the target
func (s *RelayChainSimulation) InformedAt(id int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tick, ok := s.informedAt[id]
	return tick, ok
}

func (s *RelayChainSimulation) printSummary(cfg Config) {
	s.mu.Lock()
	controller := s.controller
	reason := s.reason
	s.mu.Unlock()

	logger.LogSection("Relay Chain Results")
	logger.LogKeyValues(map[string]interface{}{
		"Ticks":  controller.Tick(),
		"Reason": reason,
	})

	table := logger.NewTable("Agent", "Distance (m)", "Informed At", "Relayed", "Relay Dropped", "Hop Limited")
	for i, a := range controller.Agents() {
		at := "never"
		if tick, ok := s.InformedAt(a.ID); ok {
			at = fmt.Sprintf("tick %d", tick)
		}
		stats := a.Node.Stats()
		table.AddRow(
			a.Name,
			fmt.Sprintf("%.0f", float64(i)*cfg.SpacingM+targetOffsetM),
			at,
			fmt.Sprintf("%d", stats.Relayed),
			fmt.Sprintf("%d", stats.RelayDropped),
			fmt.Sprintf("%d", stats.HopLimitDropped),
		)
	}
	table.Print()
}

// Stop gracefully shuts down the simulation
func (s *RelayChainSimulation) Stop() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	return nil
}

// GetStatus returns the current simulation status
func (s *RelayChainSimulation) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	informed := make([]int, 0, len(s.informedAt))
	for id := range s.informedAt {
		informed = append(informed, id)
	}
	sort.Ints(informed)

	status := map[string]interface{}{
		"reason":   s.reason,
		"informed": informed,
		"tick":     int64(0),
	}
	if s.controller != nil {
		status["tick"] = s.controller.Tick()
		status["comms"] = s.controller.CommsStats()
	}
	return status
}

func init() {
	simulation.DefaultRegistry.MustRegister(Name, NewRelayChainSimulation)
}
