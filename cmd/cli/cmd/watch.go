package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/picogrid/swarm-autonomy/pkg/client"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/models"
)

const defaultMirrorAddr = "127.0.0.1:8765"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a running simulation through its mirror",
	Long: `Connect to the observer mirror of a running simulation and print the
fleet state as it changes. The run must have been started with --mirror-addr.`,
	RunE: watchSimulation,
}

func init() {
	watchCmd.Flags().String("addr", "", "mirror address (default is the run's mirror-addr or "+defaultMirrorAddr+")")
	watchCmd.Flags().Int("agent", 0, "request this agent's belief once connected")
	watchCmd.Flags().Float64("rate", 0, "ask the simulation to run at this multiple of real time")
	watchCmd.Flags().Int("every", 10, "print the fleet every N state updates")
	watchCmd.Flags().Duration("wait", 30*time.Second, "keep retrying the connection this long while the run starts")
}

func watchSimulation(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = viper.GetString("mirror-addr")
	}
	if addr == "" {
		if p, err := activeProfile(); err == nil && p != nil && p.MirrorAddr != "" {
			addr = p.MirrorAddr
		}
	}
	if addr == "" {
		addr = defaultMirrorAddr
	}
	agentID, _ := cmd.Flags().GetInt("agent")
	rate, _ := cmd.Flags().GetFloat64("rate")
	every, _ := cmd.Flags().GetInt("every")
	if every < 1 {
		every = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wait, _ := cmd.Flags().GetDuration("wait")
	obs, err := dialWithRetry(ctx, addr, wait)
	if err != nil {
		return err
	}
	defer func() { _ = obs.Close() }()

	updates := 0
	err = obs.Watch(ctx, client.Handlers{
		WorldInit: func(w models.WorldInit) {
			printWorld(w)
			if rate > 0 {
				if err := obs.SetStepRate(rate); err != nil {
					logger.Warnf("Failed to set step rate: %v", err)
				}
			}
			if agentID > 0 {
				if err := obs.RequestBelief(agentID); err != nil {
					logger.Warnf("Failed to request belief: %v", err)
				}
			}
		},
		SimTime: func(t models.SimTime) {
			logger.Debugf("t=%.1fs tick %d", float64(t.TimeMs)/1000, t.Tick)
		},
		State: func(u models.StateUpdate) {
			updates++
			if updates%every == 0 {
				printState(u)
			}
		},
		BeliefView: printBelief,
		Shutdown: func(s models.Shutdown) {
			logger.Successf("Simulation finished at tick %d: %s", s.Tick, s.Reason)
		},
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// dialWithRetry keeps dialling addr until it answers or wait runs out
func dialWithRetry(ctx context.Context, addr string, wait time.Duration) (*client.Observer, error) {
	var obs *client.Observer
	err := logger.WithSpinner(fmt.Sprintf("Connecting to %s", addr), func() error {
		deadline := time.Now().Add(wait)
		for {
			attempt, cancel := context.WithTimeout(ctx, 2*time.Second)
			o, err := client.Dial(attempt, client.Config{Addr: addr})
			cancel()
			if err == nil {
				obs = o
				return nil
			}
			if ctx.Err() != nil || time.Now().After(deadline) {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
	})
	return obs, err
}

func printWorld(w models.WorldInit) {
	logger.LogSection(fmt.Sprintf("Watching %s", w.Simulation))
	armed := 0
	for _, a := range w.Agents {
		if a.HasWeapon {
			armed++
		}
	}
	logger.LogKeyValues(map[string]interface{}{
		"Run":     w.RunID,
		"Seed":    w.Seed,
		"Grid":    fmt.Sprintf("%dx%d cells of %.0fm", w.Rows, w.Cols, w.CellSizeM),
		"Agents":  fmt.Sprintf("%d (%d armed)", len(w.Agents), armed),
		"Targets": len(w.Targets),
		"Tick":    fmt.Sprintf("%dms", w.TickMs),
	})
}

func printState(u models.StateUpdate) {
	logger.LogSubSection(fmt.Sprintf("Tick %d (t=%.1fs)", u.Tick, float64(u.TimeMs)/1000))
	table := logger.NewTable("Agent", "Mode", "Task", "Position", "Queue", "Ammo")
	for _, a := range u.Agents {
		task := "-"
		if a.Task != "" {
			task = fmt.Sprintf("%s T%d", a.Task, a.TargetID)
		}
		table.AddRow(
			fmt.Sprintf("%d", a.ID),
			a.Mode,
			task,
			fmt.Sprintf("(%.0f, %.0f)", a.North, a.East),
			fmt.Sprintf("%d", a.QueueDepth),
			fmt.Sprintf("%d", a.Ammo),
		)
	}
	table.Print()

	destroyed := 0
	for _, t := range u.Targets {
		if t.Destroyed {
			destroyed++
		}
	}
	logger.Infof("Targets destroyed %d/%d, messages relayed %d, dropped %d",
		destroyed, len(u.Targets), u.Comms.Relayed, u.Comms.RelayDropped+u.Comms.HopLimitDropped+u.Comms.Evicted)
}

func printBelief(v models.BeliefViewResponse) {
	if !v.Found {
		logger.Warnf("Agent %d is not part of this run", v.AgentID)
		return
	}
	logger.LogSubSection(fmt.Sprintf("Agent %d belief at t=%.1fs (uncertainty %.3f)", v.AgentID, float64(v.TimeMs)/1000, v.Uncertainty))
	table := logger.NewTable("Target", "Position", "Confidence", "Monitor", "Attack", "Destroyed")
	for _, t := range v.Targets {
		table.AddRow(
			fmt.Sprintf("%d", t.ID),
			fmt.Sprintf("(%.0f, %.0f)", t.North, t.East),
			fmt.Sprintf("%.2f", t.Confidence),
			taskCell(t.Monitor),
			taskCell(t.Attack),
			fmt.Sprintf("%t", t.Destroyed),
		)
	}
	table.Print()
}

func taskCell(t models.TaskView) string {
	if t.AgentID <= 0 {
		return t.State
	}
	return fmt.Sprintf("%s by %d", t.State, t.AgentID)
}
