package main

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ember/internal/asyncrt"
	"ember/internal/config"
	"ember/internal/scenario"
	"ember/internal/ui"
)

const dashboardInterval = 100 * time.Millisecond

type bootOutcome struct {
	result *scenario.Result
	err    error
}

// runScenarioWithUI boots sc on a background goroutine while a dashboard
// samples its executor. Quitting the dashboard cancels the run.
func runScenarioWithUI(ctx context.Context, cfg config.Config, sc scenario.Scenario) (*scenario.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples := make(chan scenario.Snapshot, 1)
	model := ui.NewDashboardModel(sc.Name, samples)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))

	outcomeCh := make(chan bootOutcome, 1)
	go func() {
		res, err := scenario.Boot(ctx, cfg, sc, scenario.OnStart(func(exec *asyncrt.Executor) {
			go relaySamples(ctx, exec, samples)
		}))
		outcomeCh <- bootOutcome{result: res, err: err}
		done := ui.DoneMsg{Err: err}
		if res != nil {
			done.Final = res.Stats
		}
		program.Send(done)
	}()

	_, uiErr := program.Run()
	cancel()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}

func relaySamples(ctx context.Context, exec *asyncrt.Executor, out chan<- scenario.Snapshot) {
	for snap := range scenario.Watch(ctx, exec, dashboardInterval) {
		select {
		case out <- snap:
		default:
		}
	}
}
