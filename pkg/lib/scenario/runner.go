package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/espressif/esp-bist/pkg/lib"
	"github.com/espressif/esp-bist/pkg/lib/config"
	"github.com/espressif/esp-bist/pkg/lib/debugsession"
	"github.com/espressif/esp-bist/pkg/lib/logging"
	"github.com/espressif/esp-bist/pkg/lib/matcher"
	"github.com/espressif/esp-bist/pkg/lib/simulator"
)

// Result is the verdict of one scenario run.
type Result struct {
	ID       string
	Scenario Scenario
	Passed   bool
	Outcome  matcher.Outcome
	// Forbidden lists forbidden markers that were seen.
	Forbidden []string
	// Err is set when the scenario could not be run at all.
	Err error
	// TeardownErr is reported alongside the verdict and never changes it.
	TeardownErr error
	Started     time.Time
	Duration    time.Duration
}

// Summary returns a one-line description of the verdict.
func (r Result) Summary() string {
	switch {
	case r.Err != nil:
		return "error: " + r.Err.Error()
	case r.Passed:
		return fmt.Sprintf("observed %q", r.Outcome.Observed)
	case len(r.Forbidden) > 0:
		return fmt.Sprintf("saw forbidden %q", r.Forbidden)
	default:
		return fmt.Sprintf("missing %q (%s)", r.Outcome.Missing(), r.Outcome.Reason)
	}
}

// Runner runs scenarios one at a time. The debug port is fixed, so runs
// must not overlap.
type Runner struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  clock.Clock
	// Echo receives every simulator console line.
	Echo func(lib.Line)
}

func (r *Runner) config() *config.Config {
	if r.Config == nil {
		return config.Default()
	}
	return r.Config
}

func (r *Runner) clock() clock.Clock {
	if r.Clock == nil {
		return clock.NewClock()
	}
	return r.Clock
}

// Run starts the simulator for sc, injects its fault if any, and waits for
// its markers. Every session it opened is stopped before Run returns.
func (r *Runner) Run(ctx context.Context, sc Scenario) (res Result) {
	cfg := r.config()
	logger := logging.WithScenario(logging.OrDiscard(r.Logger), sc.Suite, sc.Name)
	res = Result{ID: lib.NewID(), Scenario: sc, Started: time.Now()}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Scenario)
	defer cancel()

	var sim *simulator.Session
	var dbg *debugsession.Session
	defer func() {
		// debugger first, it holds the simulator's stub
		res.TeardownErr = errors.Join(dbg.Stop(), sim.Stop())
		if res.TeardownErr != nil {
			logger.Warn("Teardown failed", "error", res.TeardownErr)
		}
		res.Duration = time.Since(res.Started)
		logger.Info("Scenario finished", "passed", res.Passed, "duration", res.Duration)
	}()

	dir := cfg.TestDir(sc.Dir)
	debug := sc.Fault != nil
	logger.Info("Starting scenario", "dir", dir, "debug", debug)

	var err error
	sim, err = simulator.Start(ctx, dir, debug, simulator.Options{
		Config: cfg,
		Logger: logger,
		Clock:  r.Clock,
		Echo:   r.Echo,
	})
	if err != nil {
		res.Err = err
		return res
	}

	poll := sc.Poll
	if poll == 0 {
		poll = cfg.Timeouts.Poll
	}

	if debug {
		if sc.Poll == 0 {
			poll = cfg.Timeouts.FaultPoll
		}
		script := sc.Fault.Script(cfg.Debugger.Port)
		dbg, err = debugsession.Attach(dir, script, debugsession.Options{
			Config: cfg,
			Logger: logger,
			Clock:  r.Clock,
		})
		if err != nil {
			res.Err = err
			return res
		}
		if err := r.settle(ctx, cfg.Debugger.AttachSettle); err != nil {
			res.Err = err
			return res
		}
	}

	res.Outcome = matcher.AwaitMarkers(ctx, sim, sc.Expect, poll)
	for _, f := range sc.Forbid {
		if res.Outcome.Saw(f) {
			res.Forbidden = append(res.Forbidden, f)
		}
	}
	res.Passed = res.Outcome.Complete() && len(res.Forbidden) == 0
	if !res.Passed {
		logger.Info("Scenario failed", "diagnostic", res.Outcome.Diagnostic())
	}
	return res
}

// settle gives the debugger time to connect and arm its breakpoint.
// Console output keeps accumulating meanwhile.
func (r *Runner) settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := r.clock().NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunAll runs scenarios sequentially and returns their results in order.
// It stops early, without a result for the rest, once ctx is done.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.Run(ctx, sc))
	}
	return results
}
