package cmd

import (
	"os"
	"os/signal"
	"slices"

	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/traversal"
)

// watchSignals turns OS signals into queued transitions. A second stop signal
// exits immediately without waiting for the in-flight step.
func watchSignals(ctl *traversal.Control, logger *zap.Logger) func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, append(slices.Clone(stopSignals), toggleSignals...)...)

	done := make(chan struct{})
	go func() {
		stops := 0
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				if slices.Contains(toggleSignals, sig) {
					logger.Info("pause/resume requested", zap.Stringer("signal", sig))
					ctl.Send(traversal.SignalToggle)
					continue
				}

				stops++
				if stops > 1 {
					logger.Warn("second stop signal, exiting now")
					os.Exit(1)
				}
				logger.Info("stop requested, finishing the current step", zap.Stringer("signal", sig))
				ctl.Send(traversal.SignalStop)
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
