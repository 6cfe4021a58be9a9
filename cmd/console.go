package cmd

import (
	"github.com/manifoldco/promptui"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/traversal"
)

const (
	PromptToggle = "Pause / resume"
	PromptStatus = "Show state"
	PromptStop   = "Stop"
)

// console reads operator commands until stop is chosen or stdin fails.
func console(ctl *traversal.Control, logger *zap.Logger) {
	prompt := promptui.Select{
		Label: "Control",
		Items: []string{PromptToggle, PromptStatus, PromptStop},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			if err == promptui.ErrInterrupt {
				ctl.Send(traversal.SignalStop)
				return
			}
			logger.Warn("console closed", zap.Error(err))
			return
		}

		switch action {
		case PromptToggle:
			ctl.Send(traversal.SignalToggle)
		case PromptStatus:
			logger.Info("current state", zap.String("state", string(ctl.State())), zap.Int("pending", ctl.Pending()))
		case PromptStop:
			ctl.Send(traversal.SignalStop)
			return
		}
	}
}
