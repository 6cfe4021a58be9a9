package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/logger"
	"github.com/spigell/listing-scout/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the matching profile",
}

var profileBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the matching profile from a plain-text resume",
	Run: func(cmd *cobra.Command, _ []string) {
		buildProfile(cmd)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileBuildCmd)

	profileBuildCmd.Flags().StringP("resume", "r", "", "plain-text resume file")
	profileBuildCmd.Flags().StringP("out", "o", "", "where to write the profile (default is profile.path)")
	profileBuildCmd.Flags().BoolP("yes", "y", false, "overwrite an existing profile without asking")
	profileBuildCmd.MarkFlagRequired("resume")
}

func buildProfile(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug"), Stderr: true})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	resumePath, _ := cmd.Flags().GetString("resume")
	out, _ := cmd.Flags().GetString("out")
	if strings.TrimSpace(out) == "" {
		out = config.Profile.Path
	}

	raw, err := os.ReadFile(resumePath)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		if err := confirmOverwrite(out); err != nil {
			logger.Info("exiting", zap.String("reason", err.Error()))
			return
		}
	}

	provider, err := newProvider(ctx, config.AI, logger.Named("ai"))
	if err != nil {
		logger.Fatal("building ai provider", zap.Error(err))
	}

	builder := profile.NewBuilder(provider, provider, provider.EmbeddingModel(), config.AI.MaxLogLength, logger.Named("profile"))

	p, err := builder.Build(ctx, string(raw))
	if err != nil {
		logger.Fatal("building profile", zap.Error(err))
	}

	if err := profile.Save(out, p); err != nil {
		logger.Fatal("saving profile", zap.Error(err))
	}

	logger.Info("profile saved",
		zap.String("path", out),
		zap.String("embedding_model", p.ModelID),
		zap.Int("dimensions", len(p.PersonaVector)),
	)

	fmt.Println(p.PersonaText)
}

var errOverwriteDeclined = errors.New("existing profile kept")

func confirmOverwrite(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Overwrite %s", path),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		return errOverwriteDeclined
	}
	return nil
}
