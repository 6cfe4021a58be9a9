package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/browser"
	"github.com/spigell/listing-scout/internal/control"
	"github.com/spigell/listing-scout/internal/drafting"
	"github.com/spigell/listing-scout/internal/filtering"
	"github.com/spigell/listing-scout/internal/logger"
	"github.com/spigell/listing-scout/internal/profile"
	"github.com/spigell/listing-scout/internal/relevance"
	"github.com/spigell/listing-scout/internal/traversal"
	"github.com/spigell/listing-scout/internal/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach to the browser and walk the listing until stopped",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("interactive", "i", false, "show a pause/resume/stop console")
	runCmd.Flags().Bool("require-user-id", false, "abort when the user id cannot be read from the page")
	runCmd.Flags().String("user-id", "", "use this user id instead of reading it from the page")
	runCmd.Flags().String("control-listen", "", "address for the control API, e.g. 127.0.0.1:8090")

	viper.BindPFlag("identity.require", runCmd.Flags().Lookup("require-user-id"))
	viper.BindPFlag("identity.user-id", runCmd.Flags().Lookup("user-id"))
	viper.BindPFlag("control.listen", runCmd.Flags().Lookup("control-listen"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interactive, _ := cmd.Flags().GetBool("interactive")

	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug"), Stderr: interactive})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the listing-scout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	prof, err := profile.Load(config.Profile.Path)
	if err != nil {
		if errors.Is(err, profile.ErrNoProfile) {
			logger.Fatal("no profile found, build one with `profile build --resume <file>`",
				zap.String("path", config.Profile.Path))
		}
		logger.Fatal("loading profile", zap.Error(err))
	}

	provider, err := newProvider(ctx, config.AI, logger.Named("ai"))
	if err != nil {
		logger.Fatal("building ai provider", zap.Error(err))
	}

	if err := prof.Usable(provider.EmbeddingModel()); err != nil {
		logger.Fatal("profile is not usable", zap.Error(err))
	}

	st, closeStore, err := openStore(config.Store, logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer closeStore()

	session, err := browser.Attach(config.Browser, logger.Named("browser"))
	if err != nil {
		logger.Fatal("attaching to browser", zap.Error(err))
	}
	defer session.Close()

	ctl := traversal.NewControl(config.PollInterval)

	nav := browser.NewController(session.Page, config.Browser, logger.Named("browser"))
	nav.SetWaiter(ctl.Sleep)

	classifier := relevance.New(provider, st, provider.EmbeddingModel(), config.Relevance, logger.Named("relevance"))

	filters, err := filtering.New(&config.Filters, filtering.Deps{
		Logger:        logger.Named("filters"),
		Classifier:    classifier,
		PersonaVector: prof.PersonaVector,
	}, filtering.Default())
	if err != nil {
		logger.Fatal("preparing filters", zap.Error(err))
	}

	for _, status := range filters.Describe() {
		logger.Debug("filter", zap.String("name", status.Name), zap.String("phase", string(status.Phase)),
			zap.Bool("enabled", status.Enabled), zap.String("reason", status.Reason))
	}

	identity := config.Identity
	identity.EmbeddingModel = provider.EmbeddingModel()

	engine, err := traversal.New(identity, traversal.Deps{
		Navigator: nav,
		Records:   st,
		Filters:   filters,
		Drafter:   drafting.New(provider, config.AI.MaxLogLength, logger.Named("drafting")),
		Profile:   prof,
		Control:   ctl,
		Logger:    logger.Named("traversal"),
	})
	if err != nil {
		logger.Fatal("building traversal", zap.Error(err))
	}

	unwatch := watchSignals(ctl, logger)
	defer unwatch()

	if addr := config.Control.Listen; addr != "" {
		if !viper.GetBool("debug") {
			gin.SetMode(gin.ReleaseMode)
		}
		router := control.NewRouter(config.Control, control.Deps{
			Control:      ctl,
			Applications: st,
			UserID:       engine.UserID,
			Filters:      filters,
			Logger:       logger.Named("control"),
		})
		go func() {
			if err := utils.Serve(ctx, addr, router, logger.Named("control")); err != nil {
				logger.Error("control api stopped", zap.Error(err))
			}
		}()
	}

	if interactive {
		go console(ctl, logger)
	}

	summary, err := engine.Run(ctx)
	if err != nil {
		logger.Fatal("traversal failed", zap.Error(err), zap.Stringer("summary", summary))
	}

	logger.Info("exiting", zap.String("reason", "stopped"), zap.Stringer("summary", summary))
}

// redacted returns a copy of config safe to print.
func redacted(config *Config) Config {
	c := *config
	if c.AI != nil && c.AI.APIKey != "" {
		ai := *c.AI
		ai.APIKey = "***"
		c.AI = &ai
	}
	if c.Store != nil && c.Store.DSN != "" && c.Store.Driver == "postgres" {
		s := *c.Store
		s.DSN = "***"
		c.Store = &s
	}
	return c
}
