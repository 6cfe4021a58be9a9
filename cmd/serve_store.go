package cmd

import (
	"context"
	"log"
	"os/signal"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/logger"
	"github.com/spigell/listing-scout/internal/storeapi"
	"github.com/spigell/listing-scout/internal/utils"
)

var serveStoreCmd = &cobra.Command{
	Use:   "serve-store",
	Short: "Serve the record store over HTTP for runs using the http store driver",
	Run: func(_ *cobra.Command, _ []string) {
		serveStore()
	},
}

func init() {
	rootCmd.AddCommand(serveStoreCmd)

	serveStoreCmd.Flags().String("listen", "", "listen address (default is store.listen)")
	viper.BindPFlag("store.listen", serveStoreCmd.Flags().Lookup("listen"))
}

func serveStore() {
	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if strings.EqualFold(config.Store.Driver, driverHTTP) {
		logger.Fatal("serve-store needs a sql driver", zap.String("driver", config.Store.Driver))
	}

	st, closeStore, err := openStore(config.Store, logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer closeStore()

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), stopSignals...)
	defer stop()

	if err := utils.Serve(ctx, config.Store.Listen, storeapi.NewRouter(st, logger.Named("storeapi")), logger); err != nil {
		logger.Error("store api stopped", zap.Error(err))
	}
}
