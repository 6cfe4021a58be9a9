package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/listing-scout/internal/logger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded applications, newest first",
	Run: func(cmd *cobra.Command, _ []string) {
		history(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringP("user", "u", "", "user id the records belong to (default is identity.user-id)")
	historyCmd.Flags().IntP("limit", "n", 50, "show at most this many records, 0 for all")
	historyCmd.Flags().String("status", "", "only show skipped or submitted records")
}

func history(cmd *cobra.Command) {
	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug"), Stderr: true})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		userID = config.Identity.UserID
	}
	if userID == "" {
		logger.Fatal("user id is required", zap.String("hint", "pass --user or set identity.user-id"))
	}

	st, closeStore, err := openStore(config.Store, logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}
	defer closeStore()

	apps, err := st.ListApplications(cmd.Context(), userID)
	if err != nil {
		logger.Fatal("listing applications", zap.Error(err))
	}

	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "APPLIED\tSTATUS\tSCORE\tCOMPANY\tTITLE\tURL")

	shown := 0
	for _, app := range apps {
		if status != "" && !strings.EqualFold(string(app.Status), status) {
			continue
		}
		if limit > 0 && shown >= limit {
			break
		}

		score := "-"
		if app.MatchScore != nil {
			score = fmt.Sprintf("%.0f", *app.MatchScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			app.AppliedAt.Local().Format("2006-01-02 15:04"), app.Status, score, app.CompanyName, app.JobTitle, app.JobURL)
		shown++
	}
	w.Flush()

	logger.Debug("applications listed", zap.Int("total", len(apps)), zap.Int("shown", shown))
}
