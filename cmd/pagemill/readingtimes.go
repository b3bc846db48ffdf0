package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagemill/pagemill"
)

var readingTimesDryRun bool

var readingTimesCmd = &cobra.Command{
	Use:   "readingtimes",
	Short: "Recompute the stored reading time of every blog post",
	Long: `Walks every blog post, drafts included, recomputes the reading-time
estimate from the intro and body word counts, and stores any changed
values. Use --dry-run to preview without writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := pagemill.New(pagemill.SiteConfig{
			DatabasePath: viper.GetString("database"),
			Environment:  "development",
		}, pagemill.ViewFuncs{})

		store, err := pagemill.NewStore(app.Config.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()
		app.Store = store

		return app.RecalculateReadingTimes(readingTimesDryRun, os.Stdout)
	},
}

func init() {
	readingTimesCmd.Flags().BoolVar(&readingTimesDryRun, "dry-run", false, "report changes without writing them")
	readingTimesCmd.Flags().String("database", "", "path to the site database (default data/site.db)")
	viper.BindPFlag("database", readingTimesCmd.Flags().Lookup("database"))
	rootCmd.AddCommand(readingTimesCmd)
}
