package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pagemill",
	Short: "pagemill - a blog/CMS engine built with Go, Echo, and templ",
	Long: `pagemill scaffolds and maintains sites built on the pagemill engine.

A pagemill site is a small Go program: it provides templ views and calls
pagemill.New(...).Start(). This CLI creates that program and runs the
maintenance tasks that go with it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command and exits nonzero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./pagemill.yaml)")
}

// initConfig wires viper: values resolve from flags, then PAGEMILL_*
// environment variables, then an optional pagemill.yaml, then defaults.
func initConfig() error {
	viper.SetDefault("database", "data/site.db")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("pagemill")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PAGEMILL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}
