package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tdjsnelling/sqtracker-sub000/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sqtracker",
	Short: "Announce accounting gateway for private bittorrent trackers",
	Long: `sqtracker sits between peer torrent clients and an upstream tracker
engine. It authenticates announces via per-user URLs, keeps a durable
upload/download ledger, enforces ratio and hit-and-run policy and awards
bonus points before proxying allowed requests upstream.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/sqtracker.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := config.Read(cfgFile); err != nil {
		log.Fatalf("Could not load config: %s", err)
	}
}
