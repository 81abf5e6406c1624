package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/openeocore/internal/config"
	"github.com/MeKo-Tech/openeocore/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "openeocore",
	Short: "A tile-oriented openEO process graph engine",
	Long: `openeocore evaluates openEO process graphs against a STAC catalog,
compositing raster tiles with pixel-selection mosaics, temporal and
spectral reducers, and a transactional tile-assignment store.`,
}

// Execute runs the root command, printing errors to stderr and exiting
// non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("data-source-url", "", "STAC API base URL")
	rootCmd.PersistentFlags().String("tile-store-path", "./tiles.db", "sqlite tile-assignment store path")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	for _, name := range []string{"data-source-url", "tile-store-path", "log-level"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %q: %v", name, err))
		}
	}
}

func initConfig() {
	v := viper.GetViper()
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	cfg = loaded
	logging.Init(cfg.LogLevel)
}
