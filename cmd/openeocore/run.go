package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/openeocore/internal/engine"
	"github.com/MeKo-Tech/openeocore/internal/graph"
	"github.com/MeKo-Tech/openeocore/internal/reader"
	"github.com/MeKo-Tech/openeocore/internal/registry"
	"github.com/MeKo-Tech/openeocore/internal/tilestore"
)

var (
	graphFile  string
	paramsFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate an openEO process graph",
	RunE:  runGraph,
}

func init() {
	runCmd.Flags().StringVar(&graphFile, "graph", "", "path to a process graph JSON file")
	runCmd.Flags().StringVar(&paramsFile, "params", "", "path to a named-parameter JSON file")
	if err := runCmd.MarkFlagRequired("graph"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(runCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(graphFile)
	if err != nil {
		return fmt.Errorf("reading graph file: %w", err)
	}
	g, err := graph.Decode(data)
	if err != nil {
		return err
	}

	params := graph.ParameterMap{}
	if paramsFile != "" {
		pdata, err := os.ReadFile(paramsFile)
		if err != nil {
			return fmt.Errorf("reading params file: %w", err)
		}
		if err := json.Unmarshal(pdata, &params); err != nil {
			return fmt.Errorf("decoding params file: %w", err)
		}
	}

	store, err := tilestore.Open(cfg.TileStorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	r := reader.New(nil, nil, reader.Limits{
		MaxItems:  cfg.Limits.MaxItems,
		MaxPixels: cfg.Limits.MaxPixels,
	})

	reg, err := registry.Build(r, store)
	if err != nil {
		return err
	}

	eng := engine.New(reg)
	result, err := eng.Run(context.Background(), g, params)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stdout, "%v\n", result)
		return nil
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
