// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/djlyric/music-trend-panel/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics and the stored chart windows",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	st, err := s.CollectStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Tracks:  %d\nEntries: %d\nWindows: %d\n", st.Tracks, st.Entries, st.Windows)

	windows, err := s.WindowList(ctx)
	if err != nil {
		return err
	}
	if len(windows) > 0 {
		fmt.Fprintln(os.Stdout)
		for _, w := range windows {
			fmt.Fprintln(os.Stdout, w)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
