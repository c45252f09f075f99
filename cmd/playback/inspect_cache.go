package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/selfheal/playback-core/internal/logging"
	"github.com/selfheal/playback-core/internal/patternstore"
)

func newInspectCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect-cache [cache-file]",
		Short: "print the learned-healing pattern store",
		Long: `Loads a healing-cache JSON file and prints every learned healing,
grouped by original fingerprint, newest first. Accepts the same
--cache flag as run/replay-static; pass a path as the lone argument to
override it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.patternPath
			if len(args) == 1 {
				path = args[0]
			}

			log := logging.New(logging.Config{ComponentName: "PATTERNSTORE"}).WithDebug(flags.debug)
			store, err := patternstore.New(patternstore.DefaultConfig(path), log)
			if err != nil {
				return fmt.Errorf("build pattern store: %w", err)
			}
			records, err := store.Load(context.Background())
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}

			if len(records) == 0 {
				fmt.Printf("%s is empty\n", path)
				return nil
			}

			byFingerprint := map[string]int{}
			for _, r := range records {
				byFingerprint[r.OriginalFingerprint]++
			}
			fingerprints := make([]string, 0, len(byFingerprint))
			for fp := range byFingerprint {
				fingerprints = append(fingerprints, fp)
			}
			sort.Strings(fingerprints)
			sort.SliceStable(records, func(i, j int) bool {
				return records[i].TimestampUnix > records[j].TimestampUnix
			})

			fmt.Printf("%s %d records across %d fingerprints\n\n", bold(path), len(records), len(fingerprints))
			for _, fp := range fingerprints {
				fmt.Printf("%s (%d)\n", cyan(fp), byFingerprint[fp])
				for _, r := range records {
					if r.OriginalFingerprint != fp {
						continue
					}
					when := time.Unix(r.TimestampUnix, 0).Format(time.RFC3339)
					mark := green("ok")
					if !r.Success {
						mark = red("failed")
					}
					fmt.Printf("  %s %s -> %s (confidence %.2f, %s)\n",
						gray(when), r.Strategy, r.HealedSelector, r.Confidence, mark)
				}
			}
			return nil
		},
	}
	return cmd
}
