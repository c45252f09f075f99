package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	playbackconfig "github.com/selfheal/playback-core/internal/config"
	"github.com/selfheal/playback-core/internal/htmldoc"
	"github.com/selfheal/playback-core/internal/logging"
)

func newReplayStaticCommand() *cobra.Command {
	var viewportW, viewportH int
	var failedOnly string
	var saveResultPath string

	cmd := &cobra.Command{
		Use:   "replay-static <session.json> <snapshot.html>",
		Short: "replay a recorded session against a static HTML snapshot",
		Long: `Replays a session against a parsed HTML capture instead of a live
browser, for offline regression testing of the healing ladder against a
known-drifted page without driving a real renderer. Captured frames
come back blank and layout comes from each element's data-shx-rect
fixture attribute rather than real layout.

--failed-only narrows the run to a sessionReplay: only the steps a
prior --save-result run recorded as failed are replayed, reusing
whatever the healing cache already learned.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logging.Config{ComponentName: "PLAYBACK"}).WithDebug(flags.debug)

			pcfg, err := playbackconfig.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			sf, err := loadSession(args[0])
			if err != nil {
				return err
			}

			if failedOnly != "" {
				prior, err := loadPriorResult(failedOnly)
				if err != nil {
					return err
				}
				sf.Steps = filterToFailedSteps(sf.Steps, prior)
				if len(sf.Steps) == 0 {
					fmt.Println(green("no failed steps in " + failedOnly + "; nothing to replay"))
					return nil
				}
				fmt.Printf("sessionReplay: replaying %d failed step(s) from %s\n", len(sf.Steps), failedOnly)
			}

			html, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read snapshot %s: %w", args[1], err)
			}
			doc, err := htmldoc.New(string(html), viewportW, viewportH)
			if err != nil {
				return fmt.Errorf("parse snapshot %s: %w", args[1], err)
			}

			store, err := openPatternStore(flags.patternPath, log)
			if err != nil {
				return fmt.Errorf("open pattern store: %w", err)
			}

			e := buildEngine(doc, pcfg, store, nil, log)

			start := time.Now()
			state := e.Run(context.Background(), sf.SessionID, sf.ProjectID, sf.Steps)

			passed := 0
			for _, r := range state.StepsExecuted {
				if r.Success {
					passed++
				}
			}
			printSummary("static replay of "+sf.SessionID, time.Since(start), passed, len(state.StepsExecuted), state.HealingStats.Successful)

			if err := store.Close(context.Background()); err != nil {
				log.Warn("failed to flush pattern store: %v", err)
			}
			if saveResultPath != "" {
				if err := saveResult(saveResultPath, state); err != nil {
					log.Warn("failed to save session result: %v", err)
				}
			}
			if passed != len(state.StepsExecuted) {
				return fmt.Errorf("%d/%d steps failed", len(state.StepsExecuted)-passed, len(state.StepsExecuted))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&viewportW, "viewport-width", 1280, "viewport width assumed for the snapshot")
	cmd.Flags().IntVar(&viewportH, "viewport-height", 800, "viewport height assumed for the snapshot")
	cmd.Flags().StringVar(&failedOnly, "failed-only", "", "path to a prior --save-result JSON file; replay only its failed steps")
	cmd.Flags().StringVar(&saveResultPath, "save-result", "", "write the session's final result JSON here")
	return cmd
}
