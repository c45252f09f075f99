package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/selfheal/playback-core/internal/bridge"
	playbackconfig "github.com/selfheal/playback-core/internal/config"
	"github.com/selfheal/playback-core/internal/logging"
)

func newRunCommand() *cobra.Command {
	var listenAddr string
	var waitTimeout time.Duration
	var failedOnly string
	var saveResultPath string

	cmd := &cobra.Command{
		Use:   "run <session.json>",
		Short: "replay a recorded session against a live browser bridge",
		Long: `Starts the websocket JSON-RPC bridge a browser extension dials into,
waits for that client to connect, then replays the session's recorded
steps against it, self-healing any step whose recorded selector no
longer resolves.

--failed-only narrows the run to a sessionReplay: only the steps a
prior --save-result run recorded as failed are replayed, against a
fresh bridge connection, reusing whatever the healing cache already
learned.`,
		Args: cobra.ExactArgs(1),
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

			store, err := openPatternStore(flags.patternPath, log)
			if err != nil {
				return fmt.Errorf("open pattern store: %w", err)
			}

			b := bridge.New(bridge.Config{ListenAddr: listenAddr, Timeout: pcfg.ElementTimeout})
			if err := b.Start(); err != nil {
				return fmt.Errorf("start bridge: %w", err)
			}
			defer func() { _ = b.Close(context.Background()) }()

			fmt.Printf("%s listening on %s — waiting for the browser client to connect...\n", bold("bridge"), cyan(b.Addr()))
			if err := waitForConnection(b, waitTimeout); err != nil {
				return err
			}
			fmt.Println(green("client connected"))

			view := bridge.NewView(b)
			e := buildEngine(view, pcfg, store, nil, log)

			start := time.Now()
			state := e.Run(context.Background(), sf.SessionID, sf.ProjectID, sf.Steps)

			passed := 0
			for _, r := range state.StepsExecuted {
				if r.Success {
					passed++
				}
			}
			printSummary("session "+sf.SessionID, time.Since(start), passed, len(state.StepsExecuted), state.HealingStats.Successful)

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

	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:0", "address the bridge listens on")
	cmd.Flags().DurationVar(&waitTimeout, "wait", 60*time.Second, "how long to wait for the browser client to connect")
	cmd.Flags().StringVar(&failedOnly, "failed-only", "", "path to a prior --save-result JSON file; replay only its failed steps")
	cmd.Flags().StringVar(&saveResultPath, "save-result", "", "write the session's final result JSON here")
	return cmd
}

func waitForConnection(b *bridge.Bridge, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !b.Connected() {
		if time.Now().After(deadline) {
			return fmt.Errorf("no client connected within %s", timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}
