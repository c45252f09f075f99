package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// globalFlags holds the options every subcommand reads. --cache and
// --config are bound through viper, so PLAYBACK_CACHE and
// PLAYBACK_CONFIG environment variables supply them when the flag is
// not given; an explicit flag wins. The other flags are read only from
// the command line.
type globalFlags struct {
	configPath  string
	patternPath string
	verbose     bool
	debug       bool
	elementTO   time.Duration
	stepTO      time.Duration
}

var flags globalFlags

// NewRootCommand builds the playback CLI's command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "playback",
		Short: "Self-healing playback core for recorded interaction sessions",
		Long: fmt.Sprintf(`%s

Replays a recorded interaction session against a mutable rendered
document, self-healing element resolution when the page has drifted
since the recording was made.

%s
  playback run session.json --save-result result.json         # replay and save the outcome
  playback run session.json --failed-only result.json         # sessionReplay: retry only the failures
  playback replay-static session.json page.html                # replay against a static HTML snapshot
  playback inspect-cache healing-cache.json                    # inspect the learned-healing cache`,
			bold("Self-Healing Playback Core"), bold("EXAMPLES:")),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			flags.patternPath = viper.GetString("cache")
			flags.configPath = viper.GetString("config")
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a playback config YAML file")
	root.PersistentFlags().StringVar(&flags.patternPath, "cache", "healing-cache.json", "path to the healing pattern store file")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose progress output")
	root.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "debug logging")
	root.PersistentFlags().DurationVar(&flags.elementTO, "element-timeout", 0, "override element resolution timeout (0 = config default)")
	root.PersistentFlags().DurationVar(&flags.stepTO, "step-timeout", 0, "override per-step timeout (0 = config default)")

	viper.SetEnvPrefix("PLAYBACK")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("cache", root.PersistentFlags().Lookup("cache"))
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(newRunCommand())
	root.AddCommand(newReplayStaticCommand())
	root.AddCommand(newInspectCacheCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("playback (self-healing playback core) dev")
		},
	}
}

func printSummary(label string, elapsed time.Duration, stepsOK, stepsTotal, healed int) {
	status := green("completed")
	if stepsOK != stepsTotal {
		status = red("completed with failures")
	}
	fmt.Printf("\n%s %s in %s\n", bold(label), status, gray(elapsed.Round(time.Millisecond).String()))
	fmt.Printf("  %s: %d/%d\n", bold("steps passed"), stepsOK, stepsTotal)
	if healed > 0 {
		fmt.Printf("  %s: %d\n", bold("steps healed"), healed)
	}
}
