package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cuemby/scontrol/pkg/client"
	"github.com/cuemby/scontrol/pkg/config"
	"github.com/cuemby/scontrol/pkg/console"
	"github.com/cuemby/scontrol/pkg/log"
	"github.com/spf13/cobra"
)

// Version is set via ldflags during build
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(console.ExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "scontrol [<OPTION>] [<COMMAND>]",
	Short: "scontrol - administrative console for the slurm controller",
	Long: `scontrol queries and updates the state of a slurm cluster: jobs, nodes,
partitions, job steps and configuration.

With a command on the command line it runs that one command and exits.
Otherwise it reads commands interactively until "exit" or end of input.`,
	// Command words such as update specifications must reach the console
	// untouched, so cobra never parses flags here.
	DisableFlagParsing: true,
	SilenceErrors:      true,
	SilenceUsage:       true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole(cmd.Context(), args)
	},
}

// startup is the result of scanning process arguments for options
type startup struct {
	verbosity console.Verbosity
	help      bool
	command   []string
}

// parseStartup separates options from command words. Options may appear
// anywhere; the last verbosity option wins.
func parseStartup(args []string) startup {
	st := startup{verbosity: console.Normal}
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "-h"):
			st.help = true
		case arg == "-q", arg == "quiet":
			st.verbosity = console.Quiet
		case arg == "-v", arg == "verbose":
			st.verbosity = console.Verbose
		default:
			st.command = append(st.command, arg)
		}
	}
	return st
}

func runConsole(ctx context.Context, args []string) error {
	name := filepath.Base(os.Args[0])
	st := parseStartup(args)
	if st.help {
		console.Usage(os.Stdout, name)
		return nil
	}

	cfg, err := config.LoadConsole(config.ConsolePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return err
	}
	level := log.ParseLevel(cfg.Log.Level, log.WarnLevel)
	if st.verbosity == console.Verbose && level != log.DebugLevel {
		level = log.InfoLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: cfg.Log.JSON})

	ctl, err := client.NewClient(cfg.Controller, cfg.Timeout.Duration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return err
	}
	defer ctl.Close()

	session := console.NewSession(ctl, console.Options{
		Name:      name,
		Version:   Version,
		Verbosity: st.verbosity,
		SlurmConf: cfg.SlurmConf,
	})

	if len(st.command) > 0 {
		return session.ExecuteArgs(ctx, st.command)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	reader, err := console.NewLineReader(cfg.Prompt, cfg.HistoryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return err
	}
	defer reader.Close()
	return session.Run(ctx, reader)
}
