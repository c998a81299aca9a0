// Command labelctl validates, renders and prints label templates from the
// command line.
package main

import (
	"fmt"
	"os"

	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"
)

// Version is set during build via ldflags
var Version = "dev"

var logFlags = logger.Flags{Level: "info", LogToStderr: true}

func main() {
	root := &cobra.Command{
		Use:           "labelctl",
		Short:         "Validate, render and print label templates",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Configure(logFlags)
		},
	}

	flags := root.PersistentFlags()
	flags.CountVarP(&logFlags.LevelCount, "loglevel", "v", "Increase logging level")
	flags.StringVar(&logFlags.Level, "log-level", "info", "Set the default log level")
	flags.BoolVar(&logFlags.JsonLogs, "json-logs", false, "Print logs in json format to stderr")

	root.AddCommand(
		validateCmd(),
		renderCmd(),
		previewCmd(),
		gridCmd(),
		pdfCmd(),
		printCmd(),
		portsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
