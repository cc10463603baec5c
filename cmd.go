package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cliOpts struct {
	channel  string
	room     string
	httpPort uint16
	verbose  bool
}

func newCmd() *cobra.Command {
	opts := &cliOpts{}

	cmd := &cobra.Command{
		Use:   "quizsync",
		Short: "Keeps one music-quiz game session in sync and serves it to local consumers.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.room != "" && opts.channel == "" {
				return errRoomWithoutChannel
			}
			return run(cmd.Context(), opts, cmd.Flags().Changed("http-port"))
		},
	}

	bindFlags(cmd.Flags(), opts)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func bindFlags(fs *pflag.FlagSet, opts *cliOpts) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&opts.channel, "channel", "c", "", "channel to enter on start")
	fs.StringVarP(&opts.room, "room", "r", "", "game room to enter on start (needs --channel)")
	fs.Uint16VarP(&opts.httpPort, "http-port", "p", 0, "HTTP port, overrides HTTP_SERVER_PORT")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
}
