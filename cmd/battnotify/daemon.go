package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battnotify/pkg/daemon"
	"github.com/charlie0129/battnotify/pkg/version"
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	opts := daemon.Options{EnvFile: ".env"}

	cmd := &cobra.Command{
		Use:     "daemon",
		Short:   "Run battnotify daemon in the foreground",
		GroupID: gAdvanced,
		Long: `Run battnotify daemon in the foreground.

The daemon checks the battery level periodically and serves the API used by
the other commands on a unix socket.

Settings are read from --settings (YAML), then from BATTNOTIFY_* environment
variables, e.g. BATTNOTIFY_ALERT_UPPER=25. A .env file in the working
directory is loaded first if present.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("battnotify daemon starting")

			opts.ConfigPath = configPath
			opts.UnixSocketPath = unixSocketPath
			return daemon.Run(opts)
		},
	}

	f := cmd.Flags()

	f.StringVar(&opts.SettingsPath, "settings", "", "settings file path (default: battnotify.yaml in /etc or the working directory)")
	f.StringVar(&opts.EnvFile, "env-file", opts.EnvFile, "environment file to load before reading settings")
	f.BoolVar(&opts.AllowNonRoot, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")

	return cmd
}
