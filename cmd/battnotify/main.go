package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/battnotify/pkg/client"
	"github.com/charlie0129/battnotify/pkg/monitor"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/battnotify.sock"
	configPath     = "/etc/battnotify.json"
)

var apiClient = client.NewClient(unixSocketPath)

var (
	gBasic        = "Basic:"
	gTelegram     = "Telegram:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gTelegram,
		gAdvanced,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: battnotify daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'battnotify daemon' (usually as root) and try again.")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or start the daemon with the '--always-allow-non-root-access' flag to grant permissions to your user")
	case errors.Is(err, monitor.ErrMissingCredentials):
		fmt.Fprintln(os.Stderr, "\nError: Telegram bot token and chat id are both required")
	}
}

func main() {
	// battnotify wakes up a few times an hour and does not need many threads.
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(2)
	}

	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battnotify",
		Short: "battnotify alerts you when the battery is about to run out",
		Long: `battnotify alerts you when the battery is about to run out.

A daemon checks the battery level periodically. When it is low it plays a
sound, shows a desktop notification and sends a Telegram message, each of
which works independently of the others.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			// The daemon has nothing to compare against.
			if cmd.Name() == "daemon" || cmd.Name() == "version" {
				return nil
			}

			if clientVersion, daemonVersion, err := getVersion(); err == nil {
				if daemonVersion != clientVersion {
					logrus.WithFields(logrus.Fields{
						"clientVersion": clientVersion,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. battnotify may not work as expected. Restart the daemon with the same binary as the client.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("battnotify daemon is too old to report its version.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "credentials file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "battnotify daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewCheckCommand(),
		NewHistoryCommand(),
		NewJobsCommand(),
		NewTelegramCommand(),
		NewTestCommand(),
		NewWatchCommand(),
	)

	return cmd
}
