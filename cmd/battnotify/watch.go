package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battnotify/pkg/events"
	"github.com/charlie0129/battnotify/pkg/monitor"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Aliases: []string{"events"},
		Short:   "Follow battery checks as they happen",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Fail fast when the daemon is unreachable.
			if _, _, err := getVersion(); err != nil {
				return err
			}

			for ev := range apiClient.SubscribeEvents(ctx) {
				logrus.WithFields(logrus.Fields{
					"event": ev.Name,
					"data":  string(ev.Data),
				}).Debug("new event")

				switch ev.Name {
				case events.CycleCompleted:
					report, err := events.DecodeAs[monitor.CycleReport](ev)
					if err != nil {
						logrus.WithError(err).Errorf("failed to decode %s event", ev.Name)
						continue
					}
					printReport(cmd, report)
				case events.TestCompleted:
					res, err := events.DecodeAs[monitor.TestResult](ev)
					if err != nil {
						logrus.WithError(err).Errorf("failed to decode %s event", ev.Name)
						continue
					}
					cmd.Println(bold("Test alert sent:"))
					printOutcomes(cmd, res.Outcomes)
				case events.CredentialsChanged:
					payload, err := events.DecodeAs[events.CredentialsChangedEvent](ev)
					if err != nil {
						logrus.WithError(err).Errorf("failed to decode %s event", ev.Name)
						continue
					}
					cmd.Printf("Telegram credentials changed, configured: %s\n", bool2Text(payload.Configured))
				}
			}

			if ctx.Err() == nil {
				logrus.Warn("daemon closed the event stream")
			}
			return nil
		},
	}
}
