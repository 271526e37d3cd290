package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battnotify/pkg/client"
	"github.com/charlie0129/battnotify/pkg/monitor"
	"github.com/charlie0129/battnotify/pkg/scheduler"
	"github.com/charlie0129/battnotify/pkg/types"
)

type statusData struct {
	Battery *types.BatteryStatus  `json:"battery"`
	Config  *types.ConfigResponse `json:"config"`
	// Job is nil when the battery check is not scheduled.
	Job *scheduler.JobInfo `json:"job,omitempty"`
	// LastCheck is nil before the first check.
	LastCheck *monitor.CycleReport `json:"lastCheck,omitempty"`
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	bat, err := apiClient.GetBattery()
	if err != nil {
		return nil, fmt.Errorf("failed to get battery status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	data := &statusData{Battery: bat, Config: conf}

	data.Job, err = apiClient.GetJob(conf.JobName)
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		return nil, fmt.Errorf("failed to get job %s: %w", conf.JobName, err)
	}

	data.LastCheck, err = apiClient.GetLastCycle()
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		return nil, fmt.Errorf("failed to get last check: %w", err)
	}

	return data, nil
}

func NewStatusCommand() *cobra.Command {
	asJSON := false

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of battnotify",
		Long:    `Get the battery level, alert configuration and the result of the last check.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.MarshalIndent(data, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(b))
				return nil
			}

			// Battery.
			cmd.Println(bold("Battery status:"))
			cmd.Printf("  Current charge: %s\n", bold("%s", data.Battery.Label()))
			if data.Battery.Known {
				low := color.GreenString("no")
				if data.Battery.Low {
					low = color.RedString("yes")
				}
				cmd.Printf("  Low: %s\n", bold("%s", low))
			} else if data.Battery.Error != "" {
				cmd.Printf("  %s\n", color.YellowString("Battery level unavailable: %s", data.Battery.Error))
			}
			if data.Battery.State != "" {
				cmd.Printf("  State: %s\n", bold("%s", data.Battery.State))
			}

			cmd.Println()

			// Alerts.
			cmd.Println(bold("Alert configuration:"))
			cmd.Printf("  Alert when charge is within: %s\n", bold("%s", data.Config.Band.String()))
			if data.Config.RepeatAfterCycles > 0 {
				cmd.Printf("  Repeat alerts: %s\n", bold("after %d checks", data.Config.RepeatAfterCycles))
			} else {
				cmd.Printf("  Repeat alerts: %s\n", bold("on every check"))
			}
			cmd.Printf("  Channels: %s\n", bold("%v", data.Config.Channels))
			if j := data.Job; j != nil {
				cmd.Printf("  Check every: %s\n", bold("%s", j.Interval))
				if !j.NextRun.IsZero() {
					cmd.Printf("  Next check: %s\n", bold("%s", j.NextRun.Local().Format(time.DateTime)))
				}
			} else {
				cmd.Printf("  Scheduled: %s\n", bool2Text(false))
			}
			if at := data.Config.LastAlertedAt; at != nil {
				cmd.Printf("  Last alert: %s\n", bold("%s", at.Local().Format(time.DateTime)))
			}

			cmd.Println()

			// Telegram.
			cmd.Println(bold("Telegram:"))
			cmd.Printf("  Configured: %s\n", bool2Text(data.Config.TelegramConfigured))
			if data.Config.Telegram.Token != "" {
				cmd.Printf("  Bot token: %s\n", data.Config.Telegram.Token)
			}
			if data.Config.Telegram.ChatID != "" {
				cmd.Printf("  Chat id: %s\n", data.Config.Telegram.ChatID)
			}

			if data.LastCheck != nil {
				cmd.Println()
				cmd.Println(bold("Last check:"))
				cmd.Print("  ")
				printReport(cmd, *data.LastCheck)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print status as JSON")

	return cmd
}
