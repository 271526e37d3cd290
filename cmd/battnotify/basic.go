package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/charlie0129/battnotify/pkg/scheduler"
	"github.com/charlie0129/battnotify/pkg/version"
)

func getVersion() (clientVersion, daemonVersion string, err error) {
	daemonVersion, err = apiClient.GetVersion()
	if err != nil {
		return version.Version, "", err
	}
	return version.Version, daemonVersion, nil
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Short:   "Check the battery now",
		GroupID: gBasic,
		Long: `Check the battery now instead of waiting for the next scheduled check.

If the battery is low, every alert channel is triggered, exactly like a scheduled check.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := apiClient.Check()
			if err != nil {
				return err
			}

			printReport(cmd, *report)
			return nil
		},
	}
}

func NewHistoryCommand() *cobra.Command {
	since := ""

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show recent battery checks",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if since != "" {
				if _, err := parseDurationArg(since); err != nil {
					return err
				}
			}

			reports, err := apiClient.GetHistory(since)
			if err != nil {
				return err
			}

			if len(reports) == 0 {
				cmd.Println("No checks recorded yet.")
				return nil
			}

			for _, r := range reports {
				printReport(cmd, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only show checks within this duration, e.g. 1h")

	return cmd
}

func printJob(cmd *cobra.Command, j scheduler.JobInfo) {
	cmd.Println(bold("%s", j.Name))
	cmd.Printf("  Every: %s\n", j.Interval)
	cmd.Printf("  Running: %s\n", bool2Text(j.Running))
	if !j.NextRun.IsZero() {
		cmd.Printf("  Next run: %s (in %s)\n", j.NextRun.Format(time.DateTime), time.Until(j.NextRun).Round(time.Second))
	}
	if !j.LastRun.IsZero() {
		cmd.Printf("  Last run: %s\n", j.LastRun.Format(time.DateTime))
	}
	cmd.Printf("  Runs: %d, skipped: %d\n", j.Runs, j.Skipped)
}

func NewJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Short:   "Show scheduled jobs",
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs, err := apiClient.GetJobs()
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				cmd.Println("No jobs scheduled.")
				return nil
			}

			for _, j := range jobs {
				printJob(cmd, j)
			}
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "skip NAME",
			Short: "Skip the next run of a job",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				info, err := apiClient.SkipJob(args[0])
				if err != nil {
					return err
				}
				printJob(cmd, *info)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cancel NAME",
			Short: "Stop a job",
			Long: `Stop a job.

The battery check is scheduled again when telegram credentials are saved or the daemon restarts.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				msg, err := apiClient.CancelJob(args[0])
				if err != nil {
					return err
				}
				cmd.Println(msg)
				return nil
			},
		},
	)

	return cmd
}

func parseDurationArg(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %v", s, err)
	}
	return d, nil
}
