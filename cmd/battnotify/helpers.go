package main

import (
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battnotify/pkg/alert"
	"github.com/charlie0129/battnotify/pkg/battery"
	"github.com/charlie0129/battnotify/pkg/monitor"
)

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func percentLabel(p int) string {
	if p == battery.Unknown {
		return "--%"
	}
	return bold("%d%%", p)
}

func outcomeText(o alert.Outcome) string {
	switch {
	case o.Skipped:
		return color.New(color.Faint).Sprint("skipped")
	case o.Success:
		return color.GreenString("delivered") + " (" + o.Duration.Round(time.Millisecond).String() + ")"
	default:
		return color.RedString("failed: %s", o.Error)
	}
}

func printOutcomes(cmd *cobra.Command, outcomes []alert.Outcome) {
	for _, o := range outcomes {
		cmd.Printf("    %s: %s\n", o.Channel, outcomeText(o))
	}
}

func printReport(cmd *cobra.Command, r monitor.CycleReport) {
	cmd.Printf("%s  %s", r.StartedAt.Local().Format(time.DateTime), percentLabel(r.Percentage))

	switch {
	case r.ReadError != "":
		cmd.Printf("  %s\n", color.YellowString("battery unreadable: %s", r.ReadError))
	case r.Alerted():
		failed := alert.Failed(r.Outcomes)
		if failed > 0 {
			cmd.Printf("  %s\n", color.RedString("low, alerted (%d of %d channels failed)", failed, len(r.Outcomes)))
		} else {
			cmd.Printf("  %s\n", color.RedString("low, alerted"))
		}
		printOutcomes(cmd, r.Outcomes)
	case r.Suppressed:
		cmd.Printf("  %s\n", color.YellowString("low, alert suppressed"))
	default:
		cmd.Printf("  %s\n", color.GreenString("ok"))
	}
}
