package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"linkreach/internal/runner"
	"linkreach/pkg/ui"
)

var (
	runOnce     bool
	runWorkers  int
	runSchedule string
	runNoWait   bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Advance all active campaigns on a schedule",
	Long: `Advance every active campaign, then keep doing so on the configured
schedule until interrupted.

The schedule accepts cron expressions ("0 9 * * 1-5") and descriptors
("@every 15m", "@hourly"). Each campaign still respects its daily limit.`,
	Example: `  # Run with the configured schedule
  linkreach run

  # Advance everything once and exit
  linkreach run --once

  # Weekday mornings with three workers
  linkreach run --schedule "0 9 * * 1-5" --workers 3`,
	Args: cobra.NoArgs,
	Run:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runOnce, "once", false, "advance active campaigns once and exit")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "campaigns advanced in parallel (default from config)")
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "cron schedule (default from config)")
	runCmd.Flags().BoolVar(&runNoWait, "no-immediate", false, "wait for the first scheduled time instead of running at start")
}

func runRun(cmd *cobra.Command, args []string) {
	flags := map[string]interface{}{}
	if runWorkers > 0 {
		flags["workers"] = runWorkers
	}

	a := mustApp(flags)
	defer a.close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	a.mustLogin(ctx, "")

	pool := runner.NewPool(a.cfg.Engine.Workers, a.engine, a.log)

	if runOnce {
		results, err := pool.RunOnce(ctx)
		printRunResults(results)
		if err != nil {
			exitWithError("Run interrupted", err)
		}
		return
	}

	schedule := a.cfg.Engine.Schedule
	if runSchedule != "" {
		schedule = runSchedule
	}
	sched, err := runner.NewScheduler(schedule, pool, a.log)
	if err != nil {
		exitWithError("Invalid schedule", err)
	}
	sched.OnRun = func(results []runner.Result, err error) {
		printRunResults(results)
		if next := sched.Next(); next != "" {
			ui.PrintInfo("Next run", next)
		}
	}

	if !quiet {
		ui.PrintBanner()
	}
	ui.PrintInfo("Schedule", ui.Bold(schedule))
	ui.PrintInfo("Workers", fmt.Sprintf("%d", pool.NumWorkers()))
	fmt.Println(ui.Dim("Press Ctrl+C to stop"))

	if err := sched.Run(ctx, !runNoWait); err != nil {
		exitWithError("Scheduler failed", err)
	}
	ui.PrintSuccess("Stopped")
}

func printRunResults(results []runner.Result) {
	fmt.Printf("\n%s %s\n", ui.Magenta("[RUN]"), time.Now().Format("2006-01-02 15:04:05"))
	if len(results) == 0 {
		fmt.Println("  No active campaigns")
		return
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  %-24s %s\n", truncate(r.Name, 24), ui.Red(r.Err.Error()))
			continue
		}
		rep := r.Report
		note := ""
		switch {
		case rep.QuotaExhausted:
			note = ui.Dim(" daily limit reached")
		case rep.StopKind != "":
			note = ui.Yellow(" stopped: " + string(rep.StopKind))
		}
		fmt.Printf("  %-24s %d/%d succeeded, %s%s\n",
			truncate(r.Name, 24), rep.Succeeded, rep.Attempted, ui.StatusColor(string(rep.Status)), note)
	}
}
