package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"linkreach/pkg/checkpoint"
	"linkreach/pkg/export"
	"linkreach/pkg/linkedin"
	"linkreach/pkg/scraper"
	"linkreach/pkg/ui"
	"linkreach/pkg/ui/tui"
)

var (
	scrapeMax          int
	scrapeDelay        time.Duration
	scrapeOutput       string
	scrapeFile         string
	scrapeFormat       string
	scrapeResume       bool
	scrapeForceRestart bool
	scrapeTUI          bool
	scrapeAccount      string

	filterDegrees   []int
	filterLocations []string
	filterCompanies []string
	filterMutual    int
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <profile-url>",
	Short: "Collect the followers of a LinkedIn profile into a CSV file",
	Long: `Collect the followers of a LinkedIn profile and export them as CSV.

Progress is checkpointed after every page. Press Ctrl+C (or q in --tui) to
stop early: everything collected so far is exported and the scrape can be
continued later with --resume.`,
	Example: `  # Collect up to 100 followers
  linkreach scrape https://www.linkedin.com/in/alice

  # Collect more, slower, into a specific file
  linkreach scrape alice --max 500 --delay 3s --output ./exports --file alice.csv

  # Only second degree connections in Berlin
  linkreach scrape alice --degree 2 --location Berlin

  # Continue an interrupted scrape
  linkreach scrape alice --resume`,
	Args: cobra.ExactArgs(1),
	Run:  runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	f := scrapeCmd.Flags()
	f.IntVarP(&scrapeMax, "max", "m", 0, "maximum profiles to collect (default from config)")
	f.DurationVar(&scrapeDelay, "delay", 0, "delay before each page request (default from config)")
	f.StringVarP(&scrapeOutput, "output", "o", "", "output directory (default from config)")
	f.StringVar(&scrapeFile, "file", export.DefaultFileName, "output file name")
	f.StringVar(&scrapeFormat, "format", "", "CSV format: legacy or rfc4180 (default from config)")
	f.BoolVar(&scrapeResume, "resume", false, "resume from the last checkpoint")
	f.BoolVar(&scrapeForceRestart, "force-restart", false, "discard an existing checkpoint")
	f.BoolVar(&scrapeTUI, "tui", false, "show a live dashboard")
	f.StringVarP(&scrapeAccount, "account", "a", "", "stored session account to use")

	f.IntSliceVar(&filterDegrees, "degree", nil, "only keep these connection degrees (1, 2, 3)")
	f.StringSliceVar(&filterLocations, "location", nil, "only keep profiles whose location contains one of these")
	f.StringSliceVar(&filterCompanies, "company", nil, "only keep profiles whose company or headline contains one of these")
	f.IntVar(&filterMutual, "min-mutual", 0, "only keep profiles with at least this many mutual connections")
}

func runScrape(cmd *cobra.Command, args []string) {
	rootURL, err := linkedin.NormalizeProfileURL(args[0])
	if err != nil {
		exitWithError("Invalid profile", err)
	}

	flags := map[string]interface{}{}
	if scrapeMax > 0 {
		flags["max-profiles"] = scrapeMax
	}
	if scrapeDelay > 0 {
		flags["delay"] = scrapeDelay
	}
	if scrapeTUI && logLevel == "" {
		// log lines would tear the dashboard
		flags["log-level"] = "error"
	}

	a := mustApp(flags)
	defer a.close()

	format, err := export.ParseFormat(a.cfg.Export.Format)
	if scrapeFormat != "" {
		format, err = export.ParseFormat(scrapeFormat)
	}
	if err != nil {
		exitWithError("Invalid export format", err)
	}
	outDir := a.cfg.Export.Directory
	if scrapeOutput != "" {
		outDir = scrapeOutput
	}
	exporter, err := export.NewManager(outDir, format)
	if err != nil {
		exitWithError("Failed to prepare output directory", err)
	}

	sigCtx, stop := signalContext(cmd.Context())
	defer stop()
	a.mustLogin(sigCtx, scrapeAccount)

	ckpt, err := checkpoint.NewManager("", rootURL)
	if err != nil {
		exitWithError("Failed to initialize checkpoint", err)
	}
	if scrapeForceRestart {
		if err := ckpt.Delete(); err != nil {
			exitWithError("Failed to discard checkpoint", err)
		}
	}

	cancel := scraper.NewCancelToken()
	opts := scraper.Options{
		MaxProfiles: a.cfg.Scraper.MaxProfiles,
		Delay:       a.cfg.Scraper.Delay,
		Cancel:      cancel,
		Filters:     buildFilters(),
	}

	cp, err := ckpt.Load()
	if err != nil {
		exitWithError("Failed to load checkpoint", err)
	}
	switch {
	case cp != nil && scrapeResume:
		opts.StartCursor = cp.NextCursor
		opts.Collected = cp.Profiles
		ui.PrintInfo("Resuming", fmt.Sprintf("%d profiles collected over %d pages", len(cp.Profiles), cp.Pages))
	case cp != nil:
		ui.PrintWarning("Found a checkpoint for this profile, starting over (use --resume to continue it)")
		fallthrough
	default:
		if cp, err = ckpt.Create(rootURL); err != nil {
			exitWithError("Failed to create checkpoint", err)
		}
	}

	// Ctrl+C stops the walk at the next page boundary and keeps what was collected
	go func() {
		<-sigCtx.Done()
		cancel.Cancel()
	}()

	var dashboard *tui.TUI
	if scrapeTUI {
		dashboard = tui.New(rootURL, opts.MaxProfiles, cancel.Cancel)
	} else {
		ui.PrintInfo("Profile", rootURL)
		ui.PrintInfo("Limit", fmt.Sprintf("%d profiles", opts.MaxProfiles))
	}

	opts.OnPage = func(p scraper.Page) {
		if err := ckpt.RecordPage(cp, p.Profiles, p.Cursor, p.TotalCount); err != nil {
			a.log.WithError(err).Warn("Failed to save checkpoint")
		}
		if dashboard != nil {
			dashboard.Page(p)
			return
		}
		total := "?"
		if p.TotalCount > 0 {
			total = fmt.Sprintf("%d", p.TotalCount)
		}
		fmt.Printf("\r%s page %d, %d/%s followers collected", ui.Green("[SCRAPING]"), p.Number, p.Collected, total)
	}

	// the scrape itself is not tied to the signal context so an interrupt
	// ends it through the cancel token with the partial result intact
	scrapeCtx := context.WithoutCancel(cmd.Context())
	var (
		res       *scraper.Result
		scrapeErr error
	)
	if dashboard != nil {
		go func() {
			r, err := a.scraper.Scrape(scrapeCtx, rootURL, opts)
			dashboard.Done(r, err)
		}()
		res, scrapeErr = dashboard.Run()
	} else {
		res, scrapeErr = a.scraper.Scrape(scrapeCtx, rootURL, opts)
		fmt.Println()
	}

	var se *scraper.ScrapeError
	if errors.As(scrapeErr, &se) {
		res = se.Partial
	}
	if res == nil {
		exitWithError("Scrape failed", scrapeErr)
	}

	path, err := exporter.Save(scrapeFile, res.Profiles)
	if err != nil {
		exitWithError("Failed to export profiles", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Exported %d profiles to %s", len(res.Profiles), path))
	switch {
	case scrapeErr != nil:
		ui.PrintError("Scrape stopped on an error", scrapeErr)
		fmt.Printf("Continue later with: linkreach scrape %s --resume\n", rootURL)
		os.Exit(1)
	case res.HasMore:
		if res.Cancelled {
			ui.PrintWarning("Scrape stopped early")
		}
		fmt.Printf("More followers are available. Continue with: linkreach scrape %s --resume\n", rootURL)
	default:
		if err := ckpt.Delete(); err != nil {
			a.log.WithError(err).Warn("Failed to remove checkpoint")
		}
	}
}

func buildFilters() *scraper.Filters {
	if len(filterDegrees) == 0 && len(filterLocations) == 0 && len(filterCompanies) == 0 && filterMutual == 0 {
		return nil
	}
	return &scraper.Filters{
		ConnectionDegrees:    filterDegrees,
		Locations:            filterLocations,
		Companies:            filterCompanies,
		MinMutualConnections: filterMutual,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
