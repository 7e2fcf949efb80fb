package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"linkreach/pkg/campaign"
	"linkreach/pkg/models"
	"linkreach/pkg/store"
	"linkreach/pkg/ui"
)

var (
	createName         string
	createType         string
	createTargets      []string
	createTargetsFile  string
	createTemplate     string
	createTemplateFile string
	createDailyLimit   int

	listStatuses []string
	resultsLimit int
	showLimit    int
)

// campaignCmd represents the campaign command
var campaignCmd = &cobra.Command{
	Use:     "campaign",
	Aliases: []string{"campaigns"},
	Short:   "Create and manage outreach campaigns",
}

var campaignCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an active campaign",
	Long: `Create a connection, message or scrape campaign.

Templates may use {firstName}, {lastName}, {name}, {company}, {headline},
{location} and {myName}. Unknown variables are sent as written.`,
	Example: `  # Connection requests with a note
  linkreach campaign create --name "Spring hiring" --type connection \
    --targets-file prospects.txt --template "Hi {firstName}, I'm {myName}..."

  # Scrape the followers of two profiles
  linkreach campaign create --name "Seeds" --type scrape \
    --targets https://www.linkedin.com/in/alice,https://www.linkedin.com/in/bob`,
	Args: cobra.NoArgs,
	Run:  runCampaignCreate,
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	Run:   runCampaignList,
}

var campaignShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show campaign progress and recent results",
	Args:  cobra.ExactArgs(1),
	Run:   runCampaignShow,
}

var campaignPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause an active campaign",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		changeStatus(cmd, args[0], "pause")
	},
}

var campaignResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused campaign",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		changeStatus(cmd, args[0], "resume")
	},
}

var campaignToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Pause an active campaign or resume a paused one",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		changeStatus(cmd, args[0], "toggle")
	},
}

var campaignDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a campaign; its results are kept",
	Args:  cobra.ExactArgs(1),
	Run:   runCampaignDelete,
}

var campaignAdvanceCmd = &cobra.Command{
	Use:   "advance <id>",
	Short: "Process the next targets of a campaign now",
	Long: `Process the next unprocessed targets of an active campaign until today's
limit is used up, the targets run out, or LinkedIn stops it.

Results are printed as they are recorded. Press Ctrl+C to stop after the
current action.`,
	Args: cobra.ExactArgs(1),
	Run:  runCampaignAdvance,
}

var campaignResultsCmd = &cobra.Command{
	Use:   "results <id>",
	Short: "List recorded action results, newest first",
	Args:  cobra.ExactArgs(1),
	Run:   runCampaignResults,
}

func init() {
	rootCmd.AddCommand(campaignCmd)
	campaignCmd.AddCommand(
		campaignCreateCmd,
		campaignListCmd,
		campaignShowCmd,
		campaignPauseCmd,
		campaignResumeCmd,
		campaignToggleCmd,
		campaignDeleteCmd,
		campaignAdvanceCmd,
		campaignResultsCmd,
	)

	f := campaignCreateCmd.Flags()
	f.StringVarP(&createName, "name", "n", "", "campaign name")
	f.StringVarP(&createType, "type", "t", "connection", "campaign type (connection, message, scrape)")
	f.StringSliceVar(&createTargets, "targets", nil, "comma separated profile URLs")
	f.StringVar(&createTargetsFile, "targets-file", "", "file with profile URLs, one per line or comma separated")
	f.StringVar(&createTemplate, "template", "", "connection note or message template")
	f.StringVar(&createTemplateFile, "template-file", "", "read the template from a file")
	f.IntVar(&createDailyLimit, "daily-limit", 0, "actions per day (default from config)")
	_ = campaignCreateCmd.MarkFlagRequired("name")

	campaignListCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "only list these statuses (active, paused, completed, failed)")
	campaignResultsCmd.Flags().IntVarP(&resultsLimit, "limit", "l", 20, "number of results to show (0 for all)")
	campaignShowCmd.Flags().IntVarP(&showLimit, "limit", "l", 5, "number of recent results to show")
}

func runCampaignCreate(cmd *cobra.Command, args []string) {
	targets := append([]string(nil), createTargets...)
	if createTargetsFile != "" {
		data, err := os.ReadFile(createTargetsFile)
		if err != nil {
			exitWithError("Failed to read targets file", err)
		}
		targets = append(targets, campaign.ParseTargets(string(data))...)
	}

	tmpl := createTemplate
	if createTemplateFile != "" {
		data, err := os.ReadFile(createTemplateFile)
		if err != nil {
			exitWithError("Failed to read template file", err)
		}
		tmpl = string(data)
	}

	a := mustApp(nil)
	defer a.close()

	c, err := a.engine.Create(cmd.Context(), campaign.CreateRequest{
		Name:            createName,
		Type:            models.CampaignType(strings.ToLower(createType)),
		Targets:         targets,
		MessageTemplate: tmpl,
		DailyLimit:      createDailyLimit,
	})
	if err != nil {
		exitWithError("Failed to create campaign", err)
	}

	ui.PrintSuccess("Campaign created")
	printCampaign(c)
	fmt.Printf("\nRun it now with: linkreach campaign advance %s\n", c.ID)
}

func runCampaignList(cmd *cobra.Command, args []string) {
	a := mustApp(nil)
	defer a.close()

	filter := store.CampaignFilter{}
	for _, s := range listStatuses {
		filter.Statuses = append(filter.Statuses, models.CampaignStatus(strings.ToLower(s)))
	}

	campaigns, err := a.engine.List(cmd.Context(), filter)
	if err != nil {
		exitWithError("Failed to list campaigns", err)
	}
	if len(campaigns) == 0 {
		ui.PrintInfo("No campaigns", "Use 'linkreach campaign create' to add one")
		return
	}

	fmt.Printf("%-36s  %-24s  %-10s  %-9s  %9s  %7s\n", "ID", "NAME", "TYPE", "STATUS", "PROGRESS", "SUCCESS")
	for _, c := range campaigns {
		fmt.Printf("%-36s  %-24s  %-10s  %-9s  %4d/%-4d  %6.0f%%\n",
			c.ID,
			truncate(c.Name, 24),
			c.Type,
			ui.StatusColor(string(c.Status))+strings.Repeat(" ", max(0, 9-len(c.Status))),
			c.TotalProcessed,
			len(c.Targets),
			c.SuccessRate(),
		)
	}
}

func runCampaignShow(cmd *cobra.Command, args []string) {
	a := mustApp(nil)
	defer a.close()
	ctx := cmd.Context()

	c, err := a.engine.Get(ctx, args[0])
	if err != nil {
		exitWithError("Failed to load campaign", err)
	}
	printCampaign(c)

	results, err := a.engine.Results(ctx, c.ID, showLimit)
	if err != nil {
		exitWithError("Failed to load results", err)
	}
	if len(results) > 0 {
		fmt.Println()
		ui.PrintHighlight("Recent results")
		for _, r := range results {
			printResult(r)
		}
	}
}

func printCampaign(c *models.Campaign) {
	ui.PrintInfo("ID", c.ID)
	ui.PrintInfo("Name", c.Name)
	ui.PrintInfo("Type", string(c.Type))
	fmt.Printf("%s: %s\n", ui.Cyan("Status"), ui.StatusColor(string(c.Status)))
	if c.FailureReason != "" {
		ui.PrintInfo("Failure", c.FailureReason)
	}
	ui.PrintInfo("Daily limit", fmt.Sprintf("%d", c.DailyLimit))
	ui.PrintInfo("Progress", fmt.Sprintf("[%s] %d/%d (%.0f%%)", ui.Bar(c.Progress(), 20), c.TotalProcessed, len(c.Targets), c.Progress()))
	ui.PrintInfo("Success rate", fmt.Sprintf("%.0f%% (%d successful)", c.SuccessRate(), c.TotalSuccessful))
	if c.MessageTemplate != "" {
		ui.PrintInfo("Template", truncate(strings.ReplaceAll(c.MessageTemplate, "\n", " "), 60))
	}
	ui.PrintInfo("Created", c.CreatedAt.Local().Format("2006-01-02 15:04"))
}

func printResult(r *models.ActionResult) {
	line := fmt.Sprintf("  #%-4d %s  %-8s  %s", r.Sequence, r.CreatedAt.Local().Format("01-02 15:04:05"), ui.StatusColor(string(r.Status)), r.ProfileURL)
	if r.ErrorKind != "" {
		line += ui.Dim(" (" + r.ErrorKind + ")")
	}
	fmt.Println(line)
}

func changeStatus(cmd *cobra.Command, id, action string) {
	a := mustApp(nil)
	defer a.close()
	ctx := cmd.Context()

	var (
		c   *models.Campaign
		err error
	)
	switch action {
	case "pause":
		c, err = a.engine.Pause(ctx, id)
	case "resume":
		c, err = a.engine.Resume(ctx, id)
	default:
		c, err = a.engine.Toggle(ctx, id)
	}
	if err != nil {
		exitWithError("Failed to "+action+" campaign", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Campaign %s is %s", c.Name, c.Status))
}

func runCampaignDelete(cmd *cobra.Command, args []string) {
	if !confirm(fmt.Sprintf("Delete campaign %s? (y/N): ", args[0]), false) {
		return
	}

	a := mustApp(nil)
	defer a.close()
	if err := a.engine.Delete(cmd.Context(), args[0]); err != nil {
		exitWithError("Failed to delete campaign", err)
	}
	ui.PrintSuccess("Campaign deleted")
}

func runCampaignAdvance(cmd *cobra.Command, args []string) {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a := mustApp(nil)
	defer a.close()
	a.mustLogin(ctx, "")

	id := args[0]
	unsubscribe := a.engine.Subscribe(id, printResult)
	defer unsubscribe()

	report, err := a.engine.Advance(ctx, id)
	if err != nil {
		exitWithError("Failed to advance campaign", err)
	}
	printReport(report)
}

func printReport(r *campaign.AdvanceReport) {
	if r.Skipped {
		ui.PrintWarning(fmt.Sprintf("Campaign is %s, nothing to do", r.Status))
		return
	}
	fmt.Println()
	ui.PrintInfo("Attempted", fmt.Sprintf("%d (%d succeeded, %d failed)", r.Attempted, r.Succeeded, r.Failed))
	if r.SkippedTargets > 0 {
		ui.PrintInfo("Skipped", fmt.Sprintf("%d targets", r.SkippedTargets))
	}
	if r.Discovered > 0 {
		ui.PrintInfo("Discovered", fmt.Sprintf("%d profiles", r.Discovered))
	}
	fmt.Printf("%s: %s\n", ui.Cyan("Status"), ui.StatusColor(string(r.Status)))
	switch {
	case r.QuotaExhausted:
		ui.PrintWarning("Daily limit reached, next actions after " + r.ResumeAt.Local().Format("2006-01-02 15:04"))
	case r.StopKind != "":
		ui.PrintWarning("Stopped early", r.StopKind)
	}
}

func runCampaignResults(cmd *cobra.Command, args []string) {
	a := mustApp(nil)
	defer a.close()

	results, err := a.engine.Results(cmd.Context(), args[0], resultsLimit)
	if err != nil {
		exitWithError("Failed to load results", err)
	}
	if len(results) == 0 {
		ui.PrintInfo("No results", "the campaign has not acted yet")
		return
	}
	for _, r := range results {
		printResult(r)
		if r.Response != "" && r.ActionType == models.CampaignTypeScrape {
			fmt.Println("        " + ui.Dim(r.Response))
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
