package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"linkreach/pkg/auth"
	errs "linkreach/pkg/errors"
	"linkreach/pkg/store"
	"linkreach/pkg/ui"
)

var (
	authAccount string
	authYes     bool
	authVerify  bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the LinkedIn session",
	Long: `Manage the LinkedIn session cookie (li_at) linkreach acts with.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variable LINKREACH_SESSION_TOKEN (read only)

Never share your session cookie or config files!`,
}

// connectCmd represents the auth connect command
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Validate and store a LinkedIn session cookie",
	Long: `Validate a LinkedIn li_at session cookie and store it securely.

The cookie is checked against LinkedIn before it is stored. You will be
prompted for it with input hidden.`,
	Example: `  # Interactive connect
  linkreach auth connect

  # Store under a named account
  linkreach auth connect --account work`,
	Args: cobra.NoArgs,
	Run:  runConnect,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored sessions",
	Run:   runStatus,
}

// disconnectCmd represents the auth disconnect command
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove a stored session",
	Long: `Remove a stored LinkedIn session from the keychain, the encrypted file
and the account registry.`,
	Args: cobra.NoArgs,
	Run:  runDisconnect,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how to copy the li_at cookie from your browser",
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteCookieGuide(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(connectCmd, statusCmd, disconnectCmd, guideCmd)

	authCmd.PersistentFlags().StringVarP(&authAccount, "account", "a", "", "account label (default \"default\")")
	disconnectCmd.Flags().BoolVarP(&authYes, "yes", "y", false, "do not ask for confirmation")
	statusCmd.Flags().BoolVar(&authVerify, "verify", false, "check the session against LinkedIn")
}

func runConnect(cmd *cobra.Command, args []string) {
	a := mustApp(nil)
	defer a.close()

	account := authAccount
	if account == "" {
		account = auth.DefaultAccount
	}

	auth.WriteQuickGuide(os.Stdout)
	fmt.Println()

	var token string
	for {
		fmt.Print("li_at cookie value: ")
		input, err := readSecret()
		if err != nil {
			exitWithError("Failed to read session cookie", err)
		}
		token = input

		if err := auth.CheckShape(token); err != nil {
			fmt.Println("\nThat doesn't look like a li_at cookie value.")
			fmt.Println("It is a long string copied from the li_at row of linkedin.com cookies.")
			if !confirm("Try again? (Y/n): ", true) {
				os.Exit(1)
			}
			continue
		}
		break
	}

	fmt.Println("\nChecking the session with LinkedIn...")
	if _, err := a.validator.Connect(cmd.Context(), account, token); err != nil {
		switch {
		case errors.Is(err, errs.ErrCredentialRejected):
			exitWithError("LinkedIn rejected this session", errors.New("sign in again in your browser and copy a fresh li_at value"))
		case errors.Is(err, errs.ErrValidatorUnavailable):
			exitWithError("Could not reach LinkedIn to check the session", err)
		default:
			exitWithError("Failed to store session", err)
		}
	}

	ui.PrintSuccess(fmt.Sprintf("Session stored for account %s (%s)", account, auth.MaskToken(token)))
	fmt.Println("\nYour session is stored in:")
	if a.creds.UsesKeyring() {
		fmt.Println("  - System keychain (primary)")
	}
	fmt.Println("  - Encrypted file (backup)")
	fmt.Println("\nNext steps:")
	fmt.Println("  $ linkreach campaign create --help")
	fmt.Println("  $ linkreach scrape https://www.linkedin.com/in/<profile>")
}

func runStatus(cmd *cobra.Command, args []string) {
	a := mustApp(nil)
	defer a.close()
	ctx := cmd.Context()

	creds, err := a.creds.List()
	if err != nil {
		exitWithError("Failed to list sessions", err)
	}
	if len(creds) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'linkreach auth connect' to add one")
		return
	}

	ui.PrintHighlight("Stored Sessions")
	fmt.Println()
	for i, cred := range creds {
		if authAccount != "" && cred.Account != authAccount {
			continue
		}
		sanitized := auth.Sanitize(cred)
		fmt.Printf("%d. Account: %s\n", i+1, sanitized.Account)
		fmt.Printf("   Session: %s\n", sanitized.SessionToken)
		if !sanitized.IssuedAt.IsZero() {
			fmt.Printf("   Connected: %s\n", sanitized.IssuedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("   Registry: %s\n", registryState(ctx, a.store, cred.Account))
		if authVerify {
			if err := a.validator.Validate(ctx, cred.SessionToken); err != nil {
				fmt.Printf("   LinkedIn: %s\n", ui.Red(err.Error()))
			} else {
				fmt.Printf("   LinkedIn: %s\n", ui.Green("accepted"))
			}
		}
		fmt.Println()
	}
}

func registryState(ctx context.Context, st store.Store, account string) string {
	acct, err := st.GetAccount(ctx, account)
	switch {
	case errors.Is(err, store.ErrAccountNotFound):
		return ui.Dim("not registered")
	case err != nil:
		return ui.Red(err.Error())
	case acct.IsActive:
		return ui.Green("active")
	default:
		return ui.Yellow("inactive (session was rejected)")
	}
}

func runDisconnect(cmd *cobra.Command, args []string) {
	a := mustApp(nil)
	defer a.close()

	account := authAccount
	if account == "" {
		account = auth.DefaultAccount
	}
	if !authYes && !confirm(fmt.Sprintf("Remove session for account '%s'? (y/N): ", account), false) {
		return
	}

	if err := a.validator.Clear(cmd.Context(), account); err != nil {
		exitWithError("Failed to remove session", err)
	}
	ui.PrintSuccess("Session removed: " + account)
}

var stdin = bufio.NewReader(os.Stdin)

// confirm asks a yes/no question; def is the answer for an empty line
func confirm(prompt string, def bool) bool {
	fmt.Print(prompt)
	input, _ := stdin.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return def
	}
	return strings.HasPrefix(input, "y")
}

// readSecret reads a line from stdin without echoing when it is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := stdin.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
