package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide prints step-by-step instructions for copying the li_at cookie
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"LINKEDIN SESSION COOKIE GUIDE",
		rule,
		"",
		"linkreach acts on your behalf with your LinkedIn session cookie (li_at).",
		"",
		"STEP 1: Sign in at https://www.linkedin.com and make sure your feed loads.",
		"",
		"STEP 2: Open Developer Tools",
		"   Chrome/Edge/Brave: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)",
		"   Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)",
		"   Safari: enable the Develop menu in Settings, then Cmd+Option+I",
		"",
		"STEP 3: Find the cookie",
		"   Chrome: Application tab > Storage > Cookies > https://www.linkedin.com",
		"   Firefox: Storage tab > Cookies > https://www.linkedin.com",
		"",
		"STEP 4: Copy the value of the row named li_at",
		"   It is a long string that usually starts with AQED.",
		"   Copy only the value, without quotes or a trailing semicolon.",
		"",
		"STEP 5: Run `linkreach auth connect` and paste it at the prompt.",
		"",
		"NOTES:",
		"   The cookie grants full access to your account. Never share it.",
		"   linkreach stores it in the system keychain or an encrypted file.",
		"   Signing out of LinkedIn in the browser invalidates the cookie.",
		rule,
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// WriteQuickGuide prints the condensed one-line version
func WriteQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "Quick guide: F12 > Application > Cookies > linkedin.com > copy the li_at value")
	fmt.Fprintln(w, "Run `linkreach auth guide` for detailed instructions")
}
