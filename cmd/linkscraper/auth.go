package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"linkscraper/pkg/browser"
	"linkscraper/pkg/linkedin"
	"linkscraper/pkg/logger"
	"linkscraper/pkg/session"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored LinkedIn session",
	Long: `Manage the stored LinkedIn session cookies.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Plain cookie file for operator inspection

Never share your cookie exports or config files!`,
}

var authImportCmd = &cobra.Command{
	Use:   "import <cookies.json>",
	Short: "Import a browser cookie export",
	Long: `Import a cookie export and store it for session reuse.

To produce the export:
1. Log into LinkedIn in your browser
2. Use a cookie-export extension or DevTools to dump linkedin.com cookies
3. Save the JSON array to a file and import it here`,
	Example: `  linkscraper auth import cookies.json`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAuthImport,
}

var authSetCookieCmd = &cobra.Command{
	Use:   "set-cookie",
	Short: "Store the session cookie value interactively",
	Long: `Prompt for the li_at session cookie value with hidden input and
store it as a minimal cookie set. Use --expires-days when the cookie's
expiry is known.`,
	RunE: runAuthSetCookie,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session cookie health",
	RunE:  runAuthStatus,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored session from every store",
	RunE:  runAuthClear,
}

var setCookieExpiresDays int

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authImportCmd)
	authCmd.AddCommand(authSetCookieCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authClearCmd)

	authSetCookieCmd.Flags().IntVar(&setCookieExpiresDays, "expires-days", 0, "days until the cookie expires (0 = unknown)")
}

func runAuthImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigLenient()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	cookies, err := session.ParseCookies(data)
	if err != nil {
		return err
	}
	if session.SessionCookie(cookies) == nil {
		return fmt.Errorf("export has no %s cookie; make sure you exported linkedin.com cookies while logged in", linkedin.SessionCookieName)
	}

	chain := session.NewChain("", cfg.Session.CookieFile, log)
	if err := chain.Save(cookies); err != nil {
		return err
	}

	status := session.CookieStatus(cookies, time.Now())
	fmt.Printf("Imported %d cookies. Session cookie: %s\n", len(cookies), status)
	return nil
}

func runAuthSetCookie(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigLenient()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	fmt.Printf("Value of the %s cookie: ", linkedin.SessionCookieName)
	value, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return err
	}
	if len(value) == 0 {
		return fmt.Errorf("empty cookie value")
	}

	cookie := browser.Cookie{
		Name:     linkedin.SessionCookieName,
		Value:    string(value),
		Domain:   linkedin.CookieDomain,
		Path:     "/",
		HTTPOnly: true,
		Secure:   true,
	}
	if setCookieExpiresDays > 0 {
		cookie.Expires = float64(time.Now().AddDate(0, 0, setCookieExpiresDays).Unix())
	}

	chain := session.NewChain("", cfg.Session.CookieFile, log)
	if err := chain.Save([]browser.Cookie{cookie}); err != nil {
		return err
	}

	fmt.Printf("Stored session cookie: %s\n", session.CookieStatus([]browser.Cookie{cookie}, time.Now()))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigLenient()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	chain := session.NewChain(cfg.LinkedIn.CookiesJSON, cfg.Session.CookieFile, log)
	cookies, source, err := chain.Load()
	if err != nil {
		fmt.Println("No stored session found.")
		return nil
	}

	status := session.CookieStatus(cookies, time.Now())
	fmt.Printf("Source:  %s\n", source)
	fmt.Printf("Cookies: %d\n", len(cookies))
	fmt.Printf("Status:  %s\n", status)
	if status.Code == session.StatusValid && status.DaysLeft <= cfg.Session.WarningThresholdDays {
		fmt.Printf("Warning: session cookie expires on %s, refresh it soon\n", status.ExpiresAt.Format("2006-01-02"))
	}
	return nil
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigLenient()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	chain := session.NewChain("", cfg.Session.CookieFile, log)
	if err := chain.Clear(); err != nil {
		return err
	}
	fmt.Println("Stored session removed.")
	return nil
}
