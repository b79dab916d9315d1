package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pysugar/codex-nexus/internal/client"
)

var (
	authOriginator  string
	authOpenBrowser bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Codex OAuth credentials",
}

var authStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Print the authorization URL to open in a browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(cfg)
		result, err := c.StartAuth(authOriginator, "")
		if err != nil {
			return err
		}
		fmt.Println("Open this URL in your browser to authorize:")
		fmt.Println()
		fmt.Println("  " + result.AuthorizeURL)
		fmt.Println()
		fmt.Println("Then run: codex-nexus auth exchange '<redirect URL or code>'")
		if authOpenBrowser {
			openBrowser(result.AuthorizeURL)
		}
		return nil
	},
}

var authExchangeCmd = &cobra.Command{
	Use:   "exchange [code-or-url]",
	Short: "Exchange an authorization code or pasted redirect URL for credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := ""
		if len(args) > 0 {
			input = args[0]
		}
		if input == "" {
			var err error
			input, err = promptLine("Paste the full redirect URL (or code): ")
			if err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		creds, err := client.New(cfg).ExchangeCode(ctx, input)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Authenticated (account %s)\n", creds.AccountID)
		return nil
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run the full interactive login flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(cfg)
		result, err := c.StartAuth(authOriginator, "")
		if err != nil {
			return err
		}

		fmt.Println("Open this URL in your browser to authorize:")
		fmt.Println()
		fmt.Println("  " + result.AuthorizeURL)
		fmt.Println()
		openBrowser(result.AuthorizeURL)

		input, err := promptLine("Paste the full redirect URL (or code): ")
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		creds, err := c.ExchangeCode(ctx, input)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Authenticated (account %s)\n", creds.AccountID)
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored credential state",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := client.New(cfg).AuthStatusNow()
		if !status.Authenticated {
			fmt.Println("Not authenticated. Run: codex-nexus auth login")
			return nil
		}
		expires := time.UnixMilli(status.Expires)
		fmt.Printf("Account:  %s\n", status.AccountID)
		fmt.Printf("Expires:  %s\n", expires.Format(time.RFC3339))
		if status.Valid {
			fmt.Println("Status:   valid")
		} else {
			fmt.Println("Status:   expired (refresh will run automatically)")
		}
		return nil
	},
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a token refresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		creds, err := client.New(cfg).Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("🔄 Refreshed; expires %s\n", time.UnixMilli(creds.Expires).Format(time.RFC3339))
		return nil
	},
}

func init() {
	authStartCmd.Flags().StringVar(&authOriginator, "originator", "", "originator to send on the authorize URL")
	authStartCmd.Flags().BoolVar(&authOpenBrowser, "open-browser", false, "open the authorization URL in the default browser")
	authLoginCmd.Flags().StringVar(&authOriginator, "originator", "", "originator to send on the authorize URL")

	authCmd.AddCommand(authStartCmd, authExchangeCmd, authLoginCmd, authStatusCmd, authRefreshCmd)
	rootCmd.AddCommand(authCmd)
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// openBrowser is best effort; the URL is already printed for manual use.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}
