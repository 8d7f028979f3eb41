package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"ttscraper/pkg/auth"
	"ttscraper/pkg/config"
	"ttscraper/pkg/logger"
	"ttscraper/pkg/proxy"
	"ttscraper/pkg/ui"
)

// proxyCmd represents the proxy command
var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Manage proxy credentials and check the exit IP",
	Long: `Manage stored proxy credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (PROXY_USER / PROXY_PASS / PROXY_HOST)

A stored account carries its endpoint and rotate URL, so a run with no
proxy in the config file uses the most recently saved account.`,
}

// loginCmd represents the proxy login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store proxy credentials securely",
	Example: `  # Interactive login
  ttscraper proxy login

  # Login with username
  ttscraper proxy login customer-abc`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the proxy logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored proxy credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// listCmd represents the proxy list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored proxy accounts",
	RunE:  runList,
}

// ipCmd represents the proxy ip command
var ipCmd = &cobra.Command{
	Use:   "ip",
	Short: "Show the current exit IP",
	Long: `Show the exit IP requests currently leave from.

With --rotate the rotate URL is called first and the new IP is verified.`,
	RunE: runIP,
}

var rotateFirst bool

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.AddCommand(loginCmd)
	proxyCmd.AddCommand(logoutCmd)
	proxyCmd.AddCommand(listCmd)
	proxyCmd.AddCommand(ipCmd)

	ipCmd.Flags().BoolVar(&rotateFirst, "rotate", false, "rotate the exit IP before reporting it")
	ipCmd.Flags().StringVar(&proxyURL, "proxy", "", "proxy URL, overrides the configured proxy")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		fmt.Fprint(ui.Out, "Proxy username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(input)
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Fprintf(ui.Out, "Account '%s' already exists. Update credentials? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Fprint(ui.Out, "Proxy password: ")
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	account := &auth.ProxyAccount{
		Username:     username,
		Password:     password,
		LastModified: time.Now(),
	}

	fmt.Fprint(ui.Out, "Proxy endpoint (optional, e.g. socks5://gate.example.net:7000): ")
	endpoint, _ := reader.ReadString('\n')
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		p, err := config.ParseProxyURL(endpoint)
		if err != nil {
			return err
		}
		account.Scheme, account.Host, account.Port = p.Scheme, p.Host, p.Port
	}

	fmt.Fprint(ui.Out, "Rotate URL (optional): ")
	rotateURL, _ := reader.ReadString('\n')
	account.RotateURL = strings.TrimSpace(rotateURL)

	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Proxy account saved: %s", username))
	if account.Host == "" {
		fmt.Fprintln(ui.Out, "\nSet the proxy host in the config file or pass --proxy, then run:")
	} else {
		fmt.Fprintf(ui.Out, "\nRuns without a configured proxy now go through %s. Check it with:\n", account)
	}
	fmt.Fprintln(ui.Out, "  ttscraper proxy ip")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Proxy account removed: " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'ttscraper proxy login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Proxy Accounts")
	fmt.Fprintln(ui.Out)
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Fprintf(ui.Out, "%d. Username: %s\n", i+1, sanitized.Username)
		fmt.Fprintf(ui.Out, "   Password: %s\n", sanitized.Password)
		if sanitized.Host != "" {
			fmt.Fprintf(ui.Out, "   Endpoint: %s\n", sanitized)
		}
		if sanitized.RotateURL != "" {
			fmt.Fprintf(ui.Out, "   Rotate URL: %s\n", sanitized.RotateURL)
		}
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(ui.Out, "   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(ui.Out)
	}
	return nil
}

func runIP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{"proxy": proxyURL})
	if err != nil {
		return err
	}

	account, err := resolveProxyAccount(cfg)
	if err != nil {
		return err
	}

	transport, err := proxy.NewTransport(account, cfg.API.ConnectTimeout)
	if err != nil {
		return err
	}
	defer transport.CloseIdleConnections()

	rotator := proxy.NewRotator(account, cfg.Proxy, transport, logger.GetLogger())
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Proxy.Timeout*time.Duration(cfg.Proxy.VerifyAttempts+1))
	defer cancel()

	ui.PrintInfo("Proxy", account.String())
	if rotateFirst {
		ip, ok := rotator.Rotate(ctx)
		if !ok {
			return fmt.Errorf("rotation could not be verified")
		}
		ui.PrintInfo("Exit IP (rotated)", ip)
		return nil
	}

	ip, err := rotator.CurrentIP(ctx)
	if err != nil {
		return fmt.Errorf("failed to determine exit IP: %w", err)
	}
	ui.PrintInfo("Exit IP", ip)
	return nil
}

// readPassword reads a password from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(ui.Out)
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
