package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"counterhook/internal/githubhook"
	"counterhook/internal/history"
	"counterhook/internal/httpx"
	"counterhook/internal/restart"
	"counterhook/internal/security"
	"counterhook/internal/webhook"
	"counterhook/pkg/cmdutil"
	"counterhook/pkg/fileutil"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	webhookConfigFile string
	webhookFlags      = webhook.DefaultConfig()

	noHistory       bool
	webhookTestMode bool

	historyLimit  int
	historyJSON   bool
	historyLatest bool

	registerRepo string
	registerURL  string

	pingURL    string
	pingBranch string
	pingTest   bool
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Run or manage the git-pull webhook listener",
}

var webhookServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook listener",
	Long: `Start the HTTP server receiving GitHub push webhooks.

Configuration is resolved from defaults, then the YAML file (--config or
counterhook.yaml in ./, ./config/ or /etc/counterhook/), then environment
variables, then flags.`,
	RunE: runWebhookServe,
}

var webhookHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent webhook deliveries",
	RunE:  runWebhookHistory,
}

var webhookRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create the push webhook on a GitHub repository",
	Long: `Create a JSON push webhook pointing at this listener, using GITHUB_TOKEN.
Nothing is changed if a webhook with the same URL already exists.`,
	Example: "  counterhook webhook register --repo octo/demo --url https://3002-ws.gitpod.io",
	RunE:    runWebhookRegister,
}

var webhookSecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Generate a strong webhook secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := security.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	},
}

var webhookPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send a signed test delivery to a running listener",
	RunE:  runWebhookPing,
}

var webhookTouchCmd = &cobra.Command{
	Use:   "touch",
	Short: "Run the restart strategy once, without git",
	RunE:  runWebhookTouch,
}

func init() {
	pf := webhookCmd.PersistentFlags()
	pf.StringVarP(&webhookConfigFile, "config", "c", os.Getenv("COUNTERHOOK_CONFIG_FILE"), "Path to counterhook.yaml")
	pf.IntVarP(&webhookFlags.Port, "port", "p", webhookFlags.Port, "Port to listen on (WEBHOOK_PORT)")
	pf.StringVar(&webhookFlags.Host, "host", webhookFlags.Host, "Host to bind to (COUNTERHOOK_HOST)")
	pf.StringVar(&webhookFlags.RepoPath, "repo-path", webhookFlags.RepoPath, "Repository checkout to pull (REPO_PATH)")
	pf.StringVar(&webhookFlags.GitBranch, "branch", webhookFlags.GitBranch, "Branch to watch, * for any (GIT_BRANCH)")
	pf.StringSliceVar(&webhookFlags.TouchPaths, "touch", nil, "Files to touch, relative to the repository (TOUCH_PATHS)")
	pf.StringVar(&webhookFlags.RestartCommand, "restart-cmd", "", "Command that restarts the dev server (NODEMON_RESTART_CMD)")
	pf.StringVar(&webhookFlags.HistoryDB, "db", webhookFlags.HistoryDB, "Path to the delivery history database (COUNTERHOOK_DB_PATH)")
	pf.BoolVar(&webhookFlags.Debug, "debug", false, "Enable debug logging (DEBUG)")

	webhookServeCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record deliveries")
	webhookServeCmd.Flags().BoolVar(&webhookTestMode, "test-mode", false, "Disable rate limiting")

	webhookHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", webhook.DefaultDeliveriesLimit, "Number of deliveries to show")
	webhookHistoryCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON instead of a table")
	webhookHistoryCmd.Flags().BoolVar(&historyLatest, "latest", false, "Show only the most recent delivery, with its error")

	webhookRegisterCmd.Flags().StringVarP(&registerRepo, "repo", "r", "", "GitHub repository as owner/name")
	webhookRegisterCmd.Flags().StringVar(&registerURL, "url", "", "Public base URL of this listener (default: Gitpod URL)")
	_ = webhookRegisterCmd.MarkFlagRequired("repo")

	webhookPingCmd.Flags().StringVar(&pingURL, "url", "", "Webhook URL (default: local listener)")
	webhookPingCmd.Flags().StringVar(&pingBranch, "ref-branch", "", "Branch named in the payload (default: watched branch)")
	webhookPingCmd.Flags().BoolVar(&pingTest, "test", true, "Send with ?test=true so git is skipped")

	webhookCmd.AddCommand(webhookServeCmd, webhookHistoryCmd, webhookRegisterCmd, webhookSecretCmd, webhookPingCmd, webhookTouchCmd)
}

// resolveWebhookConfig layers defaults, the config file, the environment
// and explicitly set flags.
func resolveWebhookConfig(flags *pflag.FlagSet, lookup func(string) (string, bool)) (webhook.Config, string, error) {
	cfg := webhook.DefaultConfig()

	path := webhookConfigFile
	if path == "" {
		path = fileutil.FindConfig(webhook.ConfigFileName)
	}
	if path != "" {
		if err := webhook.LoadFile(path, &cfg); err != nil {
			return cfg, path, err
		}
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, path, err
	}

	if flags.Changed("port") {
		cfg.Port = webhookFlags.Port
	}
	if flags.Changed("host") {
		cfg.Host = webhookFlags.Host
	}
	if flags.Changed("repo-path") {
		cfg.RepoPath = webhookFlags.RepoPath
	}
	if flags.Changed("branch") {
		cfg.GitBranch = webhookFlags.GitBranch
	}
	if flags.Changed("touch") {
		cfg.TouchPaths = webhookFlags.TouchPaths
	}
	if flags.Changed("restart-cmd") {
		cfg.RestartCommand = webhookFlags.RestartCommand
	}
	if flags.Changed("db") {
		cfg.HistoryDB = webhookFlags.HistoryDB
	}
	if flags.Changed("debug") {
		cfg.Debug = webhookFlags.Debug
	}

	return cfg, path, cfg.Validate()
}

func loadWebhookConfig(cmd *cobra.Command) (webhook.Config, *slog.Logger, io.Closer, error) {
	cfg, path, err := resolveWebhookConfig(cmd.Flags(), os.LookupEnv)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closer, err := setupLogging(os.Stdout, logFile, cfg.Debug)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	if path != "" {
		logger.Debug("Loaded configuration file", "config", path)
	}
	return cfg, logger, closer, nil
}

func runWebhookServe(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := loadWebhookConfig(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	touchPaths := "None specified"
	if len(cfg.TouchPaths) > 0 {
		touchPaths = fmt.Sprint(cfg.TouchPaths)
	}
	restartCmd := cfg.RestartCommand
	if restartCmd == "" {
		restartCmd = "None specified"
	}
	logger.Info("Webhook service configuration",
		"port", cfg.Port,
		"repo_path", cfg.RepoPath,
		"git_branch", cfg.GitBranch,
		"touch_paths", touchPaths,
		"nodemon_restart_cmd", restartCmd,
		"debug", cfg.Debug)

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	var hist *history.History
	if !noHistory {
		logger.Info("Initializing history database", "db", cfg.HistoryDB)
		hist, err = history.NewHistory(cfg.HistoryDB)
		if err != nil {
			logger.Error("Failed to initialize history database", "error", err)
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
		defer hist.Close()
	}

	runner := cmdutil.ExecRunner{}
	strategy := restart.NewStrategy(cfg.RepoPath, cfg.TouchPaths, cfg.RestartCommand, runner, logger)
	srv := webhook.NewServer(cfg, webhook.NewPuller(cfg.RepoPath, runner), strategy, hist, logger, webhookTestMode)

	if url := httpx.GitpodURL(os.Getenv("GITPOD_WORKSPACE_URL"), cfg.Port); url != "" {
		logger.Info("Webhook public URL", "url", githubhook.WebhookURL(url))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func runWebhookHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", historyLimit)
	}

	cfg, _, err := resolveWebhookConfig(cmd.Flags(), os.LookupEnv)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !fileutil.FileExists(cfg.HistoryDB) {
		return fmt.Errorf("no history database at %s", cfg.HistoryDB)
	}

	hist, err := history.NewHistory(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer hist.Close()

	deliveries, err := fetchDeliveries(cmd.Context(), hist, historyLimit, historyLatest)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := printDeliveries(out, deliveries, historyJSON); err != nil {
		return err
	}
	if historyLatest && !historyJSON && len(deliveries) == 1 && deliveries[0].ErrorMessage != nil {
		fmt.Fprintf(out, "\nError: %s\n", *deliveries[0].ErrorMessage)
	}
	return nil
}

func fetchDeliveries(ctx context.Context, hist *history.History, limit int, latestOnly bool) ([]history.Delivery, error) {
	if !latestOnly {
		return hist.ListDeliveries(ctx, limit)
	}

	latest, err := hist.GetLatestDelivery(ctx)
	if err != nil || latest == nil {
		return nil, err
	}
	return []history.Delivery{*latest}, nil
}

func printDeliveries(out io.Writer, deliveries []history.Delivery, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(deliveries)
	}

	if len(deliveries) == 0 {
		fmt.Fprintln(out, "No deliveries recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tEVENT\tREF\tACTION\tSTATUS\tSIGNATURE")
	for _, d := range deliveries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			d.ID, d.ReceivedAt.Local().Format(time.DateTime), dash(d.Event), dash(d.Ref), d.Action, d.StatusCode, dash(d.SignatureStatus))
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runWebhookRegister(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveWebhookConfig(cmd.Flags(), os.LookupEnv)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	owner, repo, err := security.ValidateRepoSlug(registerRepo)
	if err != nil {
		return err
	}

	publicURL := registerURL
	if publicURL == "" {
		publicURL = httpx.GitpodURL(os.Getenv("GITPOD_WORKSPACE_URL"), cfg.Port)
	}
	if publicURL == "" {
		return fmt.Errorf("--url is required outside Gitpod")
	}

	out := cmd.OutOrStdout()
	if err := security.ValidateSecret(cfg.Secret); err != nil {
		printWarn(out, fmt.Sprintf("Webhook secret is weak: %v", err))
	}

	client, err := githubhook.NewClient(cmd.Context(), os.Getenv("GITHUB_TOKEN"))
	if err != nil {
		return err
	}

	hookURL := githubhook.WebhookURL(publicURL)
	result, err := githubhook.EnsureHook(cmd.Context(), client, githubhook.Hook{
		Owner:  owner,
		Repo:   repo,
		URL:    hookURL,
		Secret: cfg.Secret,
	})
	if err != nil {
		return err
	}

	if result.Created {
		printOK(out, fmt.Sprintf("Created webhook %d on %s/%s", result.HookID, owner, repo))
	} else {
		printOK(out, fmt.Sprintf("Webhook %d already exists on %s/%s", result.HookID, owner, repo))
	}
	fmt.Fprintf(out, "  URL: %s\n", hookURL)
	return nil
}

func runWebhookPing(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveWebhookConfig(cmd.Flags(), os.LookupEnv)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	target := pingURL
	if target == "" {
		target = fmt.Sprintf("http://localhost:%d%s", cfg.Port, githubhook.WebhookPath)
	}
	if pingTest {
		target += "?test=true"
	}

	branch := pingBranch
	if branch == "" {
		branch = cfg.GitBranch
		if branch == webhook.AnyBranch {
			branch = webhook.DefaultGitBranch
		}
	}

	payload, err := json.Marshal(map[string]string{"ref": "refs/heads/" + branch})
	if err != nil {
		return err
	}

	status, body, err := sendPing(cmd.Context(), target, payload, cfg.Secret)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", status, bytes.TrimSpace(body))
	if status >= http.StatusBadRequest {
		return fmt.Errorf("listener answered %d", status)
	}
	return nil
}

// sendPing posts payload the way GitHub delivers a push event.
func sendPing(ctx context.Context, target string, payload []byte, secret string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(payload, secret))

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func runWebhookTouch(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := loadWebhookConfig(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	strategy := restart.NewStrategy(cfg.RepoPath, cfg.TouchPaths, cfg.RestartCommand, cmdutil.ExecRunner{}, logger)
	result := strategy.Restart(cmd.Context())

	out := cmd.OutOrStdout()
	for _, p := range result.Touched {
		printOK(out, "Touched "+p)
	}
	for _, p := range result.Skipped {
		printWarn(out, "Skipped "+p)
	}
	if result.Method == restart.MethodNone {
		printWarn(out, "Nothing to touch")
	}
	return result.Err
}
