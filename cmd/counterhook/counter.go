package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"counterhook/internal/api"
	"counterhook/internal/counter"

	"github.com/spf13/cobra"
)

var (
	counterHost           string
	counterPort           int
	counterStep           int
	counterEnvironment    string
	counterFrontendOrigin string
	counterDebug          bool

	counterAPIURL string
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Run or talk to the counter service",
}

var counterServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the counter API and web page",
	RunE:  runCounterServe,
}

func init() {
	f := counterServeCmd.Flags()
	f.StringVar(&counterHost, "host", getEnvOrDefault("COUNTERHOOK_HOST", api.DefaultHost), "Host to bind to")
	f.IntVarP(&counterPort, "port", "p", getEnvOrDefaultInt("PORT", api.DefaultPort), "Port to listen on")
	f.IntVar(&counterStep, "step", getEnvOrDefaultInt("COUNTER_STEP", counter.DefaultStep), "Amount added by each increment")
	f.StringVar(&counterEnvironment, "env", os.Getenv("NODE_ENV"), "Environment name, \"production\" restricts CORS")
	f.StringVar(&counterFrontendOrigin, "frontend-origin", getEnvOrDefault("FRONTEND_ORIGIN", api.DefaultFrontendOrigin), "Origin allowed by CORS in production")
	f.BoolVar(&counterDebug, "debug", os.Getenv("DEBUG") == "true", "Enable debug logging")

	defaultAPI := fmt.Sprintf("http://localhost:%d/api", getEnvOrDefaultInt("PORT", api.DefaultPort))
	counterCmd.PersistentFlags().StringVar(&counterAPIURL, "api", getEnvOrDefault("COUNTER_API_URL", defaultAPI), "Counter API base URL for client commands")

	counterCmd.AddCommand(counterServeCmd)
	counterCmd.AddCommand(
		counterClientCmd("get", "Print the current value", (*counter.Client).Get),
		counterClientCmd("increment", "Add the server's step", (*counter.Client).Increment),
		counterClientCmd("decrement", "Subtract one", (*counter.Client).Decrement),
		counterClientCmd("reset", "Set the value to zero", (*counter.Client).Reset),
	)
}

func runCounterServe(cmd *cobra.Command, args []string) error {
	logger, closer, err := setupLogging(os.Stdout, logFile, counterDebug)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer closer.Close()

	if counterStep <= 0 {
		return fmt.Errorf("invalid step %d: must be positive", counterStep)
	}

	cfg := api.Config{
		Host:               counterHost,
		Port:               counterPort,
		Environment:        counterEnvironment,
		FrontendOrigin:     counterFrontendOrigin,
		GitpodWorkspaceURL: os.Getenv("GITPOD_WORKSPACE_URL"),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(cfg, counter.NewStore(counterStep), logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func counterClientCmd(use, short string, op func(*counter.Client, context.Context) (int, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := op(counter.NewClient(counterAPIURL), cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}
