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
	"github.com/spf13/pflag"

	"orca-agent-backend/agent"
	"orca-agent-backend/git"
	"orca-agent-backend/grazie"
	"orca-agent-backend/handlers"
	"orca-agent-backend/logging"
	"orca-agent-backend/orchestrator"
	"orca-agent-backend/rpc"
	"orca-agent-backend/server"
	"orca-agent-backend/sessions"
	"orca-agent-backend/shell"
)

const drainTimeout = 30 * time.Second

type cliOptions struct {
	port        int
	workspace   string
	environment string
	configFile  string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "orca-agent",
		Short:         "Run coding agents against the Grazie gateway",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.IntVar(&opts.port, "port", 0, "Listen port (default PORT, or GRAZIE_PROXY_PORT for proxy)")
	flags.StringVar(&opts.workspace, "workspace", "", "Workspace root for clones and scratch directories")
	flags.StringVar(&opts.environment, "environment", "", "Grazie environment: PREPROD, STAGING or PRODUCTION")
	flags.StringVarP(&opts.configFile, "config", "c", "", "Path to a TOML config file (default CONFIG_FILE)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the agent HTTP and WebSocket service",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "proxy",
			Short: "Run the Anthropic-compatible Grazie proxy",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runProxy(cmd, opts)
			},
		},
	)
	return root
}

// resolveConfig loads the configuration and applies flags the user set
func resolveConfig(flags *pflag.FlagSet, opts *cliOptions, proxy bool) (server.Config, error) {
	if err := server.InitConfig(opts.configFile); err != nil {
		return server.Config{}, err
	}
	cfg := server.Current

	if flags.Changed("port") {
		if proxy {
			cfg.ProxyPort = opts.port
		} else {
			cfg.Port = opts.port
		}
	}
	if flags.Changed("workspace") {
		cfg.WorkspaceRoot = opts.workspace
	}
	if flags.Changed("environment") {
		cfg.Environment = opts.environment
	}
	server.Current = cfg
	return cfg, nil
}

func runServe(cmd *cobra.Command, opts *cliOptions) error {
	log := logging.NewLogger("main")
	cfg, err := resolveConfig(cmd.Flags(), opts, false)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.WorkspaceRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace %s: %w", cfg.WorkspaceRoot, err)
	}

	runner := shell.NewRunner()

	driver := git.NewDriver(runner, cfg.WorkspaceRoot)
	driver.AuthorName = cfg.GitAuthorName
	driver.AuthorEmail = cfg.GitAuthorEmail
	driver.Timeout = cfg.GitTimeout

	invoker := agent.NewInvoker(runner)
	invoker.Timeout = cfg.AgentTimeout
	invoker.SimulationDelay = cfg.SimulationDelay

	orch := orchestrator.New(sessions.NewStore(), driver, invoker, orchestrator.Options{
		WorkspaceRoot: cfg.WorkspaceRoot,
		MaxConcurrent: cfg.MaxConcurrentTasks,
		QueueDepth:    cfg.TaskQueueDepth,
		ForcePush:     cfg.GitForcePush,
		ProxyURL:      cfg.AgentProxyURL,
		GatewayURL:    grazie.Resolver(cfg.GrazieBaseURL),
	})

	// Initialize handlers
	handlers.Agents = orch
	handlers.GrazieBaseURL = cfg.GrazieBaseURL
	handlers.ContainerName = cfg.ContainerName
	handlers.Port = cfg.Port
	handlers.Version = version
	handlers.RPCServer = rpc.NewServer(cfg.WorkspaceRoot, runner, func(token, environment string) (rpc.Messenger, error) {
		if token == "" {
			token = cfg.GrazieToken
		}
		if environment == "" {
			environment = cfg.Environment
		}
		if token == "" {
			return nil, errors.New("no token in request and GRAZIE_API_TOKEN is not configured")
		}
		client, err := grazie.NewClient(grazie.Options{Token: token, Environment: environment, BaseURL: cfg.GrazieBaseURL})
		if err != nil {
			return nil, err
		}
		return client, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := server.Run(ctx, cfg, registerRoutes)

	log.Info("Stopping sessions and draining the task queue")
	for _, s := range orch.Store().List() {
		if !s.Status().IsTerminal() {
			_, _ = orch.Stop(s.ID)
		}
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		log.WithError(err).Warn("Task queue did not drain in time")
	}
	return serveErr
}

func runProxy(cmd *cobra.Command, opts *cliOptions) error {
	log := logging.NewLogger("main")
	cfg, err := resolveConfig(cmd.Flags(), opts, true)
	if err != nil {
		return err
	}

	proxy, err := grazie.NewProxy(grazie.ProxyOptions{
		Environment: cfg.Environment,
		BaseURL:     cfg.GrazieBaseURL,
		Token:       cfg.GrazieToken,
	})
	if err != nil {
		return err
	}
	handlers.GrazieProxy = proxy
	log.WithField("target", proxy.Target()).WithField("token_set", cfg.GrazieToken != "").Info("Starting Grazie proxy")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.RunProxy(ctx, cfg, registerProxyRoutes)
}
