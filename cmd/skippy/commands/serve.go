package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/chatgateway"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/chatgateway/discord"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/chatgateway/whatsapp"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/config"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/cronscheduler"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/ipcserver"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient/ollama"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/logging"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/memorydb"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/orchestrator"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/toolregistry"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/tools"
	"github.com/spf13/cobra"
)

// newServeCmd creates the `skippy serve` command that runs the daemon:
// chat gateway, IPC server and cron scheduler sharing one Orchestrator,
// grounded on cmd/devclaw/commands/serve.go's runServe shape (load
// config, resolve secrets, construct the assistant, register channels,
// wait for a shutdown signal) adapted to this daemon's own component
// set and spec's §5 start/stop order.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Skippy daemon",
		Long: `Starts Skippy as a long-running daemon: loads config, connects enabled
chat channels, opens the IPC control socket, and starts the cron
scheduler. Runs until interrupted (SIGINT/SIGTERM).`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	dataDir, _ := cmd.Root().PersistentFlags().GetString("data-dir")
	layout, err := config.ResolveLayout(dataDir)
	if err != nil {
		return fmt.Errorf("resolving data layout: %w", err)
	}
	if err := layout.EnsureDirs(); err != nil {
		return fmt.Errorf("creating data directories: %w", err)
	}

	cfg, err := config.Load(layout.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w (run 'skippy setup' first)", err)
	}
	config.ResolveSecrets(&cfg)

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := cfg.LogLevel
	if verbose {
		logLevel = "debug"
	}
	logFile, err := logging.Setup(logLevel, layout.LogPath)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger := slog.Default()

	if err := writePIDFile(layout.PIDPath); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	defer os.Remove(layout.PIDPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	memStore, err := memorydb.Open(layout.MemoryDBPath)
	if err != nil {
		return fmt.Errorf("opening memory store: %w", err)
	}
	defer memStore.Close()

	cronStore, err := cronscheduler.OpenStore(layout.CronDBPath)
	if err != nil {
		return fmt.Errorf("opening cron store: %w", err)
	}
	defer cronStore.Close()

	llm := ollama.New(cfg.Ollama, logger)

	registry := toolregistry.New()
	registry.Register(tools.NewFileReadTool())
	registry.Register(tools.NewFileWriteTool())
	registry.Register(tools.NewPatchFileTool())
	registry.Register(tools.NewHTTPTool())
	registry.Register(tools.NewFileDownloadTool())
	registry.Register(tools.NewMemoryTool(memStore))
	registry.Register(tools.NewWebSearchTool())
	registry.Register(tools.NewWeatherTool())
	registry.Register(tools.NewTrelloTool())
	registry.Register(tools.NewBashTool(cfg.Tools.Bash.Unsafe))

	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	itemStore := orchestrator.NewContextItemStore(layout.ContextPath)
	assembler := &orchestrator.ContextAssembler{
		Registry:         registry,
		Summarizer:       llm,
		Memory:           memStore,
		MemoryCategories: cfg.Memory.ContextCategories,
		WorkDir:          workDir,
		ContextItems:     itemStore,
	}

	orc := orchestrator.New(llm, registry, assembler, logger)
	orc.LoopLimit = cfg.Prompt.LoopLimit
	if info, err := llm.Introspect(ctx, cfg.Ollama.Model); err != nil {
		logger.Warn("model introspection failed, using default context window", "model", cfg.Ollama.Model, "error", err)
	} else if info.ContextWindow > 0 {
		orc.ContextWindow = info.ContextWindow
	}

	cronSched := cronscheduler.New(cronStore, cronscheduler.OrchestratorPromptHandler(orc, cfg.Ollama.Model, logger), logger)
	registry.Register(tools.NewCronTool(cronSched))

	cfgStore := chatgateway.NewConfigStore(cfg, layout.ConfigPath)
	gw := chatgateway.New(orc, llm, cfgStore, itemStore, cfg.Ollama.Model, logger)
	gw.HistoryLimit = cfg.Gateway.MessageHistoryLimit
	if cfg.Gateway.TypingRefreshSeconds > 0 {
		gw.TypingInterval = time.Duration(cfg.Gateway.TypingRefreshSeconds) * time.Second
	}

	discordSend := tools.NewDiscordSendTool()
	registry.Register(discordSend)

	if cfg.Discord.Token != "" {
		dc := discord.New(discord.Config{Token: cfg.Discord.Token, AllowedGuilds: nonEmpty(cfg.Discord.GuildID)}, logger)
		gw.AddChannel(dc)
		discordSend.Send = func(channel, message string) error {
			_, sendErr := dc.SendText(ctx, channel, message)
			return sendErr
		}
	}

	if cfg.WhatsApp.Enabled {
		waCfg := whatsapp.DefaultConfig()
		if cfg.WhatsApp.SessionPath != "" {
			waCfg.SessionDir = cfg.WhatsApp.SessionPath
		}
		wa := whatsapp.New(waCfg, logger)
		gw.AddChannel(wa)
	}

	if err := cronSched.Start(ctx); err != nil {
		return fmt.Errorf("starting cron scheduler: %w", err)
	}
	defer cronSched.Stop()

	ipc := ipcserver.New(ipcserver.Config{
		SocketPath:   layout.SocketPath,
		Orchestrator: orc,
		ChatSender:   gw,
		DefaultModel: cfg.Ollama.Model,
		Logger:       logger,
	})
	if err := ipc.Start(ctx); err != nil {
		return fmt.Errorf("starting IPC server: %w", err)
	}
	defer ipc.Stop()

	go func() {
		if err := gw.Run(ctx); err != nil {
			logger.Error("chat gateway exited", "error", err)
		}
	}()

	reload := config.Watch(ctx, layout.ConfigPath)
	go watchConfigReload(ctx, layout.ConfigPath, reload, orc, logger)

	logger.Info("skippy running", "socket", layout.SocketPath, "model", cfg.Ollama.Model)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping")
	return nil
}

// watchConfigReload re-applies the small set of hot-reloadable settings
// (loop_limit) whenever the config file changes on disk. Settings that
// require reconnecting a channel (tokens, session paths) are
// intentionally not hot-reloaded — those need a restart.
func watchConfigReload(ctx context.Context, path string, reload <-chan struct{}, orc *orchestrator.Orchestrator, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-reload:
			if !ok {
				return
			}
			cfg, err := config.Load(path)
			if err != nil {
				logger.Warn("config reload failed, keeping previous settings", "error", err)
				continue
			}
			orc.LoopLimit = cfg.Prompt.LoopLimit
			logger.Info("config reloaded", "loop_limit", cfg.Prompt.LoopLimit)
		}
	}
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
