package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/monetalabs/moneta/internal/infrastructure/config"
)

// daemonFlags holds the flags for the daemon command.
type daemonFlags struct {
	SyncNow bool
	NoWatch bool
}

var daemonOpts daemonFlags

// NewDaemonCmd creates the daemon command.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the background sync scheduler",
		Long: `Run the periodic sync scheduler in the foreground.

The scheduler fires a push-then-pull cycle on a jittered interval and
backs off exponentially when cycles fail. Edits to the configuration
file are picked up without a restart.

Stop with Ctrl-C.`,
		Example: `  # Run the scheduler
  moneta daemon

  # Run a cycle immediately on startup
  moneta daemon --now`,
		Args: cobra.NoArgs,
		RunE: runDaemon,
	}

	cmd.Flags().BoolVar(&daemonOpts.SyncNow, "now", false, "run a sync cycle immediately on startup")
	cmd.Flags().BoolVar(&daemonOpts.NoWatch, "no-watch", false, "disable config file watching")

	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if daemonOpts.SyncNow {
		push, pull := container.Scheduler().SyncNow(ctx)
		formatter.Info("Initial cycle: push %s, pull %s", push.String(), pull.String())
	}

	container.Scheduler().Start(ctx)
	formatter.Success("Sync scheduler started (period %s)", container.Config().Sync.Period)

	if !daemonOpts.NoWatch {
		if err := watchConfig(ctx, formatter); err != nil {
			formatter.Warning("Config watching disabled: %v", err)
		}
	}

	<-ctx.Done()
	container.Scheduler().Stop()
	formatter.Info("Sync scheduler stopped")
	return nil
}

// watchConfig reloads the configuration when the config file changes on
// disk and reconfigures the running services.
func watchConfig(ctx context.Context, formatter interface {
	Info(format string, args ...any) error
	Warning(format string, args ...any) error
}) error {
	loader, err := config.NewLoader("")
	if err != nil {
		return err
	}
	configPath := globalFlags.ConfigFile
	if configPath == "" {
		configPath = loader.DefaultConfigPath()
	}

	watcher, err := config.NewWatcher(configPath, config.DefaultWatcherConfig())
	if err != nil {
		return err
	}
	if err := watcher.Watch(ctx); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events():
				if !ok {
					return
				}
				if event.Type == config.ReloadEventRemove {
					formatter.Warning("Config file removed, keeping current configuration")
					continue
				}
				cfg, err := loader.Load(configPath)
				if err != nil {
					formatter.Warning("Could not reload config: %v", err)
					continue
				}
				container := GetContainer()
				if container == nil {
					return
				}
				if err := container.Reconfigure(cfg); err != nil {
					formatter.Warning("Could not apply config: %v", err)
					continue
				}
				container.Scheduler().Start(ctx)
				formatter.Info("Configuration reloaded")
			case err, ok := <-watcher.Errors():
				if !ok {
					return
				}
				formatter.Warning("Config watcher error: %v", err)
			}
		}
	}()

	return nil
}
