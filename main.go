package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"upgradewatch/internal/ambari"
	"upgradewatch/internal/api"
	"upgradewatch/internal/config"
	"upgradewatch/internal/publish"
	"upgradewatch/internal/upgrade"
	"upgradewatch/pkg/logger"
	"upgradewatch/pkg/vault"

	"github.com/spf13/cobra"
)

var (
	configPaths []string
	logLevel    string
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "upgradewatch",
		Short:        "Watch and steer an Ambari rolling stack upgrade",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringArrayVarP(&configPaths, "config", "c", []string{"upgradewatch.yml"},
		"configuration file, may be repeated; later files override earlier ones")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(), newStatusCmd())

	for _, action := range []upgrade.Action{upgrade.ActionContinue, upgrade.ActionRetry, upgrade.ActionComplete, upgrade.ActionCancel} {
		root.AddCommand(newActionCmd(action))
	}

	return root
}

// setup reads the configuration, configures logging and builds the Ambari
// client, reading the password from Vault when configured to.
func setup(ctx context.Context) (*config.Config, *ambari.Client, logger.Logger, error) {
	cfg, err := config.ReadConfig(configPaths...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}

	err = logger.Configure(logger.Config{Level: level, Format: cfg.Log.Format, OutputPath: cfg.Log.Output})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to configure logger: %w", err)
	}

	log := logger.Get().Named("upgradewatch")

	password := cfg.Ambari.Password
	if cfg.NeedsVaultPassword() {
		password, err = vaultPassword(ctx, &cfg, log)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	client := ambari.NewClient(cfg.GetAmbariConfig(), cfg.GetResilienceConfig(), password, log)

	return &cfg, client, log, nil
}

func vaultPassword(ctx context.Context, cfg *config.Config, log logger.Logger) (string, error) {
	vc := cfg.GetVaultConfig()

	client, err := vault.NewClient(vc.Address, vc.Token, vc.Insecure, vc.UsesKVv2())
	if err != nil {
		return "", fmt.Errorf("failed to create vault client: %w", err)
	}

	log.Debugf("Reading Ambari password from vault path %s", cfg.Ambari.PasswordVaultPath)

	password, err := client.GetString(ctx, cfg.Ambari.PasswordVaultPath, cfg.Ambari.PasswordVaultKey)
	if err != nil {
		return "", fmt.Errorf("failed to read ambari password from vault: %w", err)
	}

	return password, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the upgrade and serve the wizard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, client, log, err := setup(ctx)
			if err != nil {
				return err
			}

			manager := upgrade.NewManager(cfg.Ambari.Cluster, client, log)
			poller := upgrade.NewPoller(manager, cfg.Ambari.Cluster, cfg.Polling.Duration(), log)

			wizardAPI := api.NewAPI(api.Dependencies{Config: cfg, Logger: log, Controller: manager})
			manager.Subscribe(wizardAPI.Hub())

			if cfg.Redis.Enabled {
				rdb, err := publish.DialRedis(ctx, cfg.Redis)
				if err != nil {
					return err
				}
				defer func() { _ = rdb.Close() }()

				manager.Subscribe(publish.NewRedisPublisher(rdb, cfg.Redis.Key, cfg.Redis.Channel, cfg.Redis.TTLDuration(), log))
			}

			if cfg.AMQP.Enabled {
				conn, ch, err := publish.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
				if err != nil {
					return err
				}
				defer func() { _ = conn.Close() }()

				manager.OnTransition(publish.NewAMQPPublisher(ch, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey, log))
			}

			log.Infof("Watching upgrade of cluster %s at %s every %s", cfg.Ambari.Cluster, cfg.Ambari.Address, poller.Interval())

			return api.NewServer(cfg.GetServerConfig(), wizardAPI, poller, log).Run(ctx)
		},
	}
}

func loadOnce(ctx context.Context) (*upgrade.Manager, error) {
	cfg, client, log, err := setup(ctx)
	if err != nil {
		return nil, err
	}

	manager := upgrade.NewManager(cfg.Ambari.Cluster, client, log)

	err = manager.LoadUpgradeData(ctx)
	if err != nil {
		return nil, err
	}

	manager.MarkLoaded(true)

	return manager, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")

	err := encoder.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the wizard state once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := loadOnce(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(cmd, manager.State())
		},
	}
}

func newActionCmd(action upgrade.Action) *cobra.Command {
	var groupID, stageID int64

	cmd := &cobra.Command{
		Use:   string(action),
		Short: fmt.Sprintf("Send %s for one upgrade item", action),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := loadOnce(cmd.Context())
			if err != nil {
				return err
			}

			if action == upgrade.ActionComplete {
				manager.ConfirmManualStep(true)
			}

			err = manager.Apply(cmd.Context(), action, upgrade.ItemRef{GroupID: groupID, StageID: stageID})
			if err != nil {
				return err
			}

			return printJSON(cmd, manager.State())
		},
	}

	cmd.Flags().Int64Var(&groupID, "group", 0, "upgrade group id")
	cmd.Flags().Int64Var(&stageID, "stage", 0, "upgrade item stage id")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("stage")

	return cmd
}
