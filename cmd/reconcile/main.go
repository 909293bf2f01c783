package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/expense-reconciler/internal/app"
	"github.com/joseph-ayodele/expense-reconciler/internal/common"
)

// localUser is the user every command acts for unless --user is given.
var localUser = uuid.NewSHA1(uuid.NameSpaceURL, []byte("expense-reconciler:local"))

var (
	cfgFile string
	v       = common.NewViper()
	rootCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Extract, parse and reconcile expense artifacts",
		Long: `reconcile turns receipts, scanned statements, SMS text, QR payment strings
and ZIP bundles of them into transaction candidates, flagging duplicates and
anomalies against the user's stored history.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (keys as the environment variable names)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("db", "", "database DSN (overrides DB_URL)")
	rootCmd.PersistentFlags().Bool("inmem", false, "use an in-memory SQLite database")
	rootCmd.PersistentFlags().String("user", localUser.String(), "user ID to reconcile for")

	_ = v.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("LOG_FORMAT", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(fileCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(dirCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(qrCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(usageCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	if dsn, _ := cmd.Flags().GetString("db"); dsn != "" {
		v.Set("DB_URL", dsn)
	}

	logger, err := common.NewLogger(os.Stderr, v.GetString("LOG_LEVEL"), v.GetString("LOG_FORMAT"))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	return nil
}

// openApp builds the pipeline from the loaded configuration.
func openApp(cmd *cobra.Command) (*app.App, error) {
	inmem, _ := cmd.Flags().GetBool("inmem")
	return app.New(cmd.Context(), common.FromViper(v), inmem, slog.Default())
}

func userID(cmd *cobra.Command) (uuid.UUID, error) {
	s, _ := cmd.Flags().GetString("user")
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--user must be a UUID: %w", err)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, val any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(val)
}
