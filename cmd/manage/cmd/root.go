package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manageconsole/manage/cmd/manage/internal/config"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "manage",
	Short: "Manage console for service access",
	Long: `Manage is a server-rendered admin console where service managers edit
their service configuration and banners and manage users' roles.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is normal outside local development.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		config.SetDefaults(viper.GetViper())
		viper.SetEnvPrefix(config.EnvPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		level := viper.GetString("log_level")
		if viper.GetBool("debug") {
			level = "debug"
		}
		logging.Init(level, viper.GetString("log_format"))
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a config file (yaml, json or toml)")
	flags.String("server-addr", "", "Server bind address (env: MANAGE_SERVER_ADDR)")
	flags.String("server-url", "", "Public base URL (env: MANAGE_SERVER_URL)")
	flags.String("db-url", "", "Database connection URL for the session store (env: MANAGE_DATABASE_URL)")
	flags.Bool("debug", false, "Enable debug logging (env: MANAGE_DEBUG)")
	flags.String("log-format", "", "Log format, json or text (env: MANAGE_LOG_FORMAT)")

	for key, flag := range map[string]string{
		"server_addr":  "server-addr",
		"server_url":   "server-url",
		"database_url": "db-url",
		"debug":        "debug",
		"log_format":   "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
