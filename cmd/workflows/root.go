package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"streamer-live-bot/internal/config"
	"streamer-live-bot/internal/infra/adapters/workflow"
	"streamer-live-bot/internal/infra/logging"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "workflows",
		Short:        "Inspect and clean up remote streamer workflows",
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().String("config", "", "Config file path (optional).")
	cmd.PersistentFlags().String("api-url", config.DefaultAutomationBaseURL, "Workflow API base URL.")
	cmd.PersistentFlags().String("auth-token", "", "Workflow API token.")
	cmd.PersistentFlags().String("auth-scheme", "", "Scheme prepended to the token, e.g. Bearer.")
	cmd.PersistentFlags().Duration("timeout", 15*time.Second, "Per-request timeout.")
	cmd.PersistentFlags().String("log-level", "warn", "Logging level.")

	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("api.url", cmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("auth.token", cmd.PersistentFlags().Lookup("auth-token"))
	_ = viper.BindPFlag("api.auth_scheme", cmd.PersistentFlags().Lookup("auth-scheme"))
	_ = viper.BindPFlag("api.timeout", cmd.PersistentFlags().Lookup("timeout"))
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newDeleteAllCmd())
	cmd.AddCommand(newAdminTokenCmd())
	return cmd
}

// initConfig maps keys to the same environment names the bot reads:
// api.url -> API_URL, auth.token -> AUTH_TOKEN, admin.jwt_secret -> ADMIN_JWT_SECRET.
func initConfig() {
	_ = godotenv.Load()

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cfgFile := strings.TrimSpace(viper.GetString("config"))
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
	}
}

func flagOrViperString(cmd *cobra.Command, flagName, key string) string {
	if cmd != nil {
		if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
			v, _ := cmd.Flags().GetString(flagName)
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(viper.GetString(key))
}

func flagOrViperDuration(cmd *cobra.Command, flagName, key string) time.Duration {
	if cmd != nil {
		if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
			v, _ := cmd.Flags().GetDuration(flagName)
			return v
		}
	}
	return viper.GetDuration(key)
}

func cliLogger() *zerolog.Logger {
	return logging.New(config.LogConfig{Level: viper.GetString("log.level"), Format: "console"}, true)
}

func gatewayFromViper(cmd *cobra.Command) (*workflow.OtomatoGateway, error) {
	token := flagOrViperString(cmd, "auth-token", "auth.token")
	if token == "" {
		// the bot also accepts OTOMATO_TOKEN
		token = strings.TrimSpace(os.Getenv("OTOMATO_TOKEN"))
	}
	return workflow.NewOtomatoGateway(config.AutomationConfig{
		BaseURL:    strings.TrimRight(flagOrViperString(cmd, "api-url", "api.url"), "/"),
		Token:      token,
		AuthScheme: flagOrViperString(cmd, "auth-scheme", "api.auth_scheme"),
		Timeout:    flagOrViperDuration(cmd, "timeout", "api.timeout"),
	}, cliLogger())
}
