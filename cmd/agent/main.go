// Command agent serves AG-UI runs over SSE, protobuf frames and Connect RPC.
package main

import (
	"fmt"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"agui-stream/internal/config"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "AG-UI agent server",
	Long: `Agent streams AG-UI protocol events for every run it is sent.
Responses come from an echo provider, a scripted YAML provider or a
Google ADK agent backed by Gemini.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
		var err error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if err == nil && f.Name != "config" {
				err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
			}
		})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String(flagName(config.KeyPort), "8000", "Port to listen on")
	f.String(flagName(config.KeyProvider), config.ProviderEcho, "Response provider: echo, script or adk")
	f.String(flagName(config.KeyScriptPath), "", "YAML script for the script provider")
	f.String(flagName(config.KeyModel), "gemini-2.5-flash", "Gemini model for the adk provider")
	f.Duration(flagName(config.KeyRunTimeout), 0, "Upper bound on one run (default 60s)")
	f.Duration(flagName(config.KeyHeartbeat), 0, "SSE keep-alive interval (default 15s)")
	f.String(flagName(config.KeyCORSOrigin), "*", "Allowed CORS origin")
	f.String(flagName(config.KeyLogLevel), "info", "Log level: debug, info, warn or error")
	f.String(flagName(config.KeyLogFormat), "console", "Log format: console or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func flagName(key string) string { return strings.ReplaceAll(key, "_", "-") }
