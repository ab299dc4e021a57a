// Command promptctl is a thin command-line client for the prompt service.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serviceURL string
	token      string
	devUser    string
	debug      bool
)

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "promptctl",
		Short:         "promptctl manages prompts, guilds and AI suggestions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "2006-01-02 15:04:05",
				NoColor:    true,
			})
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&serviceURL, "service-url", getEnv("PROMPTGUILD_SERVICE_URL", "http://localhost:8080"), "Base URL of the prompt service")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PROMPTGUILD_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().StringVar(&devUser, "dev-user", os.Getenv("PROMPTGUILD_DEV_USER"), "Act as this user against a dev-mode service (ignored when --token is set)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable verbose debug output")

	rootCmd.AddCommand(newPromptsCmd())
	rootCmd.AddCommand(newGuildsCmd())
	rootCmd.AddCommand(newSuggestCmd())
	rootCmd.AddCommand(newWhoAmICmd())
	return rootCmd
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
