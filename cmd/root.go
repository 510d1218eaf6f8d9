package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/platewatch-go/cmd/cameras"
	"github.com/tphakala/platewatch-go/cmd/realtime"
	"github.com/tphakala/platewatch-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "platewatch",
		Short: "PlateWatch vehicle tracking CLI",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		realtime.Command(settings),
		cameras.Command(settings),
	)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Redis.Host, "redishost", viper.GetString("redis.host"), "Redis server host")
	rootCmd.PersistentFlags().IntVar(&settings.Redis.Port, "redisport", viper.GetInt("redis.port"), "Redis server port")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding persistent flags: %v\n", err)
	}
}
