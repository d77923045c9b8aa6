package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "claudechat",
	Short: "claudechat is a web chat front-end for the Anthropic Messages API",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
	SilenceUsage: true,
}

func initConfig(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("claudechat")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("claudechat")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.claudechat")
		viper.AddConfigPath("/etc/claudechat")
	}

	err := viper.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// the env names the hosted deployments already use
	if err := viper.BindEnv("anthropic-api-key", "CLAUDECHAT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return err
	}
	if err := viper.BindEnv("secret-key", "CLAUDECHAT_SECRET_KEY", "SECRET_KEY"); err != nil {
		return err
	}

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return err
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func configPathFromArgs(args []string) string {
	for idx, arg := range args {
		if arg == "--config" && len(args) > idx+1 {
			return args[idx+1]
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
	}
	return ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./claudechat.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	err := initConfig(rootCmd, configPathFromArgs(os.Args[1:]))
	cobra.CheckErr(err)

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(versionCmd)
}
