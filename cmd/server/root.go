package main

import (
	"errors"
	"fmt"

	"github.com/aiadmin/ai-admin/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	flags      *pflag.FlagSet
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "ai-admin",
		Short:        "ai-admin runs docker, ollama and LLM jobs in a bounded background queue",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default: ./config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug | info | warn | error")
	opts.flags = cmd.PersistentFlags()

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newHashKeyCmd(),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the optional config file, binds the persistent flags and
// returns the validated configuration.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	v := viper.New()
	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := bindFlag(v, "server.log_level", o.flags, "log-level"); err != nil {
		return nil, err
	}

	return config.LoadWithViper(v)
}

// bindFlag binds a flag only when it was set, so an empty flag default does
// not shadow the environment or the config file.
func bindFlag(v *viper.Viper, key string, fs *pflag.FlagSet, name string) error {
	flag := fs.Lookup(name)
	if flag == nil {
		return fmt.Errorf("bindFlag %q: no such flag", name)
	}
	if !flag.Changed {
		return nil
	}
	if err := v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("bindFlag %q → %q: %w", name, key, err)
	}
	return nil
}
