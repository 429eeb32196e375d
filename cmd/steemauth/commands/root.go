package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"steemauth/internal/app"
	"steemauth/internal/domain"
	"steemauth/internal/prompt"
)

// annotationBridge marks commands whose prompts go to the HTTP prompt queue
// instead of the terminal.
const annotationBridge = "bridge"

var (
	configFile string
	cfg        app.Config
	log        zerolog.Logger
	appCtx     *app.Wire
	terminal   *prompt.Terminal
)

// Execute runs the CLI.
func Execute() error {
	defaults := app.DefaultConfig("")
	v := viper.New()

	root := &cobra.Command{
		Use:           "steemauth",
		Short:         "Steem account sessions and transaction signing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := loadConfig(v, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
			log = zerolog.New(os.Stderr).With().Timestamp().Logger()
			level, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("could not parse log level: %w", err)
			}
			log = log.Level(level)

			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}

			terminal = prompt.NewTerminal(os.Stdin, os.Stderr)
			var prompter app.Prompter = terminal
			if _, ok := cmd.Annotations[annotationBridge]; ok {
				prompter = nil
			}
			appCtx, err = app.NewWire(cfg, log, prompter)
			if err != nil {
				return err
			}
			appCtx.Restore(cmd.Context())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	flags.String("home", "", "data dir (default ~/.steemauth)")
	flags.String("app", defaults.AppName, "application name, used as storage prefix and SteemLogin client id")
	flags.String("storage", defaults.StorageBackend, "storage backend (file or badger)")
	flags.String("rpc", defaults.RPCURL, "Steem API node URL")
	flags.String("chain-id", defaults.ChainID, "hex chain id mixed into signatures")
	flags.String("address-prefix", defaults.AddressPrefix, "public key prefix")
	flags.String("steemlogin-url", defaults.SteemLoginURL, "SteemLogin base URL")
	flags.String("steemlogin-api", defaults.SteemLoginAPI, "SteemLogin API URL")
	flags.String("callback-url", "", "SteemLogin redirect target")
	flags.String("listen", defaults.Listen, "address of the HTTP bridge")
	flags.String("switch-policy", defaults.SwitchPolicy, "account switch policy (trust-cached or revalidate)")
	flags.String("log-level", defaults.LogLevel, "log output level")
	flags.Int("iterations", defaults.Iterations, "PBKDF2 iterations for PIN keys")
	flags.Int64("cache-size", defaults.CacheSize, "number of chain profiles to cache, 0 disables")
	flags.Duration("cache-ttl", defaults.CacheTTL, "lifetime of cached chain profiles")

	root.AddCommand(
		loginCmd(),
		logoutCmd(),
		accountsCmd(),
		switchCmd(),
		whoamiCmd(),
		sendCmd(),
		serveCmd(),
	)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", domain.Message(err))
	}
	return err
}

// loadConfig merges flags, STEEMAUTH_ environment variables and the optional
// config file into cfg, in that order of precedence.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	err := v.BindPFlags(flags)
	if err != nil {
		return err
	}
	v.SetEnvPrefix("STEEMAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config file: %w", err)
		}
	}

	cfg = app.Config{}
	err = v.Unmarshal(&cfg)
	if err != nil {
		return fmt.Errorf("could not decode configuration: %w", err)
	}

	if cfg.Home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cfg.Home = filepath.Join(dir, ".steemauth")
	}
	return nil
}
