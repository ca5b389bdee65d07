package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/roffe/muxscope/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:          "muxscope",
	Short:        "Live view of multiplexed ADC scanner frames",
	Long:         `Reads frames from a mux scanner over serial or vendor HID and shows them as a grid`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(debug)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

const (
	flagConfig   = "config"
	flagPort     = "port"
	flagBaudrate = "baudrate"
	flagDecoder  = "decoder"
	flagDebug    = "debug"
)

var (
	configFile  string
	comPort     string
	baudRate    int
	decoderName string
	debug       bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, flagConfig, "c", "", "yaml config file")
	pf.StringVarP(&comPort, flagPort, "p", "", "com-port, * = pick from available")
	pf.IntVarP(&baudRate, flagBaudrate, "b", 115200, "baudrate")
	pf.StringVarP(&decoderName, flagDecoder, "D", config.DefaultDecoder, "frame decoder, see 'muxscope decoders'")
	pf.BoolVarP(&debug, flagDebug, "d", false, "debug mode")
}

func setupLogging(debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// loadConfig builds the configuration from the config file, or the decoder
// preset when no file is given, with command line flags taking precedence.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	pf := rootCmd.PersistentFlags()
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
		if pf.Changed(flagDecoder) {
			cfg.Decoder = decoderName
		}
	} else {
		cfg = config.Default(decoderName)
	}
	applyFlags(cfg, comPort, pf.Changed(flagPort), baudRate, pf.Changed(flagBaudrate) || configFile == "")
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	log.Debug().
		Str("decoder", cfg.Decoder).
		Str("grid", fmt.Sprintf("%dx%d", cfg.Rows, cfg.Cols)).
		Str("port", cfg.Serial.Port).
		Msg("config loaded")
	return cfg, nil
}

func applyFlags(cfg *config.Config, port string, portSet bool, baudrate int, baudSet bool) {
	if portSet || cfg.Serial.Port == "" {
		cfg.Serial.Port = port
	}
	if baudSet {
		cfg.Serial.Baudrate = baudrate
	}
}
