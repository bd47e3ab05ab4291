// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"pitchscope/internal/config"
	"pitchscope/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected on the command line.
const (
	CommandRun  = "run"
	CommandList = "list"
	CommandPick = "pick"
)

// Options is the parsed command line: which command to run and the
// configuration it runs with. Command is empty when cobra already handled
// the invocation (help, version).
type Options struct {
	Command    string
	Config     *config.Config
	InputsOnly bool // list: skip devices without input channels.
}

type flagValues struct {
	configPath string
	device     int
	input      string
	gain       float64
	headless   bool
	verbose    bool
	lowLatency bool
	noMonitor  bool
	loop       bool
}

// ParseArgs parses args (without the program name), loads the config file
// and applies flag overrides on top of it.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.Get()
	options := &Options{}
	var flags flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			options.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVar(&options.InputsOnly, "inputs", false,
		"Only show devices with input channels")
	rootCmd.AddCommand(listCmd)

	pickCmd := &cobra.Command{
		Use:   "pick",
		Short: "Choose an input device interactively, then start",
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandPick
			return nil
		},
	}
	rootCmd.AddCommand(pickCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "",
		"Path to a YAML config file (default: ./"+config.DefaultPath+" if present)")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Use the device's low input latency")
	pf.BoolVar(&flags.noMonitor, "no-monitor", false,
		"Do not echo input to the output device")

	// File input
	pf.StringVarP(&flags.input, "input", "i", "",
		"Replay a WAV file instead of opening a device")
	pf.BoolVar(&flags.loop, "loop", false,
		"Restart the input file when it ends")

	// Display
	pf.Float64VarP(&flags.gain, "gain", "g", 10,
		"Initial visualization gain (1-100)")
	pf.BoolVar(&flags.headless, "headless", false,
		"Log pitch instead of drawing the terminal UI")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, flags *flagValues) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Audio.InputDevice = flags.device
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = flags.lowLatency
	}
	if changed("no-monitor") {
		cfg.Audio.Monitor = !flags.noMonitor
	}
	if changed("input") {
		cfg.Audio.InputFile = flags.input
	}
	if changed("loop") {
		cfg.Audio.Loop = flags.loop
	}
	if changed("gain") {
		cfg.Gain.Default = flags.gain
	}
	if changed("headless") {
		cfg.Display.Headless = flags.headless
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
