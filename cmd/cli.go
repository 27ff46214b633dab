package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"audiomap/internal/config"
	applog "audiomap/internal/log"
	"audiomap/internal/platform"
	"audiomap/internal/tui"
	"audiomap/pkg/audiomap"
	"audiomap/pkg/build"

	"github.com/spf13/cobra"
)

// newDetector builds the detector every command works on. Tests replace it.
var newDetector = func(cfg *config.Config, opts ...audiomap.Option) (*audiomap.Detector, error) {
	return audiomap.New(append([]audiomap.Option{audiomap.WithConfig(cfg)}, opts...)...)
}

// describeHost is swapped in tests.
var describeHost = platform.Describe

// cli holds the global flag values and the resolved configuration.
type cli struct {
	configPath      string
	backend         string
	timeout         time.Duration
	format          string
	logLevel        string
	verbose         bool
	includeMonitors bool
	hostAPI         string

	cfg *config.Config
	out io.Writer
}

// NewRootCommand builds the audiomap command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	buildInfo := build.GetBuildFlags()
	c := &cli{out: out}

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
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.configure(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.list(audiomap.DirectionUnknown)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "",
		"Path to a YAML config file (default: ./audiomap.yaml, then the user config dir)")
	flags.StringVar(&c.backend, "backend", config.DefaultBackend,
		"Enumeration backend: native, portaudio or auto")
	flags.DurationVar(&c.timeout, "timeout", config.DefaultTimeout,
		"Bound on one device enumeration")
	flags.StringVarP(&c.format, "format", "f", formatTable,
		"Output format: table, json or yaml")
	flags.StringVar(&c.logLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn, error or none")
	flags.BoolVarP(&c.verbose, "verbose", "v", false,
		"Show verbose output (same as --log-level debug)")
	flags.BoolVar(&c.includeMonitors, "include-monitors", false,
		"Keep PulseAudio monitor sources")
	flags.StringVar(&c.hostAPI, "host-api", "",
		"Restrict the portaudio backend to one host API, e.g. \"Windows WASAPI\"")

	var listInput, listOutput bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case listInput && !listOutput:
				return c.list(audiomap.DirectionInput)
			case listOutput && !listInput:
				return c.list(audiomap.DirectionOutput)
			}
			return c.list(audiomap.DirectionUnknown)
		},
	}
	listCmd.Flags().BoolVarP(&listInput, "input", "i", false, "Only devices that can capture")
	listCmd.Flags().BoolVarP(&listOutput, "output", "o", false, "Only devices that can play back")

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Count input, output and total devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.count()
		},
	}

	var caseSensitive bool
	findCmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Find devices whose name contains query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return c.find(query, caseSensitive)
		},
	}
	findCmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "Match case exactly")

	platformCmd := &cobra.Command{
		Use:   "platform",
		Short: "Show the detected platform and backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.platform(cmd.Context())
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <uid>",
		Short: "Show one device with its native details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.show(cmd.Context(), args[0])
		},
	}

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse devices interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := c.detector()
			if err != nil {
				return err
			}
			defer det.Close()
			return tui.StartDeviceListUI(det, c.cfg.Detector.Timeout)
		},
	}

	rootCmd.AddCommand(listCmd, countCmd, findCmd, platformCmd, showCmd, tuiCmd, newServeCommand(c))
	return rootCmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand(stdout)
	rootCmd.SetErr(stderr)
	if args == nil {
		// cobra reads os.Args when given nil
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// configure loads the config file and applies the flags the user set on top
// before validating.
func (c *cli) configure(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := config.LoadConfig(c.configPath, func(cfg *config.Config) {
		if flags.Changed("backend") {
			cfg.Detector.Backend = c.backend
		}
		if flags.Changed("timeout") {
			cfg.Detector.Timeout = c.timeout
		}
		if flags.Changed("include-monitors") {
			cfg.Detector.IncludeMonitors = c.includeMonitors
		}
		if flags.Changed("host-api") {
			cfg.Detector.HostAPI = c.hostAPI
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = c.logLevel
		}
		if c.verbose {
			cfg.LogLevel = "debug"
		}
	})
	if err != nil {
		return err
	}
	if !validFormat(c.format) {
		return fmt.Errorf("invalid --format %q: must be table, json or yaml", c.format)
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetOutput(os.Stderr, cfg.LogFormat)
	applog.SetLevel(level)

	c.cfg = cfg
	return nil
}

func (c *cli) detector(opts ...audiomap.Option) (*audiomap.Detector, error) {
	return newDetector(c.cfg, opts...)
}

func (c *cli) list(dir audiomap.Direction) error {
	det, err := c.detector()
	if err != nil {
		return err
	}
	defer det.Close()

	var devices []audiomap.Device
	switch dir {
	case audiomap.DirectionInput:
		devices, err = det.ListInputDevices()
	case audiomap.DirectionOutput:
		devices, err = det.ListOutputDevices()
	default:
		devices, err = det.ListAllDevices()
	}
	if err != nil {
		return err
	}
	return writeDevices(c.out, c.format, devices)
}

func (c *cli) count() error {
	det, err := c.detector()
	if err != nil {
		return err
	}
	defer det.Close()

	counts, err := det.DeviceCount()
	if err != nil {
		return err
	}
	return writeCounts(c.out, c.format, counts)
}

func (c *cli) find(query string, caseSensitive bool) error {
	det, err := c.detector()
	if err != nil {
		return err
	}
	defer det.Close()

	var opts []audiomap.FindOption
	if caseSensitive {
		opts = append(opts, audiomap.CaseSensitive())
	}
	devices, err := det.Find(query, opts...)
	if err != nil {
		return err
	}
	return writeDevices(c.out, c.format, devices)
}

func (c *cli) platform(ctx context.Context) error {
	det, err := c.detector()
	if err != nil {
		return err
	}
	defer det.Close()

	info, err := describeHost(ctx, det.CurrentPlatform())
	if err != nil {
		applog.Warnf("platform: %v", err)
	}
	return writePlatform(c.out, c.format, platformReport{Info: info, Backend: det.Backend()})
}

func (c *cli) show(ctx context.Context, id string) error {
	det, err := c.detector()
	if err != nil {
		return err
	}
	defer det.Close()

	dev, details, err := det.Describe(ctx, id)
	if err != nil {
		return err
	}
	return writeDetails(c.out, c.format, dev, details)
}
