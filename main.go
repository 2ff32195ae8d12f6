package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kwv/trackmesh/log"
)

// Version is set at build time via -ldflags
var Version = "dev"

const envPrefix = "TRACKMESH"

var (
	opts  AppOptions
	debug bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "trackmesh",
	Short:   "Build track maps from calibration laps",
	Long:    "trackmesh fits a smooth closed centerline and per-sample track widths from laps driven along the left edge, right edge and center of a circuit.",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.InitDevelopmentLogger()
		} else {
			log.InitProductionLogger()
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to config file")
	pf.BoolVar(&debug, "debug", false, "Enable development logging")
	pf.StringVar(&opts.LapDir, "lap-dir", "", "Directory containing lap JSON files (overrides config)")
	pf.StringSliceVar(&opts.Laps, "laps", nil, "Explicit lap files (overrides lap discovery)")
	pf.StringVar(&opts.OutputDir, "out", "", "Output directory (overrides config)")

	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPublishCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp builds an App from the parsed flags and loads its configuration
func newApp() (*App, error) {
	app := NewApp()
	app.ApplyOptions(opts)
	if err := app.LoadConfig(); err != nil {
		return nil, err
	}
	return app, nil
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the track map from the configured laps",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			oc := &app.Config.Output
			for name, dst := range map[string]*bool{"geojson": &oc.GeoJSON, "svg": &oc.SVG, "png": &oc.PNG, "plot": &oc.Plot} {
				if cmd.Flags().Changed(name) {
					*dst, _ = cmd.Flags().GetBool(name)
				}
			}
			return app.RunGenerate()
		},
	}
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "Publish the generated map over MQTT")
	cmd.Flags().Bool("geojson", false, "Also write GeoJSON")
	cmd.Flags().Bool("svg", false, "Also write an SVG preview")
	cmd.Flags().Bool("png", false, "Also write a PNG preview")
	cmd.Flags().Bool("plot", false, "Also write the width profile chart")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Parse the laps and print a summary of each",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.RunInspect()
		},
	}
}

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a saved track map",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.RunRender()
		},
	}
	cmd.Flags().StringVar(&opts.InputFile, "input", "", "Saved track map JSON")
	cmd.Flags().StringVar(&opts.RenderFormat, "format", "svg", "Output format: svg, png, raster or plot")
	cmd.Flags().StringVar(&opts.OutputFile, "output", "", "Output file (default derived from --input)")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated track maps over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.RunServe()
		},
	}
	cmd.Flags().StringVar(&opts.HTTPAddr, "addr", "", "HTTP listen address (overrides config)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Regenerate when lap files change")
	return cmd
}

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a saved track map over MQTT",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.RunPublish()
		},
	}
	cmd.Flags().StringVar(&opts.InputFile, "input", "", "Saved track map JSON")
	return cmd
}

// initConfig reads in ENV variables if set. The YAML config file itself is
// loaded by the track package.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated environment variable, e.g.
// --lap-dir to TRACKMESH_LAP_DIR
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v\n", f.Name, err)
			}
			// Apply the viper config value to the flag when the flag is not set
			// and viper has a value
			if !f.Changed && v.IsSet(f.Name) {
				val := v.Get(f.Name)
				if err := fs.Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
					fmt.Fprintf(os.Stderr, "Could not set flag %s: %v\n", f.Name, err)
				}
			}
		})
	}
}
