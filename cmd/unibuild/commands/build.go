package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/unibuild/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	var opts app.BuildOptions
	var ci bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a catalog target or an external source tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// If --ci is set, override output-mode to "linear"
			if ci {
				opts.OutputMode = "linear"
			}
			return c.app.Build(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Target, "target", "", "Name of the catalog target to build")
	f.StringVar(&opts.Source, "source", "", "Path to an external source tree to detect and build")
	f.BoolVar(&opts.Xcode, "xcode", false, "Generate and open an Xcode project instead of building")
	f.StringVar(&opts.SourcePath, "source-path", "", "Directory for downloaded and cloned sources")
	f.StringVar(&opts.BuildPath, "build-path", "", "Build directory of the target")
	f.StringVar(&opts.OutputPath, "output-path", "", "Destination of output targets")
	f.StringVar(&opts.SDKPathX64, "sdk-path-x64", "", "macOS SDK used for x86_64")
	f.StringVar(&opts.SDKPathARM, "sdk-path-arm", "", "macOS SDK used for arm64")
	f.StringVar(&opts.OSVersionX64, "os-version-x64", "", "Minimum macOS version for x86_64")
	f.StringVar(&opts.OSVersionARM, "os-version-arm", "", "Minimum macOS version for arm64")
	f.BoolVar(&opts.DisableX64, "disable-x64", false, "Do not build for x86_64")
	f.BoolVar(&opts.DisableARM, "disable-arm", false, "Do not build for arm64")
	f.IntVarP(&opts.Jobs, "jobs", "j", 0, "Number of parallel build jobs (default: CPU count)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false, "Print the full tool command lines")
	f.StringVarP(&opts.OutputMode, "output-mode", "o", "auto", "Output mode: auto or linear")
	f.BoolVar(&ci, "ci", false, "Use linear output mode (shorthand for --output-mode=linear)")

	cmd.MarkFlagsMutuallyExclusive("target", "source")
	cmd.MarkFlagsOneRequired("target", "source")
	cmd.MarkFlagsMutuallyExclusive("disable-x64", "disable-arm")

	return cmd
}
