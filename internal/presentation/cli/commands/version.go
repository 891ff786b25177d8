package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/monetalabs/moneta/internal/presentation/cli/output"
)

// VersionInfo holds build information for JSON output.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func buildInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version, build information, and platform details for moneta.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(short)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")

	return cmd
}

// runVersion builds its own formatter: the version command runs without the
// initialized application context.
func runVersion(short bool) error {
	format := output.FormatText
	if globalFlags.Output == "json" {
		format = output.FormatJSON
	}
	formatter := output.NewFormatter(
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON && output.IsColorSupported()),
	)

	info := buildInfo()

	if short {
		if format == output.FormatJSON {
			return formatter.JSON(map[string]string{"version": info.Version})
		}
		return formatter.Println("%s", info.Version)
	}

	if format == output.FormatJSON {
		return formatter.JSON(info)
	}

	formatter.Header("Moneta " + info.Version)
	formatter.Item("Commit", info.GitCommit)
	formatter.Item("Built", info.BuildDate)
	formatter.Item("Go", info.GoVersion)
	formatter.Item("Platform", info.Platform)
	return nil
}
