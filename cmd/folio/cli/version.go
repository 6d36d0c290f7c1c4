package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/foliodev/folio/internal/store"
)

type versionInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	Built     string   `json:"built"`
	GoVersion string   `json:"go_version"`
	Platform  string   `json:"platform"`
	Databases []string `json:"databases"`
}

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{
				Version:   version,
				Commit:    commit,
				Built:     date,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
				Databases: []string{
					string(store.DialectSQLite),
					string(store.DialectPostgres),
					string(store.DialectMySQL),
				},
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, info)
			}
			fmt.Fprintf(out, "folio %s\n", info.Version)
			fmt.Fprintf(out, "  commit:    %s\n", info.Commit)
			fmt.Fprintf(out, "  built:     %s\n", info.Built)
			fmt.Fprintf(out, "  go:        %s\n", info.GoVersion)
			fmt.Fprintf(out, "  os/arch:   %s\n", info.Platform)
			fmt.Fprintf(out, "  databases: %v\n", info.Databases)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}
