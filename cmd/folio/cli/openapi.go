package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foliodev/folio/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		outputFile string
		baseURL    string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI description of the HTTP API",
		Example: `  folio openapi
  folio openapi --base-url https://folio.example.com -o openapi.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := openapi.Generate(baseURL, versionString())
			b, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal openapi document: %w", err)
			}
			b = append(b, '\n')
			if outputFile == "" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(outputFile, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outputFile, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the document to a file instead of stdout")
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "Server URL to advertise")

	return cmd
}
