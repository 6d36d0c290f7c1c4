package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/foliodev/folio/internal/client"
	"github.com/foliodev/folio/internal/model"
)

func newContentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Read and replace portfolio content buckets",
	}
	cmd.AddCommand(newContentGetCmd())
	cmd.AddCommand(newContentPutCmd())
	cmd.AddCommand(newContentPullCmd())
	return cmd
}

func newContentGetCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "get <type>",
		Short: "Print one bucket as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openClient(server)
			if err != nil {
				return err
			}
			resp, err := c.GetContent(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			if resp.IsDefault {
				fmt.Fprintf(cmd.ErrOrStderr(), "(%s has not been written yet; showing the default)\n", args[0])
			}
			return printJSON(cmd.OutOrStdout(), resp.Data)
		},
	}
	addClientFlags(cmd, &server)
	return cmd
}

func newContentPutCmd() *cobra.Command {
	var (
		server string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "put <type>",
		Short: "Replace one bucket with a JSON document",
		Long: `Replace the whole document stored under a bucket. The file holds the new
document itself, not a {"data": ...} wrapper. Use '-' to read stdin.`,
		Example: `  folio content put projects --file projects.json
  cat profile.json | folio content put profile --file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openClient(server)
			if err != nil {
				return err
			}
			return runContentPut(cmdContext(cmd), c, cmd.InOrStdin(), cmd.OutOrStdout(), args[0], file)
		},
	}
	addClientFlags(cmd, &server)
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON document to upload (required, '-' for stdin)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runContentPut(ctx context.Context, c *client.Client, stdin io.Reader, out io.Writer, key, file string) error {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s does not contain valid JSON", file)
	}
	if !c.Session().Authenticated() {
		return errors.New("not signed in (run 'folio login')")
	}

	if err := c.PutContent(ctx, key, json.RawMessage(data)); err != nil {
		if errors.Is(err, client.ErrSessionExpired) {
			return fmt.Errorf("%w (run 'folio login')", err)
		}
		return err
	}
	fmt.Fprintf(out, "Saved %s\n", key)
	return nil
}

func newContentPullCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch every known bucket at once and print the portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openClient(server)
			if err != nil {
				return err
			}
			return runContentPull(cmdContext(cmd), c, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addClientFlags(cmd, &server)
	return cmd
}

func runContentPull(ctx context.Context, c *client.Client, out, errOut io.Writer) error {
	portfolio, errs := c.LoadPortfolio(ctx, model.DefaultPortfolio())
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(errOut, "warning: %s: %v (using default)\n", k, errs[k])
	}
	if len(errs) == len(model.KnownBuckets) {
		return errors.New("no bucket could be loaded")
	}
	return printJSON(out, portfolio)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}
