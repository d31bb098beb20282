package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nimburion/docgate/pkg/document"
	"github.com/nimburion/docgate/pkg/gateway"
	"github.com/nimburion/docgate/pkg/health"
	"github.com/nimburion/docgate/pkg/version"
	"github.com/spf13/cobra"
)

func newGetCommand(run runFunc) *cobra.Command {
	var asHandle bool
	cmd := &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Read one document by handle or legacy numeric id",
		Long: "Read one document. An integer id matches the legacy numeric \"id\" field;\n" +
			"anything else is the store handle. Use --handle to force handle lookup.",
		Args: cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			id := document.ParseID(args[1])
			if asHandle {
				id = document.HandleID(args[1])
			}
			doc, err := s.gw.ReadByID(ctx, args[0], id)
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("document %s/%s not found", args[0], args[1])
			}
			return render(s.out, s.format, doc.Flatten())
		}),
	}
	cmd.Flags().BoolVar(&asHandle, "handle", false, "treat the id as a store handle even when it is numeric")
	return cmd
}

func newSetCommand(run runFunc) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "set <table> <handle>",
		Short: "Create or fully overwrite a document",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			fields, err := readFields(data, s.in)
			if err != nil {
				return err
			}
			return renderResult(s, "set", args[1], s.gw.Write(ctx, args[0], args[1], fields))
		}),
	}
	addDataFlag(cmd, &data)
	return cmd
}

func newUpdateCommand(run runFunc) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "update <table> <handle>",
		Short: "Merge fields into an existing document",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			fields, err := readFields(data, s.in)
			if err != nil {
				return err
			}
			return renderResult(s, "update", args[1], s.gw.Update(ctx, args[0], args[1], fields))
		}),
	}
	addDataFlag(cmd, &data)
	return cmd
}

func newAddCommand(run runFunc) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "add <table>",
		Short: "Write a document under a store-assigned handle",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			fields, err := readFields(data, s.in)
			if err != nil {
				return err
			}
			handle, res := s.gw.Add(ctx, args[0], fields)
			return renderResult(s, "add", handle, res)
		}),
	}
	addDataFlag(cmd, &data)
	return cmd
}

func newDeleteCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <handle>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			return renderResult(s, "delete", args[1], s.gw.Delete(ctx, args[0], args[1]))
		}),
	}
}

func newCountCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "count <table> <handle>",
		Short: "Read the stored counter of a document",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			n, err := s.gw.ReadCount(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return render(s.out, s.format, map[string]int64{"count": n})
		}),
	}
}

func newQueryCommand(run runFunc) *cobra.Command {
	var (
		wheres []string
		sortBy string
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Run a filtered, sorted, paginated query",
		Example: `  docgate query orders --where "status == paid" --where "total > 10" --sort created --limit 20
  docgate query orders --where "region in [eu, us]" --cursor <cursor from previous page>`,
		Args: cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			spec := document.QuerySpec{
				Table:        args[0],
				SortingField: sortBy,
				Limit:        limit,
				Cursor:       document.Cursor(cursor),
			}
			for _, expr := range wheres {
				f, err := ParseWhere(expr)
				if err != nil {
					return err
				}
				spec.Filters = append(spec.Filters, f)
			}
			page, err := s.composer.Run(ctx, spec)
			if err != nil {
				return err
			}
			return render(s.out, s.format, pageOutput{Data: flattenAll(page.Data), Cursor: page.Cursor.String()})
		}),
	}
	cmd.Flags().StringArrayVarP(&wheres, "where", "w", nil, `filter "field op value" (repeatable)`)
	cmd.Flags().StringVarP(&sortBy, "sort", "s", "", "ascending sort field")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of documents (0 = no limit)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue after the cursor of a previous page")
	return cmd
}

func newManyCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "many <table> [ids...]",
		Short: "Read documents by legacy numeric ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, raw := range args[1:] {
				n, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid numeric id %q: %w", raw, err)
				}
				ids = append(ids, n)
			}
			docs, err := s.composer.ReadManyByID(ctx, args[0], ids)
			if err != nil {
				return err
			}
			return render(s.out, s.format, flattenAll(docs))
		}),
	}
}

func newAllCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "all <table>",
		Short: "Read every document of a table",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, s *session, args []string) error {
			docs, err := s.composer.ReadAll(ctx, args[0])
			if err != nil {
				return err
			}
			return render(s.out, s.format, flattenAll(docs))
		}),
	}
}

func newPingCommand(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the document store",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, _ []string) error {
			registry := health.NewRegistry(health.NewStoreChecker(s.gw, s.cfg.Store.OperationTimeout))
			if _, ok := s.gw.BreakerState(); ok {
				registry.Register(health.NewBreakerChecker(s.gw))
			}
			result := registry.Check(ctx)
			if err := render(s.out, s.format, result); err != nil {
				return err
			}
			if !result.IsHealthy() {
				return fmt.Errorf("document store is %s", result.Status)
			}
			return nil
		}),
	}
}

func newConfigCommand(flags *globalFlags, opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, secrets, _, err := LoadConfigAndLogger(flags.configPath, opts.EnvPrefix, flags.secretFilePath, opts.Name)
			if err != nil {
				return err
			}
			_, err = io.WriteString(c.OutOrStdout(), cfg.Redacted(secrets))
			return err
		},
	})
	return cmd
}

func newVersionCommand(flags *globalFlags, opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if err := validateFormat(flags.output); err != nil {
				return err
			}
			return render(c.OutOrStdout(), flags.output, version.Current(opts.Name))
		},
	}
}

func addDataFlag(cmd *cobra.Command, data *string) {
	cmd.Flags().StringVarP(data, "data", "d", "", "document fields as JSON or YAML; @file reads a file, - reads stdin")
	_ = cmd.MarkFlagRequired("data")
}

// readFields resolves the --data flag value into a field map.
func readFields(data string, stdin io.Reader) (map[string]any, error) {
	var raw []byte
	switch {
	case data == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(data, "@"))
		if err != nil {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		raw = b
	default:
		raw = []byte(data)
	}
	return parseFields(raw)
}

var errOperationFailed = errors.New("operation failed")

func renderResult(s *session, op, handle string, res gateway.Result) error {
	if !res.OK {
		return fmt.Errorf("%s %s: %w: %s", op, handle, errOperationFailed, res)
	}
	return render(s.out, s.format, resultOutput{OK: true, ID: handle})
}
