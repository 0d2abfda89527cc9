package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/bitable-client/internal/constants"
	"github.com/fivetwenty-io/bitable-client/internal/export"
	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// NewRecordsCommand creates the records command group.
func NewRecordsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record", "rec"},
		Short:   "Manage table records",
		Long:    "Insert, update, delete, search and export records of a bitable table",
	}

	cmd.AddCommand(newRecordsInsertCommand())
	cmd.AddCommand(newRecordsUpdateCommand())
	cmd.AddCommand(newRecordsDeleteCommand())
	cmd.AddCommand(newRecordsSearchCommand())
	cmd.AddCommand(newRecordsExportCommand())
	cmd.AddCommand(newRecordsImportCommand())

	return cmd
}

func addRecordInputFlags(cmd *cobra.Command, data, file *string) {
	cmd.Flags().StringVar(data, "data", "", "record fields as a JSON object")
	cmd.Flags().StringVarP(file, "file", "f", "", "file holding record fields (.json, .yaml or .yml)")
}

func outputRecord(writer io.Writer, record *bitable.Record) error {
	handled, err := outputStructured(writer, record)
	if handled || err != nil {
		return err
	}

	return renderRecords(writer, []bitable.Record{*record})
}

func newRecordsInsertCommand() *cobra.Command {
	var data, file string

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a record",
		Long:  "Create a new record from --data or --file and print it with its record ID",
		Example: `  bitable records insert --data '{"Name":"Alice","Age":30}'
  bitable records insert -f record.yaml -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := readRecordFields(data, file)
			if err != nil {
				return err
			}

			table, err := createTable(cmd.Context(), true)
			if err != nil {
				return err
			}

			record, err := table.Insert(cmd.Context(), fields)
			if err != nil {
				return err
			}

			return outputRecord(cmd.OutOrStdout(), record)
		},
	}

	addRecordInputFlags(cmd, &data, &file)

	return cmd
}

func newRecordsUpdateCommand() *cobra.Command {
	var data, file string

	cmd := &cobra.Command{
		Use:   "update RECORD_ID",
		Short: "Update a record",
		Long:  "Overwrite the given fields of an existing record. Fields not named are left unchanged.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := readRecordFields(data, file)
			if err != nil {
				return err
			}

			table, err := createTable(cmd.Context(), true)
			if err != nil {
				return err
			}

			record, err := table.Update(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}

			return outputRecord(cmd.OutOrStdout(), record)
		},
	}

	addRecordInputFlags(cmd, &data, &file)

	return cmd
}

func newRecordsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete RECORD_ID",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := createTable(cmd.Context(), true)
			if err != nil {
				return err
			}

			err = table.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %s\n", args[0])

			return nil
		},
	}
}

// searchFlags are shared by search and export.
type searchFlags struct {
	filterFile string
	sort       []string
	pageSize   int
	pageToken  string
	viewID     string
	fields     []string
}

func (f *searchFlags) register(cmd *cobra.Command, withPageToken bool) {
	cmd.Flags().StringVar(&f.filterFile, "filter-file", "", "filter definition (.json, .yaml or .yml)")
	cmd.Flags().StringSliceVar(&f.sort, "sort", nil, "sort by field, field:desc for descending (repeatable)")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, fmt.Sprintf("records per page (max %d)", constants.MaxPageSize))
	cmd.Flags().StringVar(&f.viewID, "view-id", "", "restrict to the records of a view")
	cmd.Flags().StringSliceVar(&f.fields, "field", nil, "only return the named fields (repeatable)")

	if withPageToken {
		cmd.Flags().StringVar(&f.pageToken, "page-token", "", "continue from a previous page")
	}
}

func (f *searchFlags) options() (*bitable.SearchOptions, error) {
	opts := &bitable.SearchOptions{
		PageToken:  f.pageToken,
		PageSize:   f.pageSize,
		ViewID:     f.viewID,
		FieldNames: f.fields,
	}

	if f.filterFile != "" {
		filter := &bitable.Filter{}

		err := readStructuredFile(f.filterFile, filter)
		if err != nil {
			return nil, err
		}

		opts.Filter = filter
	}

	sorts, err := parseSort(f.sort)
	if err != nil {
		return nil, err
	}

	if len(sorts) > 0 {
		opts.Sort = sorts
	}

	err = opts.Validate(constants.MaxPageSize)
	if err != nil {
		return nil, err
	}

	return opts, nil
}

func newRecordsSearchCommand() *cobra.Command {
	var (
		flags searchFlags
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search records",
		Long: `Search records with an optional filter, sort and field projection.

A single page is returned unless --all is given. The next page token is
printed after the table when more records are available.`,
		Example: `  bitable records search --sort Age:desc --page-size 50
  bitable records search --filter-file adults.yaml --field Name --field Age --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			table, err := createTable(cmd.Context(), true)
			if err != nil {
				return err
			}

			var result *bitable.SearchResult

			if all {
				records := []bitable.Record{}

				err = table.Iterate(cmd.Context(), opts, func(page []bitable.Record) error {
					records = append(records, page...)

					return nil
				})

				result = &bitable.SearchResult{Items: records, Total: len(records)}
			} else {
				result, err = table.Search(cmd.Context(), opts)
			}

			if err != nil {
				return err
			}

			handled, err := outputStructured(cmd.OutOrStdout(), result)
			if handled || err != nil {
				return err
			}

			err = renderRecords(cmd.OutOrStdout(), result.Items)
			if err != nil {
				return err
			}

			if result.HasMore && result.PageToken != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "More records available, continue with --page-token %s\n", result.PageToken)
			}

			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")

	return cmd
}

func newRecordsExportCommand() *cobra.Command {
	var (
		flags  searchFlags
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records to SQLite",
		Long: `Copy every matching record into a SQLite database.

Records are upserted by record ID, so exporting the same table again refreshes
the copy instead of duplicating it.`,
		Example: `  bitable records export --db records.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return constants.ErrExportPathRequired
			}

			opts, err := flags.options()
			if err != nil {
				return err
			}

			table, err := createTable(cmd.Context(), true)
			if err != nil {
				return err
			}

			sink, err := export.NewSQLiteSink(cmd.Context(), dbPath)
			if err != nil {
				return err
			}

			defer func() { _ = sink.Close() }()

			count, err := export.Table(cmd.Context(), table, sink, opts)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", count, dbPath)

			return nil
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file")

	return cmd
}

// importResult is the printable form of a batch result.
type importResult struct {
	ID       string `json:"id"                  yaml:"id"`
	RecordID string `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	Success  bool   `json:"success"             yaml:"success"`
	Error    string `json:"error,omitempty"     yaml:"error,omitempty"`
}

func toImportResults(results []bitable.BatchResult) []importResult {
	printable := make([]importResult, 0, len(results))

	for _, result := range results {
		item := importResult{ID: result.ID, Success: result.Success}

		if result.Record != nil {
			item.RecordID = result.Record.RecordID
		}

		if result.Error != nil {
			item.Error = result.Error.Error()
		}

		printable = append(printable, item)
	}

	return printable
}

func newRecordsImportCommand() *cobra.Command {
	var (
		file        string
		concurrency int
		atomic      bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Insert many records from a file",
		Long: `Insert every record listed in a JSON or YAML file.

The file holds a list of field objects. Inserts run concurrently. With
--atomic, records already inserted are deleted again if any insert fails.`,
		Example: `  bitable records import -f people.yaml --concurrency 10
  bitable records import -f people.json --atomic`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return constants.ErrNoRecordInput
			}

			var rows []bitable.Fields

			err := readStructuredFile(file, &rows)
			if err != nil {
				return err
			}

			table, err := createTable(cmd.Context(), true)
			if err != nil {
				return err
			}

			builder := bitable.NewBatchBuilder()
			for index, fields := range rows {
				builder.AddInsert(strconv.Itoa(index+1), fields)
			}

			transaction := bitable.NewBatchTransaction(bitable.NewBatchExecutor(table, concurrency)).
				SetRollback(atomic).
				Add(builder.Build()...)

			results, execErr := transaction.Execute(cmd.Context())

			handled, err := outputStructured(cmd.OutOrStdout(), toImportResults(results))
			if err != nil {
				return err
			}

			if !handled {
				writer := tablewriter.NewWriter(cmd.OutOrStdout())
				writer.Header("Row", "Record ID", "Status", "Error")

				for _, result := range toImportResults(results) {
					status := "ok"
					if !result.Success {
						status = "failed"
					}

					_ = writer.Append(result.ID, result.RecordID, status, result.Error)
				}

				err = renderTable(writer)
				if err != nil {
					return err
				}
			}

			return execErr
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file holding a list of records (.json, .yaml or .yml)")
	cmd.Flags().IntVar(&concurrency, "concurrency", constants.DefaultBatchConcurrency, "inserts to run at once")
	cmd.Flags().BoolVar(&atomic, "atomic", false, "delete inserted records again if any insert fails")

	return cmd
}
