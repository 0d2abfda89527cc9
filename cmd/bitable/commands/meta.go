package commands

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewMetaCommand creates the meta command.
func NewMetaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "meta",
		Short: "Show base metadata",
		Long:  "Display the name, revision and settings of the base selected by --app-token",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := createTable(cmd.Context(), false)
			if err != nil {
				return err
			}

			meta, err := table.Meta(cmd.Context())
			if err != nil {
				return err
			}

			handled, err := outputStructured(cmd.OutOrStdout(), meta)
			if handled || err != nil {
				return err
			}

			writer := tablewriter.NewWriter(cmd.OutOrStdout())
			writer.Header("Property", "Value")
			_ = writer.Append("App Token", meta.AppToken)
			_ = writer.Append("Name", meta.Name)
			_ = writer.Append("Revision", strconv.Itoa(meta.Revision))
			_ = writer.Append("Advanced", strconv.FormatBool(meta.IsAdvanced))

			if meta.TimeZone != "" {
				_ = writer.Append("Time Zone", meta.TimeZone)
			}

			return renderTable(writer)
		},
	}
}
