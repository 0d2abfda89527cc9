package commands

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewFieldsCommand creates the fields command.
func NewFieldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List table fields",
		Long:  "List every field of the table with its ID, type and whether it is the primary field",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := createTable(cmd.Context(), true)
			if err != nil {
				return err
			}

			fields, err := table.Fields(cmd.Context())
			if err != nil {
				return err
			}

			handled, err := outputStructured(cmd.OutOrStdout(), fields)
			if handled || err != nil {
				return err
			}

			writer := tablewriter.NewWriter(cmd.OutOrStdout())
			writer.Header("Field ID", "Name", "Type", "Primary")

			for _, field := range fields {
				_ = writer.Append(field.FieldID, field.FieldName, field.Type.String(), strconv.FormatBool(field.IsPrimary))
			}

			return renderTable(writer)
		},
	}
}
