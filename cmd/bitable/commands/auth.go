package commands

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/bitable-client/internal/auth"
)

// NewAuthCommand creates the auth command.
func NewAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Acquire a tenant access token",
		Long: `Exchange the configured app ID and secret for a fresh tenant access token.

The token is saved to the config file and reused by later commands until it
expires.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bitableClient, err := createClient(cmd.Context())
			if err != nil {
				return err
			}

			err = bitableClient.Authenticate(cmd.Context())
			if err != nil {
				return err
			}

			type TokenInfo struct {
				Token     string    `json:"token"                yaml:"token"`
				ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
			}

			token, err := bitableClient.TokenManager().GetToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}

			info := TokenInfo{Token: maskSecret(token)}

			if holder, ok := bitableClient.TokenManager().(interface{ Token() *auth.Token }); ok {
				if current := holder.Token(); current != nil {
					info.ExpiresAt = current.ExpiresAt
				}
			}

			handled, err := outputStructured(cmd.OutOrStdout(), info)
			if handled || err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Property", "Value")
			_ = table.Append("Token", info.Token)

			if !info.ExpiresAt.IsZero() {
				_ = table.Append("Expires", info.ExpiresAt.Format(time.RFC3339))
			}

			return renderTable(table)
		},
	}
}
