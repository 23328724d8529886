package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// vouchersCmd lists the voucher records in the configured store.
var vouchersCmd = &cobra.Command{
	Use:   "vouchers",
	Short: "List stored voucher records",
	Long: `List the voucher records accumulated by previous scans.

Only the sqlite backend supports listing. Each record shows the source
image key and the voucher codes found on it.

Examples:
  voucherscan vouchers
  voucherscan vouchers --format json`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		backend, err := openStoreBackend(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = backend.close() }()

		if backend.lister == nil {
			return errors.New("the configured store backend does not support listing")
		}

		records, err := backend.lister.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list vouchers: %w", err)
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case outputFormatJSON:
			data, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		case outputFormatText:
			var sb strings.Builder
			for _, rec := range records {
				fmt.Fprintf(&sb, "%s\n", rec.Key)
				for _, code := range rec.Codes {
					fmt.Fprintf(&sb, "  %s\n", code)
				}
			}
			if len(records) == 0 {
				sb.WriteString("no voucher records stored\n")
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), sb.String())
			return err
		default:
			return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
		}
	},
}

func init() {
	rootCmd.AddCommand(vouchersCmd)

	vouchersCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
}
