package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var ledgerJSON bool

// ledgerCmd prints the outcome log
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Print the outcome log",
	RunE:  runLedger,
}

func init() {
	ledgerCmd.Flags().BoolVar(&ledgerJSON, "json", false, "Print raw entries as JSON")
}

func runLedger(cmd *cobra.Command, args []string) error {
	lg, err := openLedger()
	if err != nil {
		return err
	}
	defer lg.Close()

	entries, err := lg.Entries()
	if err != nil {
		return err
	}

	if ledgerJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderLedger(entries))
	return nil
}
