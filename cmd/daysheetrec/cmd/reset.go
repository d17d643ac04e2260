package cmd

import (
	"fmt"
	"os"

	"daysheet-reconciliation-service/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var resetConfirmed bool

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all committed state, including the import log",
	Long: `Reset deletes every deposit record, bank transaction, and import
log entry from the data file. This is the only operation that clears the
import log; after a reset, previously imported files can be imported again.

Examples:
  daysheetrec reset --yes`,

	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm the reset without prompting")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirmed {
		return fmt.Errorf("reset is destructive; re-run with --yes to confirm")
	}

	st, err := store.Open(nil, viper.GetString("data-file"))
	if err != nil {
		return err
	}

	if err := st.Reset(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "State cleared.\n")
	return nil
}
