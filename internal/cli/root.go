// Package cli implements lockmintctl, the operator tool for building
// membership allowlists and issuing development tokens.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var jsonOutput bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lockmintctl",
		Short: "lockmintctl - allowlist and token tooling for lockmint",
		Long: `lockmintctl builds Merkle membership roots and proofs from allowlist
files and issues bearer tokens for a lockmint server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	root.AddCommand(
		newRootHashCmd(),
		newProofCmd(),
		newVerifyCmd(),
		newLeafCmd(),
		newTokenCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// output prints v as JSON when --json is set, otherwise the text form.
func output(w io.Writer, v any, text string) error {
	if !jsonOutput {
		_, err := fmt.Fprintln(w, text)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
