package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lockmint/internal/merkle"
	"lockmint/pkg/domain"
)

var errProofRejected = errors.New("proof does not match root")

func newRootHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root <allowlist>",
		Short: "Print the membership root of an allowlist",
		Long: `Print the membership root of an allowlist file.

Examples:
  lockmintctl root allowlist.yaml
  lockmintctl root --json allowlist.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(args[0])
			if err != nil {
				return err
			}
			root := tree.Root()
			return output(cmd.OutOrStdout(), map[string]merkle.Hash{"root": root}, root.String())
		},
	}
}

func newProofCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proof <allowlist> <address>",
		Short: "Print the membership proof for an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(args[0])
			if err != nil {
				return err
			}
			account, err := domain.ParseAddress(args[1])
			if err != nil {
				return err
			}
			proof, err := tree.AddressProof(account)
			if err != nil {
				return fmt.Errorf("%s: %w", account, err)
			}
			lines := make([]string, len(proof))
			for i, h := range proof {
				lines[i] = h.String()
			}
			return output(cmd.OutOrStdout(), map[string]any{
				"address": account,
				"root":    tree.Root(),
				"proof":   proof,
			}, strings.Join(lines, "\n"))
		},
	}
}

func newVerifyCmd() *cobra.Command {
	var proofFlags []string
	cmd := &cobra.Command{
		Use:   "verify <root> <address>",
		Short: "Check a proof against a root",
		Long: `Check a proof against a root. Exits non-zero when the proof is rejected.

Examples:
  lockmintctl verify 0xabc... 0x1111... --proof 0xdef... --proof 0x123...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := merkle.ParseHash(args[0])
			if err != nil {
				return fmt.Errorf("root: %w", err)
			}
			account, err := domain.ParseAddress(args[1])
			if err != nil {
				return err
			}
			proof := make([]merkle.Hash, len(proofFlags))
			for i, p := range proofFlags {
				if proof[i], err = merkle.ParseHash(p); err != nil {
					return fmt.Errorf("proof[%d]: %w", i, err)
				}
			}

			valid := merkle.Verifier{}.Verify(proof, root, account)
			text := "OK"
			if !valid {
				text = "REJECTED"
			}
			if err := output(cmd.OutOrStdout(), map[string]any{"address": account, "valid": valid}, text); err != nil {
				return err
			}
			if !valid {
				return errProofRejected
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&proofFlags, "proof", nil, "proof element, leaf side first (repeatable)")
	return cmd
}

func newLeafCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaf <address>",
		Short: "Print the allowlist leaf of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			leaf := merkle.Leaf(account)
			return output(cmd.OutOrStdout(), map[string]any{"address": account, "leaf": leaf}, leaf.String())
		},
	}
}
