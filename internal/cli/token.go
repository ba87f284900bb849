package cli

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	jwttoken "lockmint/internal/jwt_token"
	"lockmint/pkg/domain"
)

func newTokenCmd() *cobra.Command {
	var (
		key      string
		issuer   string
		audience string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <address>",
		Short: "Issue a bearer token for an account",
		Long: `Issue a bearer token for an account, signed with the server's key.

The key defaults to $JWT_SIGNING_KEY.

Examples:
  lockmintctl token 0x1111111111111111111111111111111111111111 --ttl 2h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := domain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			if key == "" {
				key = os.Getenv("JWT_SIGNING_KEY")
			}
			if key == "" {
				return errors.New("signing key required: set --key or JWT_SIGNING_KEY")
			}
			token, err := jwttoken.NewJWTService(key, issuer, audience).GenerateAccessToken(account, ttl)
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), map[string]any{
				"account":    account,
				"token":      token,
				"expires_in": int64(ttl / time.Second),
			}, token)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "HMAC signing key")
	cmd.Flags().StringVar(&issuer, "issuer", "lockmint", "token issuer")
	cmd.Flags().StringVar(&audience, "audience", "lockmint-api", "token audience")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
