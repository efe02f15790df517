package main

import (
	"fmt"
	"time"

	"github.com/hyperengineering/grmsync/internal/auth"
	"github.com/spf13/cobra"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user",
	Long:  "Issue a signed bearer token for a user. The token is printed to stdout; the TTL defaults to auth.token_ttl.",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default from config)")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL.Std()
	}

	token, err := auth.GenerateToken(tokenUser, signingSecret(cfg), ttl)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"user_id":    tokenUser,
			"token":      token,
			"expires_at": time.Now().Add(ttl).UTC(),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
