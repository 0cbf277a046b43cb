package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/hireflow/auth"
	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/sym"
	"github.com/teranos/hireflow/workflow"
)

// AuthCmd groups token commands
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: sym.BY + " Issue API tokens",
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an actor",
	Long: `Issue an HS256 bearer token signed with auth.jwt_secret.

Examples:
  hireflow auth token --sub emp-1 --role employer
  hireflow auth token --sub ops --role admin --ttl 1h`,
	RunE: runAuthToken,
}

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

func init() {
	authTokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "Actor id (required)")
	authTokenCmd.Flags().StringVar(&tokenRole, "role", string(workflow.RoleEmployer), "Actor role")
	authTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", auth.DefaultTokenExpiry, "Token lifetime")
	authTokenCmd.MarkFlagRequired("sub")
	AuthCmd.AddCommand(authTokenCmd)
}

func runAuthToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.WithHint(errors.New("auth.jwt_secret is not configured"),
			"set HIREFLOW_AUTH_JWT_SECRET; a token signed with a generated secret would not verify")
	}
	role, err := workflow.ParseRole(tokenRole)
	if err != nil {
		return err
	}

	m, err := auth.NewJWTManager(cfg.Auth)
	if err != nil {
		return err
	}
	token, err := m.Issue(workflow.Actor{ID: tokenSubject, Role: role}, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
