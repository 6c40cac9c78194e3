package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/sector-mail-desk/internal/auth"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue access tokens",
}

var (
	tokenSubjectFlag   string
	tokenRoleFlag      string
	tokenSectorsFlag   []string
	tokenSchedulerFlag bool
)

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a signed bearer token for a staff member or the scheduler",
	Args:  cobra.NoArgs,
	RunE:  runTokenIssue,
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the scheduler key",
}

var keyHashCmd = &cobra.Command{
	Use:   "hash <key>",
	Short: "Print the bcrypt hash to store in AUTH_SCHEDULER_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeyHash,
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenSubjectFlag, "subject", "", "Subject id recorded as the actor of changes")
	tokenIssueCmd.Flags().StringVar(&tokenRoleFlag, "role", string(domain.StaffRoleAgent), "Staff role (AGENT, SUPERVISOR, ADMIN)")
	tokenIssueCmd.Flags().StringSliceVar(&tokenSectorsFlag, "sectors", nil, "Sectors granted; empty grants all")
	tokenIssueCmd.Flags().BoolVar(&tokenSchedulerFlag, "scheduler", false, "Issue a scheduler token instead of a staff token")
	tokenCmd.AddCommand(tokenIssueCmd)
	keyCmd.AddCommand(keyHashCmd)
}

func runTokenIssue(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTLMinutes)

	subjectType := domain.SubjectTypeStaff
	var role *domain.StaffRole
	if tokenSchedulerFlag {
		subjectType = domain.SubjectTypeScheduler
		if tokenSubjectFlag == "" {
			tokenSubjectFlag = "scheduler"
		}
	} else {
		if strings.TrimSpace(tokenSubjectFlag) == "" {
			return errors.New("--subject is required for staff tokens")
		}
		r := domain.StaffRole(strings.ToUpper(tokenRoleFlag))
		if !r.Valid() {
			return fmt.Errorf("unknown role %q", tokenRoleFlag)
		}
		role = &r
	}

	sectors := make([]domain.Sector, 0, len(tokenSectorsFlag))
	for _, raw := range tokenSectorsFlag {
		sector, err := domain.ParseSector(raw)
		if err != nil {
			return err
		}
		sectors = append(sectors, sector)
	}

	token, expiresAt, err := tokens.GenerateToken(tokenSubjectFlag, subjectType, role, sectors)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

func runKeyHash(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}
	hash, err := auth.HashSecret(args[0], cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
