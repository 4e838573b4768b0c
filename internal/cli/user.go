package cli

import (
	"errors"
	"fmt"

	"invledger/models"
	"invledger/pkg/store"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAdmin bool

var userCreateCmd = &cobra.Command{
	Use:   "create <username> <password>",
	Short: "Create an account directly in the database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.Persistence() {
			return errors.New("DB_DSN not set in environment")
		}
		st, err := store.Open(cfg.DSN)
		if err != nil {
			return err
		}
		role := models.RoleUser
		if userAdmin {
			role = models.RoleAdministrator
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(args[1]), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("bcrypt failed: %w", err)
		}
		u, err := st.CreateUser(cmd.Context(), args[0], hashed, role)
		if errors.Is(err, store.ErrUserExists) {
			fmt.Fprintf(cmd.OutOrStdout(), "user %s already exists\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s id=%d role=%s\n", u.Username, u.ID, role)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCreateCmd.Flags().BoolVar(&userAdmin, "admin", false, "Give the account the administrator role")
}
