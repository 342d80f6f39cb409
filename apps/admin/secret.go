package main

import (
	"fmt"

	"github.com/spf13/cobra"

	echoapi "github.com/trezcool/vidyalaya/apps/api/echo"
	"github.com/trezcool/vidyalaya/core/access"
)

func (cli *commandLine) hashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret",
		Short: "Hash a promotion secret for the <ENV>_PROMOTIONSECRETHASH setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := cli.readSecret("Enter secret:")
			if err != nil {
				return err
			}
			hash, err := access.HashSecret(secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, hash)
			return nil
		},
	}
}

func (cli *commandLine) tokenCmd() *cobra.Command {
	var roles []string
	cmd := &cobra.Command{
		Use:   "token USERNAME",
		Short: "Issue an API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, role := range roles {
				if !validRole(role) {
					return fmt.Errorf("unknown role %q", role)
				}
			}
			p := access.Principal{ID: args[0], Username: args[0], Roles: roles}
			token, err := echoapi.GenerateToken(echoapi.NewClaims(p, cli.conf), cli.conf)
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", []string{access.RoleTeacher}, "role granted to the token holder (repeatable)")
	return cmd
}

func validRole(role string) bool {
	for _, r := range access.AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
