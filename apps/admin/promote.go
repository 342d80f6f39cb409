package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/vidyalaya/core/access"
)

// cliPrincipal is the actor recorded for promotions run from the command line.
func cliPrincipal(username string) access.Principal {
	return access.Principal{ID: "cli:" + username, Username: username, Roles: []string{access.RoleAdminOwner}}
}

func (cli *commandLine) promoteCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote students to the next class",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	cmd.PersistentFlags().StringVar(&username, "as", "admin", "username recorded as the actor")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "class LEVEL",
			Short: "Promote one class; promoting class 6 graduates it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				secret, err := cli.readSecret("Enter promotion secret:")
				if err != nil {
					return err
				}
				out, err := cli.promotion.PromoteClass(cmd.Context(), cliPrincipal(username), secret, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cli.out, out.Message)
				return nil
			},
		},
		&cobra.Command{
			Use:   "all",
			Short: "Promote every class, highest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				secret, err := cli.readSecret("Enter promotion secret:")
				if err != nil {
					return err
				}
				res, err := cli.promotion.PromoteAll(cmd.Context(), cliPrincipal(username), secret)
				for _, out := range res.Outcomes {
					fmt.Fprintln(cli.out, "  "+out.Message)
				}
				if res.Message != "" {
					fmt.Fprintln(cli.out, res.Message)
				}
				return err
			},
		},
	)
	return cmd
}
