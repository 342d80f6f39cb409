package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/vidyalaya/core"
	"github.com/trezcool/vidyalaya/core/promotion"
	"github.com/trezcool/vidyalaya/core/roster"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf      *core.Config
	db        *sql.DB
	roster    roster.ServiceInterface
	promotion promotion.ServiceInterface
	out       io.Writer
}

// rootCmd builds a fresh command tree, so flags never leak between runs.
func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "School administration tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.importCmd(),
		cli.exportCmd(),
		cli.templateCmd(),
		cli.promoteCmd(),
		cli.hashSecretCmd(),
		cli.tokenCmd(),
	)
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}
	return root.Execute()
}

// readSecret prompts for a secret without echoing it.
func (cli *commandLine) readSecret(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	secret, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(secret) == 0 {
		return "", errHelp
	}
	return string(secret), nil
}
