package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/vidyalaya/core/roster"
)

func (cli *commandLine) importCmd() *cobra.Command {
	var opts roster.ImportOptions
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import students from an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := cli.roster.ImportFile(cmd.Context(), f, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cli.out, res.Message)
			for _, e := range res.Errors {
				fmt.Fprintln(cli.out, "  "+e)
			}
			for _, h := range res.UnrecognizedHeaders {
				if h.Suggestion != "" {
					fmt.Fprintf(cli.out, "  unrecognized header %q (did you mean %q?)\n", h.Header, h.Suggestion)
				} else {
					fmt.Fprintf(cli.out, "  unrecognized header %q\n", h.Header)
				}
			}
			if !res.Success {
				return errors.New(res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Grade, "grade", "", "class every imported student is enrolled in")
	cmd.Flags().StringVar(&opts.Section, "section", "", "section every imported student is placed in")
	return cmd
}

func (cli *commandLine) exportCmd() *cobra.Command {
	var filter roster.ExportFilter
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export students to an .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, content, err := cli.roster.ExportFile(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if err = ioutil.WriteFile(args[0], content, 0640); err != nil {
				return errors.Wrap(err, "writing export")
			}
			fmt.Fprintf(cli.out, "Exported %d students to %s\n", res.Count, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Grade, "grade", "", "only export this class (or \"all\")")
	cmd.Flags().StringVar(&filter.Section, "section", "", "only export this section (or \"all\")")
	return cmd
}

func (cli *commandLine) templateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template FILE",
		Short: "Write an empty import template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := cli.roster.TemplateFile()
			if err != nil {
				return err
			}
			return errors.Wrap(ioutil.WriteFile(args[0], content, 0640), "writing template")
		},
	}
}
