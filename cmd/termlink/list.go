package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/termlink/internal/config"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the connections in the book",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			book := a.currentBook()
			if len(book.Connections) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No connections in %s\n", a.configPath)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTARGET\tAUTH\tDESCRIPTION")
			for _, name := range book.Names() {
				c, err := book.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, target(c), authLabel(c), c.Description)
			}
			return tw.Flush()
		},
	}
}

func target(c config.ConnectionConfig) string {
	if c.Kind() == config.TransportLocal {
		if c.Shell != "" {
			return "local:" + c.Shell
		}
		return "local"
	}
	return c.Username + "@" + c.Addr()
}

func authLabel(c config.ConnectionConfig) string {
	if c.Kind() == config.TransportLocal {
		return "-"
	}
	return string(c.Auth)
}
