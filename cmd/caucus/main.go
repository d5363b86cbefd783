package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vx-labs/caucus/cli"
)

func main() {
	config := cli.NewViper()
	root := &cobra.Command{
		Use:   "caucus [join key]",
		Short: "Chat in a conversation replicated between participants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Run(config, args)
		},
	}
	cli.AddFlags(root, config)
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cli.Version)
		},
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
