package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "sourcehound",
		Short: "Telegram bot that finds the original source of posted artwork",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
