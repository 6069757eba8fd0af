package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/webhookx-io/mpack/pkg/log"
)

var verbose bool

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mpack",
		Short:        "MessagePack inspection and conversion tool",
		Long:         ``,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if verbose {
				level = "debug"
			}
			_, err := log.NewZapLogger(&log.Config{Level: level, Format: "text"})
			return err
		},
	}

	cmd.SetOut(os.Stdout)
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "", false, "Verbose logging.")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newConvertCmd())

	return cmd
}

func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
