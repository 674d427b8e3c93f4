package cmd

import (
	"github.com/spf13/cobra"
)

// New creates the root command with all subcommands registered.
func New() *cobra.Command {
	opts := NewOptions()

	rootCmd := &cobra.Command{
		Use:   "morph [FILE...]",
		Short: "Batch file conversion from the command line",
		Long: `A CLI tool that converts batches of files through the Vertopal
conversion API, showing live per-file progress on a terminal dashboard.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, opts)
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Add convert flags to the root command so `morph` and `morph convert`
	// work identically
	addConvertFlags(rootCmd, opts)

	// Register subcommands
	rootCmd.AddCommand(NewCmdConvert(opts))
	rootCmd.AddCommand(NewCmdConfig())
	rootCmd.AddCommand(NewCmdVersion())

	return rootCmd
}
