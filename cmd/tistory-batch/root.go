package tistorybatch

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/temirov/tistory-batch/internal/config"
)

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           rootCommandUse,
		Short:         rootCommandShort,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCommand.PersistentFlags().String(configFlagName, os.Getenv(config.ConfigurationPathEnvironmentVariable), configFlagUsage)

	rootCommand.AddCommand(
		newRunCommand(),
		newModelsCommand(),
		newKeyCommand(),
		newConfigCommand(),
		newServeCommand(),
	)
	return rootCommand
}

func Execute() error {
	return NewRootCommand().Execute()
}
