package tistorybatch

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   modelsCommandUse,
		Short: modelsCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			environment, err := newSession(command)
			if err != nil {
				return err
			}
			defer environment.close()
			return runModelsCommand(command, environment)
		},
	}
}

// runModelsCommand prints one model per line. Without a usable key it prints
// the fallback list.
func runModelsCommand(command *cobra.Command, environment session) error {
	generator, generatorErr := environment.generator()
	if generatorErr != nil {
		environment.logger.Warn("listing fallback models", zap.Error(generatorErr))
	}
	for _, model := range generator.AvailableModels(command.Context()) {
		if _, err := fmt.Fprintln(command.OutOrStdout(), model); err != nil {
			return fmt.Errorf(writeOutputErrorFormat, err)
		}
	}
	return nil
}
