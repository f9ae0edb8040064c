package tistorybatch

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	configCommand := &cobra.Command{
		Use:   configCommandUse,
		Short: configCommandShort,
	}
	configCommand.AddCommand(&cobra.Command{
		Use:   configShowCommandUse,
		Short: configShowCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			environment, err := newSession(command)
			if err != nil {
				return err
			}
			defer environment.close()

			rendered, renderErr := environment.root.YAML()
			if renderErr != nil {
				return fmt.Errorf(renderConfigurationErrorFormat, renderErr)
			}
			if _, writeErr := fmt.Fprintf(command.OutOrStdout(), "# source: %s\n%s", environment.reference, rendered); writeErr != nil {
				return fmt.Errorf(writeOutputErrorFormat, writeErr)
			}
			return nil
		},
	})
	return configCommand
}
