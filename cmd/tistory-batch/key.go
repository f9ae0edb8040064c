package tistorybatch

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/tistory-batch/internal/config"
)

func newKeyCommand() *cobra.Command {
	keyCommand := &cobra.Command{
		Use:   keyCommandUse,
		Short: keyCommandShort,
	}
	keyCommand.AddCommand(
		&cobra.Command{
			Use:   keySetCommandUse,
			Short: keySetCommandShort,
			Args:  cobra.ExactArgs(1),
			RunE: func(command *cobra.Command, args []string) error {
				environment, err := newSession(command)
				if err != nil {
					return err
				}
				defer environment.close()
				return runKeySet(command, environment, args[0])
			},
		},
		&cobra.Command{
			Use:   keyShowCommandUse,
			Short: keyShowCommandShort,
			Args:  cobra.NoArgs,
			RunE: func(command *cobra.Command, args []string) error {
				environment, err := newSession(command)
				if err != nil {
					return err
				}
				defer environment.close()
				return runKeyShow(command, environment)
			},
		},
	)
	return keyCommand
}

func runKeySet(command *cobra.Command, environment session, apiKey string) error {
	if err := environment.credentials.Save(apiKey); err != nil {
		return fmt.Errorf(saveAPIKeyErrorFormat, err)
	}
	output := command.OutOrStdout()
	if _, err := fmt.Fprintf(output, "saved %s to %s\n", config.MaskAPIKey(apiKey), environment.credentials.Path()); err != nil {
		return fmt.Errorf(writeOutputErrorFormat, err)
	}
	if _, source, err := environment.resolveAPIKey(); err == nil && source == config.CredentialSourceEnvironment {
		if _, writeErr := fmt.Fprintf(output, "note: %s is set and takes precedence over the saved key\n", environment.apiKeyEnvironment()); writeErr != nil {
			return fmt.Errorf(writeOutputErrorFormat, writeErr)
		}
	}
	return nil
}

func runKeyShow(command *cobra.Command, environment session) error {
	apiKey, source, err := environment.resolveAPIKey()
	if err != nil {
		return err
	}
	var line string
	switch source {
	case config.CredentialSourceEnvironment:
		line = fmt.Sprintf("%s (from $%s)\n", config.MaskAPIKey(apiKey), environment.apiKeyEnvironment())
	case config.CredentialSourceFile:
		line = fmt.Sprintf("%s (from %s)\n", config.MaskAPIKey(apiKey), environment.credentials.Path())
	default:
		line = fmt.Sprintf("no API key configured; set $%s or run `tistory-batch key set`\n", environment.apiKeyEnvironment())
	}
	if _, writeErr := fmt.Fprint(command.OutOrStdout(), line); writeErr != nil {
		return fmt.Errorf(writeOutputErrorFormat, writeErr)
	}
	return nil
}
