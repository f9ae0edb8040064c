package tistorybatch

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/tistory-batch/internal/config"
	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/fsops"
	"github.com/temirov/tistory-batch/internal/llm"
	"github.com/temirov/tistory-batch/internal/logging"
	"github.com/temirov/tistory-batch/internal/server"
)

func loadRootConfiguration(configurationPath string) (config.Root, string, error) {
	configurationLoader, loaderErr := config.NewDefaultRootConfigurationLoader()
	if loaderErr != nil {
		return config.Root{}, "", fmt.Errorf(configurationLoaderInitializationErrorFormat, loaderErr)
	}
	configurationSource, sourceErr := configurationLoader.Load(strings.TrimSpace(configurationPath))
	if sourceErr != nil {
		return config.Root{}, "", fmt.Errorf(configurationSourceResolutionErrorFormat, sourceErr)
	}
	rootConfiguration, loadErr := config.LoadRoot(configurationSource)
	if loadErr != nil {
		return config.Root{}, "", fmt.Errorf(rootConfigurationLoadErrorFormat, configurationSource.Reference, loadErr)
	}
	return rootConfiguration, configurationSource.Reference, nil
}

// session is what every command needs once configuration is loaded.
type session struct {
	root        config.Root
	reference   string
	logger      *zap.Logger
	fileSystem  fsops.FS
	credentials config.CredentialStore
	lookupEnv   func(string) (string, bool)
}

func newSession(command *cobra.Command) (session, error) {
	configurationPath, _ := command.Flags().GetString(configFlagName)
	rootConfiguration, reference, loadErr := loadRootConfiguration(configurationPath)
	if loadErr != nil {
		return session{}, loadErr
	}
	logger, loggerErr := logging.New(rootConfiguration.Common.Logging.Level, rootConfiguration.Common.Logging.Format)
	if loggerErr != nil {
		return session{}, fmt.Errorf(loggerInitializationErrorFormat, loggerErr)
	}
	fileSystem := fsops.NewOS()
	return session{
		root:        rootConfiguration,
		reference:   reference,
		logger:      logger,
		fileSystem:  fileSystem,
		credentials: config.NewCredentialStore(fileSystem, rootConfiguration.Common.API.CredentialsPath),
		lookupEnv:   os.LookupEnv,
	}, nil
}

func (environment session) close() {
	_ = environment.logger.Sync()
}

func (environment session) apiKeyEnvironment() string {
	return strings.TrimSpace(environment.root.Common.API.APIKeyEnv)
}

// resolveAPIKey returns the effective key and its source.
func (environment session) resolveAPIKey() (string, string, error) {
	apiKey, source, err := config.ResolveAPIKey(environment.apiKeyEnvironment(), environment.lookupEnv, environment.credentials)
	if err != nil {
		return "", config.CredentialSourceNone, fmt.Errorf(resolveAPIKeyErrorFormat, err)
	}
	return apiKey, source, nil
}

func (environment session) generatorFactory() server.GeneratorFactory {
	api := environment.root.Common.API
	options := environment.root.GeneratorOptions()
	logger := environment.logger
	return func(apiKey string) (*content.Generator, error) {
		client, err := llm.NewChatClient(llm.Settings{Transport: api.Transport, Endpoint: api.Endpoint, APIKey: apiKey})
		if err != nil {
			return nil, err
		}
		return content.NewGenerator(client, logger, options), nil
	}
}

// generator builds a generator for the effective key. A missing key is an
// error naming the environment variable to set.
func (environment session) generator() (*content.Generator, error) {
	apiKey, source, err := environment.resolveAPIKey()
	if err != nil {
		return nil, err
	}
	if source == config.CredentialSourceNone {
		return nil, fmt.Errorf(missingAPIKeyErrorFormat, environment.apiKeyEnvironment())
	}
	return environment.generatorFactory()(apiKey)
}
