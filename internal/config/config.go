package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/llm"
)

const (
	EnvironmentPrefix = "TISTORY_BATCH"

	rootConfigurationEmptyContentErrorFormat = "root configuration %s is empty"
	rootConfigurationReadErrorFormat         = "read root configuration %s: %w"
	rootConfigurationUnmarshalErrorFormat    = "unmarshal root configuration %s: %w"
	rootConfigurationInvalidErrorFormat      = "invalid root configuration %s: %w"
	unsupportedTransportErrorFormat          = "common.api.transport must be %q or %q, got %q"
	renderConfigurationErrorFormat           = "render configuration: %w"
)

type Root struct {
	Common     Common     `yaml:"common" mapstructure:"common"`
	Generation Generation `yaml:"generation" mapstructure:"generation"`
	Batch      Batch      `yaml:"batch" mapstructure:"batch"`
	Export     Export     `yaml:"export" mapstructure:"export"`
	Server     Server     `yaml:"server" mapstructure:"server"`
	Metrics    Metrics    `yaml:"metrics" mapstructure:"metrics"`
}

type Common struct {
	API     API     `yaml:"api" mapstructure:"api"`
	Logging Logging `yaml:"logging" mapstructure:"logging"`
}

type API struct {
	Endpoint                 string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKeyEnv                string `yaml:"api_key_env" mapstructure:"api_key_env"`
	CredentialsPath          string `yaml:"credentials_path" mapstructure:"credentials_path"`
	Transport                string `yaml:"transport" mapstructure:"transport"`
	CompletionTimeoutSeconds int    `yaml:"completion_timeout_seconds" mapstructure:"completion_timeout_seconds"`
	ModelsTimeoutSeconds     int    `yaml:"models_timeout_seconds" mapstructure:"models_timeout_seconds"`
}

type Logging struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type Generation struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	Keywords    string  `yaml:"keywords" mapstructure:"keywords"`
	Category    string  `yaml:"category" mapstructure:"category"`
	Tone        string  `yaml:"tone" mapstructure:"tone"`
	Language    string  `yaml:"language" mapstructure:"language"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

type Batch struct {
	Limit   string `yaml:"limit" mapstructure:"limit"`
	DelayMS int    `yaml:"delay_ms" mapstructure:"delay_ms"`
}

type Export struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
}

type Server struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type Metrics struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LoadRoot parses the configuration source over the built-in defaults and
// applies TISTORY_BATCH_* environment overrides, e.g.
// TISTORY_BATCH_GENERATION_MODEL for generation.model.
func LoadRoot(source RootConfigurationSource) (Root, error) {
	if len(bytes.TrimSpace(source.Content)) == 0 {
		return Root{}, fmt.Errorf(rootConfigurationEmptyContentErrorFormat, source.Reference)
	}

	configurationReader := viper.New()
	configurationReader.SetConfigType("yaml")
	setDefaults(configurationReader)
	configurationReader.SetEnvPrefix(EnvironmentPrefix)
	configurationReader.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configurationReader.AutomaticEnv()

	if err := configurationReader.ReadConfig(bytes.NewReader(source.Content)); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationReadErrorFormat, source.Reference, err)
	}

	var rootConfiguration Root
	if err := configurationReader.Unmarshal(&rootConfiguration); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationUnmarshalErrorFormat, source.Reference, err)
	}
	if err := rootConfiguration.Validate(); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationInvalidErrorFormat, source.Reference, err)
	}
	return rootConfiguration, nil
}

func setDefaults(configurationReader *viper.Viper) {
	configurationReader.SetDefault("common.api.endpoint", llm.DefaultEndpoint)
	configurationReader.SetDefault("common.api.api_key_env", "OPENAI_API_KEY")
	configurationReader.SetDefault("common.api.credentials_path", DefaultCredentialsPath)
	configurationReader.SetDefault("common.api.transport", llm.TransportHTTP)
	configurationReader.SetDefault("common.api.completion_timeout_seconds", int(content.DefaultCompletionTimeout/time.Second))
	configurationReader.SetDefault("common.api.models_timeout_seconds", int(content.DefaultModelsTimeout/time.Second))

	configurationReader.SetDefault("common.logging.level", "info")
	configurationReader.SetDefault("common.logging.format", "console")

	configurationReader.SetDefault("generation.model", content.DefaultModel)
	configurationReader.SetDefault("generation.keywords", "")
	configurationReader.SetDefault("generation.category", string(content.CategoryGeneral))
	configurationReader.SetDefault("generation.tone", string(content.ToneFriendly))
	configurationReader.SetDefault("generation.language", content.DefaultLanguage)
	configurationReader.SetDefault("generation.max_tokens", content.DefaultMaxTokens)
	configurationReader.SetDefault("generation.temperature", content.DefaultTemperature)

	configurationReader.SetDefault("batch.limit", strconv.Itoa(batch.DefaultLimit))
	configurationReader.SetDefault("batch.delay_ms", 1000)

	configurationReader.SetDefault("export.directory", ".")
	configurationReader.SetDefault("server.addr", "127.0.0.1:8080")
	configurationReader.SetDefault("metrics.textfile", "")
}

// Validate checks the enumerated settings.
func (root Root) Validate() error {
	transport := strings.ToLower(strings.TrimSpace(root.Common.API.Transport))
	if transport != llm.TransportHTTP && transport != llm.TransportSDK {
		return fmt.Errorf(unsupportedTransportErrorFormat, llm.TransportHTTP, llm.TransportSDK, root.Common.API.Transport)
	}
	if _, err := content.ParseCategory(root.Generation.Category); err != nil {
		return err
	}
	if _, err := content.ParseTone(root.Generation.Tone); err != nil {
		return err
	}
	return nil
}

func (api API) CompletionTimeout() time.Duration {
	return secondsOr(api.CompletionTimeoutSeconds, content.DefaultCompletionTimeout)
}

func (api API) ModelsTimeout() time.Duration {
	return secondsOr(api.ModelsTimeoutSeconds, content.DefaultModelsTimeout)
}

// TopicLimit is the configured cap on topics per run. Values that are not
// positive integers fall back to the default cap.
func (batchSection Batch) TopicLimit() int {
	return batch.ResolveLimit(batchSection.Limit)
}

// Delay is the courtesy pause between topics. Negative values mean none.
func (batchSection Batch) Delay() time.Duration {
	if batchSection.DelayMS < 0 {
		return 0
	}
	return time.Duration(batchSection.DelayMS) * time.Millisecond
}

// GeneratorOptions maps the generation section onto content.Options.
func (root Root) GeneratorOptions() content.Options {
	return content.Options{
		MaxTokens:         root.Generation.MaxTokens,
		Temperature:       root.Generation.Temperature,
		CompletionTimeout: root.Common.API.CompletionTimeout(),
		ModelsTimeout:     root.Common.API.ModelsTimeout(),
		Language:          root.Generation.Language,
	}
}

// YAML renders the effective configuration.
func (root Root) YAML() ([]byte, error) {
	encoded, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf(renderConfigurationErrorFormat, err)
	}
	return encoded, nil
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
