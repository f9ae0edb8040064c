package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/temirov/tistory-batch/internal/fsops"
)

const (
	// EmbeddedRootConfigurationReference identifies the embedded fallback configuration source.
	EmbeddedRootConfigurationReference = "embedded default configuration"
	// ConfigurationPathEnvironmentVariable names a configuration file when --config is absent.
	ConfigurationPathEnvironmentVariable = "TISTORY_BATCH_CONFIG"

	explicitConfigurationReadErrorFormat        = "read explicit configuration %s: %w"
	loaderInitializationWorkingDirectoryError   = "determine working directory: %w"
	workingDirectoryConfigurationFileName       = "config.yaml"
	homeDirectoryConfigurationRelativeDirectory = ".tistory-batch"
	homeDirectoryConfigurationFileName          = "config.yaml"
)

var (
	//go:embed default_root_configuration.yaml
	embeddedRootConfigurationBytes []byte
)

// RootConfigurationSource holds the raw configuration data and its origin.
type RootConfigurationSource struct {
	Reference string
	Content   []byte
}

// EmbeddedRootConfiguration returns the built-in configuration.
func EmbeddedRootConfiguration() RootConfigurationSource {
	return RootConfigurationSource{Reference: EmbeddedRootConfigurationReference, Content: embeddedRootConfigurationBytes}
}

// RootConfigurationLoader locates configuration files across supported search paths.
type RootConfigurationLoader struct {
	workingDirectory string
	homeDirectory    string
	fileSystem       fsops.FS
}

// NewRootConfigurationLoader constructs a loader with the provided directories.
func NewRootConfigurationLoader(fileSystem fsops.FS, workingDirectory string, homeDirectory string) RootConfigurationLoader {
	return RootConfigurationLoader{
		workingDirectory: workingDirectory,
		homeDirectory:    homeDirectory,
		fileSystem:       fileSystem,
	}
}

// NewDefaultRootConfigurationLoader builds a loader over the real filesystem
// using the process working directory and the user's home directory.
func NewDefaultRootConfigurationLoader() (RootConfigurationLoader, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return RootConfigurationLoader{}, fmt.Errorf(loaderInitializationWorkingDirectoryError, workingDirectoryError)
	}
	homeDirectory, homeDirectoryError := os.UserHomeDir()
	if homeDirectoryError != nil {
		homeDirectory = ""
	}
	return NewRootConfigurationLoader(fsops.NewOS(), workingDirectory, homeDirectory), nil
}

type configurationCandidate struct {
	path       string
	isExplicit bool
}

// Load resolves the configuration source using the search order: explicit
// path, working directory, home directory, embedded default. Missing files
// are skipped; an explicit file that exists but cannot be read is an error.
func (loader RootConfigurationLoader) Load(explicitPath string) (RootConfigurationSource, error) {
	for _, candidate := range loader.candidates(explicitPath) {
		if candidate.path == "" {
			continue
		}
		content, readError := loader.fileSystem.ReadFile(candidate.path)
		if readError != nil {
			if candidate.isExplicit && !errors.Is(readError, fs.ErrNotExist) && !errors.Is(readError, fs.ErrPermission) {
				return RootConfigurationSource{}, fmt.Errorf(explicitConfigurationReadErrorFormat, candidate.path, readError)
			}
			continue
		}
		return RootConfigurationSource{Reference: candidate.path, Content: content}, nil
	}
	return EmbeddedRootConfiguration(), nil
}

func (loader RootConfigurationLoader) candidates(explicitPath string) []configurationCandidate {
	candidates := []configurationCandidate{{path: explicitPath, isExplicit: explicitPath != ""}}
	if loader.workingDirectory != "" {
		candidates = append(candidates, configurationCandidate{path: filepath.Join(loader.workingDirectory, workingDirectoryConfigurationFileName)})
	}
	if loader.homeDirectory != "" {
		candidates = append(candidates, configurationCandidate{
			path: filepath.Join(loader.homeDirectory, homeDirectoryConfigurationRelativeDirectory, homeDirectoryConfigurationFileName),
		})
	}
	return candidates
}
