package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/temirov/tistory-batch/internal/fsops"
)

const (
	DefaultCredentialsPath = "config.json"

	CredentialSourceEnvironment = "environment"
	CredentialSourceFile        = "file"
	CredentialSourceNone        = "none"

	credentialsReadErrorFormat   = "read credentials %s: %w"
	credentialsDecodeErrorFormat = "decode credentials %s: %w"
	credentialsEncodeErrorFormat = "encode credentials: %w"
	credentialsWriteErrorFormat  = "write credentials %s: %w"
)

// Credentials is the persisted credential file.
type Credentials struct {
	APIKey string `json:"api_key"`
}

// CredentialStore persists the API key as JSON. A missing file is an empty
// key, not an error.
type CredentialStore struct {
	ops  fsops.Ops
	path string
}

func NewCredentialStore(fileSystem fsops.FS, path string) CredentialStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultCredentialsPath
	}
	return CredentialStore{ops: fsops.NewOps(fileSystem), path: path}
}

func (store CredentialStore) Path() string { return store.path }

func (store CredentialStore) Load() (Credentials, error) {
	data, found, readErr := store.ops.ReadOptional(store.path)
	if readErr != nil {
		return Credentials{}, fmt.Errorf(credentialsReadErrorFormat, store.path, readErr)
	}
	if !found || len(strings.TrimSpace(string(data))) == 0 {
		return Credentials{}, nil
	}
	var credentials Credentials
	if err := json.Unmarshal(data, &credentials); err != nil {
		return Credentials{}, fmt.Errorf(credentialsDecodeErrorFormat, store.path, err)
	}
	credentials.APIKey = strings.TrimSpace(credentials.APIKey)
	return credentials, nil
}

// Save rewrites the credential file with apiKey.
func (store CredentialStore) Save(apiKey string) error {
	encoded, marshalErr := json.MarshalIndent(Credentials{APIKey: strings.TrimSpace(apiKey)}, "", "  ")
	if marshalErr != nil {
		return fmt.Errorf(credentialsEncodeErrorFormat, marshalErr)
	}
	if err := store.ops.WriteFileAtomic(store.path, append(encoded, '\n'), 0o600); err != nil {
		return fmt.Errorf(credentialsWriteErrorFormat, store.path, err)
	}
	return nil
}

// ResolveAPIKey prefers the environment variable named by environmentName
// over the credential file. It reports where the key came from.
func ResolveAPIKey(environmentName string, lookupEnvironment func(string) (string, bool), store CredentialStore) (string, string, error) {
	if strings.TrimSpace(environmentName) != "" && lookupEnvironment != nil {
		if value, ok := lookupEnvironment(environmentName); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), CredentialSourceEnvironment, nil
		}
	}
	credentials, loadErr := store.Load()
	if loadErr != nil {
		return "", CredentialSourceNone, loadErr
	}
	if credentials.APIKey == "" {
		return "", CredentialSourceNone, nil
	}
	return credentials.APIKey, CredentialSourceFile, nil
}

// MaskAPIKey keeps only enough of the key to recognize it.
func MaskAPIKey(apiKey string) string {
	runes := []rune(strings.TrimSpace(apiKey))
	if len(runes) == 0 {
		return ""
	}
	if len(runes) <= 8 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:3]) + strings.Repeat("*", len(runes)-7) + string(runes[len(runes)-4:])
}
