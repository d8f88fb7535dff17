package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fiteanalytics/finx-go/pkg/types"
)

// DefaultEndpoint is used when no source names an endpoint.
const DefaultEndpoint = "https://sandbox.finx.io/api/"

// Credentials identify the caller to the FinX API.
type Credentials struct {
	APIKey      string
	APIEndpoint string
}

type fileCredentials struct {
	APIKey      string `yaml:"FINX_API_KEY"`
	APIEndpoint string `yaml:"FINX_API_ENDPOINT"`
}

// ResolveCredentials fills each credential from the first source that has it:
// explicit overrides, the YAML file (Overrides.ConfigPath or FINX_CONFIG_PATH),
// the .env file (Overrides.EnvPath, FINX_ENV_PATH or ./.env), then the process
// environment. Values loaded from .env never replace variables already set.
// The endpoint defaults to DefaultEndpoint; a missing key is
// types.ErrMissingAPIKey.
func ResolveCredentials(o Overrides) (Credentials, error) {
	creds := Credentials{APIKey: o.APIKey, APIEndpoint: o.APIEndpoint}

	configPath := o.ConfigPath
	if configPath == "" {
		configPath = os.Getenv("FINX_CONFIG_PATH")
	}
	if configPath != "" && !creds.complete() {
		fc, err := readCredentialsFile(configPath)
		if err != nil {
			return Credentials{}, err
		}
		creds.fill(fc.APIKey, fc.APIEndpoint)
	}

	if !creds.complete() {
		envPath := o.EnvPath
		explicit := envPath != ""
		if envPath == "" {
			envPath = getEnvOrDefault("FINX_ENV_PATH", ".env")
			explicit = os.Getenv("FINX_ENV_PATH") != ""
		}

		err := godotenv.Load(envPath)
		if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
			return Credentials{}, fmt.Errorf("load env file %s: %w", envPath, err)
		}

		creds.fill(os.Getenv("FINX_API_KEY"), os.Getenv("FINX_API_ENDPOINT"))
	}

	if creds.APIEndpoint == "" {
		creds.APIEndpoint = DefaultEndpoint
	}
	if creds.APIKey == "" {
		return Credentials{}, types.ErrMissingAPIKey
	}

	return creds, nil
}

func readCredentialsFile(path string) (*fileCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileCredentials
	err = yaml.Unmarshal(data, &fc)
	if err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return &fc, nil
}

func (c *Credentials) complete() bool {
	return c.APIKey != "" && c.APIEndpoint != ""
}

func (c *Credentials) fill(key, endpoint string) {
	if c.APIKey == "" {
		c.APIKey = key
	}
	if c.APIEndpoint == "" {
		c.APIEndpoint = endpoint
	}
}
