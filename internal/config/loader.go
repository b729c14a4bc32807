package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/voxa/internal/envvar"
	"github.com/ekisa-team/voxa/internal/xfs"
)

const schemaURL = "https://ekisa.dev/schemas/voxa.v1.schema.json"

//go:embed voxa.v1.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	errSchema      error
)

// schema compiles the embedded config schema once.
func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			errSchema = fmt.Errorf("config: failed to add schema resource: %w", err)
			return
		}
		compiledSchema, errSchema = compiler.Compile(schemaURL)
	})

	return compiledSchema, errSchema
}

// LoadAndValidate loads, expands, validates and defaults the configuration file at path.
func LoadAndValidate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse validates raw YAML against the schema and returns the resulting config.
// ${VAR} references are expanded from the environment before parsing.
func Parse(data []byte) (*Config, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	var raw any
	if err := yaml.Unmarshal(expanded, &raw); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}

	doc, err := toJSONDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("config: failed to normalize document: %w", err)
	}

	s, err := schema()
	if err != nil {
		return nil, err
	}

	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()
	cfg.expandPaths()

	return &cfg, nil
}

// toJSONDocument round-trips a YAML value through JSON so the validator sees
// the same types it would for a JSON document.
func toJSONDocument(raw any) (any, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// applyEnvOverrides lets deployment environments override file settings.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envvar.VoxaHTTPAddr); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv(envvar.VoxaRasaURL); v != "" {
		c.Chat.RasaURL = v
	}
	if v := os.Getenv(envvar.VoxaUploadsDir); v != "" {
		c.Storage.UploadsDir = v
	}
	if v := os.Getenv(envvar.VoxaTranscriptionsDir); v != "" {
		c.Storage.TranscriptionsDir = v
	}
	if v := os.Getenv(envvar.VoxaLogLevel); v != "" {
		c.Log.Level = v
	}
	if c.Speech.OpenAI.APIKey == "" {
		c.Speech.OpenAI.APIKey = os.Getenv(envvar.OpenAIAPIKey)
	}
}

func (c *Config) expandPaths() {
	c.Storage.UploadsDir = xfs.ExpandTilde(c.Storage.UploadsDir)
	c.Storage.TranscriptionsDir = xfs.ExpandTilde(c.Storage.TranscriptionsDir)
	c.Speech.Whisper.BinPath = xfs.ExpandTilde(c.Speech.Whisper.BinPath)
	c.Speech.Whisper.ModelPath = xfs.ExpandTilde(c.Speech.Whisper.ModelPath)
	c.Log.File = xfs.ExpandTilde(c.Log.File)
}
