package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/voxa/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	// Development enables human-friendly console logging.
	Development Environment = "development"

	// Production enables structured JSON logging.
	Production Environment = "production"

	// Test is used by test suites.
	Test Environment = "test"
)

// FromEnv reads the environment from VOXA_ENV, defaulting to Development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.VoxaEnv))
}

// Parse converts a raw string to an Environment.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is Production.
func (e Environment) IsProduction() bool {
	return e == Production
}

func (e Environment) String() string {
	return string(e)
}
