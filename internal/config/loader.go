package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var validate = validator.New()

// ConfigError is a diagnostic error type returned by Load to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix is the environment variable suffix used to identify SSM
// parameter pointer variables. For example, SCHEDULE_ROLE_ARN_SSM_PARAM points
// to the SSM path holding the SCHEDULE_ROLE_ARN value.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// loaderDeps abstracts the process environment so SSM resolution can be
// tested without mutating it.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// Spec is implemented by every per-function configuration struct. Each one
// embeds CommonConfig, which receives the build metadata after parsing.
type Spec interface {
	common() *CommonConfig
}

func (c *CommonConfig) common() *CommonConfig { return c }

// Load populates and validates spec from the environment.
//
// It performs the following steps in order:
//  1. Loads a .env file if present (non-fatal if missing).
//  2. Scans environment for _SSM_PARAM variables.
//  3. If APP_ENV != "local", resolves the SSM parameters via the provider
//     and injects resolved values as environment variables.
//  4. Processes envconfig tags to populate spec.
//  5. Populates the build metadata from linker-injected variables.
//  6. Validates spec.
//
// The process time zone is left untouched: schedule fields are interpreted
// as wall-clock time in time.Local unless SCHEDULE_TIMEZONE is set.
//
// The provider parameter is the SecretProvider to use for SSM resolution.
// For local development, the provider may be nil (SSM resolution is skipped).
func Load(provider SecretProvider, spec Spec) error {
	return loadWithDeps(provider, spec, defaultDeps())
}

// loadWithDeps is the internal implementation of Load that accepts
// injectable dependencies for testing.
func loadWithDeps(provider SecretProvider, spec Spec, deps loaderDeps) error {
	// godotenv.Load() does NOT override existing environment variables.
	_ = godotenv.Load()

	appEnv, _ := deps.lookupEnv("APP_ENV")

	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return err
		}
	}

	// The empty prefix "" means envconfig will use the exact tag values
	// (e.g., envconfig:"APP_ENV" reads APP_ENV directly).
	if err := envconfig.Process("", spec); err != nil {
		return &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	spec.common().Build = NewBuildInfo()

	if err := validate.Struct(spec); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return nil
}

// resolveSSMParams replaces every NAME_SSM_PARAM=/path pointer with
// NAME=<value of /path>. A NAME already present in the environment (or .env)
// wins and its pointer is ignored. Paths are fetched in one batched call.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	// path -> target variables; several variables may share one parameter.
	targets := make(map[string][]string)
	var names []string

	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || path == "" || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		name := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := deps.lookupEnv(name); set {
			continue
		}
		targets[path] = append(targets[path], name)
		names = append(names, name)
	}

	if len(targets) == 0 {
		return nil
	}
	sort.Strings(names)

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(names, ", ")),
		}
	}

	paths := make([]string, 0, len(targets))
	for path := range targets {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, targets[path]...)
			continue
		}
		for _, name := range targets[path] {
			if err := deps.setEnv(name, value); err != nil {
				return &ConfigError{
					Type:    ErrSSMResolution,
					Message: fmt.Sprintf("failed to set resolved value for %s", name),
					Err:     err,
				}
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
