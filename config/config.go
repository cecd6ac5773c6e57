// Package config holds the detection proxy configuration: defaults, an optional JSON file and
// environment overrides, applied in that order.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/utils"
)

// Environment variables read by the proxy.
const (
	TokenEnvVar          = "INFERENCE_API_TOKEN"
	ModelURLEnvVar       = "INFERENCE_MODEL_URL"
	ThresholdEnvVar      = "DETECTION_CONFIDENCE_THRESHOLD"
	MaxAttemptsEnvVar    = "INFERENCE_MAX_ATTEMPTS"
	RetryBaseDelayEnvVar = "INFERENCE_RETRY_BASE_DELAY"
	AddressEnvVar        = "DETECTION_PROXY_ADDRESS"
)

// Defaults.
const (
	DefaultAddress        = "localhost:8080"
	DefaultModelURL       = "https://api-inference.huggingface.co/models/facebook/detr-resnet-50"
	DefaultThreshold      = 0.25
	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = time.Second
	DefaultRequestTimeout = 60 * time.Second
	DefaultMaxBodyBytes   = 15 << 20
)

// Config is the detection proxy configuration. It never holds the inference credential, which is
// looked up per request.
type Config struct {
	Address             string        `json:"address"`
	ModelURL            string        `json:"model_url"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
	MaxAttempts         int           `json:"max_attempts"`
	RetryBaseDelay      time.Duration `json:"retry_base_delay"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	MaxBodyBytes        int64         `json:"max_body_bytes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Address:             DefaultAddress,
		ModelURL:            DefaultModelURL,
		ConfidenceThreshold: DefaultThreshold,
		MaxAttempts:         DefaultMaxAttempts,
		RetryBaseDelay:      DefaultRetryBaseDelay,
		RequestTimeout:      DefaultRequestTimeout,
		MaxBodyBytes:        DefaultMaxBodyBytes,
	}
}

// Load builds the configuration from defaults, the file at path (if non-empty) and the
// environment, then validates it.
func Load(path string, logger logging.Logger) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path, logger); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(logger)
	if err := cfg.Validate("proxy"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile overlays the JSON file at path, expanding ${VAR} references first.
func (cfg *Config) readFile(path string, logger logging.Logger) error {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "could not read config file %q", path)
	}
	var attributes map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	if err := dec.Decode(&attributes); err != nil {
		return errors.Wrapf(err, "could not parse config file %q", path)
	}
	return cfg.decode(attributes, logger)
}

func (cfg *Config) decode(attributes map[string]interface{}, logger logging.Logger) error {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		Metadata:         &md,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attributes); err != nil {
		return errors.Wrap(err, "invalid config attributes")
	}
	for _, key := range md.Unused {
		logger.Warnw("ignoring unknown config attribute", "attribute", key)
	}
	return nil
}

// ApplyEnv overrides fields with any environment variables that are set. Unparseable values are
// logged and ignored.
func (cfg *Config) ApplyEnv(logger logging.Logger) {
	cfg.Address = utils.EnvString(AddressEnvVar, cfg.Address)
	cfg.ModelURL = utils.EnvString(ModelURLEnvVar, cfg.ModelURL)
	cfg.ConfidenceThreshold = utils.EnvFloat64(ThresholdEnvVar, cfg.ConfidenceThreshold, logger)
	cfg.MaxAttempts = utils.EnvInt(MaxAttemptsEnvVar, cfg.MaxAttempts, logger)
	cfg.RetryBaseDelay = utils.EnvDuration(RetryBaseDelayEnvVar, cfg.RetryBaseDelay, logger)
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.ModelURL == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "model_url")
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("confidence_threshold must be within [0,1], got %v", cfg.ConfidenceThreshold))
	}
	if cfg.MaxAttempts < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_attempts must be at least 1, got %d", cfg.MaxAttempts))
	}
	if cfg.RetryBaseDelay < 0 {
		return utils.NewConfigValidationError(path, errors.New("retry_base_delay cannot be negative"))
	}
	if cfg.MaxBodyBytes <= 0 {
		return utils.NewConfigValidationError(path, errors.New("max_body_bytes must be positive"))
	}
	return nil
}

// CredentialFunc returns the inference credential and whether it is configured.
type CredentialFunc func() (string, bool)

// EnvCredential reads the credential from TokenEnvVar on every call so rotation needs no restart.
func EnvCredential() (string, bool) {
	token := os.Getenv(TokenEnvVar)
	return token, token != ""
}
