package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/invscan/autocount/logging"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxy.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
	test.That(t, cfg.ConfidenceThreshold, test.ShouldEqual, 0.25)
	test.That(t, cfg.MaxAttempts, test.ShouldEqual, 3)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("MODEL_HOST", "models.internal")
	path := writeConfig(t, `{
		"model_url": "https://${MODEL_HOST}/detr",
		"confidence_threshold": 0.5,
		"retry_base_delay": "250ms",
		"max_body_bytes": 1024,
		"colour": "blue"
	}`)

	logger, logs := logging.NewObservedTestLogger(t)
	cfg, err := Load(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ModelURL, test.ShouldEqual, "https://models.internal/detr")
	test.That(t, cfg.ConfidenceThreshold, test.ShouldEqual, 0.5)
	test.That(t, cfg.RetryBaseDelay, test.ShouldEqual, 250*time.Millisecond)
	test.That(t, cfg.MaxBodyBytes, test.ShouldEqual, int64(1024))
	test.That(t, logs.FilterMessage("ignoring unknown config attribute").Len(), test.ShouldEqual, 1)

	t.Setenv(ThresholdEnvVar, "0.75")
	t.Setenv(MaxAttemptsEnvVar, "5")
	t.Setenv(RetryBaseDelayEnvVar, "2s")
	cfg, err = Load(path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfidenceThreshold, test.ShouldEqual, 0.75)
	test.That(t, cfg.MaxAttempts, test.ShouldEqual, 5)
	test.That(t, cfg.RetryBaseDelay, test.ShouldEqual, 2*time.Second)
}

func TestBadEnvFallsBack(t *testing.T) {
	t.Setenv(ThresholdEnvVar, "lots")
	logger, logs := logging.NewObservedTestLogger(t)
	cfg, err := Load("", logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfidenceThreshold, test.ShouldEqual, DefaultThreshold)
	test.That(t, logs.FilterMessage("failed to parse env var, falling back to default").Len(), test.ShouldEqual, 1)
}

func TestLoadErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Load(writeConfig(t, `{not json`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Load(writeConfig(t, `{"max_attempts": "many"}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate("proxy"), test.ShouldBeNil)

	cfg.ConfidenceThreshold = 1.5
	err := cfg.Validate("proxy")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "confidence_threshold")

	cfg = Default()
	cfg.MaxAttempts = 0
	test.That(t, cfg.Validate("proxy").Error(), test.ShouldContainSubstring, "max_attempts")

	cfg = Default()
	cfg.ModelURL = ""
	test.That(t, cfg.Validate("proxy").Error(), test.ShouldContainSubstring, `"model_url" is required`)
}

func TestEnvCredential(t *testing.T) {
	t.Setenv(TokenEnvVar, "")
	_, ok := EnvCredential()
	test.That(t, ok, test.ShouldBeFalse)

	t.Setenv(TokenEnvVar, "hf_abc")
	token, ok := EnvCredential()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, token, test.ShouldEqual, "hf_abc")
}
