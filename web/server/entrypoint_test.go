package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/invscan/autocount/config"
	"github.com/invscan/autocount/logging"
)

func TestServeAndShutdown(t *testing.T) {
	logger := logging.NewTestLogger(t)
	listener, err := net.Listen("tcp", "localhost:0")
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, listener, config.Default(), logger)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	test.That(t, err, test.ShouldBeNil)
	var body map[string]string
	test.That(t, json.NewDecoder(resp.Body).Decode(&body), test.ShouldBeNil)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)
	test.That(t, body["status"], test.ShouldEqual, "ok")

	cancel()
	select {
	case err := <-served:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunServerBadConfig(t *testing.T) {
	logger := logging.NewTestLogger(t)
	t.Setenv(config.ThresholdEnvVar, "3")
	err := RunServer(context.Background(), []string{"detectproxy", "--address", "localhost:0"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "confidence_threshold")
}

func TestMissingCredentialWarning(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	warnIfNoCredential(func() (string, bool) { return "", false }, logger)
	entries := logs.FilterMessageSnippet("credential is not set").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	for _, entry := range entries {
		test.That(t, strings.Contains(entry.Message, config.TokenEnvVar), test.ShouldBeFalse)
		for _, v := range entry.ContextMap() {
			test.That(t, v, test.ShouldNotEqual, config.TokenEnvVar)
		}
	}

	warnIfNoCredential(func() (string, bool) { return "token", true }, logger)
	test.That(t, logs.FilterMessageSnippet("credential is not set").Len(), test.ShouldEqual, 1)
}
