// Package server contains the entrypoint of the detection proxy HTTP server.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/invscan/autocount/config"
	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/services/detectionproxy"
	"github.com/invscan/autocount/services/inference"
)

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,usage=optional JSON config file"`
	Address    string `flag:"address,usage=address to listen on (overrides config)"`
	Debug      bool   `flag:"debug"`
}

// RunServer parses arguments, loads configuration and serves the detection proxy until ctx is
// done.
func RunServer(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}

	cfg, err := config.Load(argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}
	if argsParsed.Address != "" {
		cfg.Address = argsParsed.Address
	}
	warnIfNoCredential(config.EnvCredential, logger)

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return errors.Wrapf(err, "could not listen on %q", cfg.Address)
	}
	return Serve(ctx, listener, cfg, logger)
}

// warnIfNoCredential logs a startup warning when no credential is configured. Neither the
// credential nor where it is read from is logged.
func warnIfNoCredential(credential config.CredentialFunc, logger logging.Logger) {
	if _, ok := credential(); !ok {
		logger.Warn("inference credential is not set; count requests will fail until it is")
	}
}

// Serve runs the proxy on listener until ctx is done.
func Serve(ctx context.Context, listener net.Listener, cfg *config.Config, logger logging.Logger) error {
	client := inference.NewClient(cfg.ModelURL, logger.Sublogger("inference"),
		inference.WithRetry(cfg.MaxAttempts, cfg.RetryBaseDelay),
		inference.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	handler := detectionproxy.NewHandler(cfg, client, config.EnvCredential, logger.Sublogger("proxy"))

	httpServer := &http.Server{
		Addr:              listener.Addr().String(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           detectionproxy.NewMux(handler, logger),
	}

	utils.PanicCapturingGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("error shutting down", "error", err)
		}
	})

	logger.Infow("serving", "url", "http://"+listener.Addr().String(), "model_url", cfg.ModelURL,
		"threshold", cfg.ConfidenceThreshold)
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
