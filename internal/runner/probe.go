package runner

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"

	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/target"
)

// Runner prepares the environment and executes scenarios against it.
type Runner struct {
	catalog   *Catalog
	probe     *http.Client
	targetSrv *http.Server
}

// New builds a Runner over the given catalog.
func New(catalog *Catalog) *Runner {
	return &Runner{
		catalog: catalog,
		probe:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PrepareEnvironment confirms the target answers its health endpoint
// before any VU starts. When the probe fails and StartTarget is set, the
// embedded stand-in service is bound to the configured address and the
// probe runs once more.
func (r *Runner) PrepareEnvironment(ctx context.Context, cfg *config.RunConfig) error {
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = config.DefaultHealthPath
	}
	healthURL := strings.TrimSuffix(cfg.BaseURL, "/") + healthPath

	attempts := cfg.ProbeAttempts
	if attempts <= 0 {
		attempts = config.DefaultProbeAttempts
	}
	delay := time.Duration(cfg.ProbeDelay)
	if delay <= 0 {
		delay = config.DefaultProbeDelay
	}

	err := r.probeHealth(ctx, healthURL, attempts, delay)
	if err == nil {
		log.WithField("url", healthURL).Debug("target is ready")
		return nil
	}

	if !cfg.StartTarget {
		return &EnvironmentError{URL: healthURL, Attempts: attempts, Err: err}
	}

	log.WithField("url", cfg.BaseURL).Info("target unreachable, starting embedded stand-in")
	if startErr := r.startTarget(cfg.BaseURL); startErr != nil {
		return &EnvironmentError{URL: healthURL, Attempts: attempts, Err: startErr}
	}

	if err := r.probeHealth(ctx, healthURL, attempts, delay); err != nil {
		return &EnvironmentError{URL: healthURL, Attempts: attempts, Err: err}
	}
	return nil
}

func (r *Runner) probeHealth(ctx context.Context, healthURL string, attempts int, delay time.Duration) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
			if err != nil {
				return err
			}

			resp, err := r.probe.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health check returned status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.WithFields(log.Fields{
				"attempt": n + 1,
				"url":     healthURL,
			}).WithError(err).Debug("health probe failed")
		}),
	)
}

// startTarget binds the stand-in service to the host:port of baseURL and
// serves it in the background for the rest of the process.
func (r *Runner) startTarget(baseURL string) error {
	addr, err := listenAddr(baseURL)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind stand-in target on %s: %w", addr, err)
	}

	r.targetSrv = target.NewServer(addr, target.DefaultConfig())
	go func() {
		if serveErr := r.targetSrv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			log.WithError(serveErr).Error("stand-in target exited")
		}
	}()

	log.WithField("addr", addr).Info("embedded stand-in target listening")
	return nil
}

// Close shuts down the embedded target, if one was started.
func (r *Runner) Close() error {
	if r.targetSrv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.targetSrv.Shutdown(ctx)
}

// listenAddr extracts host:port from a base URL, filling in the scheme's
// default port when none is given.
func listenAddr(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base URL %q has no host", baseURL)
	}

	if u.Port() != "" {
		return u.Host, nil
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443"), nil
	}
	return net.JoinHostPort(u.Hostname(), "80"), nil
}
