package gateway

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nexusmsg/campaign-engine/internal/alert"
	"github.com/nexusmsg/campaign-engine/internal/metrics"
)

// SupervisorConfig bounds the recovery policy. Zero values get defaults.
type SupervisorConfig struct {
	MaxAttempts int           // attempts allowed per window (default 3)
	Window      time.Duration // window after which the counter resets (default 5m)
	Cooldown    time.Duration // enforced gap between attempts (default 60s)
	Settle      time.Duration // wait after restart before the health re-check (default 5s)

	// FreePortCmd and RestartCmd are shell commands, e.g.
	// "fuser -k 3002/tcp" and "systemctl restart whatsapp-gateway".
	// Either may be empty to skip that step.
	FreePortCmd string
	RestartCmd  string
}

func (c *SupervisorConfig) defaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Window <= 0 {
		c.Window = 5 * time.Minute
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
	if c.Settle <= 0 {
		c.Settle = 5 * time.Second
	}
}

// Supervisor restarts the external gateway when it stops responding. It is
// the single owner of the recovery counters, constructed once at process
// start; many campaigns failing at the same moment serialize on it rather
// than launching a restart storm.
type Supervisor struct {
	cfg     SupervisorConfig
	health  func(ctx context.Context) bool
	runCmd  func(ctx context.Context, command string) error
	alerter alert.Sender
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	attempts    int
	windowStart time.Time
	lastAttempt time.Time
	alerted     bool
}

// NewSupervisor wires the recovery policy. health is probed after each
// restart; in production it is the gateway client's Health method.
func NewSupervisor(cfg SupervisorConfig, health func(ctx context.Context) bool, alerter alert.Sender, logger *slog.Logger) *Supervisor {
	cfg.defaults()
	return &Supervisor{
		cfg:     cfg,
		health:  health,
		runCmd:  runShell,
		alerter: alerter,
		logger:  logger.With("component", "gateway_supervisor"),
		now:     time.Now,
	}
}

// Recover makes one bounded attempt to bring the gateway back, or piggybacks
// on an attempt that already succeeded. Returns true when the gateway answers
// its health check. Best-effort: a failed recovery is reported, never fatal.
func (s *Supervisor) Recover(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have recovered the gateway while we waited on the
	// lock — or the outage may have been transient.
	if s.health(ctx) {
		s.reset()
		return true
	}

	now := s.now()
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.cfg.Cooldown {
		s.logger.Debug("recovery in cooldown", "since_last", now.Sub(s.lastAttempt))
		return false
	}
	if s.windowStart.IsZero() || now.Sub(s.windowStart) > s.cfg.Window {
		s.attempts = 0
		s.windowStart = now
	}
	if s.attempts >= s.cfg.MaxAttempts {
		s.exhausted(ctx)
		return false
	}

	s.attempts++
	s.lastAttempt = now
	s.logger.Warn("attempting gateway recovery", "attempt", s.attempts, "max", s.cfg.MaxAttempts)

	if s.cfg.FreePortCmd != "" {
		// Best-effort: the port may already be free.
		if err := s.runCmd(ctx, s.cfg.FreePortCmd); err != nil {
			s.logger.Debug("free port command", "error", err)
		}
	}
	if s.cfg.RestartCmd != "" {
		if err := s.runCmd(ctx, s.cfg.RestartCmd); err != nil {
			s.logger.Error("gateway restart command failed", "error", err)
		}
	}

	if !sleepCtx(ctx, s.cfg.Settle) {
		return false
	}

	if s.health(ctx) {
		s.logger.Info("gateway recovered", "attempt", s.attempts)
		metrics.GatewayRecoveriesTotal.WithLabelValues("recovered").Inc()
		s.reset()
		return true
	}

	metrics.GatewayRecoveriesTotal.WithLabelValues("failed").Inc()
	s.logger.Warn("gateway still unhealthy after recovery attempt", "attempt", s.attempts)
	if s.attempts >= s.cfg.MaxAttempts {
		s.exhausted(ctx)
	}
	return false
}

// reset clears the counters after a confirmed healthy gateway.
func (s *Supervisor) reset() {
	s.attempts = 0
	s.windowStart = time.Time{}
	s.alerted = false
}

// exhausted fires a single operator alert per outage.
func (s *Supervisor) exhausted(ctx context.Context) {
	if s.alerted {
		return
	}
	s.alerted = true
	metrics.GatewayRecoveriesTotal.WithLabelValues("exhausted").Inc()
	s.logger.Error("gateway recovery budget exhausted", "attempts", s.attempts, "window", s.cfg.Window)
	if s.alerter != nil {
		if err := s.alerter.Notify(ctx, "Gateway recovery exhausted",
			"The messaging gateway did not come back after the maximum number of restart attempts. Manual intervention required."); err != nil {
			s.logger.Error("send recovery alert", "error", err)
		}
	}
}

func runShell(ctx context.Context, command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	return cmd.Run()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
