// Package governor owns the one-directional ratchet on the global ceiling
// rate. Lowering the ceiling bounds the protocol's total future yield
// obligation: holders keep whatever rate they already locked, only new mints
// are bound by the lower value.
package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openyield/yieldbridge/internal/auth"
	"github.com/openyield/yieldbridge/internal/fixedpoint"
	"github.com/openyield/yieldbridge/internal/interfaces"
	"github.com/openyield/yieldbridge/internal/metrics"
	"github.com/openyield/yieldbridge/internal/models"
)

// ErrRateIncrease is returned when a ceiling update would raise the rate.
// The ceiling only ever moves down.
var ErrRateIncrease = errors.New("ceiling rate can only be lowered")

type Governor struct {
	store   interfaces.ConfigStore
	auth    interfaces.Authorizer
	metrics *metrics.Collector
	log     zerolog.Logger

	mu sync.Mutex // serializes read-compare-write on the ceiling
}

func New(store interfaces.ConfigStore, authorizer interfaces.Authorizer, log zerolog.Logger, collector *metrics.Collector) *Governor {
	return &Governor{
		store:   store,
		auth:    authorizer,
		metrics: collector,
		log:     log.With().Str("component", "governor").Logger(),
	}
}

// Init writes the initial ceiling if the store holds no config yet. An
// existing ceiling wins over the configured one, so a restart can never
// ratchet the rate back up through configuration.
func (g *Governor) Init(ctx context.Context, initial fixedpoint.Rate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg, ok, err := g.store.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if ok {
		g.gauge(cfg.CeilingRate)
		return nil
	}
	cfg = models.GlobalConfig{CeilingRate: initial}
	if err := g.store.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	g.gauge(initial)
	g.log.Info().Str("ceiling_rate", initial.String()).Msg("ceiling initialized")
	return nil
}

// CeilingRate returns the current ceiling.
func (g *Governor) CeilingRate(ctx context.Context) (fixedpoint.Rate, error) {
	cfg, _, err := g.store.LoadConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}
	return cfg.CeilingRate, nil
}

// SetCeilingRate updates the ceiling. The new rate must not exceed the
// current one; on rejection the ceiling is left untouched.
func (g *Governor) SetCeilingRate(ctx context.Context, caller string, newRate fixedpoint.Rate) error {
	if !g.auth.Allows(caller, auth.CapSetRate) {
		g.fail()
		return fmt.Errorf("set ceiling by %q: %w", caller, auth.ErrUnauthorized)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cfg, _, err := g.store.LoadConfig(ctx)
	if err != nil {
		g.fail()
		return fmt.Errorf("load config: %w", err)
	}
	if newRate > cfg.CeilingRate {
		g.fail()
		return fmt.Errorf("raise ceiling %s -> %s: %w", cfg.CeilingRate, newRate, ErrRateIncrease)
	}
	cfg.CeilingRate = newRate
	if err := g.store.SaveConfig(ctx, cfg); err != nil {
		g.fail()
		return fmt.Errorf("save config: %w", err)
	}

	g.gauge(newRate)
	g.log.Info().Str("ceiling_rate", newRate.String()).Msg("ceiling lowered")
	return nil
}

func (g *Governor) gauge(r fixedpoint.Rate) {
	if g.metrics != nil {
		f, _ := r.Decimal().Float64()
		g.metrics.SetCeilingRate(f)
	}
}

func (g *Governor) fail() {
	if g.metrics != nil {
		g.metrics.OperationFailed("set_ceiling_rate")
	}
}
