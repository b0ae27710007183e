package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nspcc-dev/p2pnet/pkg/hostpool"
	"github.com/nspcc-dev/p2pnet/pkg/protocol"
)

// Config bundles everything Controller needs to build and wire the
// node's sessions together. Each session kind is enabled independently:
// a Manual session runs only if EnableManual is set and Manual.Endpoints
// is non-empty, Seed only
// if EnableSeed and at least one seed is configured, and so on — a node
// can be outbound-only, inbound-only, or any combination, matching
// spec.md §6's independent `enable_*`/count options.
type Config struct {
	Deps Deps // ChannelConfig/Handshake/Ping/Address/LogOnly templates

	Pool hostpool.Config

	EnableManual  bool
	Manual        ManualConfig
	EnableInbound bool
	Inbound       InboundConfig
	EnableOutbound bool
	Outbound       OutboundConfig
	EnableSeed     bool
	Seed           SeedConfig

	// HostPoolFlushInterval periodically persists the pool to disk and
	// refreshes its size metric (spec.md §6's host_pool_flush_interval).
	HostPoolFlushInterval time.Duration
}

// Controller orchestrates a node's pool and sessions together, grounded
// on the teacher's historical `_pkg.dev/server.Server`: construct every
// module up front, then Run in dependency order (there: connmgr before
// chain height before sync request; here: pool before seeding before the
// persistent sessions), and tear down in reverse on Stop.
type Controller struct {
	pool    *hostpool.Pool
	nonces  *protocol.NonceRegistry
	metrics *Metrics
	logger  *zap.Logger

	flushInterval time.Duration
	flushStop     chan struct{}

	manual   *ManualSession
	inbound  *InboundSession
	outbound *OutboundSession
	seed     *SeedSession
}

// NewController builds every configured session, unstarted. reg may be
// nil to disable Prometheus metrics.
func NewController(cfg Config, logger *zap.Logger, reg prometheus.Registerer) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool := hostpool.New(cfg.Pool)
	nonces := protocol.NewNonceRegistry()

	var metrics *Metrics
	if reg != nil {
		metrics = NewMetrics(reg)
	}

	deps := cfg.Deps
	deps.Pool = pool
	deps.Nonces = nonces
	deps.Logger = logger
	deps.Metrics = metrics

	c := &Controller{pool: pool, nonces: nonces, metrics: metrics, logger: logger, flushInterval: cfg.HostPoolFlushInterval}

	if cfg.EnableManual && len(cfg.Manual.Endpoints) > 0 {
		c.manual = NewManualSession(deps, cfg.Manual)
	}
	if cfg.EnableInbound {
		c.inbound = NewInboundSession(deps, cfg.Inbound)
	}
	if cfg.EnableOutbound {
		c.outbound = NewOutboundSession(deps, cfg.Outbound)
	}
	if cfg.EnableSeed && len(cfg.Seed.Seeds) > 0 {
		c.seed = NewSeedSession(deps, cfg.Seed)
	}
	return c
}

// Run starts the pool, kicks off best-effort seeding, starts the
// persistent manual/outbound sessions, and finally binds the inbound
// listener (the one session kind with a synchronous-ish failure mode),
// forwarding its bind outcome to handler. If inbound is disabled,
// handler fires immediately after pool.Start succeeds.
func (c *Controller) Run(handler StartHandler) {
	if err := c.pool.Start(); err != nil {
		handler(err)
		return
	}
	c.startFlushLoop()

	if c.seed != nil {
		c.seed.Start(func(error) {})
	}
	if c.manual != nil {
		c.manual.Start(func(error) {})
	}
	if c.outbound != nil {
		c.outbound.Start(func(error) {})
	}
	if c.inbound != nil {
		c.inbound.Start(handler)
		return
	}
	handler(nil)
}

// Stop tears every running session down — in the reverse of Run's
// startup order — then persists the pool one final time.
func (c *Controller) Stop() error {
	c.stopFlushLoop()
	if c.inbound != nil {
		c.inbound.Stop()
	}
	if c.outbound != nil {
		c.outbound.Stop()
	}
	if c.manual != nil {
		c.manual.Stop()
	}
	if c.seed != nil {
		c.seed.Stop()
	}
	return c.pool.Stop()
}

// Pool exposes the controller's address pool, e.g. for a CLI's
// diagnostics endpoint.
func (c *Controller) Pool() *hostpool.Pool { return c.pool }

func (c *Controller) startFlushLoop() {
	if c.flushInterval <= 0 {
		return
	}
	c.flushStop = make(chan struct{})
	ticker := time.NewTicker(c.flushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.pool.Stop(); err != nil {
					c.logger.Warn("host pool flush failed", zap.Error(err))
				}
				c.metrics.ObservePoolSize(c.pool.Count())
			case <-c.flushStop:
				return
			}
		}
	}()
}

func (c *Controller) stopFlushLoop() {
	if c.flushStop != nil {
		close(c.flushStop)
	}
}
