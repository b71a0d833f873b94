package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/xconn/xconn-go/pkg/account"
	"github.com/xconn/xconn-go/pkg/config"
	"github.com/xconn/xconn-go/pkg/connection"
	xlog "github.com/xconn/xconn-go/pkg/log"
	"github.com/xconn/xconn-go/pkg/network"
	"github.com/xconn/xconn-go/pkg/notify"
	"github.com/xconn/xconn-go/pkg/persistence"
	"github.com/xconn/xconn-go/pkg/resolver"
)

// Config configures a Service.
type Config struct {
	// Live supplies the settings. Required.
	Live *config.Live

	// Logger for operational output (default: slog.Default()).
	Logger *slog.Logger

	// Registerer receives the attempt metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// Network reports reachability (default: host interfaces).
	Network network.Probe

	// Clock drives retry timers and network polling (default: wall clock).
	Clock clock.Clock

	// LookupEnv reads account passwords (default: os.LookupEnv).
	LookupEnv func(key string) (string, bool)

	// EventLog receives attempt events in addition to the settings'
	// event_log file.
	EventLog xlog.Logger
}

// Service keeps the configured accounts connected.
type Service struct {
	live      *config.Live
	logger    *slog.Logger
	clock     clock.Clock
	lookupEnv func(string) (string, bool)

	manager  *account.Manager
	bus      *notify.Bus
	network  *network.Override
	monitor  *network.Monitor
	metrics  *connection.Metrics
	eventLog xlog.Logger
	fileLog  *xlog.FileLogger

	sessions map[account.ID]*Session
	order    []account.ID

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state ServiceState
	group *errgroup.Group
}

// New builds the service and one Session per configured account.
func New(cfg Config) (*Service, error) {
	if cfg.Live == nil {
		return nil, errors.New("service: Live is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Network == nil {
		cfg.Network = network.NewInterfaceProbe()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.LookupEnv == nil {
		cfg.LookupEnv = os.LookupEnv
	}

	settings := cfg.Live.Config()

	var store *persistence.AccountStateStore
	if settings.StateFile != "" {
		store = persistence.NewAccountStateStore(settings.StateFile)
	}
	manager, err := account.NewManager(account.ManagerConfig{Store: store, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}

	var loggers []xlog.Logger
	var fileLog *xlog.FileLogger
	if settings.EventLog != "" {
		fileLog, err = xlog.NewFileLogger(settings.EventLog)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		loggers = append(loggers, fileLog)
	}
	if cfg.EventLog != nil {
		loggers = append(loggers, cfg.EventLog)
	}

	override := network.NewOverride(cfg.Network)
	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		live:      cfg.Live,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		lookupEnv: cfg.LookupEnv,
		manager:   manager,
		bus:       notify.NewBus(cfg.Logger),
		network:   override,
		monitor:   network.NewMonitor(override, network.DefaultPollInterval, cfg.Clock),
		metrics:   connection.NewMetrics(cfg.Registerer),
		eventLog:  xlog.NewMultiLogger(loggers...),
		fileLog:   fileLog,
		sessions:  make(map[account.ID]*Session),
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, acct := range settings.Accounts {
		id, err := account.ParseID(acct.ID)
		if err != nil {
			cancel()
			svc.closeEventLog()
			return nil, err
		}
		manager.Register(id, acct.IsEnabled())
		svc.sessions[id] = svc.newSession(ctx, id, acct, settings)
		svc.order = append(svc.order, id)
	}

	manager.OnEnabledChange(svc.enabledChanged)
	cfg.Live.OnReload(svc.reloaded)
	return svc, nil
}

// Start runs the supervisors, the network monitor and the settings
// watcher until ctx is done or Stop is called.
func (svc *Service) Start(ctx context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.state != StateIdle {
		return ErrAlreadyStarted
	}

	context.AfterFunc(ctx, svc.cancel)
	if err := svc.live.Watch(svc.ctx); err != nil {
		svc.logger.Warn("settings file not watched", "error", err)
	}

	g, gctx := errgroup.WithContext(svc.ctx)
	for _, id := range svc.order {
		sup := svc.sessions[id].supervisor
		g.Go(func() error { return sup.Run(gctx) })
	}
	g.Go(func() error {
		svc.monitor.Run(gctx, svc.networkChanged)
		return nil
	})

	svc.group = g
	svc.state = StateRunning
	svc.logger.Info("service started", "accounts", len(svc.order))
	return nil
}

// Stop interrupts running attempts, waits for the supervisors and closes
// all connections.
func (svc *Service) Stop() error {
	svc.mu.Lock()
	if svc.state != StateRunning {
		svc.mu.Unlock()
		return ErrNotStarted
	}
	svc.state = StateStopped
	g := svc.group
	svc.mu.Unlock()

	svc.cancel()
	errs := []error{g.Wait()}
	for _, id := range svc.order {
		errs = append(errs, svc.sessions[id].transport.Close())
	}
	errs = append(errs, svc.live.Close(), svc.closeEventLog())

	svc.logger.Info("service stopped")
	return errors.Join(errs...)
}

func (svc *Service) closeEventLog() error {
	if svc.fileLog == nil {
		return nil
	}
	if n := svc.fileLog.Dropped(); n > 0 {
		svc.logger.Warn("event log dropped events", "count", n)
	}
	return svc.fileLog.Close()
}

// State returns the service state.
func (svc *Service) State() ServiceState {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.state
}

// Accounts returns the configured accounts in settings order.
func (svc *Service) Accounts() []account.ID {
	return append([]account.ID(nil), svc.order...)
}

// Session returns the session of an account.
func (svc *Service) Session(id account.ID) (*Session, bool) {
	s, ok := svc.sessions[id]
	return s, ok
}

// Status returns a snapshot of an account.
func (svc *Service) Status(id account.ID) (Status, error) {
	s, ok := svc.sessions[id]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return s.status(svc.manager), nil
}

// Connect requests an immediate attempt for an enabled account.
func (svc *Service) Connect(id account.ID) error {
	s, ok := svc.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	if !svc.manager.Enabled(id) {
		return fmt.Errorf("%w: %s", ErrAccountDisabled, id)
	}
	s.supervisor.Trigger()
	return nil
}

// Interrupt cancels the running attempt of an account, if any.
func (svc *Service) Interrupt(id account.ID) error {
	s, ok := svc.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	s.runner.Interrupt()
	return nil
}

// SetEnabled enables or disables an account. Enabling dismisses the
// account's sticky notification.
func (svc *Service) SetEnabled(id account.ID, enabled bool) error {
	if _, ok := svc.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	if enabled {
		svc.bus.RemoveSticky(id)
	}
	svc.manager.SetEnabled(id, enabled)
	return nil
}

// Errors returns the recorded errors of an account, oldest first.
func (svc *Service) Errors(id account.ID) []account.ErrorRecord {
	return svc.manager.Errors(id)
}

// ClearErrors drops the recorded errors of an account.
func (svc *Service) ClearErrors(id account.ID) {
	svc.manager.ClearErrors(id)
}

// Notifications returns the sticky notification bus.
func (svc *Service) Notifications() *notify.Bus {
	return svc.bus
}

// SetNetworkMode forces the network state seen by attempts.
func (svc *Service) SetNetworkMode(m network.Mode) {
	svc.network.SetMode(m)
	svc.logger.Info("network mode changed", "mode", m.String())
	if svc.network.Available() {
		svc.triggerAll()
	}
}

// NetworkMode returns the forced network state.
func (svc *Service) NetworkMode() network.Mode {
	return svc.network.Mode()
}

// NetworkAvailable reports the network state seen by attempts.
func (svc *Service) NetworkAvailable() bool {
	return svc.network.Available()
}

// SetResolver switches the DNS strategy used by the next attempts.
func (svc *Service) SetResolver(strategy resolver.Strategy) error {
	return svc.live.SetResolver(strategy)
}

// Resolver returns the DNS strategy used by the next attempts.
func (svc *Service) Resolver() resolver.Strategy {
	return svc.live.AttemptConfig().Resolver.Strategy()
}

func (svc *Service) enabledChanged(id account.ID, enabled bool) {
	s, ok := svc.sessions[id]
	if !ok {
		return
	}
	if enabled {
		s.supervisor.Trigger()
		return
	}
	s.runner.Interrupt()
	if err := s.transport.Close(); err != nil {
		svc.logger.Debug("close after disable", "account", id, "error", err)
	}
	s.item.MarkDisconnected()
}

func (svc *Service) networkChanged(up bool) {
	svc.logger.Info("network availability changed", "available", up)
	if up {
		svc.triggerAll()
	}
}

func (svc *Service) triggerAll() {
	for _, id := range svc.order {
		svc.sessions[id].supervisor.Trigger()
	}
}

func (svc *Service) reloaded(cfg *config.Config) {
	known := make(map[account.ID]bool, len(svc.order))
	for _, id := range svc.order {
		known[id] = true
	}
	for _, id := range cfg.AccountIDs() {
		if !known[id] {
			svc.logger.Warn("account added to settings, restart to connect it", "account", id)
		}
	}
}
