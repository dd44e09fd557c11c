package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/fuelops/api/platform"
	"github.com/kilianp07/fuelops/app/plugins"
	"github.com/kilianp07/fuelops/config"
	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/capability"
	"github.com/kilianp07/fuelops/core/events"
	"github.com/kilianp07/fuelops/core/gateway"
	"github.com/kilianp07/fuelops/core/learning"
	coremetrics "github.com/kilianp07/fuelops/core/metrics"
	coremon "github.com/kilianp07/fuelops/core/monitoring"
	"github.com/kilianp07/fuelops/core/orchestration"
	"github.com/kilianp07/fuelops/core/store"
	"github.com/kilianp07/fuelops/core/store/memory"
	"github.com/kilianp07/fuelops/infra/logger"
	"github.com/kilianp07/fuelops/infra/metrics"
	"github.com/kilianp07/fuelops/infra/monitoring"
	"github.com/kilianp07/fuelops/infra/mqtt"
	"github.com/kilianp07/fuelops/infra/postgres"
	"github.com/kilianp07/fuelops/infra/queue"
	"github.com/kilianp07/fuelops/internal/eventbus"
)

// Store bundles the persistence collaborators.
type Store interface {
	store.TaskRepository
	store.WorkerRepository
	store.TaskAssigner
}

// Service wires the platform layer from configuration.
type Service struct {
	Gateway      *gateway.Gateway
	Flow         *gateway.DispatchFlow
	Orchestrator *orchestration.Engine
	Registry     *capability.Registry
	Audit        audit.Log
	Store        Store

	cfg   *config.Config
	bus   *eventbus.Bus[eventbus.Event]
	sink  coremetrics.MetricsSink
	queue *queue.Queue
	pool  *pgxpool.Pool
	mon   coremon.Monitor
	log   logger.Logger

	closeOnce sync.Once
}

// New creates a Service from the configuration. Network listeners are only
// started by Run.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	s := &Service{cfg: cfg, bus: eventbus.New(), log: logger.New("service")}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	s.mon = mon

	if cfg.Postgres.Enabled() {
		if s.pool, err = postgres.Open(ctx, cfg.Postgres); err != nil {
			return nil, err
		}
	}
	if s.Store, err = s.openStore(); err != nil {
		return nil, err
	}
	if s.Audit, err = s.openAudit(ctx); err != nil {
		return nil, err
	}
	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	var rec learning.Recorder = learning.AuditRecorder{Log: s.Audit, Actor: cfg.Platform.Actor}
	if cfg.Queue.Enabled {
		s.queue, err = queue.New(ctx, s.pool, cfg.Queue, rec, logger.New("learning-worker"))
		if err != nil {
			return nil, err
		}
		rec = s.queue.Recorder()
	}

	s.Registry = capability.NewWithDefaults(s.Store)
	s.Gateway, err = gateway.New(cfg.Platform.Gateway(), gateway.Deps{
		Registry: s.Registry,
		Tasks:    s.Store,
		Workers:  s.Store,
		Audit:    s.Audit,
		Learning: rec,
		Sink:     s.sink,
		Bus:      s.bus,
		Monitor:  coremon.WithTags(mon, map[string]string{"component": "gateway"}),
		Logger:   logger.New("gateway"),
	})
	if err != nil {
		return nil, err
	}

	s.Orchestrator = orchestration.NewEngine(cfg.Orchestration,
		orchestration.WithLogger(logger.New("orchestration")),
		orchestration.WithMonitor(coremon.WithTags(mon, map[string]string{"component": "orchestration"})),
	)
	s.Orchestrator.OnStateChange(s.publishFlowEnd)
	if s.Flow, err = gateway.RegisterDispatchFlow(s.Orchestrator, s.Gateway, s.Audit); err != nil {
		return nil, err
	}
	s.log.Infof("platform ready: mode=%s strategy=%s store=%s audit=%s", s.Gateway.Mode(), cfg.Platform.StrategyVersion, cfg.Store.Backend, cfg.Audit.Backend)
	ok = true
	return s, nil
}

func (s *Service) openStore() (Store, error) {
	if s.cfg.Store.Backend == config.StorePostgres {
		return postgres.NewRepository(s.pool), nil
	}
	if s.cfg.Store.Fixture == "" {
		return memory.New(), nil
	}
	st, err := memory.LoadFixture(s.cfg.Store.Fixture)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) openAudit(ctx context.Context) (audit.Log, error) {
	if s.cfg.Audit.Backend == config.AuditPostgres {
		l, err := postgres.NewAuditLog(ctx, s.pool, s.cfg.Postgres.EnsureSchema)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	l, err := plugins.NewAuditStore(s.cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	return l, nil
}

// publishFlowEnd puts a FlowEvent on the bus when a run completes or fails.
func (s *Service) publishFlowEnd(st orchestration.State) {
	if st.Step != orchestration.StepCompleted && !st.Failed() {
		return
	}
	s.bus.Publish(events.FlowEvent{FlowID: st.FlowID, EventID: st.EventID, Step: st.Step, Error: st.Error, Time: st.UpdatedAt})
}

// Bus returns the event bus carrying dispatch and flow events.
func (s *Service) Bus() eventbus.EventBus { return s.bus }

// Dispatch runs in through the orchestration flow.
func (s *Service) Dispatch(ctx context.Context, in gateway.Input) (gateway.Output, orchestration.State, error) {
	return s.Flow.Run(ctx, in)
}

// Run starts the collectors, the queue, the MQTT feed and the HTTP servers,
// and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				s.log.Errorf("%s: %v", name, err)
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	if s.queue != nil {
		if err := s.queue.Start(ctx); err != nil {
			return fmt.Errorf("learning queue: %w", err)
		}
	}
	if s.cfg.MQTT.Enabled() {
		feed, err := mqtt.NewFeed(s.cfg.MQTT,
			mqtt.WithLogger(logger.New("mqtt-feed")),
			mqtt.WithMonitor(s.mon),
			mqtt.WithContext(ctx),
			mqtt.WithRequestHandler(s.handleRequest),
		)
		if err != nil {
			return fmt.Errorf("mqtt feed: %w", err)
		}
		defer feed.Disconnect()
		start("mqtt feed", func(ctx context.Context) error { return feed.Run(ctx, s.bus) })
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		start("prometheus", func(ctx context.Context) error { return metrics.StartPromServer(ctx, ":"+port) })
	}
	start("api", s.serveAPI)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
		cancel()
	}
	wg.Wait()
	if s.queue != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.queue.Stop(stopCtx); err != nil {
			s.log.Warnf("learning queue stop: %v", err)
		}
	}
	return runErr
}

func (s *Service) handleRequest(ctx context.Context, payload []byte) error {
	var in gateway.Input
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("decode dispatch request: %w", err)
	}
	out, _, err := s.Flow.Run(ctx, in)
	if err != nil {
		return err
	}
	s.log.Debugw("mqtt dispatch", map[string]any{"task_id": in.TaskID, "decision_id": out.DecisionID})
	return nil
}

func (s *Service) serveAPI(ctx context.Context) error {
	h := platform.NewHandler(platform.Options{
		Audit:    s.Audit,
		Registry: s.Registry,
		Dispatch: s.Flow,
		Token:    s.cfg.API.Token,
		Log:      logger.New("api"),
	})
	srv := &http.Server{
		Addr:              s.cfg.API.Address,
		Handler:           h,
		ReadHeaderTimeout: time.Duration(s.cfg.API.ReadTimeoutS) * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.API.ShutdownTimeout)*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("api listening on %s", s.cfg.API.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.bus.Close()
		if s.Audit != nil {
			err = s.Audit.Close()
		}
		if c, ok := s.sink.(interface{ Close() }); ok {
			c.Close()
		}
		if s.pool != nil {
			s.pool.Close()
		}
		if s.mon != nil {
			s.mon.Flush(2 * time.Second)
		}
	})
	return err
}
