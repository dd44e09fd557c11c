package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fuelops/core/events"
	"github.com/kilianp07/fuelops/core/logger"
	"github.com/kilianp07/fuelops/core/monitoring"
	"github.com/kilianp07/fuelops/internal/eventbus"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// RequestHandler receives raw dispatch requests read from the request topic.
type RequestHandler func(ctx context.Context, payload []byte) error

// Feed publishes dispatch decisions to the broker and optionally accepts
// dispatch requests on a request topic.
type Feed struct {
	cli        pahoClient
	prefix     string
	reqTopic   string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
	mon        monitoring.Monitor
	handler    RequestHandler
	baseCtx    context.Context
}

// Option customises a Feed.
type Option func(*Feed)

func WithLogger(l logger.Logger) Option          { return func(f *Feed) { f.log = l } }
func WithMonitor(m monitoring.Monitor) Option    { return func(f *Feed) { f.mon = m } }
func WithRequestHandler(h RequestHandler) Option { return func(f *Feed) { f.handler = h } }
func WithContext(ctx context.Context) Option     { return func(f *Feed) { f.baseCtx = ctx } }

// NewFeed connects to the broker. When a request topic and handler are set the
// feed subscribes to it on every (re)connect.
func NewFeed(cfg Config, opts ...Option) (*Feed, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	copts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	f := &Feed{
		prefix:     cfg.TopicPrefix,
		reqTopic:   cfg.RequestTopic,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		baseCtx:    context.Background(),
	}
	for _, o := range opts {
		o(f)
	}
	f.log = logger.OrNop(f.log)
	f.mon = monitoring.OrNop(f.mon)

	copts.OnConnect = func(c paho.Client) {
		f.log.Infof("MQTT connected")
		f.subscribe(c)
	}
	copts.OnConnectionLost = func(_ paho.Client, err error) {
		f.log.Errorf("connection lost: %v", err)
	}
	copts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		f.log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(copts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	f.cli = c
	return f, nil
}

func (f *Feed) subscribe(c pahoClient) {
	if f.reqTopic == "" || f.handler == nil {
		return
	}
	if token := c.Subscribe(f.reqTopic, f.qos, f.onRequest); token.Wait() && token.Error() != nil {
		f.log.Errorf("subscribe %s: %v", f.reqTopic, token.Error())
	}
}

func (f *Feed) onRequest(_ paho.Client, msg paho.Message) {
	if err := f.handler(f.baseCtx, msg.Payload()); err != nil {
		f.log.Warnf("dispatch request on %s failed: %v", msg.Topic(), err)
	}
}

// Topic returns the topic a decision for company is published on.
func (f *Feed) Topic(company string) string {
	if company == "" {
		company = "unknown"
	}
	return f.prefix + "/" + company
}

// Publish sends ev to the company topic, retrying transient failures.
func (f *Feed) Publish(ctx context.Context, ev events.DispatchEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return backoff.Permanent(err)
	}
	topic := f.Topic(ev.CompanyID)
	op := func() error {
		token := f.cli.Publish(topic, f.qos, f.retain, payload)
		token.Wait()
		return token.Error()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.backoff
	bo.MaxElapsedTime = 0
	notify := func(err error, d time.Duration) {
		f.log.Warnf("publish %s failed: %v, retrying in %s", topic, err, d)
	}
	err = backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(f.maxRetries)), ctx), notify)
	if err != nil {
		f.mon.CaptureException(err, map[string]string{"component": "mqtt_feed", "topic": topic})
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	f.log.Debugw("decision published", map[string]any{"topic": topic, "decision_id": ev.DecisionID})
	return nil
}

// Run forwards DispatchEvents from the bus until ctx is cancelled or the
// subscription closes.
func (f *Feed) Run(ctx context.Context, bus eventbus.EventBus) error {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub:
			if !ok {
				return nil
			}
			ev, isDispatch := e.(events.DispatchEvent)
			if !isDispatch {
				continue
			}
			if err := f.Publish(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
				f.log.Errorf("%v", err)
			}
		}
	}
}

// Disconnect closes the broker connection.
func (f *Feed) Disconnect() {
	if f.cli != nil && f.cli.IsConnected() {
		f.cli.Disconnect(250)
	}
}
