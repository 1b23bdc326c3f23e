package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/grafana/dskit/services"
	"github.com/zachfi/zkit/pkg/boundedwaitgroup"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/govee/modules/lights"
	"github.com/zachfi/govee/pkg/govee"
)

var (
	module = "router"

	defaultConfirmTimeout = 3 * time.Second
)

const sourceMQTT = "mqtt"

var _ services.Service = (*Router)(nil)

// Controller applies requests received on a topic.
type Controller interface {
	Apply(ctx context.Context, source string, req lights.Request) (*lights.Response, error)
	ApplyDevice(ctx context.Context, source, name string, req lights.Request) (*lights.Response, error)
	DeviceState(ctx context.Context, name string) (*govee.State, error)
}

// Broker is the part of the MQTT client the router uses.
type Broker interface {
	Subscribe(topic string, handler mqtt.MessageHandler)
	Unsubscribe(topic string)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Router turns messages below the configured prefix into control requests.
//
//	<prefix>/group/set     request for the devices it names, or all devices
//	<prefix>/<name>/set    request for one device
//	<prefix>/<name>/get    publishes <prefix>/<name>/state
type Router struct {
	services.Service
	mtx sync.Mutex

	cfg    *Config
	logger *slog.Logger
	tracer trace.Tracer

	controller Controller
	broker     Broker

	itemCh  chan *item
	regexps map[string]*regexp.Regexp
}

type item struct {
	ctx     context.Context
	Path    string
	Payload []byte
}

func New(cfg Config, logger *slog.Logger, controller Controller, broker Broker) (*Router, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.ReportConcurrency == 0 {
		cfg.ReportConcurrency = 1
	}

	r := &Router{
		cfg:        &cfg,
		logger:     logger.With("module", module),
		tracer:     otel.Tracer(module, trace.WithInstrumentationAttributes(attribute.String("module", module))),
		controller: controller,
		broker:     broker,
		itemCh:     make(chan *item, cfg.QueueSize),
		regexps:    make(map[string]*regexp.Regexp, 4),
	}

	r.Service = services.NewBasicService(r.starting, r.running, r.stopping)
	return r, nil
}

func (r *Router) topic() string {
	return r.cfg.Prefix + "/#"
}

func (r *Router) starting(_ context.Context) error {
	r.broker.Subscribe(r.topic(), r.onMessageReceived)
	return nil
}

func (r *Router) onMessageReceived(_ mqtt.Client, msg mqtt.Message) {
	metricMessagesReceived.Inc()

	// The message context is not tied to the subscription, link the span so
	// the route shows up as its own trace.
	ctx, span := r.tracer.Start(context.Background(), "Router.messageReceived",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("topic", msg.Topic())),
	)
	defer span.End()

	i := &item{ctx: ctx, Path: msg.Topic(), Payload: msg.Payload()}

	select {
	case r.itemCh <- i:
		metricQueueLength.Set(float64(len(r.itemCh)))
	default:
		metricMessagesDropped.Inc()
		span.SetStatus(codes.Error, "queue full")
		r.logger.Warn("queue full, dropping message", "topic", msg.Topic())
	}
}

func (r *Router) running(ctx context.Context) error {
	bg := boundedwaitgroup.New(r.cfg.ReportConcurrency)

	for {
		select {
		case <-ctx.Done():
			r.broker.Unsubscribe(r.topic())
			bg.Wait()
			return nil
		case i := <-r.itemCh:
			metricQueueLength.Set(float64(len(r.itemCh)))

			bg.Add(1)
			metricActiveReceiverRoutines.Inc()
			go func() {
				defer bg.Done()
				defer metricActiveReceiverRoutines.Dec()

				spanCtx, span := r.tracer.Start(i.ctx, "Router.receiver")
				err := r.send(spanCtx, i.Path, i.Payload)
				if err != nil {
					metricMessagesSendErrors.Inc()
					span.SetStatus(codes.Error, err.Error())
					r.logger.Error("failed to route message", "path", i.Path, "err", err)
				}
				span.End()
			}()
		}
	}
}

func (r *Router) stopping(_ error) error {
	return nil
}

func (r *Router) send(ctx context.Context, path string, payload []byte) error {
	var name string

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("path", path))

	if errors.Is(ctx.Err(), context.Canceled) {
		span.AddEvent("context canceled")
	}

	prefix := regexp.QuoteMeta(r.cfg.Prefix)

	switch {
	case r.match(path, prefix+"/group/set"):
		req, err := decodeRequest(payload)
		if err != nil {
			return err
		}
		_, err = r.controller.Apply(ctx, sourceMQTT, req)
		return err
	case r.match(path, prefix+"/([^/]+)/set", &name):
		req, err := decodeRequest(payload)
		if err != nil {
			return err
		}
		_, err = r.controller.ApplyDevice(ctx, sourceMQTT, name, req)
		return err
	case r.match(path, prefix+"/([^/]+)/get", &name):
		return r.publishState(ctx, name)
	case r.match(path, prefix+"/([^/]+)/state"):
		// published by us
	default:
		r.logger.Debug("unhandled route", "path", path)
		span.AddEvent("unhandled route")
		metricUnhandledRoute.WithLabelValues(path).Inc()
	}

	return nil
}

func (r *Router) publishState(ctx context.Context, name string) error {
	state, err := r.controller.DeviceState(ctx, name)
	if err != nil {
		return err
	}

	if state == nil {
		return fmt.Errorf("no state available for %q", name)
	}

	b, err := json.Marshal(state)
	if err != nil {
		return err
	}

	t := r.broker.Publish(fmt.Sprintf("%s/%s/state", r.cfg.Prefix, name), 0, false, b)
	t.WaitTimeout(defaultConfirmTimeout)
	return t.Error()
}

func decodeRequest(payload []byte) (lights.Request, error) {
	var req lights.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("invalid request payload: %w", err)
	}
	return req, nil
}

// match reports whether path matches regex ^pattern$, and if it matches,
// assigns any capture groups to the *string or *int vars.
func (r *Router) match(path, pattern string, vars ...any) bool {
	regex, err := r.compileCached(pattern)
	if err != nil {
		r.logger.Error(err.Error())
		return false
	}
	matches := regex.FindStringSubmatch(path)
	if len(matches) <= 0 {
		return false
	}
	for i, match := range matches[1:] {
		if i >= len(vars) {
			break
		}
		switch p := vars[i].(type) {
		case *string:
			*p = match
		case *int:
			n, err := strconv.Atoi(match)
			if err != nil {
				return false
			}
			*p = n
		default:
			r.logger.Error("unsupported type for regex capture group", "type", p, "pattern", pattern)
			return false
		}
	}
	return true
}

func (r *Router) compileCached(pattern string) (*regexp.Regexp, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	regex := r.regexps[pattern]
	if regex == nil {
		var err error
		regex, err = regexp.Compile("^" + pattern + "$")
		if err != nil {
			return nil, fmt.Errorf("failed to compile regex %q: %w", pattern, err)
		}
		r.regexps[pattern] = regex
	}

	return regex, nil
}
