package rdb

import (
	"context"
	"fmt"
	"time"

	"github.com/nbti/nbadmin/log/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ObserverOptions struct {
	// Name 指标名前缀，同时作为日志和 span 的 component
	Name string `cfg:"name" def:"nbadmin_rdb"`

	EnableMetrics bool `cfg:"enableMetrics" def:"true"`
	EnableLogging bool `cfg:"enableLogging" def:"true"`
	EnableTracing bool `cfg:"enableTracing" def:"false"`

	// SlowThreshold 超过该耗时的语句以 warn 记录
	SlowThreshold time.Duration `cfg:"slowThreshold" def:"500ms"`
}

type observerMetrics struct {
	statementCounter  *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

func newObserverMetrics(name string, reg prometheus.Registerer) (*observerMetrics, error) {
	m := &observerMetrics{
		statementCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_statements_total",
				Help: "Total number of SQL statements",
			},
			[]string{"kind", "status"},
		),
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_statement_duration_seconds",
				Help:    "Duration of SQL statements in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"kind"},
		),
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of engine operations",
			},
			[]string{"operation", "table", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.statementCounter, m.statementDuration, m.operationCounter, m.operationDuration} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register metrics")
		}
	}
	return m, nil
}

// Observer 为语句和引擎操作记录指标、日志和 span
type Observer struct {
	name    string
	slow    time.Duration
	logger  logger.Logger
	metrics *observerMetrics
	tracer  trace.Tracer
}

// NewNopObserver 什么也不记录
func NewNopObserver() *Observer {
	return &Observer{}
}

func NewObserverWithOptions(options *ObserverOptions, reg prometheus.Registerer, l logger.Logger) (*Observer, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	o := &Observer{name: options.Name, slow: options.SlowThreshold}

	if options.EnableLogging && l != nil {
		o.logger = l.WithGroup("rdb")
	}
	if options.EnableMetrics {
		m, err := newObserverMetrics(options.Name, reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	if options.EnableTracing {
		o.tracer = otel.Tracer(fmt.Sprintf("rdb.%s", options.Name))
	}
	return o, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (o *Observer) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, nil
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error, duration time.Duration) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// observe 单条语句，kind 为 query 或 exec
func (o *Observer) observe(ctx context.Context, kind string, statement string, fn func(context.Context) error) error {
	if o == nil {
		return fn(ctx)
	}
	start := time.Now()
	ctx, span := o.span(ctx, "rdb."+kind,
		attribute.String("component", o.name),
		attribute.String("db.statement", statement),
	)

	err := fn(ctx)
	duration := time.Since(start)
	endSpan(span, err, duration)

	if o.metrics != nil {
		o.metrics.statementCounter.WithLabelValues(kind, status(err)).Inc()
		o.metrics.statementDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}

	if o.logger != nil {
		switch {
		case err != nil:
			o.logger.ErrorContext(ctx, "statement failed",
				"kind", kind,
				"sql", statement,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		case o.slow > 0 && duration >= o.slow:
			o.logger.WarnContext(ctx, "slow statement",
				"kind", kind,
				"sql", statement,
				"duration_ms", duration.Milliseconds(),
			)
		default:
			o.logger.DebugContext(ctx, "statement completed",
				"kind", kind,
				"sql", statement,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}
	return err
}

// Operation 包装一次引擎操作（query、save、remove、nested、permissions）
func (o *Observer) Operation(ctx context.Context, operation string, table string, fn func(context.Context) error) error {
	if o == nil {
		return fn(ctx)
	}
	start := time.Now()
	ctx, span := o.span(ctx, "rdb."+operation,
		attribute.String("component", o.name),
		attribute.String("table", table),
	)

	err := fn(ctx)
	duration := time.Since(start)
	endSpan(span, err, duration)

	if o.metrics != nil {
		o.metrics.operationCounter.WithLabelValues(operation, table, status(err)).Inc()
		o.metrics.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}

	if o.logger != nil {
		if err != nil {
			o.logger.ErrorContext(ctx, "operation failed",
				"operation", operation,
				"table", table,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			o.logger.InfoContext(ctx, "operation completed",
				"operation", operation,
				"table", table,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}
	return err
}
