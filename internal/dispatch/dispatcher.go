// Package dispatch routes storage operations to service handles under a
// process-wide concurrency cap.
//
// A Dispatcher is built once at startup by Init, which resolves the gate
// capacity and the default operation timeout from configuration. Each call to
// Execute is independent: it validates the operation, resolves the service
// handle, binds the named method, waits for a gate slot and invokes the method.
// Failures from the remote call are returned unchanged; the dispatcher never
// retries.
package dispatch

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/asad/bluectl/internal/config"
	"github.com/asad/bluectl/internal/gate"
	"github.com/asad/bluectl/internal/logging"
	"github.com/asad/bluectl/internal/storage"
)

const tracerName = "github.com/asad/bluectl/internal/dispatch"

// Operation names a method on a service kind. It carries no arguments.
type Operation struct {
	ServiceKind string
	MethodName  string
}

// NewOperation returns an operation descriptor.
func NewOperation(kind, method string) *Operation {
	return &Operation{ServiceKind: kind, MethodName: method}
}

func (o Operation) String() string {
	return o.ServiceKind + "." + o.MethodName
}

// ServiceResolver produces service handles; *storage.Factory implements it.
type ServiceResolver interface {
	GetService(kind storage.ServiceKind, connectionString string) (storage.Service, error)
}

// State is a step of a single dispatch call.
type State string

const (
	StateValidating       State = "validating"
	StateResolvingService State = "resolving-service"
	StateBindingMethod    State = "binding-method"
	StateAwaitingSlot     State = "awaiting-slot"
	StateExecuting        State = "executing"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// Dispatcher holds the process-wide dispatch context.
type Dispatcher struct {
	gate             *gate.Gate
	timeoutMs        int
	hasTimeout       bool
	resolver         ServiceResolver
	connectionString string
	cpuCount         int
	logger           logging.Logger
	tracer           trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithResolver sets the service resolver. Defaults to storage.NewFactory().
func WithResolver(r ServiceResolver) Option {
	return func(d *Dispatcher) { d.resolver = r }
}

// WithConnectionString sets the connection string passed to the resolver.
// Empty defers to the environment and then to development credentials.
func WithConnectionString(cs string) Option {
	return func(d *Dispatcher) { d.connectionString = cs }
}

// WithCPUCount overrides runtime.NumCPU for the default concurrency limit.
func WithCPUCount(n int) Option {
	return func(d *Dispatcher) { d.cpuCount = n }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) { d.tracer = tp.Tracer(tracerName) }
}

// Init resolves the concurrency limit and timeout override from src once and
// returns a dispatcher sharing one gate across all calls.
func Init(src config.Source, opts ...Option) *Dispatcher {
	d := &Dispatcher{cpuCount: runtime.NumCPU()}
	for _, opt := range opts {
		opt(d)
	}
	if d.resolver == nil {
		d.resolver = storage.NewFactory()
	}
	if d.logger == nil {
		d.logger = logging.NewNop()
	}
	if d.tracer == nil {
		d.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}

	limit := config.ResolveConcurrencyLimit(src, d.cpuCount)
	d.gate = gate.New(limit)
	d.timeoutMs, d.hasTimeout = config.ResolveOperationTimeout(src)

	d.logger.Debug("dispatcher initialized",
		logging.Int("concurrency_limit", limit),
		logging.Int("timeout_ms", d.timeoutMs),
		logging.Bool("timeout_override", d.hasTimeout),
	)
	return d
}

// Limit returns the gate capacity.
func (d *Dispatcher) Limit() int {
	return d.gate.Capacity()
}

// InFlight returns the number of calls currently executing.
func (d *Dispatcher) InFlight() int {
	return d.gate.InFlight()
}

// OperationTimeout returns the default timeout in milliseconds, if configured.
func (d *Dispatcher) OperationTimeout() (ms int, ok bool) {
	return d.timeoutMs, d.hasTimeout
}

// GetService resolves a handle for kind; an empty connection string uses the
// dispatcher's own.
func (d *Dispatcher) GetService(kind storage.ServiceKind, connectionString string) (storage.Service, error) {
	if connectionString == "" {
		connectionString = d.connectionString
	}
	return d.resolver.GetService(kind, connectionString)
}

// Execute runs op with call's arguments. A nil op is a no-op.
func (d *Dispatcher) Execute(ctx context.Context, op *Operation, call *storage.Call) (any, error) {
	if op == nil {
		return nil, nil
	}
	log := d.logger.With(
		logging.String("service", op.ServiceKind),
		logging.String("method", op.MethodName),
	)
	log.Debug("dispatch", logging.String("state", string(StateValidating)))

	kind, ok := storage.ParseServiceKind(op.ServiceKind)
	if !ok {
		return nil, d.fail(log, &OperationTypeError{Kind: op.ServiceKind})
	}

	log.Debug("dispatch", logging.String("state", string(StateResolvingService)))
	svc, err := d.GetService(kind, "")
	if err != nil {
		return nil, d.fail(log, err)
	}

	log.Debug("dispatch", logging.String("state", string(StateBindingMethod)))
	method, ok := svc.Method(op.MethodName)
	if !ok {
		return nil, d.fail(log, &OperationError{Kind: kind.String(), Method: op.MethodName})
	}
	call = d.withDefaultTimeout(call)

	ctx, span := d.tracer.Start(ctx, kind.String()+"."+op.MethodName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.service", kind.String()),
			attribute.String("storage.method", op.MethodName),
			attribute.Int("dispatch.concurrency_limit", d.gate.Capacity()),
		),
	)
	defer span.End()

	log.Debug("dispatch", logging.String("state", string(StateAwaitingSlot)))
	queued := time.Now()

	var result any
	err = d.gate.Do(ctx, func(ctx context.Context) error {
		waited := time.Since(queued)
		span.AddEvent("admitted")
		log.Debug("dispatch",
			logging.String("state", string(StateExecuting)),
			logging.Duration("waited_ms", waited),
			logging.Int("in_flight", d.gate.InFlight()),
		)

		var err error
		result, err = method(ctx, call)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, d.fail(log, err)
	}

	log.Debug("dispatch",
		logging.String("state", string(StateCompleted)),
		logging.Duration("elapsed_ms", time.Since(queued)),
	)
	return result, nil
}

// withDefaultTimeout returns call with the configured timeout filled into a
// copy of its options. Calls without options, or that already set a timeout,
// are returned as-is.
func (d *Dispatcher) withDefaultTimeout(call *storage.Call) *storage.Call {
	if !d.hasTimeout || call == nil || call.Options == nil || call.Options.TimeoutIntervalInMs != 0 {
		return call
	}
	opts := call.Options.Clone()
	opts.TimeoutIntervalInMs = d.timeoutMs
	return &storage.Call{Args: call.Args, Options: opts}
}

func (d *Dispatcher) fail(log logging.Logger, err error) error {
	log.Warn("dispatch failed",
		logging.String("state", string(StateFailed)),
		logging.ErrorField(err),
	)
	return err
}
