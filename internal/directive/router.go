package directive

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/auth"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
	"github.com/nerrad567/gray-logic-alexa/internal/metrics"
)

// Logger defines the logging interface used by the Router.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Devices resolves endpoint IDs to adapters.
type Devices interface {
	Get(endpointID string) (device.Adapter, error)
}

// TokenVerifier checks account-linking access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// Discoverer answers Alexa.Discovery.
type Discoverer interface {
	Compile(ctx context.Context, d *alexa.Directive) *alexa.Response
}

// GrantAcceptor completes the AcceptGrant handshake with the provider.
type GrantAcceptor interface {
	AcceptGrant(ctx context.Context, code string) error
}

// Config holds router settings.
type Config struct {
	// PublicURL is the externally reachable base URL camera stream and
	// snapshot URIs are built on.
	PublicURL string

	// StreamIdleTimeout is how long a started transcode waits for a client.
	StreamIdleTimeout time.Duration

	// StreamMaxDuration bounds a transcode's run time.
	StreamMaxDuration time.Duration
}

// Deps are the router's collaborators.
type Deps struct {
	Devices   Devices
	Tokens    TokenVerifier
	Discovery Discoverer
	Grants    GrantAcceptor

	// Validator, when set, checks every inbound envelope against the
	// directive schema.
	Validator *alexa.Validator
}

// Router dispatches directives. It holds no per-request state and is safe
// for concurrent use.
type Router struct {
	cfg    Config
	deps   Deps
	routes map[Route]route
	logger Logger
	now    func() time.Time
}

// NewRouter creates a router.
func NewRouter(cfg Config, deps Deps) *Router {
	r := &Router{
		cfg:    cfg,
		deps:   deps,
		logger: noopLogger{},
		now:    time.Now,
	}
	r.routes = r.buildRoutes()
	return r
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock overrides the time source.
func (r *Router) SetClock(now func() time.Time) {
	r.now = now
}

// Handle decodes, validates and dispatches one inbound envelope.
//
// Parameters:
//   - ctx: Request context, passed to the device adapters
//   - body: Raw JSON envelope, either {"directive": ...} or an event-path
//     message with a top-level header
//
// Returns:
//   - *alexa.Response: Always non-nil; failures are ErrorResponse events
func (r *Router) Handle(ctx context.Context, body []byte) *alexa.Response {
	var msg alexa.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		r.logger.Warn("malformed directive", "error", err)
		return r.count(alexa.NamespaceAlexa, alexa.NewErrorResponse(nil, alexa.ErrInvalidDirective, "malformed message"))
	}

	d := msg.AsDirective()
	if d == nil {
		return r.count(alexa.NamespaceAlexa, alexa.NewErrorResponse(nil, alexa.ErrInvalidDirective, "message has neither directive nor header"))
	}

	if r.deps.Validator != nil {
		if err := r.deps.Validator.Validate(body); err != nil {
			r.logger.Warn("directive failed schema validation",
				"namespace", d.Header.Namespace,
				"name", d.Header.Name,
				"error", err,
			)
			return r.count(d.Header.Namespace, alexa.NewErrorResponse(d, alexa.ErrInvalidDirective, "directive does not match schema"))
		}
	}

	if msg.Directive == nil && d.Header.Name != NameReportState {
		return r.count(d.Header.Namespace, alexa.NewErrorResponse(d, alexa.ErrInvalidDirective, "unsupported event: "+d.Header.Name))
	}

	return r.Dispatch(ctx, d)
}

// Dispatch routes a decoded directive. A handler panic is logged and
// answered with INTERNAL_ERROR.
func (r *Router) Dispatch(ctx context.Context, d *alexa.Directive) (resp *alexa.Response) {
	h := d.Header
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("directive handler panicked",
				"namespace", h.Namespace,
				"name", h.Name,
				"endpoint_id", d.EndpointID(),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			resp = r.count(h.Namespace, alexa.NewErrorResponse(d, alexa.ErrInternalError, "internal error"))
		}
	}()
	rt, ok := r.routes[RouteFor(h)]
	if !ok {
		r.logger.Info("unsupported directive", "namespace", h.Namespace, "name", h.Name)
		return r.count(h.Namespace, alexa.NewErrorResponse(d, alexa.ErrInvalidDirective, "unsupported directive: "+h.Namespace+"."+h.Name))
	}

	if !rt.public {
		if _, err := r.deps.Tokens.VerifyAccessToken(d.Endpoint.Token()); err != nil {
			r.logger.Info("directive token rejected",
				"namespace", h.Namespace,
				"endpoint_id", d.EndpointID(),
				"error", err,
			)
			return r.count(h.Namespace, alexa.NewErrorResponse(d, alexa.ErrExpiredAuthorizationCredential, "invalid or expired token"))
		}
	}

	r.logger.Debug("dispatching directive",
		"namespace", h.Namespace,
		"name", h.Name,
		"endpoint_id", d.EndpointID(),
	)
	return r.count(h.Namespace, rt.handle(ctx, d))
}

func (r *Router) count(namespace string, resp *alexa.Response) *alexa.Response {
	outcome := metrics.ResultOK
	if resp.IsError() {
		outcome = string(resp.ErrorType())
	}
	metrics.Directives.WithLabelValues(namespace, outcome).Inc()
	return resp
}

// resolve looks up the addressed adapter.
func (r *Router) resolve(d *alexa.Directive) (device.Adapter, *alexa.Response) {
	a, err := r.deps.Devices.Get(d.EndpointID())
	if err != nil {
		return nil, alexa.NewErrorResponse(d, alexa.ErrNoSuchEndpoint, "unknown endpoint: "+d.EndpointID())
	}
	return a, nil
}

// fail maps an adapter error onto the protocol error taxonomy.
func (r *Router) fail(d *alexa.Directive, err error) *alexa.Response {
	switch {
	case errors.Is(err, device.ErrUnreachable):
		r.logger.Warn("device unreachable",
			"endpoint_id", d.EndpointID(),
			"directive", d.Header.Name,
			"error", err,
		)
		return alexa.NewErrorResponse(d, alexa.ErrBridgeUnreachable, "device is unreachable")
	case errors.Is(err, device.ErrUnknownInstance):
		return alexa.NewErrorResponse(d, alexa.ErrInvalidValue, "unknown instance: "+d.Header.Instance)
	default:
		r.logger.Error("directive failed",
			"endpoint_id", d.EndpointID(),
			"directive", d.Header.Name,
			"error", err,
		)
		return alexa.NewErrorResponse(d, alexa.ErrInternalError, "device command failed")
	}
}

func unsupported(d *alexa.Directive) *alexa.Response {
	return alexa.NewErrorResponse(d, alexa.ErrInvalidDirective,
		"endpoint "+d.EndpointID()+" does not support "+d.Header.Namespace)
}

func invalidName(d *alexa.Directive) *alexa.Response {
	return alexa.NewErrorResponse(d, alexa.ErrInvalidValue, "unsupported name: "+d.Header.Namespace+"."+d.Header.Name)
}

func invalidPayload(d *alexa.Directive, err error) *alexa.Response {
	return alexa.NewErrorResponse(d, alexa.ErrInvalidValue, "invalid payload: "+err.Error())
}

// commanded is the property a successful command just set, used when a
// device cannot report it back.
func (r *Router) commanded(namespace, name string, value any) alexa.Property {
	return alexa.NewProperty(namespace, name, value, r.now())
}

// respond builds the success reply and attaches the device's current state.
// Commanded properties the device did not report are appended, so the
// context always carries what was set. With nothing to report the command
// is answered with an error instead.
func (r *Router) respond(ctx context.Context, d *alexa.Directive, a device.Adapter, set ...alexa.Property) *alexa.Response {
	return r.withContext(ctx, d, a, alexa.NewResponse(d, alexa.NamespaceAlexa, alexa.NameResponse, nil), set...)
}

func (r *Router) withContext(ctx context.Context, d *alexa.Directive, a device.Adapter, resp *alexa.Response, set ...alexa.Property) *alexa.Response {
	props, err := a.ReportState(ctx)
	if err != nil {
		if len(set) == 0 {
			return r.fail(d, err)
		}
		r.logger.Warn("state report after command failed",
			"endpoint_id", a.EndpointID(),
			"error", err,
		)
		props = nil
	}
	props = mergeProperties(set, props)
	if len(props) == 0 {
		return alexa.NewErrorResponse(d, alexa.ErrInternalError, "no state to report")
	}
	resp.Context = &alexa.Context{Properties: props}
	return resp
}

// mergeProperties orders commanded properties first, taking the device's
// reported value where it has one, followed by the remaining reported ones.
func mergeProperties(set, reported []alexa.Property) []alexa.Property {
	out := make([]alexa.Property, 0, len(set)+len(reported))
	used := make([]bool, len(reported))
	for _, c := range set {
		for i, p := range reported {
			if !used[i] && sameProperty(p, c) {
				c = p
				used[i] = true
				break
			}
		}
		out = append(out, c)
	}
	for i, p := range reported {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}

func sameProperty(a, b alexa.Property) bool {
	return a.Namespace == b.Namespace && a.Name == b.Name && a.Instance == b.Instance
}
