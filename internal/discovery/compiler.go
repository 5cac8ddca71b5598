package discovery

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/auth"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
	"github.com/nerrad567/gray-logic-alexa/internal/metrics"
)

// Logger defines the logging interface used by the Compiler.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Devices is the registry view the compiler needs.
type Devices interface {
	List() []device.Adapter
}

// TokenVerifier checks the account-linking access token.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// Compiler builds Discover.Response events.
type Compiler struct {
	devices Devices
	tokens  TokenVerifier
	logger  Logger

	mu  sync.Mutex // guards rng, which is not safe for concurrent use
	rng *rand.Rand
}

// NewCompiler creates a compiler over the given registry.
func NewCompiler(devices Devices, tokens TokenVerifier) *Compiler {
	seed := uint64(time.Now().UnixNano())
	return &Compiler{
		devices: devices,
		tokens:  tokens,
		logger:  noopLogger{},
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// SetLogger sets the logger for the compiler.
func (c *Compiler) SetLogger(logger Logger) {
	c.logger = logger
}

// SetRand replaces the shuffle source used when sampling oversized
// installations.
func (c *Compiler) SetRand(r *rand.Rand) {
	c.mu.Lock()
	c.rng = r
	c.mu.Unlock()
}

type discoverPayload struct {
	Scope alexa.Scope `json:"scope"`
}

// Compile answers a Discover directive.
//
// Parameters:
//   - ctx: Context for describing devices
//   - d: The Discover directive; its payload carries the bearer token
//
// Returns:
//   - *alexa.Response: Discover.Response, or an EXPIRED_AUTHORIZATION_CREDENTIAL
//     error when the token does not verify
func (c *Compiler) Compile(ctx context.Context, d *alexa.Directive) *alexa.Response {
	var payload discoverPayload
	if err := d.DecodePayload(&payload); err != nil {
		return alexa.NewErrorResponse(d, alexa.ErrInvalidDirective, "malformed discovery payload")
	}
	token := payload.Scope.Token
	if token == "" {
		token = d.Endpoint.Token()
	}
	if _, err := c.tokens.VerifyAccessToken(token); err != nil {
		c.logger.Warn("discovery rejected", "error", err)
		return alexa.NewErrorResponse(d, alexa.ErrExpiredAuthorizationCredential, "invalid or expired token")
	}

	endpoints := c.Endpoints(ctx)
	metrics.DiscoveredEndpoints.Set(float64(len(endpoints)))
	c.logger.Info("discovery compiled", "endpoints", len(endpoints))
	return alexa.NewDiscoverResponse(d, endpoints)
}

// Endpoints describes every registered device, skipping those whose
// description fails, and samples down to alexa.MaxEndpoints.
func (c *Compiler) Endpoints(ctx context.Context) []alexa.DiscoveryEndpoint {
	adapters := c.devices.List()
	endpoints := make([]alexa.DiscoveryEndpoint, 0, len(adapters))
	for _, a := range adapters {
		ep, err := describe(ctx, a)
		if err != nil {
			c.logger.Warn("skipping device in discovery",
				"endpoint_id", a.EndpointID(),
				"error", err,
			)
			continue
		}
		endpoints = append(endpoints, normalize(ep))
	}

	if len(endpoints) > alexa.MaxEndpoints {
		c.logger.Warn("too many endpoints, sampling",
			"total", len(endpoints),
			"limit", alexa.MaxEndpoints,
		)
		c.mu.Lock()
		c.rng.Shuffle(len(endpoints), func(i, j int) {
			endpoints[i], endpoints[j] = endpoints[j], endpoints[i]
		})
		c.mu.Unlock()
		endpoints = endpoints[:alexa.MaxEndpoints]
	}
	return endpoints
}

// describe reports a panicking Describe as an error.
func describe(ctx context.Context, a device.Adapter) (ep alexa.DiscoveryEndpoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("describe panicked: %v", r)
		}
	}()
	return a.Describe(ctx)
}

// normalize enforces the protocol's field limits.
func normalize(ep alexa.DiscoveryEndpoint) alexa.DiscoveryEndpoint {
	ep.EndpointID = alexa.Truncate(ep.EndpointID, alexa.MaxEndpointIDLen)
	ep.FriendlyName = alexa.Truncate(ep.FriendlyName, alexa.MaxFriendlyLen)
	ep.Description = alexa.Truncate(ep.Description, alexa.MaxDescriptionLen)
	ep.ManufacturerName = alexa.Truncate(ep.ManufacturerName, alexa.MaxManufacturer)
	if len(ep.DisplayCategories) == 0 {
		ep.DisplayCategories = []string{alexa.CategoryOther}
	}
	return ep
}
