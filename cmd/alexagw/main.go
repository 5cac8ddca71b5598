// Alexa Gateway - smart home directive gateway
//
// This is the main entry point of the gateway. It links an Alexa smart home
// skill to devices whose state lives on an MQTT broker:
//   - Directives forwarded by the skill are answered on POST /smarthome
//   - Account linking runs against the gateway's own OAuth2 endpoints
//   - Point changes on the broker become proactive ChangeReports
//   - Camera streams are remuxed on demand by ffmpeg
//
// Configuration is read from configs/config.yaml (override with
// ALEXAGW_CONFIG) and the device catalog it names.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-alexa/migrations"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/api"
	"github.com/nerrad567/gray-logic-alexa/internal/auth"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
	"github.com/nerrad567/gray-logic-alexa/internal/directive"
	"github.com/nerrad567/gray-logic-alexa/internal/discovery"
	"github.com/nerrad567/gray-logic-alexa/internal/events"
	"github.com/nerrad567/gray-logic-alexa/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-alexa/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-alexa/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-alexa/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-alexa/internal/pointstore"
	"github.com/nerrad567/gray-logic-alexa/internal/stream"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// codePurgeInterval is how often expired authorization codes are deleted.
const codePurgeInterval = 10 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:funlen // linear startup sequence
	log := logging.Default()
	log.Info("starting Alexa gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Device catalog first: a broken catalog should fail before any
	// connection is opened.
	catalog, err := device.LoadCatalog(cfg.Devices.Catalog)
	if err != nil {
		return fmt.Errorf("loading device catalog: %w", err)
	}
	log.Info("device catalog loaded", "path", cfg.Devices.Catalog, "devices", len(catalog.Devices))

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Point store mirrors retained state topics
	store := pointstore.NewMQTTStore(mqttClient, mqttClient.DefaultQoS())
	store.SetLogger(log)
	if startErr := store.Start(ctx); startErr != nil {
		return fmt.Errorf("starting point store: %w", startErr)
	}

	registry := device.NewRegistry()
	registry.SetLogger(log)
	if popErr := registry.Populate(catalog, store); popErr != nil {
		return fmt.Errorf("populating device registry: %w", popErr)
	}
	log.Info("device registry initialised", "endpoints", registry.Len())

	// Token service and provider link
	signer := auth.NewSigner(
		cfg.OAuth.JWT.Secret,
		time.Duration(cfg.OAuth.JWT.AccessTokenTTL)*time.Minute,
		time.Duration(cfg.OAuth.JWT.RefreshTokenTTL)*time.Minute,
	)
	tokens := auth.NewService(auth.Config{
		ClientID:         cfg.OAuth.ClientID,
		ClientSecret:     cfg.OAuth.ClientSecret,
		Scope:            cfg.OAuth.Scope,
		RedirectPrefixes: cfg.OAuth.RedirectPrefixes,
		CodeTTL:          time.Duration(cfg.OAuth.CodeTTL) * time.Second,
	}, signer, auth.NewCodeRepository(db.DB))
	tokens.SetLogger(log)
	go tokens.PurgeExpiredCodes(ctx, codePurgeInterval)

	link := auth.NewProviderLink(auth.ProviderConfig{
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		TokenURL:     cfg.Provider.TokenURL,
		Timeout:      time.Duration(cfg.Provider.Timeout) * time.Second,
	}, auth.NewLinkRepository(db.DB))
	link.SetLogger(log)
	link.OnConnectivityChange(publishConnectivity(mqttClient, log))

	// Directive pipeline
	compiler := discovery.NewCompiler(registry, tokens)
	compiler.SetLogger(log)

	var validator *alexa.Validator
	if cfg.Gateway.ValidateSchema {
		validator, err = alexa.NewValidator()
		if err != nil {
			return fmt.Errorf("compiling directive schema: %w", err)
		}
	}

	streamCfg := streamConfig(cfg.Stream)
	router := directive.NewRouter(directive.Config{
		PublicURL:         cfg.Gateway.PublicURL,
		StreamIdleTimeout: streamCfg.IdleTimeout,
		StreamMaxDuration: streamCfg.MaxDuration,
	}, directive.Deps{
		Devices:   registry,
		Tokens:    tokens,
		Discovery: compiler,
		Grants:    link,
		Validator: validator,
	})
	router.SetLogger(log)

	streams := stream.NewManager(streamCfg, registry)
	streams.SetLogger(log)
	defer func() {
		log.Info("stopping camera streams")
		if closeErr := streams.Close(); closeErr != nil {
			log.Error("error stopping camera streams", "error", closeErr)
		}
	}()

	// The hub is shared by the API server and the event publisher.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	publisher := events.NewPublisher(events.Config{
		EventGatewayURL: cfg.Provider.EventGatewayURL,
		ReportDelay:     cfg.ReportDelay(),
		Timeout:         time.Duration(cfg.Provider.Timeout) * time.Second,
	}, registry, link)
	publisher.SetLogger(log)
	publisher.SetBroadcaster(hub)
	defer func() {
		log.Info("flushing event publisher")
		publisher.Close()
	}()
	store.OnPointChange(notifyChanges(registry, publisher))

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Tokens:     tokens,
		Directives: router,
		Devices:    registry,
		Streams:    streams,
		Link:       link,
		Broker:     mqttClient,
		Hub:        hub,
		StreamTime: streamCfg.MaxDuration,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, event publisher,
	// streams, MQTT, database.
	log.Info("Alexa gateway stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ALEXAGW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ALEXAGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthChecker is implemented by every infrastructure component.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db, broker, server healthChecker) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := broker.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// streamConfig converts the second-based YAML settings.
func streamConfig(c config.StreamConfig) stream.Config {
	return stream.Config{
		FFmpegPath:      c.FFmpegPath,
		MaxDuration:     time.Duration(c.MaxDuration) * time.Second,
		IdleTimeout:     time.Duration(c.IdleTimeout) * time.Second,
		GracefulTimeout: time.Duration(c.GracefulTimeout) * time.Second,
		ChunkSize:       c.ChunkSize,
	}
}

// notifier receives point changes per endpoint.
type notifier interface {
	Notify(endpointID, pointID string, value any)
}

// pointIndex maps point IDs to the devices reading them.
type pointIndex interface {
	FindByPoint(pointID string) []device.Adapter
}

// notifyChanges routes a point change to every endpoint reading the point.
func notifyChanges(index pointIndex, n notifier) pointstore.ChangeFunc {
	return func(pointID string, value any) {
		for _, a := range index.FindByPoint(pointID) {
			n.Notify(a.EndpointID(), pointID, value)
		}
	}
}

// retainedPublisher is the part of the MQTT client connectivity needs.
type retainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
	Topics() mqtt.Topics
}

// publishConnectivity mirrors the provider link flag to the retained
// connection topic so other systems on the broker can see it.
func publishConnectivity(pub retainedPublisher, log *logging.Logger) func(bool) {
	return func(connected bool) {
		topic := pub.Topics().Connection()
		if err := pub.PublishRetained(topic, []byte(strconv.FormatBool(connected))); err != nil {
			log.Warn("publishing link connectivity failed", "topic", topic, "error", err)
			return
		}
		log.Info("provider link connectivity changed", "connected", connected)
	}
}
