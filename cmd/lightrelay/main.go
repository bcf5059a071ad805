// lightrelay relays chat commands to a fleet of Yeelight bulbs.
//
// Commands arrive from Discord and, optionally, from an MQTT topic. Every
// handled command can be mirrored to MQTT, InfluxDB, a SQLite audit log and
// the read-only HTTP/WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/lightrelay/internal/api"
	"github.com/nerrad567/lightrelay/internal/audit"
	"github.com/nerrad567/lightrelay/internal/chat/discord"
	"github.com/nerrad567/lightrelay/internal/chat/mqttchat"
	"github.com/nerrad567/lightrelay/internal/color"
	"github.com/nerrad567/lightrelay/internal/command"
	"github.com/nerrad567/lightrelay/internal/device"
	"github.com/nerrad567/lightrelay/internal/infrastructure/config"
	"github.com/nerrad567/lightrelay/internal/infrastructure/database"
	"github.com/nerrad567/lightrelay/internal/infrastructure/influxdb"
	"github.com/nerrad567/lightrelay/internal/infrastructure/logging"
	"github.com/nerrad567/lightrelay/internal/infrastructure/mqtt"
	"github.com/nerrad567/lightrelay/internal/relay"
	"github.com/nerrad567/lightrelay/internal/yeelight"
	"github.com/nerrad567/lightrelay/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// linkSampleInterval is how often device link counters are written to InfluxDB.
const linkSampleInterval = time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Startup is strictly ordered and every optional component is torn down by
// a deferred close, so shutdown runs in reverse: chat transports first, the
// device connections and stores last.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo,funlen // linear startup sequence
	log := logging.Default()
	log.Info("starting lightrelay",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.LoadFromEnvironment()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close()
	log.Info("configuration loaded",
		"level", cfg.Logging.Level,
		"devices", len(cfg.Devices.Addresses),
		"prefix", cfg.Chat.Prefix,
	)

	colors, err := color.WithDefaults(cfg.ColorEntries()...)
	if err != nil {
		return fmt.Errorf("building color table: %w", err)
	}

	// Database + audit log (optional)
	var (
		db        *database.DB
		auditRepo audit.Repository
	)
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, database.Config{
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

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		auditRepo = audit.NewSQLiteRepository(db.DB)
		log.Info("database ready", "path", cfg.Database.Path)
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.With("component", "mqtt"))
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLinkHooks(mqtt.LinkHooks{
			OnUp:   func() { log.Info("MQTT reconnected") },
			OnDown: func(err error) { log.Warn("MQTT disconnected", "error", err) },
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Device fleet. The relay cannot run without its declared bulbs.
	registry, err := device.Open(ctx, cfg.Devices.Addresses, device.YeelightConnector(yeelight.Config{
		Port:           cfg.Devices.Port,
		ConnectTimeout: cfg.Devices.ConnectTimeout,
		RequestTimeout: cfg.Devices.RequestTimeout,
	}))
	if err != nil {
		return fmt.Errorf("attaching devices: %w", err)
	}
	registry.SetLogger(log.With("component", "device"))
	defer func() {
		log.Info("closing device connections")
		if closeErr := registry.Close(); closeErr != nil {
			log.Error("error closing devices", "error", closeErr)
		}
	}()
	log.Info("devices attached", "count", len(registry.Addresses()))

	dispatcher := device.NewDispatcher(registry)
	dispatcher.SetLogger(log.With("component", "dispatcher"))

	service := command.NewService(colors, dispatcher, log.With("component", "command"))

	// Outcome listeners
	relayLog := log.With("component", "relay")
	if mqttClient != nil {
		service.AddListener(relay.NewStatePublisher(mqttClient, byte(cfg.MQTT.QoS), relayLog))
	}
	if influxClient != nil {
		service.AddListener(relay.NewMetricsWriter(influxClient))

		reporter := relay.NewLinkReporter(registry, influxClient, linkSampleInterval)
		reporterCtx, stopReporter := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			reporter.Run(reporterCtx)
		}()
		// Stopped before InfluxDB is closed.
		defer func() {
			stopReporter()
			wg.Wait()
		}()
	}
	if auditRepo != nil {
		service.AddListener(relay.NewAuditRecorder(auditRepo, relayLog))
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.With("component", "api"),
			Colors:  colors,
			Devices: registry,
			Audit:   auditRepo,
			Version: version,
		}
		if db != nil {
			deps.Database = db
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if influxClient != nil {
			deps.Telemetry = influxClient
		}

		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		service.AddListener(relay.NewBroadcaster(srv.Hub()))

		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	// Chat transports
	chatLog := log.With("component", "chat")
	if cfg.Chat.MQTT.Enabled {
		transport := mqttchat.New(mqttClient, service, cfg.Chat.Prefix, byte(cfg.MQTT.QoS), chatLog)
		if startErr := transport.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT chat: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT chat")
			if stopErr := transport.Stop(); stopErr != nil {
				log.Error("error stopping MQTT chat", "error", stopErr)
			}
		}()
		log.Info("MQTT chat listening", "topic", mqtt.Topics{}.ChatCommand())
	}

	if cfg.Chat.Discord.Enabled {
		bot, botErr := discord.New(cfg.Chat.Discord.Token, service, cfg.Chat.Prefix, chatLog)
		if botErr != nil {
			return fmt.Errorf("creating Discord bot: %w", botErr)
		}
		if startErr := bot.Start(ctx); startErr != nil {
			return fmt.Errorf("starting Discord bot: %w", startErr)
		}
		defer func() {
			log.Info("stopping Discord bot")
			if stopErr := bot.Stop(); stopErr != nil {
				log.Error("error stopping Discord bot", "error", stopErr)
			}
		}()
		log.Info("Discord bot connected")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}
