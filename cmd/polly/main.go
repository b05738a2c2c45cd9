package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/polly/internal/api"
	"github.com/nidhogg/polly/internal/bus"
	"github.com/nidhogg/polly/internal/command"
	"github.com/nidhogg/polly/internal/config"
	"github.com/nidhogg/polly/internal/gateway"
	"github.com/nidhogg/polly/internal/metrics"
	"github.com/nidhogg/polly/internal/moderation"
	"github.com/nidhogg/polly/internal/parrot"
	"github.com/nidhogg/polly/internal/presence"
	"github.com/nidhogg/polly/internal/radio"
	msgrouter "github.com/nidhogg/polly/internal/router"
	pgstore "github.com/nidhogg/polly/internal/store"
	"github.com/nidhogg/polly/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/polly.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Polly...", zap.String("config", cfgPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("polly", reg)

	// PostgreSQL: durable phrase log and player names
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without durable memory", zap.Error(pgErr))
		} else {
			schema := pgstore.Migrations()
			if dir := cfg.Database.Postgres.Migrations; dir != "" {
				schema = os.DirFS(dir)
			}
			if mErr := ps.Migrate(ctx, schema); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
		}
	}

	// Redis: world event bus and player presence
	var (
		rdb     *redis.Client
		evBus   *bus.Bus
		players *presence.Directory
	)
	if cfg.Database.Redis.URL != "" {
		client, rErr := bus.Dial(ctx, cfg.Database.Redis.URL)
		if rErr != nil {
			logger.Warn("Redis unavailable, running without event bus", zap.Error(rErr))
		} else {
			rdb = client
			evBus = bus.New(rdb, cfg.Database.Redis.StreamPrefix, logger.Named("bus"))
			players = presence.NewDirectory(rdb, cfg.Database.Redis.StreamPrefix, logger.Named("presence"))
		}
	}

	// Gateway
	gw := gateway.NewGateway(logger.Named("gateway"))
	restAdapter := gateway.NewRESTAdapter(logger)
	gw.Register(restAdapter)
	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		discordAdapter := gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger)
		for channelID, url := range cfg.Gateway.Discord.Webhooks {
			discordAdapter.SetWebhook(channelID, url)
		}
		gw.Register(discordAdapter)
	}
	routes := make([]gateway.Route, 0, len(cfg.Gateway.Routes))
	for _, rc := range cfg.Gateway.Routes {
		routes = append(routes, gateway.Route{Channel: rc.Channel, Platform: rc.Platform, ChannelID: rc.ChannelID})
	}
	gwRoutes := gateway.NewRoutes(routes)

	// Parrot engine
	catalog := radio.NewCatalog(cfg.Speech.RadioPrefix, cfg.Channels)
	var tx parrot.Transmitter = gateway.NewTransmitter(gw, gwRoutes)
	if cfg.Speech.Transport == config.TransportBus {
		if evBus == nil {
			logger.Warn("speech transport is bus but redis is unavailable, falling back to gateway")
		} else {
			tx = evBus
		}
	}
	seed := cfg.World.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	engine := parrot.NewEngine(catalog, tx, parrot.NewRand(seed), logger.Named("parrot"))
	engine.SetMetrics(m)
	engine.SetEmitTimeout(cfg.Speech.EmitTimeout.Std())

	if cfg.Durable.Enabled {
		if pgStore == nil || players == nil {
			logger.Warn("durable memory needs both postgres and redis, parrots will forget on restart")
		} else {
			syncer := parrot.NewSyncer(pgStore, players, cfg.Durable.QueryTimeout.Std(), logger.Named("durable"))
			syncer.SetMetrics(m)
			engine.SetSyncer(syncer)
			defer syncer.Close()
		}
	}

	clock := world.NewWorldClock(cfg.World.TickInterval.Std(), cfg.World.Speed, time.Now(), logger.Named("world"))
	for _, pc := range cfg.Parrots {
		id := engine.Register(pc.Spec(clock.Now()))
		gw.SetPersona(id, &gateway.Persona{Name: pc.Name, Emoji: ":parrot:"})
	}
	logger.Info("Parrots registered", zap.Int("count", len(cfg.Parrots)))

	// Moderation
	var sessions *moderation.Sessions
	if pgStore != nil {
		svc := moderation.NewService(pgStore, moderation.NewModerators(cfg.Moderation.Moderators...),
			cfg.Moderation.OldAfter.Std(), cfg.Moderation.PageLimit, logger.Named("moderation"))
		sessions = moderation.NewSessions(svc)
	}

	// Commands
	commands := command.NewRegistry()
	command.RegisterBuiltins(commands, engine, gw)
	commands.SetAuthorizer(moderation.NewModerators(cfg.Moderation.Moderators...))
	command.RegisterAdminCommands(commands, engine, engine)
	if sessions != nil {
		command.RegisterModerationCommands(commands, sessions)
	}

	// Message router: chat lines and world events into the engine
	deps := msgrouter.Deps{
		Engine:   engine,
		Sender:   gw,
		Commands: commands,
		Routes:   gwRoutes,
		Catalog:  catalog,
		Clock:    clock,
	}
	if players != nil {
		deps.Presence = players
	}
	if pgStore != nil {
		deps.Names = pgStore
	}
	router := msgrouter.New(deps, logger.Named("router"))
	gw.SetHandler(router.Handle)

	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}
	if evBus != nil {
		go router.Run(ctx, evBus.Subscribe(ctx))
	}

	clock.AddListener(engine)
	clock.Start()
	logger.Info("World clock started")

	handler := api.NewHandler(api.Deps{
		Engine:   engine,
		Events:   router,
		Clock:    clock,
		Catalog:  catalog,
		Gateway:  gw,
		REST:     restAdapter,
		Sessions: sessions,
		Gatherer: reg,
	}, logger.Named("api"))

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Polly listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Polly...")
	clock.Stop()
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	srv.Shutdown(shutdownCtx)
	gw.Close()
	if rdb != nil {
		rdb.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	switch level {
	case "", "debug":
		logger, err = zap.NewDevelopment()
	default:
		cfg := zap.NewProductionConfig()
		if lvl, perr := zap.ParseAtomicLevel(level); perr == nil {
			cfg.Level = lvl
		}
		logger, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
