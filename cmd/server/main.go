package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/config"
	"chips-casino/internal/game"
	"chips-casino/internal/game/crash"
	"chips-casino/internal/game/mines"
	"chips-casino/internal/game/roulette"
	"chips-casino/internal/game/slots"
	"chips-casino/internal/handler"
	"chips-casino/internal/pkg/db"
	"chips-casino/internal/pkg/events"
	"chips-casino/internal/pkg/metrics"
	"chips-casino/internal/pkg/ratelimit"
	"chips-casino/internal/pkg/rng"
	"chips-casino/internal/pkg/session"
	"chips-casino/internal/repository"
	"chips-casino/internal/service"
)

const publishTimeout = 5 * time.Second

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)

	log.Info().Msg("Starting chips casino")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	txManager, err := db.NewTxManager(dbPool.Pool)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transaction manager")
	}

	m := metrics.New()
	checks := map[string]metrics.HealthFunc{"postgres": dbPool.HealthCheck}

	var limiter handler.Limiter
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient, err = ratelimit.Connect(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
		} else {
			limiter = ratelimit.New(redisClient, cfg.RateLimit.GamesPerWindow, cfg.RateLimit.Window)
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled() {
		writer := events.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher = events.NewAsync(events.NewKafkaPublisher(writer, cfg.Kafka.Topic), publishTimeout)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing settlements to Kafka")
	}

	userRepo := repository.NewUserRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)
	historyRepo := repository.NewHistoryRepository(dbPool.Pool)
	minesRepo := repository.NewMinesRepository(dbPool.Pool)
	crashRepo := repository.NewCrashRepository(dbPool.Pool)
	taskRepo := repository.NewTaskRepository(dbPool.Pool)
	achievementRepo := repository.NewAchievementRepository(dbPool.Pool)
	challengeRepo := repository.NewChallengeRepository(dbPool.Pool)

	slotsGame := slots.New(&slots.Config{MinBet: cfg.Games.MinBet, MaxBet: cfg.Games.MaxBet})
	minesGame := mines.New(&mines.Config{
		MinBet:           cfg.Games.MinBet,
		MaxBet:           cfg.Games.MaxBet,
		DefaultGridSize:  cfg.Games.Mines.DefaultGridSize,
		DefaultMineCount: cfg.Games.Mines.DefaultMineCount,
	})
	rouletteGame := roulette.New(&roulette.Config{
		MinBet:  cfg.Games.MinBet,
		MaxBet:  cfg.Games.MaxBet,
		MaxBets: cfg.Games.Roulette.MaxBets,
	})
	crashGame := crash.New(&crash.Config{
		MinBet:          cfg.Games.MinBet,
		MaxBet:          cfg.Games.MaxBet,
		ClientTolerance: cfg.Games.Crash.ClientTolerance,
	})

	registry := game.NewRegistry()
	for _, g := range []game.Game{slotsGame, minesGame, rouletteGame, crashGame} {
		if err := registry.Register(g); err != nil {
			log.Fatal().Err(err).Str("game", g.Info().ID).Msg("Failed to register game")
		}
	}
	log.Info().Strs("games", registry.IDs()).Msg("Games registered")

	ledger := service.NewLedger(txManager, userRepo, txRepo, historyRepo, publisher, m)
	achievements := service.NewAchievementService(achievementRepo)
	accounts := service.NewAccountService(ledger, service.AccountConfig{
		StartingBalance: cfg.Users.StartingBalance,
		DailyReward:     cfg.Daily.Reward,
		DailyCooldown:   cfg.Daily.Cooldown(),
		IsAdmin:         cfg.IsAdmin,
	})

	router := handler.NewRouter(&handler.Deps{
		Sessions:       session.NewManager(cfg.Session.Secret, cfg.Session.CookieName, cfg.Session.TTL),
		Accounts:       accounts,
		Slots:          service.NewSlotsService(ledger, slotsGame, achievements),
		Roulette:       service.NewRouletteService(ledger, rouletteGame, achievements),
		Mines:          service.NewMinesService(ledger, minesGame, minesRepo, achievements),
		Crash:          service.NewCrashService(ledger, crashGame, crashRepo, achievements),
		Tasks:          service.NewTaskService(ledger, taskRepo, achievements),
		Admin:          service.NewAdminService(ledger, taskRepo),
		History:        service.NewHistoryService(txRepo, historyRepo),
		Achievements:   achievements,
		Challenges:     service.NewChallengeService(ledger, challengeRepo, rng.Math(), service.DefaultChallengeConfig()),
		Registry:       registry,
		Metrics:        m,
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StreamTick:     cfg.Games.Crash.TickInterval,
	})

	apiServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		// the crash stream hijacks its connection, so this bounds plain requests only
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	metricsServer := m.NewServer(cfg.Metrics.Addr, checks)

	serve := func(name string, srv *http.Server) {
		log.Info().Str("addr", srv.Addr).Msgf("Starting %s server", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msgf("%s server failed", name)
		}
	}
	go serve("api", apiServer)
	go serve("metrics", metricsServer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server shutdown failed")
	}

	cancel()

	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close event publisher")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis client")
		}
	}

	log.Info().Msg("Chips casino stopped")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
