package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/orb/internal/ai"
	"github.com/myrjola/orb/internal/broker"
	"github.com/myrjola/orb/internal/cases"
	"github.com/myrjola/orb/internal/config"
	"github.com/myrjola/orb/internal/errors"
	"github.com/myrjola/orb/internal/game"
	"github.com/myrjola/orb/internal/logging"
	"github.com/myrjola/orb/internal/pprofserver"
	"github.com/myrjola/orb/internal/providers"
	"github.com/myrjola/orb/internal/repositories"
	"github.com/myrjola/orb/internal/speech"
	"github.com/myrjola/orb/internal/sqlite"
)

type application struct {
	logger         *slog.Logger
	cfg            config.Config
	game           *game.Engine
	answers        ai.Answerer
	narrator       *speech.Chain
	voice          *speech.Chain
	sessionManager *scs.SessionManager
	clips          *broker.Broker[string, []byte]
	players        *playerRegistry
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(lookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	// Initialise pprof listening on localhost so that it's not open to the world.
	if cfg.PprofPort != "" {
		pprofserver.Launch(ctx, cfg.PprofPort, logger)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SqliteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "close database", errors.SlogError(closeErr))
		}
	}()
	go db.StartDatabaseOptimizer(ctx, time.Hour)

	var catalog *cases.Catalog
	if catalog, err = cases.Load(); err != nil {
		return errors.Wrap(err, "load cases")
	}

	client := providers.OpenAIClient(cfg)
	var answers *ai.Chain
	if answers, err = providers.Answerer(ctx, cfg, client, logger); err != nil {
		return errors.Wrap(err, "new answerer")
	}
	var narrator, voice *speech.Chain
	if narrator, voice, err = providers.Voices(cfg, client, true, logger); err != nil {
		return errors.Wrap(err, "new voices")
	}

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(db.ReadWrite, 24*time.Hour) //nolint:mnd // daily
	sessionManager.Lifetime = 12 * time.Hour                                                //nolint:mnd // half a day

	clips := broker.New[string, []byte]()
	go clips.Run(ctx)

	app := application{
		logger:         logger,
		cfg:            cfg,
		game:           game.NewEngine(catalog, repositories.NewProgressRepository(db, logger), repositories.NewExchangeRepository(db, logger), logger),
		answers:        answers,
		narrator:       narrator,
		voice:          voice,
		sessionManager: sessionManager,
		clips:          clips,
		players:        nil,
	}
	app.players = newPlayerRegistry(ctx, cfg, app.newPlayer)
	defer app.players.purge()

	logger.LogAttrs(ctx, slog.LevelInfo, "voices ready",
		slog.Any("narrator", narrator.Strategies()), slog.Any("voice", voice.Strategies()))

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelWarn, "could not load .env", errors.SlogError(err))
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
