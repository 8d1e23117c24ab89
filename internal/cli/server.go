package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-match-service/internal/app"
	"quiz-match-service/internal/config"
	"quiz-match-service/internal/domain"
	"quiz-match-service/internal/infra/memory"
	pgloader "quiz-match-service/internal/infra/postgres"
	redisinfra "quiz-match-service/internal/infra/redis"
	transport "quiz-match-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the match server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionSetLoader = memory.NewStaticQuestionSetLoader(sampleQuestionSets())
	if pool != nil {
		loader = pgloader.NewQuestionSetLoader(pool)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var sets app.QuestionSetRepository
	if redisClient != nil {
		sets = redisinfra.NewQuestionSetCache(redisClient, loader, questionTTL)
	} else {
		sets = memory.NewQuestionSetCache(loader, questionTTL)
	}

	matchTimeout := config.TTLDuration(cfg.Match.Timeout, 10*time.Minute)
	var registry app.MatchRegistry
	if redisClient != nil {
		registry = redisinfra.NewMatchRegistry(redisClient, matchTimeout)
	} else {
		registry = memory.NewMatchRegistry()
	}

	service := app.NewMatchService(registry, sets, matchRules(cfg), matchTimeout)
	wsHandler := transport.NewWSHandler(service)
	matchHandler := transport.NewMatchHandler(service, matchTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/match", wsHandler.ServeWS)
	mux.HandleFunc("/create_match", matchHandler.CreateMatch)
	mux.HandleFunc("/join_match", matchHandler.JoinMatch)
	mux.HandleFunc("/queue_match", matchHandler.QueueMatch)
	mux.HandleFunc("/match_lobby", matchHandler.MatchLobby)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting match service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	reapInterval := config.TTLDuration(cfg.Match.ReapInterval, time.Minute)
	reaperDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(reapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if reaped := service.ReapExpired(); reaped > 0 {
					log.Printf("reaped %d expired matches", reaped)
				}
			case <-reaperDone:
				return
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}
	close(reaperDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func matchRules(cfg config.Config) app.Rules {
	rules := app.DefaultRules()
	rules.Cooldown = config.TTLDuration(cfg.Match.Cooldown, rules.Cooldown)
	rules.DeadlineGrace = config.TTLDuration(cfg.Match.DeadlineGrace, rules.DeadlineGrace)
	if cfg.Match.StreakBonus > 0 {
		rules.StreakBonus = cfg.Match.StreakBonus
	}
	if cfg.Match.MaxMultiplier > 0 {
		rules.MaxMultiplier = cfg.Match.MaxMultiplier
	}
	if cfg.Match.EnforceDeadline != nil {
		rules.EnforceDeadline = *cfg.Match.EnforceDeadline
	}
	return rules
}

// sampleQuestionSets provides minimal matchmaking content; swap the loader
// for the Postgres-backed one in production.
func sampleQuestionSets() []domain.QuestionSet {
	return []domain.QuestionSet{
		{
			Subject:   "maths",
			YearLevel: "7",
			Questions: []domain.Question{
				{
					Text:             "What is 2 + 2?",
					Options:          []string{"3", "4", "5", "6"},
					Answer:           "4",
					Marks:            1,
					TimeLimitSeconds: 30,
				},
			},
		},
	}
}
