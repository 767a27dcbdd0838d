package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/tastebud/server/internal/api"
	"github.com/tastebud/server/internal/chat"
	"github.com/tastebud/server/internal/config"
	"github.com/tastebud/server/internal/database"
	"github.com/tastebud/server/internal/search"
	"github.com/tastebud/server/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	redisAddr      string
	searchURL      string
	signingKey     string
	historyLimit   int
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[tastebud] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil {
		logger.Println("no .env file loaded:", err)
	}

	flag.StringVar(&addr, "addr", envOr("TASTEBUD_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("TASTEBUD_DSN",
		"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", envOr("TASTEBUD_REDIS_ADDR", "localhost:6379"), "redis address")
	flag.StringVar(&searchURL, "search-url", envOr("TASTEBUD_SEARCH_URL", "http://localhost:5000"), "search service base URL")
	flag.StringVar(&signingKey, "signing-key", os.Getenv("TASTEBUD_SIGNING_KEY"), "base64 encoded signing key")
	flag.IntVar(&historyLimit, "history-limit", 50, "number of messages returned per history query")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	cfg, err := config.NewConfig(addr, dsn, redisAddr, searchURL, signingKey, allowedOrigins, historyLimit)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	repo, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if err := repo.Migrate(); err != nil {
		logger.Fatal("migrations: ", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("redis: ", err)
	}
	defer rdb.Close()

	searchClient := search.NewClient(
		cfg.SearchURL,
		search.NewRedisCache(rdb, 5*time.Minute, logger),
		logger,
	)

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	directory := chat.NewDirectory(repo)
	// the room cache must be warm before the first chat event is served
	if err := directory.Load(); err != nil {
		logger.Fatal("load room directory: ", err)
	}
	logger.Printf("room directory loaded with %d rooms", directory.Len())

	chatServer := chat.NewServer(logger, repo, directory, statsUpdater)

	srv := api.NewApp(mux, logger, chatServer, repo, searchClient, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
