package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/tastebud/server/internal/chat"
	"github.com/tastebud/server/internal/config"
	"github.com/tastebud/server/internal/database"
	"github.com/tastebud/server/internal/search"
)

type App struct {
	log            *log.Logger
	db             database.Repository
	mux            *http.Server
	cs             *chat.Server
	search         *search.Client
	signingKey     []byte
	allowedOrigins []string
	historyLimit   int
}

func NewApp(mux *http.ServeMux, logger *log.Logger, cs *chat.Server, db database.Repository, sc *search.Client, cfg *config.Config) *App {
	s := &App{
		log:            logger,
		db:             db,
		cs:             cs,
		search:         sc,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		historyLimit:   cfg.HistoryLimit,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/account", s.authMiddleware(s.account))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.Handle("GET /api/rooms/detail", s.authMiddleware(s.roomDetail))
	mux.Handle("GET /api/rooms/occupancy", s.authMiddleware(s.roomOccupancy))
	mux.Handle("GET /api/rooms/mine", s.authMiddleware(s.myRooms))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /api/search", s.authMiddleware(s.searchRecipes))
	mux.Handle("GET /api/recommendations", s.authMiddleware(s.recommendations))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
