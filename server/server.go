package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soundvault/config"
	"soundvault/core/session"
	"soundvault/db"
	"soundvault/logger"
	"soundvault/repository"
	"soundvault/storage"

	"github.com/gorilla/mux"
)

// Start initializes every store and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseDB()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()
	logger.Info("Successfully connected to Redis")

	blobs, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize blob store", logger.ErrorField(err))
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	songRepo := repository.NewMySQLSongRepository(db.DB)
	sessions := session.NewStore(db.RedisClient, cfg.SessionTTL)

	apiHandler := NewAPIHandler(cfg, userRepo, songRepo, blobs, sessions)

	router := NewRouter(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}

// NewRouter wires every route onto a gorilla/mux router.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Auth
	router.HandleFunc("/api/auth/signup", h.SignupHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.requireAuth(h.LogoutHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/me", h.requireAuth(h.MeHandler)).Methods(http.MethodGet)

	// Catalog
	router.HandleFunc("/api/songs/genres", h.GenresHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/search", h.requireAuth(h.SearchSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/my-songs", h.requireAuth(h.MySongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/upload", h.requireAuth(h.UploadSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/songs/stream/audio/{fileId}", h.requireAuth(h.StreamAudioHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/stream/image/{fileId}", h.requireAuth(h.StreamImageHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs", h.requireAuth(h.ListSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id:[0-9]+}", h.requireAuth(h.GetSongHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{id:[0-9]+}", h.requireAuth(h.UpdateSongHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/songs/{id:[0-9]+}", h.requireAuth(h.DeleteSongHandler)).Methods(http.MethodDelete)

	// Admin
	router.HandleFunc("/api/admin/songs/upload", h.requireAdmin(h.AdminUploadSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin/songs", h.requireAdmin(h.AdminListSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/songs/{id:[0-9]+}", h.requireAdmin(h.AdminUpdateSongHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/admin/songs/{id:[0-9]+}", h.requireAdmin(h.AdminDeleteSongHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/admin/users", h.requireAdmin(h.ListUsersHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin/users/{id:[0-9]+}", h.requireAdmin(h.DeleteUserHandler)).Methods(http.MethodDelete)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
