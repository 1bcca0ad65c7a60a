package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secureblog/apiserver/config"
	"github.com/secureblog/apiserver/internal/audit"
	"github.com/secureblog/apiserver/internal/crypto"
	"github.com/secureblog/apiserver/internal/db"
	"github.com/secureblog/apiserver/internal/firewall"
	"github.com/secureblog/apiserver/internal/handlers"
	"github.com/secureblog/apiserver/internal/mfa"
	"github.com/secureblog/apiserver/internal/mq"
	"github.com/secureblog/apiserver/internal/services"
	"github.com/secureblog/apiserver/internal/session"
	"github.com/secureblog/apiserver/internal/storage"
	"github.com/secureblog/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *mq.Publisher
}

// New constructs a Server with all services wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Session.Secret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	accessLogRepo := store.NewAccessLogRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	auditRepo := store.NewAuditRepository(dbConn)

	logger, err := audit.NewFileLogger(cfg.Audit.LogPath)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open security log: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	var auditPublisher audit.Publisher
	if publisher != nil {
		auditPublisher = publisher
	}
	auditLog := audit.New(logger, auditRepo, auditPublisher, cfg.Audit.EventChannel)

	archiver, err := newArchiver(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	hasher := crypto.NewHasher()
	provisioner := mfa.NewProvisioner(cfg.MFA.Issuer)
	sessions := session.NewManager(cfg.Session)

	authService := services.NewAuthService(userRepo, accessLogRepo, hasher, provisioner, auditLog, logger)
	postService := services.NewPostService(postRepo, userRepo, auditLog, logger)
	securityService := services.NewSecurityService(auditRepo, accessLogRepo)

	mw := handlers.NewMiddleware(sessions, userRepo, auditLog)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(firewall.Middleware(firewall.DefaultSignatures(), auditLog))
	router.Use(mw.WithUser)

	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, sessions, mw)
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostsRouter(r, postService, mw)
	})
	router.Route("/security", func(r chi.Router) {
		handlers.SecurityRouter(r, securityService, archiver, mw)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, userRepo, postRepo, mw)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

func newPublisher(ctx context.Context, cfg config.MQConfig) (*mq.Publisher, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return mq.NewPublisher(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return mq.NewPublisher(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

func newArchiver(ctx context.Context, cfg config.Config) (*audit.Archiver, error) {
	var backend storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	st := storage.NewStorage(backend)
	if err := st.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure archive bucket: %w", err)
	}
	return audit.NewArchiver(st, cfg.Audit.LogPath, cfg.Audit.ArchivePrefix), nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
