package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/engblog/internal/admin"
	"github.com/2beens/engblog/internal/auth"
	"github.com/2beens/engblog/internal/blog"
	"github.com/2beens/engblog/internal/config"
	"github.com/2beens/engblog/internal/db"
	"github.com/2beens/engblog/internal/images"
	"github.com/2beens/engblog/internal/middleware"
	"github.com/2beens/engblog/internal/telemetry/metrics"
	"github.com/2beens/engblog/internal/telemetry/tracing"
)

const sessionsCleanupInterval = 8 * time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	rateLimiter middleware.RequestRateLimiter

	loginChecker auth.Checker
	authService  *auth.Service
	blogService  *blog.Service
	imageService *images.Service
	// set only with the disk images backend, serves /uploads/{filename}
	diskImages *images.DiskBackend

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
	stopCleanup    context.CancelFunc
}

type NewServerParams struct {
	Config      *config.Config
	VersionInfo string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	secrets := cfg.Secrets

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown := func() {}
	if secrets.HoneycombEnabled {
		shutdown, err := tracing.HoneycombSetup("engblog-backend")
		if err != nil {
			return nil, err
		}
		otelShutdown = shutdown
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     secrets.PostgresPassword,
		MaxConns:       cfg.PostgresMaxConns,
		TracingEnabled: secrets.HoneycombEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	promRegistry := metrics.SetupPrometheus(
		pgxpoolprometheus.NewCollector(dbPool, map[string]string{"db_name": cfg.PostgresDBName}),
	)
	metricsManager := metrics.NewManager("engblog", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0) // set to 1 once serving

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: secrets.RedisPassword,
		DB:       0, // use default DB
	})
	if secrets.HoneycombEnabled {
		rdb.AddHook(redisotel.NewTracingHook())
	}

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewAuthService(&auth.Admin{
		Username:     secrets.AdminUsername,
		PasswordHash: secrets.AdminPasswordHash,
	}, cfg.SessionTTL, rdb)

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go authService.RunCleanup(cleanupCtx, sessionsCleanupInterval)

	blogService := blog.NewService(blog.ServiceParams{
		Repo:                blog.NewRepo(dbPool),
		Cache:               blog.NewPostCache(cfg.PostCacheSizeMB, cfg.PostCacheTTL),
		Metrics:             metricsManager,
		SlugConflictRetries: cfg.SlugConflictRetries,
	})

	imageService, diskImages, err := newImageService(ctx, cfg, metricsManager)
	if err != nil {
		stopCleanup()
		return nil, err
	}

	return &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		dbPool:      dbPool,
		redisClient: rdb,
		rateLimiter: redis_rate.NewLimiter(rdb),

		loginChecker: auth.NewLoginChecker(cfg.SessionTTL, rdb),
		authService:  authService,
		blogService:  blogService,
		imageService: imageService,
		diskImages:   diskImages,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
		stopCleanup:    stopCleanup,
	}, nil
}

func newImageService(
	ctx context.Context,
	cfg *config.Config,
	metricsManager *metrics.Manager,
) (*images.Service, *images.DiskBackend, error) {
	switch cfg.ImagesBackend {
	case config.ImagesBackendS3:
		s3Backend, err := images.NewS3Backend(ctx, images.S3BackendParams{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
			AccessKeyID:     cfg.Secrets.S3AccessKeyID,
			SecretAccessKey: cfg.Secrets.S3SecretAccessKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("new s3 images backend: %w", err)
		}
		log.Printf("images stored in s3 bucket: %s", cfg.S3Bucket)
		return images.NewService(images.ServiceParams{
			Backend:  s3Backend,
			MaxBytes: cfg.ImagesMaxBytes,
			Metrics:  metricsManager,
		}), nil, nil
	default:
		diskBackend, err := images.NewDiskBackend(cfg.ImagesRootPath, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("new disk images backend: %w", err)
		}
		log.Printf("images stored in dir: %s", cfg.ImagesRootPath)
		return images.NewService(images.ServiceParams{
			Backend:  diskBackend,
			MaxBytes: cfg.ImagesMaxBytes,
			Metrics:  metricsManager,
		}), diskBackend, nil
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	blogHandler := blog.NewHandler(s.blogService, s.loginChecker)
	r.HandleFunc("/blogs", blogHandler.HandleList).Methods("GET", "OPTIONS").Name("list-blogs")
	r.HandleFunc("/blogs", blogHandler.HandleCreate).Methods("POST", "OPTIONS").Name("new-blog")
	r.HandleFunc("/blogs", blogHandler.HandleUpdate).Methods("PUT", "PATCH", "OPTIONS").Name("update-blog")
	r.HandleFunc("/blogs", blogHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-blog")
	r.HandleFunc("/blogs/like", blogHandler.HandleLike).Methods("POST", "OPTIONS").Name("like-blog")

	imagesHandler := images.NewHandler(s.imageService, nil)
	if s.diskImages != nil {
		imagesHandler = images.NewHandler(s.imageService, s.diskImages)
	}
	r.HandleFunc("/upload", imagesHandler.HandleUpload).Methods("POST", "OPTIONS").Name("upload-image")
	r.HandleFunc("/upload", imagesHandler.HandleList).Methods("GET", "OPTIONS").Name("list-images")
	r.HandleFunc("/upload", imagesHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-image")
	r.HandleFunc("/uploads/{filename}", imagesHandler.HandleServe).Methods("GET", "OPTIONS").Name("serve-image")

	adminHandler := admin.NewHandler(s.authService, s.versionInfo)
	adminHandler.SetupRoutes(r, s.rateLimiter, s.metricsManager, s.config.LoginRateLimitAllowedPerMin)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.CorsAllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) metricsRouter() *mux.Router {
	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	return metricsRouter
}

func (s *Server) Serve(host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           s.metricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests first, the handlers still need db and redis
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.stopCleanup != nil {
		s.stopCleanup()
	}

	if s.otelShutdown != nil {
		s.otelShutdown()
		log.Trace("otel shut down ...")
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
