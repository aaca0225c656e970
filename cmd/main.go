package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/logimax/logimax-api/internal/database"
	"github.com/logimax/logimax-api/internal/handlers"
	"github.com/logimax/logimax-api/internal/jwt"
	"github.com/logimax/logimax-api/internal/logger"
	"github.com/logimax/logimax-api/internal/middlewares"
	"github.com/logimax/logimax-api/internal/repositories"
	"github.com/logimax/logimax-api/internal/services"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// maxPortProbes bounds the search for a free listen port.
const maxPortProbes = 20

// @title logimax API
// @version 1.0.0
// @description Authentication and user-management backend for the Logimax logistics dashboard
// @host localhost:5000
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	appHost, appPort, logLevel,
		mongoURI, mongoDB,
		dbMaxAttempts, dbBaseDelay, dbMaxDelay,
		redisAddr, redisDB, redisPassword,
		kafkaAddr, kafkaTopic,
		jwtSecret, jwtExp,
		err := parseConfig(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(),
		appHost, appPort, logLevel,
		mongoURI, mongoDB,
		dbMaxAttempts, dbBaseDelay, dbMaxDelay,
		redisAddr, redisDB, redisPassword,
		kafkaAddr, kafkaTopic,
		jwtSecret, jwtExp,
	); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Starting service Version: %s, Commit: %s, Build: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// parseConfig loads environment variables from a file and returns all
// application, store, Redis, Kafka, logging, and token configuration.
func parseConfig(path string) (
	appHost, appPort, logLevel string,
	mongoURI, mongoDB string,
	dbMaxAttempts int, dbBaseDelay, dbMaxDelay time.Duration,
	redisAddr string, redisDB int, redisPassword string,
	kafkaAddr, kafkaTopic string,
	jwtSecretKey string, jwtExp time.Duration,
	err error,
) {
	_ = godotenv.Load(path)

	getEnv := func(key, defaultValue string) string {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
		return defaultValue
	}

	// Application config
	appHost = getEnv("APP_HOST", "localhost")
	appPort = getEnv("APP_PORT", "5000")
	logLevel = getEnv("APP_LOG_LEVEL", "info")

	// MongoDB config
	mongoURI = getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017/logimax")
	mongoDB = getEnv("MONGODB_DATABASE", "logimax")
	if dbMaxAttempts, err = strconv.Atoi(getEnv("DB_CONNECT_MAX_ATTEMPTS", "5")); err != nil {
		return
	}
	var ms int
	if ms, err = strconv.Atoi(getEnv("DB_CONNECT_BASE_DELAY_MS", "5000")); err != nil {
		return
	}
	dbBaseDelay = time.Duration(ms) * time.Millisecond
	if ms, err = strconv.Atoi(getEnv("DB_CONNECT_MAX_DELAY_MS", "30000")); err != nil {
		return
	}
	dbMaxDelay = time.Duration(ms) * time.Millisecond

	// Redis config (optional revocation list; empty addr disables it)
	redisAddr = getEnv("REDIS_ADDR", "")
	if redisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return
	}
	redisPassword = getEnv("REDIS_PASSWORD", "")

	// Kafka config (optional audit events; empty addr disables them)
	kafkaAddr = getEnv("KAFKA_ADDR", "")
	kafkaTopic = getEnv("KAFKA_TOPIC", "logimax.auth-events")

	// JWT config
	jwtSecretKey = getEnv("JWT_SECRET_KEY", "your-secret-key")
	var sec int
	if sec, err = strconv.Atoi(getEnv("JWT_EXP_SECOND", "86400")); err != nil {
		return
	}
	jwtExp = time.Duration(sec) * time.Second

	return
}

// run initializes the logger, store connection, optional Redis and Kafka
// clients, and the HTTP server. It sets up routes, applies middleware, and
// handles graceful shutdown.
func run(ctx context.Context,
	appHost, appPort, logLevel string,
	mongoURI, mongoDB string,
	dbMaxAttempts int, dbBaseDelay, dbMaxDelay time.Duration,
	redisAddr string, redisDB int, redisPassword string,
	kafkaAddr, kafkaTopic string,
	jwtSecretKey string, jwtExp time.Duration,
) error {
	// Initialize logger
	if err := logger.Initialize(logLevel); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Log.Sync()
	logger.Log.Infof("Logger initialized with level %s", logLevel)

	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	// Connect to MongoDB; exhausting the attempt budget is fatal.
	db := database.NewManager(database.Config{
		URI:         mongoURI,
		MaxAttempts: dbMaxAttempts,
		BaseDelay:   dbBaseDelay,
		MaxDelay:    dbMaxDelay,
	})
	logger.Log.Infof("Connecting to MongoDB: %s", mongoURI)
	if err := db.Connect(ctxShutdown); err != nil {
		return err
	}

	store := db.Database(mongoDB)

	// Initialize repositories
	userReadRepo := repositories.NewUserReadRepository(store)
	userWriteRepo := repositories.NewUserWriteRepository(store)
	if err := userWriteRepo.EnsureIndexes(ctxShutdown); err != nil {
		return fmt.Errorf("failed to ensure user indexes: %w", err)
	}

	// Connect to Redis when a revocation store is configured
	var revoker services.TokenRevoker
	var revocations middlewares.RevocationChecker
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		})
		if err := rdb.Ping(ctxShutdown).Err(); err != nil {
			return fmt.Errorf("redis connection error: %w", err)
		}
		defer rdb.Close()

		revocationRepo := repositories.NewTokenRevocationRepository(rdb)
		revoker = revocationRepo
		revocations = revocationRepo
	} else {
		logger.Log.Info("REDIS_ADDR not set, token revocation disabled; tokens age out on expiry")
	}

	// Connect to Kafka when an audit broker is configured
	var audit services.AuditWriter
	if kafkaAddr != "" {
		kw := &kafka.Writer{
			Addr:     kafka.TCP(kafkaAddr),
			Topic:    kafkaTopic,
			Balancer: &kafka.LeastBytes{},
		}
		defer kw.Close()
		audit = kw
	}

	// Initialize JWT service
	jwtSvc := jwt.New(jwtSecretKey, jwtExp)

	// Initialize services
	authService := services.NewAuthService(userReadRepo, userWriteRepo, jwtSvc, revoker, audit)
	userService := services.NewUserService(userReadRepo)

	// Initialize handlers
	registerHandler := handlers.NewRegisterHandler(authService)
	loginHandler := handlers.NewLoginHandler(authService)
	logoutHandler := handlers.NewLogoutHandler(authService)
	profileHandler := handlers.NewProfileHandler(userService)
	usersHandler := handlers.NewUsersHandler(userService)
	healthHandler := handlers.NewHealthHandler(db.StateString)

	// Setup router
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware(logger.Log))

	// Health check stays reachable during store outages.
	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(middlewares.DBStatusMiddleware(db.IsConnected))

		// Public routes
		r.Post("/auth/register", registerHandler)
		r.Post("/auth/login", loginHandler)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middlewares.AuthMiddleware(jwtSvc, revocations))

			r.Post("/auth/logout", logoutHandler)
			r.Get("/users/profile", profileHandler)

			r.Group(func(r chi.Router) {
				r.Use(middlewares.RequireAdmin(userService))
				r.Get("/users", usersHandler)
			})
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%s/swagger/doc.json", appHost, appPort)),
	))

	// Bind the configured port, falling back to the next free one.
	ln, boundPort, err := findAvailableListener(appHost, appPort)
	if err != nil {
		return err
	}
	if boundPort != appPort {
		logger.Log.Infof("Port %s is in use, falling back to %s", appPort, boundPort)
	}

	srv := &http.Server{Handler: r}

	// Graceful shutdown
	errChan := make(chan error, 1)
	go func() {
		logger.Log.Infof("HTTP server listening on %s:%s", appHost, boundPort)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping HTTP server...")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}

	if err := db.Close(shutdownCtx); err != nil {
		logger.Log.Errorw("MongoDB close error", "error", err)
		return err
	}

	logger.Log.Info("Server stopped gracefully")
	return nil
}

// findAvailableListener binds the configured port, trying successive ports
// while the current one is occupied.
func findAvailableListener(host, port string) (net.Listener, string, error) {
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, "", fmt.Errorf("invalid port %q: %w", port, err)
	}

	for i := 0; i < maxPortProbes; i++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			return ln, strconv.Itoa(p), nil
		}
		if !isAddrInUse(err) {
			return nil, "", err
		}
		p++
	}

	return nil, "", fmt.Errorf("no free port found in range %s-%d", port, p-1)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
