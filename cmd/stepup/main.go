package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-stepup/migrations"
	"github.com/tendant/simple-stepup/pkg/backupcode"
	"github.com/tendant/simple-stepup/pkg/client"
	"github.com/tendant/simple-stepup/pkg/config"
	"github.com/tendant/simple-stepup/pkg/device"
	deviceapi "github.com/tendant/simple-stepup/pkg/device/api"
	"github.com/tendant/simple-stepup/pkg/notification"
	notificationapi "github.com/tendant/simple-stepup/pkg/notification/api"
	"github.com/tendant/simple-stepup/pkg/otp"
	"github.com/tendant/simple-stepup/pkg/ratelimit"
	"github.com/tendant/simple-stepup/pkg/settings"
	"github.com/tendant/simple-stepup/pkg/sms"
	"github.com/tendant/simple-stepup/pkg/twofa"
	twofaapi "github.com/tendant/simple-stepup/pkg/twofa/api"
)

type Config struct {
	Persistence     string   `env:"STEPUP_PERSISTENCE" env-default:"postgres"`
	AllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
	LogFormat       string   `env:"LOG_FORMAT" env-default:"text"`
	DatabaseConfig  config.DatabaseConfig
	AppConfig       app.AppConfig
	JWTConfig       config.JWTConfig
	EmailConfig     config.EmailConfig
	SMSConfig       config.SMSConfig
	OTPConfig       config.OTPConfig
	TrustConfig     config.TrustConfig
	RedisConfig     config.RedisConfig
	RateLimitConfig config.RateLimitConfig
}

// loadEnvFile loads environment variables from .env file if it exists
// Only sets variables that are not already set in the environment
func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		slog.Error("Failed to get executable path", "error", err)
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, err := os.Getwd()
		if err != nil {
			slog.Error("Failed to get current working directory", "error", err)
			return
		}
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Info("No .env file found", "path", envFile)
		return
	}

	if err := godotenv.Load(envFile); err != nil {
		slog.Error("Failed to load .env file", "error", err, "path", envFile)
		return
	}
	slog.Info("Configuration loaded from .env file", "path", envFile)
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// repositories holds every store the service needs, backed by one persistence type
type repositories struct {
	settings settings.Repositories
	twofa    twofa.SettingsRepository
	otp      otp.Repository
	devices  device.DeviceRepository
	records  notification.RecordRepository
}

// newRepositories builds every store on one persistence type. pool is nil for inmem.
func newRepositories(persistence string, trust config.TrustConfig, pool *pgxpool.Pool) (repositories, error) {
	settingsCfg := settings.RepositoryConfig{}
	twofaCfg := twofa.RepositoryConfig{}
	otpCfg := otp.RepositoryConfig{}
	deviceCfg := device.RepositoryConfig{}
	recordCfg := notification.RepositoryConfig{}
	if pool != nil {
		settingsCfg.DB = pool
		twofaCfg.DB = pool
		otpCfg.DB = pool
		deviceCfg.DB = pool
		recordCfg.DB = pool
	}

	var repos repositories
	var err error
	if repos.settings, err = settings.NewRepositories(persistence, settingsCfg); err != nil {
		return repos, err
	}
	if repos.twofa, err = twofa.NewSettingsRepository(persistence, twofaCfg); err != nil {
		return repos, err
	}
	if repos.otp, err = otp.NewRepository(persistence, otpCfg); err != nil {
		return repos, err
	}
	if repos.devices, err = device.NewDeviceRepository(trust.DevicePersistence(persistence), deviceCfg); err != nil {
		return repos, err
	}
	if repos.records, err = notification.NewRecordRepository(persistence, recordCfg); err != nil {
		return repos, err
	}
	return repos, nil
}

func main() {
	loadEnvFile()

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(-1)
	}
	slog.SetDefault(newLogger(cfg.LogFormat))

	if err := config.Validate(cfg.OTPConfig.Validator(config.IsProduction()), cfg.SMSConfig.Validator()); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(-1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool *pgxpool.Pool
	if cfg.Persistence == "postgres" || cfg.Persistence == "postgresql" {
		var err error
		pool, err = dbutils.NewDbPool(ctx, cfg.DatabaseConfig.ToDbConfig())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.DatabaseConfig.Database, "host", cfg.DatabaseConfig.Host, "port", cfg.DatabaseConfig.Port, "user", cfg.DatabaseConfig.User)
			os.Exit(-1)
		}
		defer pool.Close()

		if err := migrations.MigratePool(ctx, pool); err != nil {
			slog.Error("Failed to apply migrations", "err", err)
			os.Exit(-1)
		}
	}

	repos, err := newRepositories(cfg.Persistence, cfg.TrustConfig, pool)
	if err != nil {
		slog.Error("Failed to create repositories", "persistence", cfg.Persistence, "err", err)
		os.Exit(-1)
	}

	if cfg.RedisConfig.Enabled() {
		opt, err := redis.ParseURL(cfg.RedisConfig.URL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "err", err)
			os.Exit(-1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unreachable, system config is read through on every miss", "err", err)
		}
		repos.settings.System = settings.NewCachedSystemConfigRepository(repos.settings.System, rdb, cfg.RedisConfig.CacheTTL)
		slog.Info("System config cache enabled", "ttl", cfg.RedisConfig.CacheTTL)
	}

	resolver := settings.NewResolver(repos.settings)

	// providers
	providers := sms.NewRegistry(
		sms.NewBearerJSONProvider(cfg.SMSConfig.BearerJSONURL, sms.WithTimeout(cfg.SMSConfig.Timeout)),
		sms.NewQueryStringProvider(cfg.SMSConfig.QueryGatewayURL, sms.WithTimeout(cfg.SMSConfig.Timeout)),
	)
	pushHub := notification.NewPushHub()
	defer pushHub.Close()

	dispatcherOpts := []notification.Option{
		notification.WithPushSender(pushHub),
		notification.WithDefaultSMSProvider(cfg.SMSConfig.DefaultProvider),
		notification.WithCountryCode(cfg.SMSConfig.DefaultCountryCode),
	}
	if cfg.EmailConfig.IsConfigured() {
		emailNotifier, err := notification.NewEmailNotifier(cfg.EmailConfig.ToSMTPConfig())
		if err != nil {
			slog.Error("Failed to initialize email notifier", "err", err)
		} else {
			dispatcherOpts = append(dispatcherOpts, notification.WithEmailSender(emailNotifier))
		}
	}
	dispatcher := notification.NewDispatcher(resolver, providers, repos.records, dispatcherOpts...)

	// step-up
	otpManager := otp.NewManager(repos.otp, twofa.NewEnrollmentLookup(repos.twofa), dispatcher,
		otp.NewHMACHasher(cfg.OTPConfig.Pepper), otp.WithTTL(cfg.OTPConfig.TTL))
	go otpManager.RunCleanup(ctx, cfg.OTPConfig.CleanupInterval)

	vault := backupcode.NewVault(backupcode.NewArgon2Hasher(cfg.OTPConfig.BackupCodePepper), repos.twofa)
	registry := device.NewRegistry(repos.devices, device.WithTrustTTL(cfg.TrustConfig.TTL))
	twoFaService := twofa.NewTwoFaService(repos.twofa, otpManager, vault, registry,
		twofa.WithProfiles(repos.settings.Profiles),
		twofa.WithCountryCode(cfg.SMSConfig.DefaultCountryCode))

	attemptLimiter := ratelimit.NewMiddleware(cfg.RateLimitConfig.ToMiddlewareConfig())
	defer attemptLimiter.Stop()

	// http
	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWTConfig.Secret), nil)

	twoFaHandle := twofaapi.NewHandle(twoFaService, twofaapi.WithAttemptLimiter(attemptLimiter))
	deviceHandle := deviceapi.NewDeviceHandler(registry)
	notificationHandle := notificationapi.NewHandle(dispatcher, resolver, notificationapi.WithPushHub(pushHub))

	server.R.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-ID"},
			ExposedHeaders:   []string{"Link", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)

		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			authUser, ok := client.GetAuthUser(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			render.JSON(w, r, authUser)
		})

		r.Mount("/2fa", twofaapi.TwoFaHandler(&twoFaHandle))
		r.Mount("/devices", deviceHandle.Routes())
		r.Mount("/notifications", notificationHandle.Routes())
	})

	slog.Info("Step-up service starting",
		"persistence", cfg.Persistence,
		"otpTTL", cfg.OTPConfig.TTL,
		"trustedDevices", cfg.TrustConfig.Enabled,
		"trustTTL", cfg.TrustConfig.TTL,
		"smsProvider", cfg.SMSConfig.DefaultProvider,
		"email", cfg.EmailConfig.IsConfigured(),
		"redis", cfg.RedisConfig.Enabled(),
		"startedAt", time.Now().Format(time.RFC3339))

	server.Run()
}
