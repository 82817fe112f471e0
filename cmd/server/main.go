package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/mailer"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/pdf"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/router"
	"github.com/iliyamo/hotel-reservation/internal/scheduler"
	"github.com/iliyamo/hotel-reservation/internal/service"
	"github.com/iliyamo/hotel-reservation/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User:           cfg.DB.User,
		Pass:           cfg.DB.Pass,
		Host:           cfg.DB.Host,
		Port:           cfg.DB.Port,
		Name:           cfg.DB.Name,
		MaxOpen:        cfg.DB.MaxOpen,
		MaxIdle:        cfg.DB.MaxIdle,
		AcquireTimeout: cfg.DB.AcquireTimeout,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DB.Migrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatalf("database: %v", err)
		}
		log.Printf("database: schema applied")
	}

	rdb := config.NewRedisClient(config.LoadRedisOptions())
	if rdb != nil {
		defer rdb.Close()
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		// vouchers need the store; invoices degrade to no document
		log.Fatalf("storage: %v", err)
	}
	sender, err := newSender(ctx, cfg.Mail)
	if err != nil {
		log.Fatalf("mailer: %v", err)
	}
	publisher := queue.NewAMQPPublisher(cfg.Queue.URL, cfg.Queue.Name)

	repos := service.NewRepos(db.SQL)
	invoices := service.NewInvoiceService(db, repos, service.InvoiceDeps{
		Store:     store,
		Renderer:  pdf.FPDF{},
		Publisher: publisher,
		Issuer: pdf.Issuer{
			Name:    cfg.Hotel.Name,
			TaxID:   cfg.Hotel.TaxID,
			Address: cfg.Hotel.Address,
			Email:   cfg.Hotel.Email,
		},
		StorageTimeout: cfg.Storage.Timeout,
	})
	reservations := service.NewReservationService(db, repos, invoices, publisher)
	vouchers := service.NewVoucherService(db, repos, reservations, store, publisher, cfg.Storage.Timeout)
	accounts := service.NewAccountService(db, repos, publisher, service.AccountConfig{
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: time.Duration(cfg.SessionTTLHours) * time.Hour,
		BcryptCost: cfg.BcryptCost,
	})
	catalog := service.NewCatalogService(db, repos)
	availability := service.NewAvailabilityService(repos)
	stats := service.NewStatsService(repos)

	if cfg.Queue.Consumers {
		consumer := queue.NewConsumer(cfg.Queue.URL, cfg.Queue.Name, sender, cfg.Hotel.Name, cfg.Mail.Timeout)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("notify-consumer: stopped: %v", err)
			}
		}()
	}

	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(scheduler.Config{
			DocumentRetry: cfg.Schedule.DocumentRetry,
			SessionPurge:  cfg.Schedule.SessionPurge,
		}, invoices, accounts)
		if err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				log.Printf("scheduler: shutdown: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.Validator{}
	e.HTTPErrorHandler = handler.ErrorHandler(cfg.Prod())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("http: %s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			log.Printf("http: %s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(echomw.BodyLimit("12M"))

	timeout := cfg.RequestTimeout
	var redisPing handler.PingFunc
	if rdb != nil {
		redisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	rl := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()

	router.Register(e, router.Handlers{
		Health:       handler.NewHealthHandler(db.Ping, redisPing),
		Auth:         handler.NewAuthHandler(accounts, cfg.CookieSecure, timeout),
		Clients:      handler.NewClientHandler(accounts, timeout),
		Users:        handler.NewUserHandler(accounts, timeout),
		Catalog:      handler.NewCatalogHandler(catalog, availability, timeout),
		Reservations: handler.NewReservationHandler(reservations, timeout),
		Vouchers:     handler.NewVoucherHandler(vouchers, timeout),
		Invoices:     handler.NewInvoiceHandler(invoices, timeout),
		Stats:        handler.NewStatsHandler(stats, timeout),
	}, router.Middleware{
		Session:     middleware.SessionAuth(accounts),
		RateLimit:   middleware.NewTokenBucket(rl, rdb),
		StrictLimit: middleware.NewTokenBucket(rl.Strict(), rdb),
		Cache:       middleware.NewRedisCache(cacheCfg, rdb),
		Invalidate:  middleware.InvalidateOnWrite(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

// newStore builds the configured file store.
func newStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3PresignTTL), nil
	default:
		return storage.NewDriveStore(ctx, storage.DriveConfig{
			ClientID:     cfg.DriveClientID,
			ClientSecret: cfg.DriveClientSecret,
			RefreshToken: cfg.DriveRefreshToken,
			RootFolder:   cfg.DriveRootFolder,
		})
	}
}

// newSender builds the configured email sender.  "log" only prints.
func newSender(ctx context.Context, cfg config.MailConfig) (mailer.Sender, error) {
	switch cfg.Driver {
	case "smtp":
		return mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.From,
			FromName: cfg.FromName,
			Timeout:  cfg.Timeout,
		})
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return mailer.NewSESSender(ses.NewFromConfig(awsCfg), cfg.From, cfg.FromName), nil
	default:
		return mailer.LogSender{}, nil
	}
}
