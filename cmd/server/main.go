package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"carpool/internal/app"
	"carpool/internal/config"
	"carpool/internal/geo"
	"carpool/internal/handler"
	"carpool/internal/logger"
	"carpool/internal/payment"
	"carpool/internal/push"
	internalRedis "carpool/internal/redis"
	"carpool/internal/repository/postgres"
	"carpool/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	dispatcher := newDispatcher(ctx, cfg.Push, log)
	queue := service.NewNotificationQueue(dispatcher, cfg.Push.QueueSize, log.WithField("component", "notifications"))

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		queue.Run(workerCtx)
	}()

	server, err := wireServer(db, redisClient, nrApp, queue, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to wire server")
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	// Deliver what is still queued before exiting.
	queue.Close()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		stopWorker()
		<-workerDone
	}
	stopWorker()

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	log.Info("server exited")
}

func newDispatcher(ctx context.Context, cfg config.PushConfig, log *logrus.Logger) service.Dispatcher {
	if cfg.FirebaseCredentialsFile == "" {
		log.Warn("Firebase not configured, notifications are logged only")
		return push.NewLogDispatcher(log)
	}
	d, err := push.NewFCMDispatcher(ctx, cfg.FirebaseCredentialsFile)
	if err != nil {
		log.WithError(err).Warn("failed to initialize Firebase, notifications are logged only")
		return push.NewLogDispatcher(log)
	}
	return d
}

// newPaymentGateway picks how capture callbacks are verified: against Stripe when a
// key is configured, otherwise by the gateway's webhook signature.
func newPaymentGateway(cfg config.PaymentConfig, log *logrus.Logger) (service.CaptureVerifier, service.Refunder, error) {
	if cfg.StripeSecretKey != "" {
		gw := payment.NewStripeGateway(cfg.StripeSecretKey)
		return gw, gw, nil
	}
	if cfg.WebhookSecret == "" || cfg.WebhookSecret == cfg.SigningSecret {
		return nil, nil, errors.New("payment callbacks need STRIPE_SECRET_KEY or a PAYMENT_WEBHOOK_SECRET distinct from PAYMENT_SIGNING_SECRET")
	}
	log.Warn("Stripe not configured, refunds are logged only")
	return payment.NewCallbackVerifier(cfg.WebhookSecret), payment.NewLogRefunder(log), nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, events service.Publisher, cfg *config.Config, log *logrus.Logger) (*http.Server, error) {
	store := postgres.NewStore(db)
	locationStore := internalRedis.NewLocationStore(redisClient)
	rideCache := internalRedis.NewRideCache(redisClient)

	geoProvider, err := geo.NewGoogleProvider(cfg.Maps.APIKey)
	if err != nil {
		return nil, err
	}

	captures, refunder, err := newPaymentGateway(cfg.Payment, log)
	if err != nil {
		return nil, err
	}
	signer := payment.NewHMACSigner(cfg.Payment.SigningSecret)

	fees := service.FeePolicy{
		PassengerFeeRate:     cfg.Fees.PassengerFeeRate,
		DefaultDriverFeeRate: cfg.Fees.DefaultDriverFeeRate,
		BaseFare:             cfg.Fees.BaseFare,
		PerKmRate:            cfg.Fees.PerKmRate,
		MinPricePerSeat:      cfg.Fees.MinPricePerSeat,
		PickupFee:            cfg.Fees.PickupFee,
		LateCancelPenalty:    cfg.Fees.LateCancelPenalty,
	}

	settlement := service.NewSettlementEngine(fees, time.Now, log.WithField("component", "settlement"))
	vouchers := service.NewVoucherValidator(time.Now)

	rideService := service.NewRideService(service.RideDeps{
		Store:      store,
		Fees:       fees,
		Settlement: settlement,
		Geo:        geoProvider,
		Locations:  locationStore,
		Cache:      rideCache,
		Events:     events,
		Log:        log.WithField("component", "rides"),
	})
	bookingService := service.NewBookingService(service.BookingDeps{
		Store:      store,
		Fees:       fees,
		Vouchers:   vouchers,
		Settlement: settlement,
		Signer:     signer,
		Captures:   captures,
		Refunder:   refunder,
		Events:     events,
		Log:        log.WithField("component", "bookings"),
	})
	voucherService := service.NewVoucherService(store, vouchers)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(rideService),
		BookingHandler: handler.NewBookingHandler(bookingService),
		DriverHandler:  handler.NewDriverHandler(rideService),
		PaymentHandler: handler.NewPaymentHandler(bookingService),
		UserHandler:    handler.NewUserHandler(bookingService, voucherService),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		JWTSecret:      cfg.Auth.JWTSecret,
		Logger:         log,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, nil
}
