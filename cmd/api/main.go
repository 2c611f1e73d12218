package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anjiri1684/companion_booking/cache"
	config "github.com/anjiri1684/companion_booking/configs"
	"github.com/anjiri1684/companion_booking/database"
	"github.com/anjiri1684/companion_booking/handlers"
	"github.com/anjiri1684/companion_booking/jobs"
	"github.com/anjiri1684/companion_booking/logger"
	"github.com/anjiri1684/companion_booking/notifications"
	"github.com/anjiri1684/companion_booking/payments"
	"github.com/anjiri1684/companion_booking/routes"
	"github.com/anjiri1684/companion_booking/services"
	"github.com/anjiri1684/companion_booking/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		logger.Log.Error("🔥 Invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.ConnectDB(settings)
	if err != nil {
		logger.Log.Error("🔥 Failed to connect to database", "error", err)
		os.Exit(1)
	}
	database.DB = db
	if err := database.Migrate(db); err != nil {
		logger.Log.Error("🔥 Failed to migrate database", "error", err)
		os.Exit(1)
	}
	if err := database.SeedAdmin(db, settings); err != nil {
		logger.Log.Error("🔥 Failed to seed admin", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	sinks := []notifications.Sink{notifications.LogSink{}, hub}
	if brevo := notifications.NewBrevoService(settings.BrevoAPIKey, settings.EmailSender, settings.EmailSenderName); brevo != nil {
		sinks = append(sinks, &notifications.EmailSink{DB: db, Brevo: brevo})
	}
	if settings.AMQPURL != "" {
		publisher, err := notifications.NewPublisher(settings.AMQPURL, settings.AMQPExchange)
		if err != nil {
			logger.Log.Warn("RabbitMQ unavailable, notification intents will not be published", "error", err)
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
		}
	}
	dispatcher := notifications.NewDispatcher(256, sinks...)
	defer dispatcher.Close()

	var paypal *payments.PayPalClient
	gateway := payments.NewRouter(payments.ProviderPayPal)
	if settings.PayPalClientID != "" {
		paypal = payments.NewPayPalClient(settings.PayPalAPIBaseURL, settings.PayPalClientID, settings.PayPalClientSecret)
		gateway.Register(payments.ProviderPayPal, paypal)
	}
	if settings.KCBAPIKey != "" {
		httpClient := &http.Client{Timeout: 30 * time.Second}
		gateway.Register(payments.ProviderMpesa, &payments.MpesaClient{
			BaseURL:         settings.KCBBaseURL,
			AccountNumber:   settings.KCBAccountNumber,
			RouteCode:       settings.KCBRouteCode,
			TransactionDesc: settings.KCBTransactionDesc,
			CallbackURL:     settings.WebhookBaseURL + "/api/v1/payments/webhook",
			Tokens: &payments.KCBTokenSource{
				TokenURL:  settings.KCBTokenURL,
				APIKey:    settings.KCBAPIKey,
				APISecret: settings.KCBAPISecret,
				HTTP:      httpClient,
			},
			HTTP: httpClient,
		})
	}

	var guard services.SubmissionGuard
	if settings.RedisURL != "" {
		client, err := cache.Connect(ctx, settings.RedisURL)
		if err != nil {
			logger.Log.Warn("Redis unavailable, payout duplicate checks fall back to the database", "error", err)
		} else {
			defer client.Close()
			guard = cache.NewRedisSubmissionGuard(client)
		}
	}

	var receipts services.ReceiptGenerator
	if settings.CloudinaryURL != "" {
		pdf, err := services.NewPDFReceipts(settings.CloudinaryURL)
		if err != nil {
			logger.Log.Warn("Cloudinary unavailable, payout receipts disabled", "error", err)
		} else {
			receipts = pdf
		}
	}

	opts := services.OptionsFromSettings(settings)
	identity := services.NewStoredIdentity(db)
	credits := services.NewCreditService(db, dispatcher, opts)
	bookings := services.NewBookingService(db, gateway, dispatcher, identity, opts)

	deps := handlers.Deps{
		Settings:     settings,
		Accounts:     services.NewAccountService(db, credits),
		Availability: services.NewAvailabilityService(db, identity, opts),
		Bookings:     bookings,
		Ledger:       services.NewLedgerService(db),
		Credits:      credits,
		Payouts:      services.NewPayoutService(db, dispatcher, guard, receipts, opts),
		Disputes:     services.NewDisputeService(db, dispatcher, opts),
		Hub:          hub,
	}
	if paypal != nil {
		deps.PayPal = paypal
	}
	h := handlers.New(deps)

	c := cron.New()
	if err := jobs.Schedule(c, bookings, settings.EnableSweeper); err != nil {
		logger.Log.Error("🔥 Failed to schedule jobs", "error", err)
		os.Exit(1)
	}
	c.Start()
	// runs before dispatcher.Close so in-flight jobs can still enqueue
	defer jobs.Stop(c)
	logger.Log.Info("✅ Booking jobs scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "Companion Booking",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Log.Warn("request error", "error", err, "path", c.Path(), "method", c.Method())
			return handlers.ErrorHandler(c, err)
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Idempotency-Key, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization, Idempotent-Replayed",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   settings.PlatformTimezone,
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Companion Booking API",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	routes.Setup(app, h)

	go func() {
		<-ctx.Done()
		logger.Log.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("shutdown", "error", err)
		}
	}()

	logger.Log.Info("✅ Server is running", "port", settings.Port)
	if err := app.Listen(":" + settings.Port); err != nil {
		logger.Log.Error("🔥 Server failed to start", "error", err)
	}
}
