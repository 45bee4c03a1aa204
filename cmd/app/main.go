package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/external/daraja"
	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/config"
	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/db"
	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/repository"
	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/services"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// ======================
	// INFRA
	// ======================
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	// ======================
	// EXTERNALS
	// ======================
	gateway := daraja.NewClient(
		cfg.DarajaBaseURL,
		cfg.ConsumerKey,
		cfg.ConsumerSecret,
		cfg.ShortCode,
		cfg.PassKey,
		cfg.CallbackBaseURL+"/sync-hub/payments/callback",
	)

	cipher, err := services.NewPhoneCipher(cfg.PhoneCipherKey)
	if err != nil {
		log.Fatal(err)
	}

	// ======================
	// REPOSITORIES
	// ======================
	paymentRepo := repository.NewPaymentRepository(pool)
	callbackRepo := repository.NewCallbackRepository(pool)
	planRepo := repository.NewPlanRepository(pool)
	orgRepo := repository.NewOrganizationRepository(pool)

	// ======================
	// SERVICES
	// ======================
	paymentSvc := services.NewPaymentService(
		paymentRepo,
		planRepo,
		gateway,
		cipher,
		cfg.CallbackBaseURL+"/sync-hub/payments/confirmation",
		cfg.CallbackBaseURL+"/sync-hub/payments/validation",
	)
	callbackSvc := services.NewCallbackService(
		paymentRepo,
		callbackRepo,
		planRepo,
		orgRepo,
		cfg.WebhookSecret,
		cfg.MetadataPolicy,
	)

	// ======================
	// ECHO
	// ======================
	e := echo.New()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	api := e.Group("/sync-hub")

	// ======================
	// ROUTES (ONLY REGISTRATION)
	// ======================
	registerPaymentRoutes(api, paymentSvc, callbackSvc, []byte(cfg.JWTSecret))

	// ======================
	// SERVER
	// ======================
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return e.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
