package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/external/daraja"
	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/middleware"
	"github.com/PETERMUTWIRI/mut-sync-hub-sub001/internal/services"

	"github.com/labstack/echo/v4"
)

// SignatureHeader carries the HMAC of the raw callback body.
const SignatureHeader = "X-Callback-Signature"

type initiateRequest struct {
	Amount      int64  `json:"amount"`
	Phone       string `json:"phone"`
	PlanID      int64  `json:"plan_id"`
	Description string `json:"description"`
}

func registerPaymentRoutes(
	g *echo.Group,
	ps *services.PaymentService,
	cs *services.CallbackService,
	jwtSecret []byte,
) {
	p := g.Group("/payments")

	// ============================
	// GATEWAY CALLBACK
	// (NO JWT, must be public)
	// ============================
	p.POST("/callback", func(c echo.Context) error {
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
		}

		err = cs.HandleCallback(
			c.Request().Context(),
			raw,
			c.Request().Header.Get(SignatureHeader),
		)

		if errors.Is(err, services.ErrInvalidSignature) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
		}
		if err != nil {
			// IMPORTANT:
			// once the signature verified, answer 200 or the gateway
			// redelivers forever; reconciliation is replayable anyway
			c.Logger().Errorf("callback rejected: %v", err)
			return c.JSON(http.StatusOK, echo.Map{
				"status": "ignored",
				"reason": err.Error(),
			})
		}

		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	// ============================
	// CALLER-FACING OPERATIONS
	// (JWT protected)
	// ============================
	p.Use(middleware.JWTMiddleware(jwtSecret))

	p.POST("", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		var req initiateRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
		}

		payment, err := ps.InitiatePayment(
			c.Request().Context(),
			cl.UserID,
			cl.OrgID,
			req.Amount,
			req.Phone,
			req.PlanID,
			req.Description,
		)
		if err != nil {
			return paymentError(c, err)
		}

		return c.JSON(http.StatusCreated, payment)
	})

	p.GET("/usage", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		usage, err := ps.GetUsage(c.Request().Context(), cl.OrgID)
		if err != nil {
			return paymentError(c, err)
		}
		return c.JSON(http.StatusOK, usage)
	})

	p.GET("", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		payments, err := ps.ListPayments(c.Request().Context(), cl.UserID)
		if err != nil {
			return paymentError(c, err)
		}
		return c.JSON(http.StatusOK, payments)
	})

	p.GET("/:paymentId", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		payment, err := ps.GetPaymentForPayer(c.Request().Context(), c.Param("paymentId"), cl.UserID)
		if err != nil {
			return paymentError(c, err)
		}
		return c.JSON(http.StatusOK, payment)
	})

	p.POST("/:paymentId/retry", func(c echo.Context) error {
		cl := middleware.GetClaims(c)
		if cl == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
		}

		payment, err := ps.RetryPaymentForPayer(c.Request().Context(), c.Param("paymentId"), cl.UserID)
		if err != nil {
			return paymentError(c, err)
		}
		return c.JSON(http.StatusOK, payment)
	})

	// ============================
	// ADMIN
	// ============================
	p.POST("/register-urls", middleware.AdminOnly(func(c echo.Context) error {
		if err := ps.RegisterCallbackURLs(c.Request().Context()); err != nil {
			return paymentError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "registered"})
	}))

	p.POST("/:paymentId/cancel", middleware.AdminOnly(func(c echo.Context) error {
		if err := ps.CancelPayment(c.Request().Context(), c.Param("paymentId")); err != nil {
			return paymentError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "cancelled"})
	}))
}

// paymentError maps service and gateway errors to HTTP statuses so callers
// can branch on status codes instead of matching strings.
func paymentError(c echo.Context, err error) error {
	var (
		validationErr *daraja.ValidationError
		circuitErr    *daraja.CircuitOpenError
		authErr       *daraja.AuthError
		httpErr       *daraja.HTTPError
	)

	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, services.ErrLimitExceeded):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
	case errors.Is(err, services.ErrActivePaymentExists),
		errors.Is(err, services.ErrRetryExhausted):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, services.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.As(err, &circuitErr):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	case errors.As(err, &authErr), errors.As(err, &httpErr):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}
