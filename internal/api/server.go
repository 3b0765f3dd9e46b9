package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gopkg.in/go-playground/validator.v9"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/gateway"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/reconcile"
)

type Reconciler interface {
	Reconcile(ctx context.Context, n reconcile.Notification) reconcile.Outcome
}

type Payments interface {
	PaymentBody(ctx context.Context, paymentID string) ([]byte, error)
	CreatePixPayment(ctx context.Context, req gateway.PixRequest) ([]byte, error)
}

type PaymentCache interface {
	Get(ctx context.Context, paymentID string) ([]byte, bool, error)
	Set(ctx context.Context, paymentID string, body []byte) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	log        *zap.Logger
	reconciler Reconciler
	payments   Payments
	cache      PaymentCache
	db         Pinger
}

// New wires the HTTP surface. cache and db may be nil.
func New(
	logger *zap.Logger,
	reconciler Reconciler,
	payments Payments,
	cache PaymentCache,
	db Pinger,
) *Server {
	return &Server{
		log:        logger.Named("api"),
		reconciler: reconciler,
		payments:   payments,
		cache:      cache,
		db:         db,
	}
}

func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler
	e.Validator = newValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(Logger(s.log))
	e.Use(allowAnyOrigin)

	s.Register(e)
	return e
}

func (s *Server) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/payment-confirmation", s.PaymentConfirmation)
	api.POST("/criar-pix", s.CreatePix)
	api.GET("/consultar-pix", s.PaymentStatus)

	e.GET("/healthz", s.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

type Validator struct {
	validate *validator.Validate
}

func newValidator() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func bindValidate(c echo.Context, i interface{}) error {
	if err := c.Bind(i); err != nil {
		return err
	}
	return c.Validate(i)
}

type response struct {
	Success bool   `json:"success,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Ignored bool   `json:"ignored,omitempty"`
	Warning string `json:"warning,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Erro interno"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if code == http.StatusMethodNotAllowed {
		msg = "Método não permitido"
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, response{Error: msg})
	}
	if err != nil {
		s.log.Error("write error response", zap.Error(err))
	}
}

// allowAnyOrigin sets an open CORS policy on every response, with or
// without an Origin header, and answers preflight requests itself.
func allowAnyOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set(echo.HeaderAccessControlAllowOrigin, "*")
		if c.Request().Method == http.MethodOptions {
			h.Set(echo.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")
			h.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")
			return c.NoContent(http.StatusOK)
		}
		return next(c)
	}
}

func (s *Server) Health(c echo.Context) error {
	if s.db != nil {
		if err := s.db.Ping(c.Request().Context()); err != nil {
			s.log.Error("health check", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
