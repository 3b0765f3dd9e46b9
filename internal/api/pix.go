package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/gateway"
)

type createPixRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Email       string          `json:"email" validate:"required"`
	CPF         string          `json:"cpf" validate:"required"`
}

// UnmarshalJSON trims the payer fields so blank values fail validation.
func (r *createPixRequest) UnmarshalJSON(b []byte) error {
	type plain createPixRequest
	if err := json.Unmarshal(b, (*plain)(r)); err != nil {
		return err
	}
	r.Email = strings.TrimSpace(r.Email)
	r.CPF = strings.TrimSpace(r.CPF)
	return nil
}

func (s *Server) CreatePix(c echo.Context) error {
	var req createPixRequest
	if err := bindValidate(c, &req); err != nil || !req.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, response{Error: "Dados incompletos"})
	}

	body, err := s.payments.CreatePixPayment(c.Request().Context(), gateway.PixRequest{
		Amount:      req.Amount,
		Description: req.Description,
		Email:       req.Email,
		CPF:         req.CPF,
	})
	if err != nil {
		s.log.Error("create pix payment", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, response{
			Error:   "Erro ao gerar pagamento PIX",
			Details: errorDetails(err),
		})
	}

	return c.JSONBlob(http.StatusOK, body)
}

func (s *Server) PaymentStatus(c echo.Context) error {
	ctx := c.Request().Context()
	id := strings.TrimSpace(c.QueryParam("paymentId"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, response{Error: "ID do pagamento é obrigatório"})
	}

	if s.cache != nil {
		body, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn("payment cache get", zap.String("payment_id", id), zap.Error(err))
		}
		if ok {
			return c.JSONBlob(http.StatusOK, body)
		}
	}

	body, err := s.payments.PaymentBody(ctx, id)
	if errors.Is(err, gateway.ErrPaymentNotFound) {
		return c.JSON(http.StatusNotFound, response{Error: "Pagamento não encontrado"})
	}
	if err != nil {
		s.log.Error("fetch payment", zap.String("payment_id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, response{
			Error:   "Erro ao consultar pagamento",
			Details: errorDetails(err),
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, id, body); err != nil {
			s.log.Warn("payment cache set", zap.String("payment_id", id), zap.Error(err))
		}
	}
	return c.JSONBlob(http.StatusOK, body)
}

// errorDetails exposes the upstream body when the gateway sent one.
func errorDetails(err error) any {
	var se *gateway.StatusError
	if errors.As(err, &se) {
		if json.Valid(se.Body) {
			return json.RawMessage(se.Body)
		}
		return string(se.Body)
	}
	return err.Error()
}
