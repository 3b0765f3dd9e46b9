package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/gateway"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/reconcile"
)

// paymentID accepts both the string and the numeric form the gateway uses
// for data.id.
type paymentID string

func (p *paymentID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = paymentID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = paymentID(n.String())
	return nil
}

type webhookRequest struct {
	Type string `json:"type" validate:"required"`
	Data struct {
		ID paymentID `json:"id" validate:"required"`
	} `json:"data"`
}

// PaymentConfirmation receives gateway payment notifications. Anything that
// retrying cannot fix is answered with 2xx or 400 so the gateway stops
// redelivering; only transient failures get a 500.
func (s *Server) PaymentConfirmation(c echo.Context) error {
	var req webhookRequest
	if err := bindValidate(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, response{Error: "Webhook inválido"})
	}

	outcome := s.reconciler.Reconcile(c.Request().Context(), reconcile.Notification{
		Topic:     req.Type,
		PaymentID: string(req.Data.ID),
	})

	code, body := outcomeResponse(outcome)
	return c.JSON(code, body)
}

func outcomeResponse(o reconcile.Outcome) (int, response) {
	switch o.Kind {
	case reconcile.KindInvalid:
		return http.StatusBadRequest, response{Error: "Webhook inválido"}
	case reconcile.KindIgnored:
		return http.StatusOK, response{Ignored: true}
	case reconcile.KindUnresolved:
		return http.StatusBadRequest, response{Error: "subscription_id não encontrado na descrição"}
	case reconcile.KindActivated:
		return http.StatusOK, response{Success: true}
	case reconcile.KindUnmatched:
		return http.StatusOK, response{Warning: "Nenhuma linha atualizada. ID pode não existir."}
	case reconcile.KindRemoved:
		return http.StatusOK, response{Deleted: true}
	case reconcile.KindPending:
		return http.StatusOK, response{Message: "Pagamento ainda não aprovado"}
	case reconcile.KindStoreFailure:
		if o.PaymentStatus == gateway.StatusApproved {
			return http.StatusInternalServerError, response{Error: "Erro ao ativar assinatura"}
		}
		return http.StatusInternalServerError, response{Error: "Erro ao excluir assinatura"}
	default:
		return http.StatusInternalServerError, response{Error: "Erro interno ao processar webhook"}
	}
}
