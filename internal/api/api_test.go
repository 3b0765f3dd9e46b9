package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/cache"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/gateway"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/reconcile"
)

type fakeReconciler struct {
	outcome reconcile.Outcome
	got     []reconcile.Notification
}

func (f *fakeReconciler) Reconcile(_ context.Context, n reconcile.Notification) reconcile.Outcome {
	f.got = append(f.got, n)
	return f.outcome
}

type fakePayments struct {
	body    []byte
	err     error
	calls   int
	created []gateway.PixRequest
}

func (f *fakePayments) PaymentBody(context.Context, string) ([]byte, error) {
	f.calls++
	return f.body, f.err
}

func (f *fakePayments) CreatePixPayment(_ context.Context, req gateway.PixRequest) ([]byte, error) {
	f.created = append(f.created, req)
	return f.body, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestPaymentConfirmationOutcomes(t *testing.T) {
	tests := []struct {
		outcome reconcile.Outcome
		code    int
		body    string
	}{
		{reconcile.Outcome{Kind: reconcile.KindActivated}, 200, `{"success":true}`},
		{reconcile.Outcome{Kind: reconcile.KindUnmatched}, 200, `{"warning":"Nenhuma linha atualizada. ID pode não existir."}`},
		{reconcile.Outcome{Kind: reconcile.KindRemoved}, 200, `{"deleted":true}`},
		{reconcile.Outcome{Kind: reconcile.KindIgnored}, 200, `{"ignored":true}`},
		{reconcile.Outcome{Kind: reconcile.KindPending}, 200, `{"message":"Pagamento ainda não aprovado"}`},
		{reconcile.Outcome{Kind: reconcile.KindInvalid}, 400, `{"error":"Webhook inválido"}`},
		{reconcile.Outcome{Kind: reconcile.KindUnresolved}, 400, `{"error":"subscription_id não encontrado na descrição"}`},
		{reconcile.Outcome{Kind: reconcile.KindGatewayFailure}, 500, `{"error":"Erro interno ao processar webhook"}`},
		{reconcile.Outcome{Kind: reconcile.KindStoreFailure, PaymentStatus: gateway.StatusApproved}, 500, `{"error":"Erro ao ativar assinatura"}`},
		{reconcile.Outcome{Kind: reconcile.KindStoreFailure, PaymentStatus: gateway.StatusCancelled}, 500, `{"error":"Erro ao excluir assinatura"}`},
	}

	for _, tc := range tests {
		t.Run(tc.outcome.Kind.String(), func(t *testing.T) {
			r := &fakeReconciler{outcome: tc.outcome}
			s := New(zap.NewNop(), r, &fakePayments{}, nil, nil)

			rec := do(t, s, http.MethodPost, "/api/payment-confirmation", `{"type":"payment","data":{"id":"555"}}`)

			assert.Equal(t, tc.code, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			require.Len(t, r.got, 1)
			assert.Equal(t, reconcile.Notification{Topic: "payment", PaymentID: "555"}, r.got[0])
		})
	}
}

func TestPaymentConfirmationNumericID(t *testing.T) {
	r := &fakeReconciler{outcome: reconcile.Outcome{Kind: reconcile.KindActivated}}
	s := New(zap.NewNop(), r, &fakePayments{}, nil, nil)

	rec := do(t, s, http.MethodPost, "/api/payment-confirmation", `{"type":"payment","data":{"id":123456789012}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, r.got, 1)
	assert.Equal(t, "123456789012", r.got[0].PaymentID)
}

func TestPaymentConfirmationMalformed(t *testing.T) {
	r := &fakeReconciler{}
	s := New(zap.NewNop(), r, &fakePayments{}, nil, nil)

	for _, body := range []string{
		``,
		`not json`,
		`{"type":"payment","data":{"id":{}}}`,
		`{"type":"payment","data":{}}`,
		`{"data":{"id":"555"}}`,
	} {
		rec := do(t, s, http.MethodPost, "/api/payment-confirmation", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Webhook inválido"}`, rec.Body.String())
	}
	assert.Empty(t, r.got)
}

func TestPaymentConfirmationMethodNotAllowed(t *testing.T) {
	r := &fakeReconciler{}
	s := New(zap.NewNop(), r, &fakePayments{}, nil, nil)

	rec := do(t, s, http.MethodGet, "/api/payment-confirmation", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"Método não permitido"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, r.got)
}

func TestCreatePix(t *testing.T) {
	p := &fakePayments{body: []byte(`{"id":1,"status":"pending","point_of_interaction":{"transaction_data":{"qr_code":"000201"}}}`)}
	s := New(zap.NewNop(), &fakeReconciler{}, p, nil, nil)

	rec := do(t, s, http.MethodPost, "/api/criar-pix", `{"amount":29.9,"description":"Plano subscription_id=sub-1","email":"a@b.com","cpf":"12345678909"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(p.body), rec.Body.String())
	require.Len(t, p.created, 1)
	assert.True(t, decimal.RequireFromString("29.9").Equal(p.created[0].Amount))
	assert.Equal(t, "a@b.com", p.created[0].Email)
	assert.Equal(t, "12345678909", p.created[0].CPF)
}

func TestCreatePixIncomplete(t *testing.T) {
	p := &fakePayments{}
	s := New(zap.NewNop(), &fakeReconciler{}, p, nil, nil)

	for _, body := range []string{
		`{"email":"a@b.com","cpf":"1"}`,
		`{"amount":0,"email":"a@b.com","cpf":"1"}`,
		`{"amount":10,"cpf":"1"}`,
		`{"amount":10,"email":"a@b.com"}`,
		`{"amount":10,"email":"   ","cpf":"1"}`,
		`{"amount":10,"email":"a@b.com","cpf":" "}`,
		`{"amount":-5,"email":"a@b.com","cpf":"1"}`,
		``,
		`garbage`,
	} {
		rec := do(t, s, http.MethodPost, "/api/criar-pix", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Dados incompletos"}`, rec.Body.String())
	}
	assert.Empty(t, p.created)
}

func TestCreatePixTrimsPayer(t *testing.T) {
	p := &fakePayments{body: []byte(`{"id":2}`)}
	s := New(zap.NewNop(), &fakeReconciler{}, p, nil, nil)

	rec := do(t, s, http.MethodPost, "/api/criar-pix", `{"amount":"15.50","email":"  a@b.com ","cpf":" 12345678909"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, p.created, 1)
	assert.Equal(t, "a@b.com", p.created[0].Email)
	assert.Equal(t, "12345678909", p.created[0].CPF)
}

func TestPaymentConfirmationWrongContentType(t *testing.T) {
	r := &fakeReconciler{}
	s := New(zap.NewNop(), r, &fakePayments{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/payment-confirmation", strings.NewReader(`{"type":"payment","data":{"id":"555"}}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Webhook inválido"}`, rec.Body.String())
	assert.Empty(t, r.got)
}

func TestCreatePixGatewayFailure(t *testing.T) {
	p := &fakePayments{err: gateway.Error.Wrap(&gateway.StatusError{StatusCode: 400, Body: []byte(`{"message":"invalid cpf"}`)})}
	s := New(zap.NewNop(), &fakeReconciler{}, p, nil, nil)

	rec := do(t, s, http.MethodPost, "/api/criar-pix", `{"amount":"10.00","email":"a@b.com","cpf":"1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Erro ao gerar pagamento PIX","details":{"message":"invalid cpf"}}`, rec.Body.String())
}

func TestPaymentStatus(t *testing.T) {
	p := &fakePayments{body: []byte(`{"id":555,"status":"approved"}`)}
	s := New(zap.NewNop(), &fakeReconciler{}, p, nil, nil)

	rec := do(t, s, http.MethodGet, "/api/consultar-pix?paymentId=555", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":555,"status":"approved"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodGet, "/api/consultar-pix", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"ID do pagamento é obrigatório"}`, rec.Body.String())

	rec = do(t, s, http.MethodOptions, "/api/consultar-pix", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentStatusErrors(t *testing.T) {
	p := &fakePayments{err: fmt.Errorf("payment 1: %w", gateway.ErrPaymentNotFound)}
	s := New(zap.NewNop(), &fakeReconciler{}, p, nil, nil)

	rec := do(t, s, http.MethodGet, "/api/consultar-pix?paymentId=1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	p.err = gateway.Error.New("do request: timeout")
	rec = do(t, s, http.MethodGet, "/api/consultar-pix?paymentId=1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Erro ao consultar pagamento")
}

func TestPaymentStatusCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	p := &fakePayments{body: []byte(`{"id":555,"status":"pending"}`)}
	s := New(zap.NewNop(), &fakeReconciler{}, p, cache.NewPaymentCache(rdb, time.Minute), nil)

	for i := 0; i < 3; i++ {
		rec := do(t, s, http.MethodGet, "/api/consultar-pix?paymentId=555", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":555,"status":"pending"}`, rec.Body.String())
	}
	assert.Equal(t, 1, p.calls)
}

func TestHealth(t *testing.T) {
	s := New(zap.NewNop(), &fakeReconciler{}, &fakePayments{}, nil, fakePinger{})
	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s = New(zap.NewNop(), &fakeReconciler{}, &fakePayments{}, nil, fakePinger{err: errors.New("down")})
	rec = do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
