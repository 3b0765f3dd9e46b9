package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingChannel struct {
	calls atomic.Int32
	err   error
	panic bool
}

func (c *countingChannel) Name() string { return "counting" }

func (c *countingChannel) Send(ctx context.Context, msg Message) error {
	c.calls.Add(1)
	if c.panic {
		panic("boom")
	}
	return c.err
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), time.Second)

	failing := &countingChannel{err: errors.New("provider down")}
	panicking := &countingChannel{panic: true}
	ok := &countingChannel{}

	d.Notify(context.Background(), failing, Message{Recipient: "a@b.com"})
	d.Notify(context.Background(), panicking, Message{})
	d.Notify(context.Background(), ok, Message{})
	d.Wait()

	assert.Equal(t, int32(1), failing.calls.Load())
	assert.Equal(t, int32(1), panicking.calls.Load())
	assert.Equal(t, int32(1), ok.calls.Load())
}

type ctxChannel struct {
	errc chan error
}

func (c *ctxChannel) Name() string { return "ctx" }

func (c *ctxChannel) Send(ctx context.Context, msg Message) error {
	time.Sleep(20 * time.Millisecond)
	c.errc <- ctx.Err()
	return nil
}

func TestDispatcherDetachesFromCaller(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), time.Second)
	ch := &ctxChannel{errc: make(chan error, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, ch, Message{})
	cancel()
	d.Wait()

	assert.NoError(t, <-ch.errc)
}

func TestBrevoSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/smtp/email", r.URL.Path)
		assert.Equal(t, "brevo-key", r.Header.Get("api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(3), body["templateId"])
		assert.Equal(t, []any{map[string]any{"email": "a@b.com"}}, body["to"])
		assert.Equal(t, map[string]any{"name": "Qartinha", "email": "contato@qartinha.com.br"}, body["sender"])
		assert.Equal(t, body["sender"], body["replyTo"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId":"<1@smtp>"}`))
	}))
	defer srv.Close()

	b := NewBrevo(BrevoConfig{
		BaseURL:     srv.URL,
		APIKey:      "brevo-key",
		TemplateID:  3,
		SenderName:  "Qartinha",
		SenderEmail: "contato@qartinha.com.br",
	})

	require.NoError(t, b.Send(context.Background(), Message{Recipient: "a@b.com"}))
}

func TestBrevoErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"unauthorized"}`))
	}))
	defer srv.Close()

	b := NewBrevo(BrevoConfig{BaseURL: srv.URL})

	err := b.Send(context.Background(), Message{Recipient: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	assert.Error(t, b.Send(context.Background(), Message{}))
}

func TestCallMeBotSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/whatsapp.php", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "554400000000", q.Get("phone"))
		assert.Equal(t, "bot-key", q.Get("apikey"))
		assert.Equal(t, "✅ Nova assinatura confirmada!\nPlano: X & Y", q.Get("text"))
	}))
	defer srv.Close()

	c := NewCallMeBot(CallMeBotConfig{BaseURL: srv.URL + "/", APIKey: "bot-key", Phone: "554400000000"})

	require.NoError(t, c.Send(context.Background(), Message{Text: "✅ Nova assinatura confirmada!\nPlano: X & Y"}))
}

func TestCallMeBotFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCallMeBot(CallMeBotConfig{BaseURL: srv.URL, Phone: "1"})
	assert.Error(t, c.Send(context.Background(), Message{Text: "x"}))
}
