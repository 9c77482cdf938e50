package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	appfee "github.com/feeledger/backend/internal/application/fee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingDispatcher struct {
	sent []appfee.Notification
	err  error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, n appfee.Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func receipt() appfee.Notification {
	return appfee.Notification{
		Audience:  appfee.AudienceGuardian,
		Kind:      appfee.KindReceipt,
		Recipient: "guardian@example.com",
		Subject:   "Fee receipt COUNTER_20260301090000_ABCD1234",
		Body:      "Payment received for Ayu.",
		Payload:   map[string]any{"reference": "COUNTER_20260301090000_ABCD1234"},
	}
}

func TestLogDispatcher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewLogDispatcher(zap.New(core))

	require.NoError(t, d.Dispatch(context.Background(), receipt()))

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	assert.Equal(t, appfee.KindReceipt, entries[0].ContextMap()["kind"])
	assert.Equal(t, "guardian@example.com", entries[0].ContextMap()["recipient"])
}

func TestMultiDispatcher(t *testing.T) {
	first := &recordingDispatcher{err: errors.New("smtp down")}
	second := &recordingDispatcher{}
	m := NewMultiDispatcher(first, nil, second)

	err := m.Dispatch(context.Background(), receipt())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, first.sent, 1)
	assert.Len(t, second.sent, 1, "a failing dispatcher does not stop the others")

	assert.NoError(t, NewMultiDispatcher().Dispatch(context.Background(), receipt()))
}

type capturedMail struct {
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
		Subject string `json:"subject"`
	} `json:"personalizations"`
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func newSendGridServer(t *testing.T, status int) (*httptest.Server, *[]capturedMail) {
	t.Helper()
	var mails []capturedMail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var m capturedMail
		assert.NoError(t, json.Unmarshal(body, &m))
		mails = append(mails, m)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &mails
}

func TestSendGridMailer_Dispatch(t *testing.T) {
	srv, mails := newSendGridServer(t, http.StatusAccepted)
	mailer, err := NewSendGridMailer(SendGridConfig{
		APIKey:        "SG.test",
		FromAddress:   "fees@school.example",
		FromName:      "School Fee Office",
		OfficeAddress: "office@school.example",
		Host:          srv.URL,
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, mailer.Dispatch(context.Background(), receipt()))

	office := receipt()
	office.Audience = appfee.AudienceOffice
	office.Recipient = ""
	require.NoError(t, mailer.Dispatch(context.Background(), office))

	require.Len(t, *mails, 2)
	first := (*mails)[0]
	assert.Equal(t, "fees@school.example", first.From.Email)
	assert.Equal(t, "School Fee Office", first.From.Name)
	require.Len(t, first.Personalizations, 1)
	assert.Equal(t, "guardian@example.com", first.Personalizations[0].To[0].Email)
	assert.Equal(t, "Fee receipt COUNTER_20260301090000_ABCD1234", first.Personalizations[0].Subject)
	require.Len(t, first.Content, 1)
	assert.Equal(t, "text/plain", first.Content[0].Type)
	assert.Equal(t, "office@school.example", (*mails)[1].Personalizations[0].To[0].Email)
}

func TestSendGridMailer_SkipsWithoutAddress(t *testing.T) {
	srv, mails := newSendGridServer(t, http.StatusAccepted)
	mailer, err := NewSendGridMailer(SendGridConfig{APIKey: "SG.test", FromAddress: "fees@school.example", Host: srv.URL}, nil)
	require.NoError(t, err)

	office := receipt()
	office.Audience = appfee.AudienceOffice
	office.Recipient = ""
	require.NoError(t, mailer.Dispatch(context.Background(), office))
	assert.Empty(t, *mails)
}

func TestSendGridMailer_ErrorStatus(t *testing.T) {
	srv, _ := newSendGridServer(t, http.StatusUnauthorized)
	mailer, err := NewSendGridMailer(SendGridConfig{APIKey: "SG.test", FromAddress: "fees@school.example", Host: srv.URL}, nil)
	require.NoError(t, err)

	err = mailer.Dispatch(context.Background(), receipt())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewSendGridMailer_Validation(t *testing.T) {
	_, err := NewSendGridMailer(SendGridConfig{FromAddress: "a@b.c"}, nil)
	assert.Error(t, err)
	_, err = NewSendGridMailer(SendGridConfig{APIKey: "SG.x"}, nil)
	assert.Error(t, err)
}
