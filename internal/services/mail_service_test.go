package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func TestMailServiceSend(t *testing.T) {
	var received sentEmail

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer server.Close()

	for _, baseURL := range []string{server.URL, server.URL + "/"} {
		mailer := NewMailService(MailServiceConfig{
			APIKey:  "re_test",
			BaseURL: baseURL,
			From:    "kontakt@risegen.pl",
		})

		err := mailer.Send(context.Background(), Email{
			To:      "jan@example.com",
			Subject: "Witaj",
			HTML:    "<p>Hej</p>",
		})
		require.NoError(t, err)

		assert.Equal(t, "RiseGen <kontakt@risegen.pl>", received.From)
		assert.Equal(t, []string{"jan@example.com"}, received.To)
		assert.Equal(t, "Witaj", received.Subject)
		assert.Equal(t, "<p>Hej</p>", received.HTML)
	}
}

func TestMailServiceProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"invalid to"}`))
	}))
	defer server.Close()

	mailer := NewMailService(MailServiceConfig{APIKey: "re_test", BaseURL: server.URL, From: "kontakt@risegen.pl"})

	err := mailer.Send(context.Background(), Email{To: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid to")
}

func TestMailServiceNotConfigured(t *testing.T) {
	mailer := NewMailService(MailServiceConfig{BaseURL: "http://unused"})

	assert.ErrorIs(t, mailer.Ready(), ErrMailerNotConfigured)
	assert.ErrorIs(t, mailer.Send(context.Background(), Email{To: "a@b.c"}), ErrMailerNotConfigured)
}
