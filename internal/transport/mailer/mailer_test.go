package mailer_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"emailer/internal/appers"
	"emailer/internal/application/entity"
	"emailer/internal/transport/mailer"
	"emailer/pkg/config"
	"emailer/pkg/httpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedSend struct {
	auth string
	body map[string]any
}

// newProviderServer поднимает фейковый почтовый API: token endpoint и
// sendMail endpoint с задаваемым статусом ответа.
func newProviderServer(t *testing.T, sendStatus int, tokenIssued *int64, sends chan<- capturedSend) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))

		atomic.AddInt64(tokenIssued, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/sendMail", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if sends != nil {
			sends <- capturedSend{auth: r.Header.Get("Authorization"), body: body}
		}
		w.WriteHeader(sendStatus)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(server *httptest.Server) *mailer.Client {
	cfg := config.Mail{
		TokenURL:     server.URL + "/token",
		SendMailURL:  server.URL + "/sendMail",
		ClientID:     "client-id",
		ClientSecret: "secret",
		Scope:        "mail.send",
	}
	return mailer.NewClient(cfg, httpclient.NewClient(config.HTTPClient{}), zap.NewNop().Sugar())
}

func TestSendMailSuccess(t *testing.T) {
	var tokens int64
	sends := make(chan capturedSend, 1)
	server := newProviderServer(t, http.StatusAccepted, &tokens, sends)

	client := newTestClient(server)

	email := &entity.Email{
		Recipient: "user@example.com",
		Subject:   "welcome",
		Content:   "hello",
		Type:      entity.ContentText,
		Attachments: []entity.Attachment{
			{Name: "report.pdf", ContentType: "application/pdf", Content: []byte("pdf-bytes")},
		},
	}

	require.NoError(t, client.SendMail(context.Background(), email, "mail-1"))

	sent := <-sends
	assert.Equal(t, "Bearer test-token", sent.auth)

	message := sent.body["message"].(map[string]any)
	assert.Equal(t, "welcome", message["subject"])

	body := message["body"].(map[string]any)
	assert.Equal(t, "text", body["contentType"])
	assert.Equal(t, "hello", body["content"])

	recipients := message["toRecipients"].([]any)
	require.Len(t, recipients, 1)
	address := recipients[0].(map[string]any)["emailAddress"].(map[string]any)
	assert.Equal(t, "user@example.com", address["address"])

	attachments := message["attachments"].([]any)
	require.Len(t, attachments, 1)
	attachment := attachments[0].(map[string]any)
	assert.Equal(t, "#microsoft.graph.fileAttachment", attachment["@odata.type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pdf-bytes")), attachment["contentBytes"])
}

func TestSendMailProviderRejection(t *testing.T) {
	var tokens int64
	server := newProviderServer(t, http.StatusBadRequest, &tokens, nil)

	client := newTestClient(server)

	err := client.SendMail(context.Background(), &entity.Email{
		Recipient: "user@example.com",
		Subject:   "s",
		Content:   "c",
		Type:      entity.ContentHTML,
	}, "mail-1")

	require.Error(t, err)
	require.True(t, appers.IsSendMailError(err))

	var sendErr *appers.SendMailError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, http.StatusBadRequest, sendErr.Status)
	assert.Equal(t, "mail-1", sendErr.EmailID)
}

func TestSendMailReusesCachedToken(t *testing.T) {
	var tokens int64
	sends := make(chan capturedSend, 3)
	server := newProviderServer(t, http.StatusAccepted, &tokens, sends)

	client := newTestClient(server)
	email := &entity.Email{Recipient: "user@example.com", Subject: "s", Content: "c", Type: entity.ContentText}

	for i := 0; i < 3; i++ {
		require.NoError(t, client.SendMail(context.Background(), email, "mail-1"))
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&tokens))
}

func TestSendMailTokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server)

	err := client.SendMail(context.Background(), &entity.Email{
		Recipient: "user@example.com",
		Subject:   "s",
		Content:   "c",
		Type:      entity.ContentText,
	}, "mail-1")

	require.Error(t, err)
	assert.True(t, appers.IsSendMailError(err))
}
