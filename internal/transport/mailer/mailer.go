package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"emailer/internal/appers"
	"emailer/internal/application/entity"
	"emailer/pkg/config"
	"emailer/pkg/httpclient"

	"go.uber.org/zap"
)

// Sender отправляет письмо провайдеру. Любая неудача возвращается как
// appers.SendMailError: координатору не нужно различать причины, только
// «ушло или нет».
type Sender interface {
	SendMail(ctx context.Context, email *entity.Email, emailID string) error
}

// Client — клиент Graph-совместимого почтового API: client credentials токен
// плюс sendMail POST. Ретраи на 5xx/429 делает обёртка httpclient.RetryClient.
type Client struct {
	http   httpclient.HTTPClient
	cfg    config.Mail
	logger *zap.SugaredLogger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg config.Mail, http httpclient.HTTPClient, logger *zap.SugaredLogger) *Client {
	return &Client{
		http:   http,
		cfg:    cfg,
		logger: logger,
	}
}

type sendMailBody struct {
	Message         message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

type message struct {
	Subject      string           `json:"subject"`
	Body         itemBody         `json:"body"`
	ToRecipients []recipient      `json:"toRecipients"`
	Attachments  []fileAttachment `json:"attachments,omitempty"`
}

type itemBody struct {
	ContentType string `json:"contentType"` // text | html
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type fileAttachment struct {
	ODataType   string `json:"@odata.type"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	// []byte сериализуется encoding/json в base64, как и ждёт API
	ContentBytes []byte `json:"contentBytes"`
}

func (c *Client) SendMail(ctx context.Context, email *entity.Email, emailID string) error {
	if c.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.SendTimeout)
		defer cancel()
	}

	token, err := c.token(ctx)
	if err != nil {
		return &appers.SendMailError{EmailID: emailID, Err: fmt.Errorf("obtain token: %w", err)}
	}

	body, err := json.Marshal(buildSendMailBody(email))
	if err != nil {
		return &appers.SendMailError{EmailID: emailID, Err: fmt.Errorf("marshal send request: %w", err)}
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.SendMailURL, bytes.NewReader(body))
	if err != nil {
		return &appers.SendMailError{EmailID: emailID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logger.Errorf("[email: %s] send request failed: %v", emailID, err)
		return &appers.SendMailError{EmailID: emailID, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warnf("[email: %s] provider rejected send, status %d: %s", emailID, resp.StatusCode, snippet)
		return &appers.SendMailError{EmailID: emailID, Status: resp.StatusCode}
	}

	return nil
}

func buildSendMailBody(email *entity.Email) sendMailBody {
	attachments := make([]fileAttachment, 0, len(email.Attachments))
	for _, a := range email.Attachments {
		attachments = append(attachments, fileAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         a.Name,
			ContentType:  a.ContentType,
			ContentBytes: a.Content,
		})
	}

	return sendMailBody{
		Message: message{
			Subject: email.Subject,
			Body: itemBody{
				ContentType: strings.ToLower(string(email.Type)),
				Content:     email.Content,
			},
			ToRecipients: []recipient{
				{EmailAddress: emailAddress{Address: strings.TrimSpace(email.Recipient)}},
			},
			Attachments: attachments,
		},
		SaveToSentItems: false,
	}
}

// token возвращает закэшированный access token, обновляя его за минуту до
// истечения.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"scope":         {c.cfg.Scope},
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return c.accessToken, nil
}
