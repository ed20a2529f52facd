package use_cases

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"emailer/internal/appers"
	"emailer/internal/application/entity"
	"emailer/internal/application/service"
	"emailer/pkg/validator"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type UseCaser interface {
	SubmitEmail(ctx context.Context, req entity.EmailRequest) (string, error)
	SendPendingEmails(ctx context.Context) error
	RetryFailedEmails(ctx context.Context) error
	DeleteSentEmails(ctx context.Context) error
	CollectEmailCounts(ctx context.Context)
	ConsumeEmailMessage(ctx context.Context, msg []byte, msgTime time.Time)

	HealthCheck(ctx context.Context) (dbHealthy bool, kafkaHealthy bool, err error)
}

type UseCase struct {
	service service.Service
	logger  *zap.SugaredLogger
}

func NewUseCase(service service.Service, logger *zap.SugaredLogger) *UseCase {
	return &UseCase{
		service: service,
		logger:  logger,
	}
}

func (u *UseCase) HealthCheck(ctx context.Context) (dbHealthy bool, kafkaHealthy bool, err error) {
	return u.service.HealthCheck(ctx)
}

// SubmitEmail превращает запрос границы в доменное письмо: декодирует
// вложения, разбирает приоритет, генерирует идентификатор, если клиент его
// не прислал, и отдаёт письмо координатору. Возвращает идентификатор письма.
func (u *UseCase) SubmitEmail(ctx context.Context, req entity.EmailRequest) (string, error) {
	priority, ok := entity.PriorityFromName(req.Priority)
	if !ok {
		return "", appers.ErrBadPriority
	}

	emailID := req.Identifier
	if emailID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return "", fmt.Errorf("generate email id: %w", err)
		}
		emailID = id.String()
	}

	email, err := buildEmail(req)
	if err != nil {
		return "", err
	}

	u.logger.Debugf("[email: %s] SubmitEmail started, priority: %s", emailID, priority)

	if err := u.service.SendNewEmail(ctx, email, emailID, priority); err != nil {
		return "", err
	}
	return emailID, nil
}

func buildEmail(req entity.EmailRequest) (*entity.Email, error) {
	attachments := make([]entity.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(a.Base64Content)
		if err != nil {
			return nil, appers.ErrorResp{
				StatusCode: http.StatusBadRequest,
				StatusDesc: fmt.Sprintf("вложение %q: некорректный base64", a.Name),
			}
		}
		attachments = append(attachments, entity.Attachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Content:     content,
		})
	}

	return &entity.Email{
		Recipient:   req.Recipient,
		Subject:     req.Subject,
		Content:     req.Content,
		Type:        entity.ContentType(req.Type),
		Attachments: attachments,
	}, nil
}

func (u *UseCase) SendPendingEmails(ctx context.Context) error {
	return u.service.SendPendingEmails(ctx)
}

func (u *UseCase) RetryFailedEmails(ctx context.Context) error {
	return u.service.RetryFailedEmails(ctx)
}

func (u *UseCase) DeleteSentEmails(ctx context.Context) error {
	return u.service.DeleteSentEmails(ctx)
}

func (u *UseCase) CollectEmailCounts(ctx context.Context) {
	u.service.CollectEmailCounts(ctx)
}

// ConsumeEmailMessage обрабатывает запрос на отправку из Kafka. Битые и
// невалидные сообщения логируются и пропускаются: возвращать их в топик
// бессмысленно, повторная доставка даст тот же результат.
func (u *UseCase) ConsumeEmailMessage(ctx context.Context, msg []byte, msgTime time.Time) {
	var req entity.EmailRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		u.logger.Errorf("malformed email message from kafka: %v", err)
		return
	}

	if err := validator.Validate.Struct(&req); err != nil {
		u.logger.Errorf("invalid email message from kafka: %v", err)
		return
	}

	emailID, err := u.SubmitEmail(ctx, req)
	if err != nil {
		u.logger.Errorf("[email: %s] failed to submit email from kafka: %v", req.Identifier, err)
		return
	}

	u.logger.Debugf("[email: %s] consumed email message, produced at %s", emailID, msgTime)
}
