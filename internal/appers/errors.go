package appers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrOutboxNotFound — строка outbox не найдена при точечном поиске
	ErrOutboxNotFound = errors.New("outbox email not found")
	// ErrDuplicateOutboxID — нарушение уникальности id (SQLSTATE 23505)
	ErrDuplicateOutboxID = errors.New("outbox email with this id already exists")
)

// SendMailError — классифицированная ошибка почтового провайдера. Координатору
// важен только сам факт неудачи, но статус и причина сохраняются для логов.
type SendMailError struct {
	EmailID string
	Status  int
	Err     error
}

func (e *SendMailError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to send email with id %s, status code: %d", e.EmailID, e.Status)
	}
	return fmt.Sprintf("failed to send email with id %s", e.EmailID)
}

func (e *SendMailError) Unwrap() error { return e.Err }

// IsSendMailError — любая ошибка отправки (классифицированная или нет)
// оборачивается в SendMailError до выхода из транспорта.
func IsSendMailError(err error) bool {
	var sendErr *SendMailError
	return errors.As(err, &sendErr)
}

type ErrorResp struct {
	StatusCode int    `json:"statusCode,omitempty"`
	StatusDesc string `json:"statusDesc,omitempty"`
}

func (e ErrorResp) Error() string {
	return e.StatusDesc
}

var ErrBadPriority = ErrorResp{
	StatusCode: http.StatusBadRequest,
	StatusDesc: "неизвестный приоритет, допустимы NORMAL и HIGH",
}

func SanitizeError(c *fiber.Ctx, err error) error {
	var errResp ErrorResp

	if ok := errors.As(err, &errResp); ok {
		return c.Status(errResp.StatusCode).JSON(fiber.Map{
			"message": errResp.StatusDesc,
		})
	}
	return NewErr(c, http.StatusInternalServerError, err)
}

func NewErr(ctx *fiber.Ctx, status int, err error) error {
	return ctx.Status(status).JSON(fiber.Map{
		"message": err.Error(),
	})
}
