package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"emailer/internal/appers"
	"emailer/internal/application/common"
	"emailer/internal/application/entity"
	use_cases "emailer/internal/application/use-cases"
	"emailer/pkg/validator"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler interface {
	SendMail(c *fiber.Ctx) error
	HealthCheck(c *fiber.Ctx) error
}

type HandlerImpl struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
}

func NewEmailHandler(usecase use_cases.UseCaser, logger *zap.SugaredLogger) *HandlerImpl {
	return &HandlerImpl{
		usecase: usecase,
		logger:  logger,
	}
}

// formatValidationErrors форматирует ошибки валидации в понятный формат для клиента
func formatValidationErrors(err error) fiber.Map {
	var errors []string
	if validationErrors, ok := err.(playgroundvalidator.ValidationErrors); ok {
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			var message string
			switch tag {
			case "required":
				message = fmt.Sprintf("поле '%s' обязательно для заполнения", field)
			case "max":
				message = fmt.Sprintf("поле '%s' должно содержать максимум %s символов", field, e.Param())
			case "email":
				message = fmt.Sprintf("поле '%s' должно быть корректным адресом", field)
			case "oneof":
				message = fmt.Sprintf("поле '%s' должно быть одним из: %s", field, e.Param())
			case "mailpriority":
				message = fmt.Sprintf("поле '%s' должно быть NORMAL или HIGH", field)
			case "base64":
				message = fmt.Sprintf("поле '%s' должно быть закодировано в base64", field)
			default:
				message = fmt.Sprintf("поле '%s' не прошло валидацию: %s", field, tag)
			}
			errors = append(errors, message)
		}
	} else {
		errors = append(errors, err.Error())
	}
	return fiber.Map{
		"error":   "validation failed",
		"details": errors,
	}
}

// HealthCheck godoc
// @Summary     Проверка состояния сервиса
// @Description Проверяет доступность базы данных PostgreSQL и Kafka. Возвращает детальную информацию о состоянии каждого компонента.
// @Accept      json
// @Produce     json
// @Success     200   {object} entity.HealthCheckResponse "Все сервисы доступны"
// @Failure     503   {object} entity.HealthCheckResponse "Один или несколько сервисов недоступны"
// @tags        Health
// @Router      /health [get]
func (h *HandlerImpl) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	dbHealthy, kafkaHealthy, _ := h.usecase.HealthCheck(ctx)

	health := fiber.Map{
		"status":  dbHealthy && kafkaHealthy,
		"message": "success",
		"version": common.Version,
		"checks": fiber.Map{
			"database": fiber.Map{
				"status": dbHealthy,
				"type":   "postgresql",
			},
			"kafka": fiber.Map{
				"status": kafkaHealthy,
				"type":   "kafka",
			},
		},
	}
	if !dbHealthy {
		health["checks"].(fiber.Map)["database"].(fiber.Map)["error"] = "Database connection failed"
		health["message"] = "Some services are unavailable"
	}
	if !kafkaHealthy {
		health["checks"].(fiber.Map)["kafka"].(fiber.Map)["error"] = "Kafka connection failed"
		health["message"] = "Some services are unavailable"
	}

	if !dbHealthy || !kafkaHealthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}

	return c.Status(fiber.StatusOK).JSON(health)
}

// SendMail godoc
// @Summary     Приём письма на отправку
// @Description Ставит письмо в outbox и, если часовая квота позволяет, отправляет сразу. Ответ 201 означает, что письмо надёжно принято, даже если немедленная попытка не удалась - доставку добьют периодические задачи.
// @Accept      json
// @Produce     json
// @Param       body  body     entity.EmailRequest  true  "Письмо"
// @Success     201   {object} map[string]string
// @Failure     400
// @Failure     500
// @tags        SendMail
// @Router      /v1/sendmail [post]
func (h *HandlerImpl) SendMail(c *fiber.Ctx) error {
	var req entity.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Errorf("error parsing body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	h.logger.Infof("got email request with id: %s", req.Identifier)

	// Валидация структуры
	if err := validator.Validate.Struct(&req); err != nil {
		h.logger.Warnf("validation error: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(formatValidationErrors(err))
	}

	emailID, err := h.usecase.SubmitEmail(c.Context(), req)
	switch {
	case errors.As(err, &appers.ErrorResp{}):
		return appers.SanitizeError(c, err)
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"description": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"description": "Created",
		"emailId":     emailID,
	})
}
