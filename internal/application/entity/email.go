package entity

// ContentType тела письма; провайдер принимает text и html.
type ContentType string

const (
	ContentText ContentType = "TEXT"
	ContentHTML ContentType = "HTML"
)

// Email — содержимое письма, которое сериализуется в payload outbox-строки.
// Вложения к этому моменту уже декодированы из base64.
type Email struct {
	Recipient   string       `json:"recipient"`
	Subject     string       `json:"subject"`
	Content     string       `json:"content"`
	Type        ContentType  `json:"type"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

// EmailRequest — входящий запрос на отправку (HTTP и Kafka используют одну
// форму). Вложения приходят закодированными в base64.
type EmailRequest struct {
	Identifier  string              `json:"identifier" validate:"omitempty,max=100"`
	Recipient   string              `json:"recipient" validate:"required,email"`
	Subject     string              `json:"subject" validate:"required,max=500"`
	Content     string              `json:"content" validate:"required"`
	Type        string              `json:"type" validate:"required,oneof=TEXT HTML"`
	Priority    string              `json:"priority" validate:"omitempty,mailpriority"`
	Attachments []AttachmentRequest `json:"attachments" validate:"omitempty,dive"`
}

type AttachmentRequest struct {
	Name          string `json:"name" validate:"required,max=255"`
	ContentType   string `json:"contentType" validate:"required,max=100"`
	Base64Content string `json:"base64Content" validate:"required,base64"`
}
