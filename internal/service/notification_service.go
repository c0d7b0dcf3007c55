package service

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"

	"github.com/noah-isme/quote-desk-api/pkg/mail"
)

// Notification formats, also used as metric labels.
const (
	FormatHTML = "html"
	FormatText = "text"
)

// QuoteNotification carries the sanitized submission fields.
type QuoteNotification struct {
	QuoteID     string
	Name        string
	Email       string
	Service     string
	Notes       string
	SubmittedAt time.Time
}

// NotificationConfig selects sender identity and recipient.
type NotificationConfig struct {
	From      string
	Recipient string
}

// goldmark without WithUnsafe replaces raw HTML with a comment.
var notesRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var quoteHTMLTemplate = htmltemplate.Must(htmltemplate.New("quote_html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
<h2>New quote request</h2>
<table cellpadding="6" style="border-collapse: collapse;">
<tr><td><strong>Name</strong></td><td>{{.Name}}</td></tr>
<tr><td><strong>Email</strong></td><td><a href="mailto:{{.Email}}">{{.Email}}</a></td></tr>
<tr><td><strong>Service</strong></td><td>{{.Service}}</td></tr>
<tr><td><strong>Submitted</strong></td><td>{{.Submitted}}</td></tr>
</table>
<h3>Notes</h3>
<div>{{.NotesHTML}}</div>
<p style="color: #888; font-size: 12px;">Quote ID {{.QuoteID}}</p>
</body>
</html>
`))

var quoteTextTemplate = texttemplate.Must(texttemplate.New("quote_text").Parse(`New quote request

Name: {{.Name}}
Email: {{.Email}}
Service: {{.Service}}
Submitted: {{.Submitted}}

Notes:
{{.Notes}}

Quote ID {{.QuoteID}}
`))

type notificationView struct {
	QuoteID   string
	Name      string
	Email     string
	Service   string
	Notes     string
	NotesHTML htmltemplate.HTML
	Submitted string
}

// NotificationService emails the desk about new submissions.
type NotificationService struct {
	sender  mail.Sender
	config  NotificationConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(sender mail.Sender, config NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{sender: sender, config: config, metrics: metrics, logger: logger}
}

// NotifyNewQuote sends an HTML and a plain-text message. It reports true only
// when both were accepted; failures are logged, never returned.
func (s *NotificationService) NotifyNewQuote(ctx context.Context, n QuoteNotification) bool {
	recipient := strings.TrimSpace(s.config.Recipient)
	if recipient == "" || s.sender == nil {
		s.logger.Warn("quote notification skipped: no recipient configured", zap.String("quote_id", n.QuoteID))
		return false
	}

	view := s.view(n)
	base := mail.Message{
		To:      []string{recipient},
		From:    s.config.From,
		Subject: "New quote request from " + n.Name,
		ReplyTo: n.Email,
	}

	htmlMsg := base
	var htmlBuf bytes.Buffer
	htmlOK := false
	if err := quoteHTMLTemplate.Execute(&htmlBuf, view); err != nil {
		s.logger.Error("render html notification", zap.String("quote_id", n.QuoteID), zap.Error(err))
	} else {
		htmlMsg.HTML = htmlBuf.String()
		htmlOK = s.send(ctx, FormatHTML, htmlMsg, n.QuoteID)
	}

	textMsg := base
	var textBuf bytes.Buffer
	textOK := false
	if err := quoteTextTemplate.Execute(&textBuf, view); err != nil {
		s.logger.Error("render text notification", zap.String("quote_id", n.QuoteID), zap.Error(err))
	} else {
		textMsg.Text = textBuf.String()
		textOK = s.send(ctx, FormatText, textMsg, n.QuoteID)
	}

	return htmlOK && textOK
}

func (s *NotificationService) send(ctx context.Context, format string, msg mail.Message, quoteID string) bool {
	res, err := s.sender.Send(ctx, msg)
	s.metrics.RecordNotification(format, err == nil)
	if err != nil {
		s.logger.Warn("quote notification failed",
			zap.String("quote_id", quoteID),
			zap.String("format", format),
			zap.Error(err))
		return false
	}
	s.logger.Debug("quote notification sent",
		zap.String("quote_id", quoteID),
		zap.String("format", format),
		zap.String("message_id", res.MessageID))
	return true
}

func (s *NotificationService) view(n QuoteNotification) notificationView {
	submitted := n.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	return notificationView{
		QuoteID:   n.QuoteID,
		Name:      n.Name,
		Email:     n.Email,
		Service:   n.Service,
		Notes:     n.Notes,
		NotesHTML: renderNotes(n.Notes),
		Submitted: submitted.UTC().Format("2006-01-02 15:04 MST"),
	}
}

func renderNotes(md string) htmltemplate.HTML {
	var buf bytes.Buffer
	if err := notesRenderer.Convert([]byte(md), &buf); err != nil {
		return htmltemplate.HTML(htmltemplate.HTMLEscapeString(md))
	}
	return htmltemplate.HTML(buf.String())
}
