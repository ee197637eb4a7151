// Package email renders the digest as HTML and delivers it over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"readingrecs/internal/core"
	"readingrecs/internal/logger"
)

// DigestItem is one recommended article in the rendered digest.
type DigestItem struct {
	Title        string
	URL          string
	Source       string
	Score        float64
	Reason       string
	CommentCount int
	AboveAverage bool
}

// DigestData contains everything the digest template needs.
type DigestData struct {
	Date  string
	Items []DigestItem
	Empty bool
}

const digestTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Reading Recommendations</title>
    <style type="text/css">
      body {
        margin: 0;
        padding: 0;
        background-color: #f8fafc;
        font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif;
        color: #1e293b;
        line-height: 1.6;
      }
      .container {
        max-width: 600px;
        margin: 0 auto;
        background-color: #ffffff;
        border: 1px solid #e2e8f0;
        border-radius: 8px;
        overflow: hidden;
      }
      .header {
        background-color: #2563eb;
        color: #ffffff;
        padding: 24px;
        text-align: center;
      }
      .header h1 {
        margin: 0;
        font-size: 24px;
        font-weight: 600;
      }
      .header .date {
        margin: 8px 0 0 0;
        font-size: 14px;
        opacity: 0.9;
      }
      .content {
        padding: 24px;
      }
      .article-card {
        background-color: #f8fafc;
        border: 1px solid #e2e8f0;
        border-radius: 6px;
        padding: 20px;
        margin: 16px 0;
      }
      .article-title {
        font-size: 18px;
        font-weight: 600;
        margin: 0 0 8px 0;
      }
      .article-title a {
        color: #1e293b;
        text-decoration: none;
      }
      .article-reason {
        font-size: 15px;
        margin: 0 0 12px 0;
      }
      .article-meta {
        font-size: 13px;
        color: #64748b;
      }
      .score {
        display: inline-block;
        background-color: #2563eb;
        color: #ffffff;
        border-radius: 4px;
        padding: 2px 8px;
        font-weight: 600;
        margin-right: 8px;
      }
      .footer {
        background-color: #f1f5f9;
        padding: 20px 24px;
        text-align: center;
        font-size: 13px;
        color: #64748b;
        border-top: 1px solid #e2e8f0;
      }
    </style>
</head>
<body>
    <table role="presentation" cellspacing="0" cellpadding="0" border="0" width="100%">
        <tr>
            <td align="center">
                <div class="container">
                    <div class="header">
                        <h1>Reading Recommendations</h1>
                        <p class="date">{{.Date}}</p>
                    </div>
                    <div class="content">
                        {{if .Empty}}
                        <p>No new articles worth reading today. Enjoy the break!</p>
                        {{else}}
                        {{range .Items}}
                        <div class="article-card">
                            <h3 class="article-title"><a href="{{.URL}}">{{.Title}}</a></h3>
                            {{if .Reason}}
                            <p class="article-reason">{{.Reason}}</p>
                            {{end}}
                            <div class="article-meta">
                                <span class="score">{{printf "%.0f" .Score}}/10</span>
                                {{.Source}} &middot; {{.CommentCount}} comments{{if .AboveAverage}} &middot; trending{{end}}
                            </div>
                        </div>
                        {{end}}
                        {{end}}
                    </div>
                    <div class="footer">
                        <p>Curated from your feeds on {{.Date}}</p>
                    </div>
                </div>
            </td>
        </tr>
    </table>
</body>
</html>`

// RenderDigest renders the digest HTML for a set of recommended
// articles. An empty set renders the no-articles message.
func RenderDigest(articles []core.ScoredArticle, date time.Time) (string, error) {
	data := DigestData{
		Date:  date.Format("January 2, 2006"),
		Empty: len(articles) == 0,
	}
	for _, sa := range articles {
		data.Items = append(data.Items, DigestItem{
			Title:        sa.Article.Title,
			URL:          sa.Article.URL,
			Source:       sa.Article.Source,
			Score:        sa.LLMScore,
			Reason:       sa.Reason,
			CommentCount: sa.Article.CommentCount,
			AboveAverage: sa.Article.IsAboveAverage,
		})
	}

	tmpl, err := template.New("digest").Parse(digestTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse digest template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute digest template: %w", err)
	}
	return buf.String(), nil
}

// Sender delivers digests over authenticated SMTP.
type Sender struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string
}

// NewSender creates an SMTP sender.
func NewSender(host string, port int, username, password, from, to string) *Sender {
	return &Sender{host: host, port: port, username: username, password: password, from: from, to: to}
}

// Send delivers one HTML message with the given subject.
func (s *Sender) Send(subject, htmlBody string) error {
	if s.username == "" || s.password == "" || s.to == "" {
		return fmt.Errorf("email is not configured: set SMTP credentials and recipient")
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n",
		s.from, s.to, subject)
	msg := []byte(headers + htmlBody)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := smtp.SendMail(addr, auth, s.from, []string{s.to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Info("Digest email sent", "to", s.to, "subject", subject)
	return nil
}

// Subject builds the dated digest subject line.
func Subject(date time.Time) string {
	return "Reading Recommendations - " + date.Format("Jan 2, 2006")
}
