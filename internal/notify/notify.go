// Package notify announces listing changes over the channels enabled in
// configuration. Delivery failures are logged, never fatal; a missed
// notification must not abort a refresh pass.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/taxsalemap/backend/internal/config"
)

// ChangeDetails describes one detected PDF change.
type ChangeDetails struct {
	County            string `json:"county"`
	URL               string `json:"url"`
	OldHash           string `json:"oldHash,omitempty"`
	NewHash           string `json:"newHash"`
	IsNew             bool   `json:"isNew"`
	TotalProperties   int    `json:"totalProperties"`
	NewProperties     int    `json:"newProperties"`
	RemovedProperties int    `json:"removedProperties"`
}

type Notifier struct {
	cfg        config.NotifyConfig
	httpClient *http.Client
}

func New(cfg config.NotifyConfig) *Notifier {
	return &Notifier{cfg: cfg, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// ChangeDetected fans the notification out to every enabled channel.
func (n *Notifier) ChangeDetected(details ChangeDetails) {
	n.console(details)
	if n.cfg.FileEnabled {
		if err := n.file(details); err != nil {
			log.WithError(err).Warn("file notification failed")
		}
	}
	if n.cfg.WebhookEnabled && n.cfg.WebhookURL != "" {
		if err := n.webhook(details); err != nil {
			log.WithError(err).Warn("webhook notification failed")
		}
	}
	if n.cfg.SlackEnabled && n.cfg.SlackWebhook != "" {
		if err := n.slack(details); err != nil {
			log.WithError(err).Warn("slack notification failed")
		}
	}
	if n.cfg.EmailEnabled && n.cfg.EmailTo != "" {
		if err := n.email(details); err != nil {
			log.WithError(err).Warn("email notification failed")
		}
	}
}

func (n *Notifier) console(d ChangeDetails) {
	log.WithFields(log.Fields{
		"county":  d.County,
		"isNew":   d.IsNew,
		"total":   d.TotalProperties,
		"new":     d.NewProperties,
		"removed": d.RemovedProperties,
	}).Info("tax sale listing changed")
}

func (n *Notifier) file(d ChangeDetails) error {
	f, err := os.OpenFile(n.cfg.FileLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := struct {
		Timestamp time.Time     `json:"timestamp"`
		Event     string        `json:"event"`
		Details   ChangeDetails `json:"details"`
	}{time.Now(), "listing_changed", d}
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func (n *Notifier) webhook(d ChangeDetails) error {
	payload := struct {
		Event     string        `json:"event"`
		Timestamp time.Time     `json:"timestamp"`
		Details   ChangeDetails `json:"details"`
	}{"tax_sale_listing_changed", time.Now(), d}
	return n.postJSON(n.cfg.WebhookURL, payload)
}

func (n *Notifier) slack(d ChangeDetails) error {
	title := "Tax sale listing updated"
	if d.IsNew {
		title = "New tax sale listing published"
	}
	payload := map[string]any{
		"channel":  n.cfg.SlackChannel,
		"username": "Tax Sale Monitor",
		"attachments": []map[string]any{{
			"color": "#36a64f",
			"title": title,
			"fields": []map[string]any{
				{"title": "County", "value": d.County, "short": true},
				{"title": "Properties", "value": fmt.Sprintf("%d", d.TotalProperties), "short": true},
				{"title": "Added", "value": fmt.Sprintf("%d", d.NewProperties), "short": true},
				{"title": "Removed", "value": fmt.Sprintf("%d", d.RemovedProperties), "short": true},
				{"title": "Source", "value": d.URL, "short": false},
			},
			"ts": time.Now().Unix(),
		}},
	}
	return n.postJSON(n.cfg.SlackWebhook, payload)
}

func (n *Notifier) postJSON(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := n.httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) email(d ChangeDetails) error {
	subject := fmt.Sprintf("Tax sale listing changed: %s", d.County)
	body := fmt.Sprintf(
		"The tax sale listing for %s changed.\r\n\r\nProperties: %d\r\nAdded: %d\r\nRemoved: %d\r\nSource: %s\r\n",
		d.County, d.TotalProperties, d.NewProperties, d.RemovedProperties, d.URL,
	)
	msg := strings.Join([]string{
		"From: " + n.cfg.EmailFrom,
		"To: " + n.cfg.EmailTo,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := net.JoinHostPort(n.cfg.SMTPHost, n.cfg.SMTPPort)
	var auth smtp.Auth
	if n.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPass, n.cfg.SMTPHost)
	}
	return smtp.SendMail(addr, auth, n.cfg.EmailFrom, []string{n.cfg.EmailTo}, []byte(msg))
}
