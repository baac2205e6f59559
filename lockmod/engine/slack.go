package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/groupwarden/groupwarden/util"
)

type SlackNotifier struct {
	SlackWebhookURL string
	// defaults to util.RobustHTTPClient()
	Client *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		SlackWebhookURL: webhookURL,
		Client:          util.RobustHTTPClient(),
	}
}

func (n *SlackNotifier) SendAbandoned(ctx context.Context, c Correction, attempts int, cause error) error {
	return n.sendSlackMsg(ctx, slackBody(c, attempts, cause))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(c Correction, attempts int, cause error) string {
	msg := "⚠️ Warden Correction Abandoned ⚠️\n"
	msg += fmt.Sprintf("Thread: `%s`\n", c.Thread)
	msg += fmt.Sprintf("Action: `%s`\n", c.Action)
	if c.Member != "" {
		msg += fmt.Sprintf("Member: `%s`\n", c.Member)
	}
	if c.Action != ActionAddMember {
		msg += fmt.Sprintf("Declared value: `%s`\n", c.Value)
	}
	msg += fmt.Sprintf("Attempts: %d\n", attempts)
	if cause != nil {
		msg += fmt.Sprintf("Last error: %s\n", cause)
	}
	return msg
}
