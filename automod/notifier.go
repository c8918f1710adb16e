package automod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tixo-social/tixo/automod/trust"
	"github.com/tixo-social/tixo/util"
)

// Interface for a type that can handle sending moderator notifications
type Notifier interface {
	NotifySuspension(ctx context.Context, st trust.State, term string) error
}

type SlackNotifier struct {
	SlackWebhookURL string
	// defaults to NotifierHTTPClient()
	Client *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

// Single attempt with a short timeout; a webhook outage should cost one failed request, not a retry cycle.
func NotifierHTTPClient() *http.Client {
	return util.NewHTTPClient(util.ClientOptions{
		RetryMax: 0,
		Timeout:  5 * time.Second,
	})
}

func (n *SlackNotifier) NotifySuspension(ctx context.Context, st trust.State, term string) error {
	msg := "⚠️ Automod Account Suspension ⚠️\n"
	msg += fmt.Sprintf("Account `%s` reached %d violations\n", st.UserID, st.WarningCount)
	if term != "" {
		msg += fmt.Sprintf("Last matched term: `%s`\n", term)
	}
	return n.sendSlackMsg(ctx, msg)
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
		client = NotifierHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
