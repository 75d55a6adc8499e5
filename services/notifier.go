package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/VALX-GALAXY/SportsInn-sub001/utils"
)

// Notifier hands messages to the platform notification service. It is a
// fire-and-forget collaborator: implementations log failures and never
// return them, so the workflow's success path cannot depend on delivery.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, notifType, message string, data map[string]interface{})
	NotifyAudience(ctx context.Context, audience, notifType, message string, data map[string]interface{})
}

// HTTPNotifier posts notifications to the notification service with a
// service token, the same way the gateway authenticates us.
type HTTPNotifier struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewHTTPNotifier(baseURL, serviceToken string) *HTTPNotifier {
	return &HTTPNotifier{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

type notificationPayload struct {
	UserID   string                 `json:"user_id,omitempty"`
	Audience string                 `json:"audience,omitempty"`
	Type     string                 `json:"type"`
	Message  string                 `json:"message"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// NotifyUser sends a point-to-point notification.
func (n *HTTPNotifier) NotifyUser(ctx context.Context, userID, notifType, message string, data map[string]interface{}) {
	n.post(ctx, notificationPayload{UserID: userID, Type: notifType, Message: message, Data: data})
}

// NotifyAudience fans a notification out to every principal with the given
// role (e.g. "player"); the fan-out itself happens in the notification
// service, not here.
func (n *HTTPNotifier) NotifyAudience(ctx context.Context, audience, notifType, message string, data map[string]interface{}) {
	n.post(ctx, notificationPayload{Audience: audience, Type: notifType, Message: message, Data: data})
}

func (n *HTTPNotifier) post(ctx context.Context, p notificationPayload) {
	body, err := json.Marshal(p)
	if err != nil {
		log.Printf("⚠️ [NOTIFY] marshal %s failed: %v", p.Type, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/api/v1/notifications", bytes.NewReader(body))
	if err != nil {
		log.Printf("⚠️ [NOTIFY] build request failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", n.serviceToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Printf("⚠️ [NOTIFY] %s delivery failed: %v", p.Type, err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		log.Printf("⚠️ [NOTIFY] %s rejected by notification service: %s", p.Type, resp.Status)
	}
}
