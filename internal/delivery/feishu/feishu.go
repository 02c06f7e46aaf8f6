// Package feishu implements delivery.Provider over the Feishu (Lark)
// messaging API: fetch a tenant access token, then send an approval
// request as a text message or interactive card.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/agentgov/governor/internal/config"
	"github.com/agentgov/governor/internal/delivery"
)

const (
	tokenAPI   = "https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal"
	messageAPI = "https://open.feishu.cn/open-apis/im/v1/messages"
)

// Provider delivers escalation requests to Feishu as the user's or a
// group chat's direct message, optionally as an interactive card with
// approve/reject buttons.
type Provider struct {
	cfg    config.FeishuConfig
	client *http.Client

	mu     sync.RWMutex
	token  string
	expiry time.Time
}

// NewProvider builds a Provider from Feishu delivery config; AppSecret is
// expected to already have been overridden from the environment by
// config.Load.
func NewProvider(cfg config.FeishuConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{Timeout: 15 * time.Second}}
}

// Deliver sends the escalation request as a Feishu message, preferring
// ApprovalUserID, then ChatID, then the request's own approver list.
func (p *Provider) Deliver(ctx context.Context, in *delivery.DeliverInput) error {
	if in == nil || in.Request == nil {
		return fmt.Errorf("feishu: nil request")
	}
	if !p.cfg.Enabled || p.cfg.AppID == "" || p.cfg.AppSecret == "" {
		return fmt.Errorf("feishu: not enabled or missing appId/appSecret")
	}
	token, err := p.getToken(ctx)
	if err != nil {
		return fmt.Errorf("feishu token: %w", err)
	}

	summary := in.Request.Summary
	if summary == "" && in.Options != nil {
		summary = in.Options.Summary
	}
	if summary == "" {
		summary = in.Request.ToolName + ": " + in.Request.Reason
	}

	baseURL := p.cfg.GatewayBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	approveURL := fmt.Sprintf("%s/escalations/approve?id=%s&approved=true", strings.TrimSuffix(baseURL, "/"), in.Request.ID)
	rejectURL := fmt.Sprintf("%s/escalations/approve?id=%s&approved=false", strings.TrimSuffix(baseURL, "/"), in.Request.ID)
	body := fmt.Sprintf("Pending escalation\nTraceID: %s\nID: %s\nSummary: %s\n\nApprove: %s\nReject: %s",
		in.Request.TraceID, in.Request.ID, summary, approveURL, rejectURL)

	receiveIDType := "user_id"
	receiveID := p.cfg.ApprovalUserID
	if receiveID != "" && strings.HasPrefix(receiveID, "ou_") {
		receiveIDType = "open_id"
	}
	if receiveID == "" && p.cfg.ChatID != "" {
		receiveIDType = "chat_id"
		receiveID = p.cfg.ChatID
	}
	if receiveID == "" && in.Options != nil && len(in.Options.ApproverIDs) > 0 {
		receiveID = in.Options.ApproverIDs[0]
		if strings.HasPrefix(receiveID, "ou_") {
			receiveIDType = "open_id"
		} else {
			receiveIDType = "user_id"
		}
	}
	if p.cfg.ReceiveIDType != "" {
		receiveIDType = p.cfg.ReceiveIDType
	}
	if receiveID == "" {
		return fmt.Errorf("feishu: no receive id (approvalUserId, chatId, or request approver ids)")
	}

	maxAttempts := p.cfg.RetryMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	initialBackoff := p.cfg.RetryInitialBackoffSecs
	if initialBackoff <= 0 {
		initialBackoff = 1
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if p.cfg.UseCardDelivery {
			err = p.sendCard(ctx, token, receiveIDType, receiveID, in.Request.TraceID, in.Request.ID, summary, approveURL, rejectURL)
		} else {
			err = p.sendMessage(ctx, token, receiveIDType, receiveID, body)
		}
		if err == nil {
			break
		}
		if attempt < maxAttempts-1 {
			backoff := time.Duration(initialBackoff<<uint(attempt)) * time.Second
			log.Printf("[governor] feishu delivery retry %d/%d after %v: %v", attempt+1, maxAttempts, backoff, err)
			time.Sleep(backoff)
		}
	}
	if err != nil && strings.Contains(err.Error(), "open_id cross app") && p.cfg.ChatID != "" {
		log.Printf("[governor] feishu delivery: open_id cross app, falling back to chatId")
		if p.cfg.UseCardDelivery {
			err = p.sendCard(ctx, token, "chat_id", p.cfg.ChatID, in.Request.TraceID, in.Request.ID, summary, approveURL, rejectURL)
		} else {
			err = p.sendMessage(ctx, token, "chat_id", p.cfg.ChatID, body)
		}
	}
	return err
}

// sendCard sends an interactive card with approve/reject buttons; button
// value carries {"request_id": id, "action": "approve"|"reject"} for the
// long-connection handler to decode.
func (p *Provider) sendCard(ctx context.Context, token, receiveIDType, receiveID, traceID, reqID, summary, approveURL, rejectURL string) error {
	bodyMD := fmt.Sprintf("**Pending escalation**\n\nTraceID: `%s`\nID: `%s`\nSummary: %s\n\n[Approve](%s) | [Reject](%s)",
		traceID, reqID, summary, approveURL, rejectURL)
	approveVal := map[string]string{"request_id": reqID, "action": "approve"}
	rejectVal := map[string]string{"request_id": reqID, "action": "reject"}
	card := map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"title": map[string]interface{}{"tag": "plain_text", "content": "Governor escalation"},
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag":  "div",
				"text": map[string]interface{}{"tag": "lark_md", "content": bodyMD},
			},
			map[string]interface{}{
				"tag": "action",
				"actions": []interface{}{
					map[string]interface{}{
						"tag": "button", "type": "primary",
						"text": map[string]interface{}{"tag": "plain_text", "content": "Approve"}, "value": approveVal,
					},
					map[string]interface{}{
						"tag": "button", "type": "default",
						"text": map[string]interface{}{"tag": "plain_text", "content": "Reject"}, "value": rejectVal,
					},
				},
			},
		},
	}
	contentBytes, _ := json.Marshal(card)
	reqBody := map[string]interface{}{"receive_id": receiveID, "msg_type": "interactive", "content": string(contentBytes)}
	return p.postMessage(ctx, token, receiveIDType, reqBody)
}

func (p *Provider) sendMessage(ctx context.Context, token, receiveIDType, receiveID, body string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": body})
	reqBody := map[string]interface{}{"receive_id": receiveID, "msg_type": "text", "content": string(contentJSON)}
	return p.postMessage(ctx, token, receiveIDType, reqBody)
}

func (p *Provider) postMessage(ctx context.Context, token, receiveIDType string, reqBody map[string]interface{}) error {
	payload, _ := json.Marshal(reqBody)
	url := messageAPI + "?receive_id_type=" + receiveIDType
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feishu message api HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}
	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(bodyBytes, &result)
	if result.Code != 0 {
		return fmt.Errorf("feishu API code=%d msg=%s", result.Code, result.Msg)
	}
	return nil
}

func (p *Provider) getToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	if p.token != "" && time.Now().Before(p.expiry) {
		t := p.token
		p.mu.RUnlock()
		return t, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.expiry) {
		return p.token, nil
	}
	body := map[string]string{"app_id": p.cfg.AppID, "app_secret": p.cfg.AppSecret}
	payload, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenAPI, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	bodyBytes, _ := io.ReadAll(resp.Body)
	var res struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		return "", err
	}
	if res.Code != 0 {
		return "", fmt.Errorf("feishu token: code=%d msg=%s", res.Code, res.Msg)
	}
	p.token = res.TenantAccessToken
	p.expiry = time.Now().Add(time.Duration(res.Expire-60) * time.Second)
	return p.token, nil
}

var _ delivery.Provider = (*Provider)(nil)
