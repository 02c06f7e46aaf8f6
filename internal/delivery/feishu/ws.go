// Package feishu (long connection): establishes a websocket via the
// official SDK to receive card-click events and resolve pending
// escalations without exposing an HTTP callback endpoint.
package feishu

import (
	"context"
	"log"
	"time"

	"github.com/agentgov/governor/internal/config"

	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher/callback"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// RunLongConnection starts a background websocket loop that decodes card
// button clicks and calls onCardAction(requestID, approved). Requires
// "use long connection" to be enabled on the Feishu app; returns
// immediately when the provider is disabled. ctx cancellation stops it.
func RunLongConnection(ctx context.Context, cfg config.FeishuConfig, onCardAction func(requestID string, approved bool) error) {
	if !cfg.Enabled || !cfg.UseLongConnection || cfg.AppID == "" || cfg.AppSecret == "" {
		return
	}
	go runWSLoop(ctx, cfg, onCardAction)
}

func runWSLoop(ctx context.Context, cfg config.FeishuConfig, onCardAction func(requestID string, approved bool) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		eventHandler := dispatcher.NewEventDispatcher("", "").
			OnP2CardActionTrigger(func(ctx context.Context, event *callback.CardActionTriggerEvent) (*callback.CardActionTriggerResponse, error) {
				if event == nil || event.Event == nil || event.Event.Action == nil {
					return &callback.CardActionTriggerResponse{}, nil
				}
				return handleWSCardAction(event.Event.Action.Value, onCardAction), nil
			})
		client := larkws.NewClient(cfg.AppID, cfg.AppSecret, larkws.WithEventHandler(eventHandler))
		log.Printf("[governor] feishu long connection established, waiting for card events")
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := client.Start(ctx); err != nil {
				log.Printf("[governor] feishu long connection error: %v", err)
			}
		}()
		select {
		case <-ctx.Done():
			return
		case <-done:
		}
		time.Sleep(5 * time.Second)
	}
}

func handleWSCardAction(value map[string]interface{}, onCardAction func(requestID string, approved bool) error) *callback.CardActionTriggerResponse {
	if value == nil {
		return &callback.CardActionTriggerResponse{}
	}
	requestID, _ := value["request_id"].(string)
	actionStr, _ := value["action"].(string)
	if requestID == "" || actionStr == "" {
		return &callback.CardActionTriggerResponse{}
	}
	approved := actionStr == "approve"
	if err := onCardAction(requestID, approved); err != nil {
		log.Printf("[governor] feishu card action submit failed: %v", err)
		return &callback.CardActionTriggerResponse{}
	}
	log.Printf("[governor] feishu card action: id=%s approved=%v", requestID, approved)
	return &callback.CardActionTriggerResponse{}
}
