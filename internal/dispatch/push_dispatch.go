package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/load-matching/internal/models"
)

// PushDispatcher notifies a driver of a match proposal: the live websocket
// first, then the push-provider HTTP endpoint as fallback.
type PushDispatcher struct {
	endpoint string
	key      string
	client   *http.Client
	ws       *WSRegistry
	logger   *slog.Logger
}

func NewPushDispatcher(endpoint, key string, ws *WSRegistry, logger *slog.Logger) *PushDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushDispatcher{
		endpoint: endpoint,
		key:      key,
		client:   &http.Client{Timeout: 3 * time.Second},
		ws:       ws,
		logger:   logger,
	}
}

func (p *PushDispatcher) NotifyDriver(ctx context.Context, driverID string, notice models.MatchNotice) error {
	if p.ws != nil {
		err := p.ws.Send(driverID, notice)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNoSession) {
			p.logger.Warn("websocket send failed, falling back to push", "driver_id", driverID, "error", err)
		}
	}
	if p.endpoint == "" {
		return ErrNoSession
	}
	return p.push(ctx, driverID, notice)
}

func (p *PushDispatcher) push(ctx context.Context, driverID string, notice models.MatchNotice) error {
	body := struct {
		DriverID string             `json:"driver_id"`
		Notice   models.MatchNotice `json:"notice"`
	}{DriverID: driverID, Notice: notice}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.key != "" {
		req.Header.Set("Authorization", "Bearer "+p.key)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push provider returned %s", resp.Status)
	}
	return nil
}
