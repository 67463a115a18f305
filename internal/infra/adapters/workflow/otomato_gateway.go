// File: internal/infra/adapters/workflow/otomato_gateway.go
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"streamer-live-bot/internal/config"
	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/adapter"
	"streamer-live-bot/internal/infra/metrics"
)

var _ adapter.WorkflowGateway = (*OtomatoGateway)(nil)

// OtomatoGateway implements adapter.WorkflowGateway against the Otomato REST API.
type OtomatoGateway struct {
	baseURL    string
	authHeader string
	timeout    time.Duration
	client     *http.Client
	log        *zerolog.Logger

	rollbackAttempts uint
	rollbackDelay    time.Duration
}

func NewOtomatoGateway(cfg config.AutomationConfig, logger *zerolog.Logger) (*OtomatoGateway, error) {
	if cfg.Token == "" {
		return nil, errors.New("automation token empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid automation base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	auth := cfg.Token
	if s := strings.TrimSpace(cfg.AuthScheme); s != "" {
		auth = s + " " + cfg.Token
	}
	return &OtomatoGateway{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		authHeader:       auth,
		timeout:          timeout,
		client:           &http.Client{Timeout: timeout},
		log:              logger,
		rollbackAttempts: 3,
		rollbackDelay:    500 * time.Millisecond,
	}, nil
}

// Create posts the workflow and starts it. A workflow that was created but
// could not be started is deleted again before the run error is returned.
func (g *OtomatoGateway) Create(ctx context.Context, spec model.WorkflowSpec) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := g.call(ctx, "create", http.MethodPost, "/workflows", spec, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &domain.GatewayError{Kind: domain.GatewayMalformed, Op: "create", Message: "automation service returned no workflow id"}
	}

	if err := g.call(ctx, "run", http.MethodPost, "/workflows/"+url.PathEscape(created.ID)+"/run", nil, nil); err != nil {
		g.rollback(ctx, created.ID)
		return "", err
	}
	return created.ID, nil
}

// rollback removes a half-created workflow. Only this cleanup is retried.
func (g *OtomatoGateway) rollback(parent context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), g.timeout*time.Duration(g.rollbackAttempts))
	defer cancel()

	err := retry.Do(
		func() error { return g.Delete(ctx, id) },
		retry.Context(ctx),
		retry.Attempts(g.rollbackAttempts),
		retry.Delay(g.rollbackDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !domain.IsGatewayKind(err, domain.GatewayNotFound) && !domain.IsGatewayKind(err, domain.GatewayAuth)
		}),
	)
	if err != nil && !domain.IsGatewayKind(err, domain.GatewayNotFound) {
		g.log.Error().Err(err).Str("workflow_id", id).Msg("rollback of unstarted workflow failed; remove it manually")
		return
	}
	g.log.Info().Str("workflow_id", id).Msg("rolled back workflow that failed to start")
}

func (g *OtomatoGateway) List(ctx context.Context) ([]model.WorkflowSummary, error) {
	var raw json.RawMessage
	if err := g.call(ctx, "list", http.MethodGet, "/workflows", nil, &raw); err != nil {
		return nil, err
	}
	items, err := decodeSummaries(raw)
	if err != nil {
		return nil, &domain.GatewayError{Kind: domain.GatewayMalformed, Op: "list", Message: "unexpected workflow list format", Err: err}
	}
	return items, nil
}

func (g *OtomatoGateway) Delete(ctx context.Context, workflowID string) error {
	if strings.TrimSpace(workflowID) == "" {
		return domain.ErrInvalidArgument
	}
	return g.call(ctx, "delete", http.MethodDelete, "/workflows/"+url.PathEscape(workflowID), nil, nil)
}

// call performs one request and maps every failure to *domain.GatewayError.
// out may be nil when the body is not needed.
func (g *OtomatoGateway) call(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		var ge *domain.GatewayError
		if errors.As(err, &ge) {
			result = string(ge.Kind)
		}
		metrics.ObserveGatewayCall(op, result, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &domain.GatewayError{Kind: domain.GatewayMalformed, Op: op, Message: "could not encode request", Err: err}
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rdr)
	if err != nil {
		return &domain.GatewayError{Kind: domain.GatewayMalformed, Op: op, Message: "could not build request", Err: err}
	}
	req.Header.Set("Authorization", g.authHeader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		msg := "automation service is unreachable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "automation service timed out"
		}
		return &domain.GatewayError{Kind: domain.GatewayNetwork, Op: op, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &domain.GatewayError{Kind: domain.GatewayNetwork, Op: op, Status: resp.StatusCode, Message: "automation service response was cut off", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return &domain.GatewayError{Kind: domain.GatewayMalformed, Op: op, Status: resp.StatusCode, Message: "automation service returned an empty body"}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &domain.GatewayError{Kind: domain.GatewayMalformed, Op: op, Status: resp.StatusCode, Message: "automation service returned invalid JSON", Err: err}
	}
	return nil
}

func statusError(op string, status int, payload []byte) *domain.GatewayError {
	ge := &domain.GatewayError{Op: op, Status: status, Message: remoteMessage(payload)}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		ge.Kind = domain.GatewayAuth
		ge.Message = "automation service rejected the API token"
	case http.StatusNotFound:
		ge.Kind = domain.GatewayNotFound
		if ge.Message == "" {
			ge.Message = "workflow not found"
		}
	default:
		ge.Kind = domain.GatewayRejected
		if ge.Message == "" {
			ge.Message = fmt.Sprintf("automation service answered %d %s", status, http.StatusText(status))
		}
	}
	return ge
}

// remoteMessage pulls a human readable reason out of an error body.
func remoteMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		switch e := body.Error.(type) {
		case string:
			return e
		case map[string]any:
			if m, ok := e["message"].(string); ok {
				return m
			}
		}
		return ""
	}
	s := strings.TrimSpace(string(payload))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
