package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"

	"github.com/mirrochat/e2ee-client/internal/logger"
	"github.com/mirrochat/e2ee-client/models"
)

// HTTPClientConfig configures the REST directory client.
type HTTPClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64
}

type httpDirectoryClient struct {
	client     *resty.Client
	log        *logger.Logger
	maxRetries uint64

	mu    sync.RWMutex
	token string
}

// NewHTTPDirectoryClient constructs a [DirectoryClient] speaking the key
// directory REST API. Transient failures (network errors and 5xx responses)
// are retried with fibonacci backoff up to cfg.MaxRetries attempts; 404 is
// never retried.
func NewHTTPDirectoryClient(cfg HTTPClientConfig, log *logger.Logger) DirectoryClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &httpDirectoryClient{client: cli, log: log, maxRetries: cfg.MaxRetries}
}

func (h *httpDirectoryClient) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *httpDirectoryClient) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *httpDirectoryClient) UserID() string {
	token := h.Token()
	if token == "" {
		return ""
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

func (h *httpDirectoryClient) PublishKey(ctx context.Context, key []byte) error {
	req := models.KeyUploadRequest{PublicKey: base64.StdEncoding.EncodeToString(key)}

	resp, err := h.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").
			SetBody(req).
			Post("/keys/upload")
	})
	if err != nil {
		return fmt.Errorf("publish key: %w", err)
	}
	return mapHTTPError(resp)
}

func (h *httpDirectoryClient) FetchPeerKey(ctx context.Context, userID string) ([]byte, error) {
	resp, err := h.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/keys/" + userID)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch peer key: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, fmt.Errorf("fetch peer key %q: %w", userID, err)
	}

	var body models.KeyResponse
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode peer key response: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(body.Data.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode peer key material: %w", err)
	}
	return key, nil
}

func (h *httpDirectoryClient) CheckBackup(ctx context.Context) (bool, error) {
	resp, err := h.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/keys/backup/check")
	})
	if err != nil {
		return false, fmt.Errorf("check backup: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return false, fmt.Errorf("check backup: %w", err)
	}

	var body models.BackupCheckResponse
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return false, fmt.Errorf("decode backup check response: %w", err)
	}
	return body.Data.HasBackup, nil
}

func (h *httpDirectoryClient) UploadBackup(ctx context.Context, backup models.BackupBlob) error {
	resp, err := h.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").
			SetBody(models.BackupUploadRequest{Backup: backup}).
			Post("/keys/backup")
	})
	if err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}
	return mapHTTPError(resp)
}

func (h *httpDirectoryClient) FetchBackup(ctx context.Context) (models.BackupBlob, error) {
	resp, err := h.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/keys/backup")
	})
	if err != nil {
		return models.BackupBlob{}, fmt.Errorf("fetch backup: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.BackupBlob{}, fmt.Errorf("fetch backup: %w", err)
	}

	var body models.BackupResponse
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return models.BackupBlob{}, fmt.Errorf("decode backup response: %w", err)
	}
	return body.Data.Backup, nil
}

func (h *httpDirectoryClient) FetchMessageKey(ctx context.Context, conversationID, messageID string) ([]byte, error) {
	resp, err := h.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/messages/" + conversationID + "/" + messageID + "/decrypt-key")
	})
	if err != nil {
		return nil, fmt.Errorf("fetch message key: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, fmt.Errorf("fetch message key: %w", err)
	}

	var body models.MessageKeyResponse
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode message key response: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(body.Data.Key)
	if err != nil {
		return nil, fmt.Errorf("decode message key material: %w", err)
	}
	return key, nil
}

// do runs a single authenticated request with retry on transient failures.
// The bearer credential is a hard precondition: without a token the request
// is rejected locally and never retried.
func (h *httpDirectoryClient) do(ctx context.Context, call func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	token := h.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	backoff := retry.WithMaxRetries(h.maxRetries, retry.NewFibonacci(200*time.Millisecond))

	var resp *resty.Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := h.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+token)

		r, err := call(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrTransient, err))
		}
		if r.StatusCode() >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("%w: http %d", ErrTransient, r.StatusCode()))
		}
		resp = r
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("directory request failed")
		return nil, err
	}
	return resp, nil
}

func mapHTTPError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	switch {
	case code == http.StatusUnauthorized:
		return ErrNotAuthenticated
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: http %d", ErrTransient, code)
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(code)
	} else if msg := serverErrorMessage(resp.Body()); msg != "" {
		body = msg
	}
	return fmt.Errorf("http %d: %s", code, body)
}

// serverErrorMessage extracts the "error" field of the common response
// envelope, when present.
func serverErrorMessage(body []byte) string {
	var envelope models.APIResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Error
}
