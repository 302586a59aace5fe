package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FailureKind clasifica el fallo de un intento contra el backend generador.
type FailureKind string

const (
	KindTimeout    FailureKind = "timeout"
	KindHTTPStatus FailureKind = "http_status"
	KindUnexpected FailureKind = "unexpected"
)

// RetryExhaustedError se devuelve cuando se agota el presupuesto de intentos.
// Envuelve la clasificación del último fallo.
type RetryExhaustedError struct {
	Endpoint string
	Attempts int
	Kind     FailureKind
	Status   int // sólo con KindHTTPStatus
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gateway %s: %d attempts exhausted (last: %s): %v",
		e.Endpoint, e.Attempts, e.Kind, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// Executor emite una llamada lógica (con reintentos internos) contra el
// backend generador y devuelve el cuerpo crudo de la respuesta.
type Executor interface {
	Execute(ctx context.Context, endpoint string, payload any) ([]byte, error)
}

// Config acota cada intento y el presupuesto de reintentos del gateway.
// El retardo entre reintentos es fijo, no exponencial: a volumen MVP el
// backoff no aporta y complica el razonamiento sobre tiempos totales.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Client implementa Executor contra un endpoint HTTP JSON por capacidad.
type Client struct {
	baseURL string
	apiKey  string
	cfg     Config
	client  *http.Client
	logger  *zap.Logger
}

// NewClient construye el gateway de llamadas hacia el backend generador.
func NewClient(baseURL, apiKey string, cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		cfg:     cfg,
		client:  &http.Client{},
		logger:  logger,
	}
}

// Execute emite la llamada y reintenta ante timeout o status no-2xx hasta
// MaxRetries veces adicionales, esperando RetryDelay entre intentos. Devuelve
// el cuerpo completo o un *RetryExhaustedError; nunca una respuesta parcial.
func (c *Client) Execute(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	url := c.baseURL + endpoint

	attempts := c.cfg.MaxRetries + 1
	var (
		lastErr    error
		lastKind   FailureKind
		lastStatus int
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, &RetryExhaustedError{
					Endpoint: endpoint,
					Attempts: attempt - 1,
					Kind:     lastKind,
					Status:   lastStatus,
					Err:      lastErr,
				}
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		respBody, status, kind, attemptErr := c.attempt(ctx, url, body, attempt)
		if attemptErr == nil {
			return respBody, nil
		}
		lastErr, lastKind, lastStatus = attemptErr, kind, status
	}

	return nil, &RetryExhaustedError{
		Endpoint: endpoint,
		Attempts: attempts,
		Kind:     lastKind,
		Status:   lastStatus,
		Err:      lastErr,
	}
}

// attempt ejecuta un único intento acotado por su propio timeout y lo reporta
// al logger. El reporte es un efecto lateral, nunca controla el flujo.
func (c *Client) attempt(ctx context.Context, url string, body []byte, attempt int) ([]byte, int, FailureKind, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, KindUnexpected, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		c.logAttempt(url, attempt, 0, kind, time.Since(start), err)
		return nil, 0, kind, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		c.logAttempt(url, attempt, resp.StatusCode, KindUnexpected, elapsed, err)
		return nil, resp.StatusCode, KindUnexpected, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("backend http error: status=%d", resp.StatusCode)
		c.logAttempt(url, attempt, resp.StatusCode, KindHTTPStatus, elapsed, statusErr)
		return nil, resp.StatusCode, KindHTTPStatus, statusErr
	}

	c.logAttempt(url, attempt, resp.StatusCode, "", elapsed, nil)
	return respBody, resp.StatusCode, "", nil
}

func (c *Client) logAttempt(url string, attempt, status int, kind FailureKind, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("method", http.MethodPost),
		zap.String("url", url),
		zap.Int("attempt", attempt),
		zap.Duration("elapsed", elapsed),
	}
	if status > 0 {
		fields = append(fields, zap.Int("status", status))
	}
	if err != nil {
		fields = append(fields, zap.String("kind", string(kind)), zap.Error(err))
		c.logger.Warn("gateway attempt failed", fields...)
		return
	}
	c.logger.Debug("gateway attempt ok", fields...)
}

func classifyTransportError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnexpected
}
