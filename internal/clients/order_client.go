package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/vaidashi/dispatch-engine/internal/models"
	"github.com/vaidashi/dispatch-engine/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/dispatch-engine/pkg/errors"
	"github.com/vaidashi/dispatch-engine/pkg/logger"
	"github.com/vaidashi/dispatch-engine/pkg/retry"
)

// OrderClient mirrors delivery progress onto orders held by the order service
type OrderClient struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	logger      logger.Logger
	retryConfig *retry.RetryConfig
}

// OrderClientConfig configures an OrderClient
type OrderClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxAttempts     int
	BackoffStrategy retry.BackoffStrategy
}

// statusUpdateRequest is the body of PATCH /api/v1/orders/{ref}/status
type statusUpdateRequest struct {
	Status     models.OrderStatus `json:"status"`
	DeliveryID string             `json:"delivery_id"`
}

type errorResponse struct {
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// NewOrderClient creates a new OrderClient. Calls go through breaker, which
// may be shared with the admin API.
func NewOrderClient(cfg OrderClientConfig, breaker *circuitbreaker.CircuitBreaker, logger logger.Logger) *OrderClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffStrategy == nil {
		cfg.BackoffStrategy = retry.OrderSyncBackoff()
	}

	return &OrderClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		logger:     logger,
		retryConfig: &retry.RetryConfig{
			Operation:       "orders.update_status",
			MaxAttempts:     cfg.MaxAttempts,
			BackoffStrategy: cfg.BackoffStrategy,
			Logger:          logger,
			RetryableErrors: []error{
				apperrors.ErrTimeout,
				apperrors.ErrTemporaryFailure,
				apperrors.ErrServiceUnavailable,
			},
		},
	}
}

// UpdateOrderStatus asks the order service to move an order to signal.Status
func (c *OrderClient) UpdateOrderStatus(ctx context.Context, signal models.OrderStatusSignal) error {
	endpoint := fmt.Sprintf("%s/api/v1/orders/%s/status", c.baseURL, url.PathEscape(signal.OrderRef))

	body, err := json.Marshal(statusUpdateRequest{Status: signal.Status, DeliveryID: signal.DeliveryID})
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to marshal request: %v", err))
	}

	err = retry.Retry(ctx, func() error {
		if !c.breaker.Allow() {
			return apperrors.NewAppError(apperrors.ErrServiceUnavailable, "order service circuit is open", http.StatusServiceUnavailable, true)
		}

		err := c.send(ctx, endpoint, body)

		// Rejections mean the service is up; only outages count against the circuit.
		if err != nil && apperrors.IsRetryable(err) {
			c.breaker.Failure()
		} else {
			c.breaker.Success()
		}
		return err
	}, c.retryConfig)

	if err != nil {
		c.logger.Error("Failed to update order status",
			"error", err,
			"order_ref", signal.OrderRef,
			"status", signal.Status)
		return err
	}

	return nil
}

func (c *OrderClient) send(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return apperrors.NewTimeoutError("order status request timed out")
		}
		return apperrors.NewTemporaryError(fmt.Sprintf("failed to send request: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewTemporaryError(fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode < 400 {
		return nil
	}

	var e errorResponse
	_ = json.Unmarshal(respBody, &e)
	if e.Error == "" {
		e.Error = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return apperrors.NewTimeoutError(fmt.Sprintf("order service timed out: %s", e.Error))
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return apperrors.NewTemporaryError(fmt.Sprintf("order service error %d: %s", resp.StatusCode, e.Error))
	case http.StatusNotFound:
		return apperrors.NewNotFoundError(fmt.Sprintf("order service: %s", e.Error))
	}

	return apperrors.NewAppError(
		apperrors.ErrInvalidInput,
		fmt.Sprintf("order service rejected update (%d): %s", resp.StatusCode, e.Error),
		resp.StatusCode,
		false,
	)
}
