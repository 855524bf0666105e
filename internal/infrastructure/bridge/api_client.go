package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"onebarn/internal/core/domain"
	"onebarn/pkg/circuitbreaker"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/retry"
	"onebarn/pkg/tracing"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIOptions configure the application API tier client.
type APIOptions struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	Retry          retry.Config
	CircuitBreaker circuitbreaker.Config
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIClient sends camera control commands (PTZ, settings) to the application
// API. Calls are retried on 5xx and transport errors and guarded by a
// circuit breaker; 4xx responses are returned at once as invalid input.
type APIClient struct {
	http    *resty.Client
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

func NewAPIClient(opts APIOptions, logger *zap.SugaredLogger) *APIClient {
	r := resty.New()
	r.SetBaseURL(opts.BaseURL)
	r.SetTimeout(opts.Timeout)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	if opts.Token != "" {
		r.SetAuthToken(opts.Token)
	}

	breaker := circuitbreaker.New(opts.CircuitBreaker)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("camera API circuit breaker changed state",
			"from", from.String(),
			"to", to.String(),
		)
	})

	retryCfg := opts.Retry
	retryCfg.NonRetryableErrors = append(retryCfg.NonRetryableErrors, circuitbreaker.ErrOpen)

	return &APIClient{
		http:    r,
		retry:   retryCfg,
		breaker: breaker,
		logger:  logger,
	}
}

func (c *APIClient) ControlPTZ(ctx context.Context, tenantID domain.TenantID, cmd domain.PTZCommand) error {
	return c.do(ctx, "api.ptz", tenantID, cmd.CameraID, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParam("cameraId", string(cmd.CameraID)).
			SetBody(cmd).
			Post("/cameras/{cameraId}/ptz")
	})
}

func (c *APIClient) UpdateSettings(ctx context.Context, tenantID domain.TenantID, cameraID domain.CameraID, patch domain.SettingsPatch) error {
	return c.do(ctx, "api.settings", tenantID, cameraID, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParam("cameraId", string(cameraID)).
			SetBody(patch).
			Patch("/cameras/{cameraId}/settings")
	})
}

// BreakerState exposes the breaker for readiness reporting.
func (c *APIClient) BreakerState() circuitbreaker.State {
	return c.breaker.GetState()
}

func (c *APIClient) do(
	ctx context.Context,
	operation string,
	tenantID domain.TenantID,
	cameraID domain.CameraID,
	send func(req *resty.Request) (*resty.Response, error),
) error {
	ctx, span := tracing.TraceBridgeCall(ctx, operation, string(cameraID))
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.TenantIDKey.String(string(tenantID)))

	var rejected *apperrors.AppError

	err := retry.Retry(ctx, c.retry, func() error {
		return c.breaker.Execute(ctx, func() error {
			resp, err := send(c.http.R().
				SetContext(ctx).
				SetHeader("X-Tenant-ID", string(tenantID)).
				SetError(&apiError{}))
			if err != nil {
				return err
			}
			if resp.StatusCode() >= http.StatusInternalServerError {
				return fmt.Errorf("camera API returned status %d", resp.StatusCode())
			}
			if resp.IsError() {
				rejected = apperrors.NewInvalidInputError(errorMessage(resp))
			}
			return nil
		})
	})

	if rejected != nil {
		return rejected.WithContext("camera_id", cameraID)
	}
	if err == nil {
		return nil
	}

	tracing.RecordError(ctx, err)
	c.logger.Warnw("camera API call failed",
		"operation", operation,
		"tenant_id", tenantID,
		"camera_id", cameraID,
		"error", err,
	)

	if errors.Is(err, circuitbreaker.ErrOpen) {
		return apperrors.NewBridgeUnavailableError("camera controls are temporarily unavailable, try again shortly", err)
	}
	return apperrors.NewBridgeUnavailableError("camera controls could not be reached", err)
}

func errorMessage(resp *resty.Response) string {
	if e, ok := resp.Error().(*apiError); ok && e != nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return fmt.Sprintf("camera API rejected the request (status %d)", resp.StatusCode())
}
