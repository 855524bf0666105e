package bridge

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"onebarn/internal/core/domain"
	apperrors "onebarn/pkg/errors"
	"onebarn/pkg/tracing"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Options locate one bridge process and its endpoints.
type Options struct {
	Host         string
	Port         int
	ProbePath    string
	SnapshotPath string
	StreamPath   string
	Protocol     string
	ProbeSource  string
	Timeout      time.Duration
}

func (o Options) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", o.Host, o.Port)
}

// Client is the direct HTTP client to the local video bridge. It has a short
// timeout of its own; a timeout is reported like any other probe failure.
type Client struct {
	http   *resty.Client
	opts   Options
	logger *zap.SugaredLogger
}

func NewClient(opts Options, logger *zap.SugaredLogger) *Client {
	r := resty.New()
	r.SetBaseURL(opts.BaseURL())
	r.SetTimeout(opts.Timeout)
	r.SetHeader("Accept", "image/*, video/*")

	return &Client{
		http:   r,
		opts:   opts,
		logger: logger,
	}
}

// Probe fetches a frame from the probe source. Reaching the port is not
// enough: the response must be 2xx and carry image or video content.
func (c *Client) Probe(ctx context.Context) error {
	ctx, span := tracing.TraceBridgeCall(ctx, "bridge.probe", c.opts.ProbeSource)
	defer span.End()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("src", c.opts.ProbeSource).
		Get(c.opts.ProbePath)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("%w: %v", domain.ErrProbeFailed, err)
	}

	tracing.AddSpanAttributes(ctx, tracing.StatusKey.Int(resp.StatusCode()))

	if !resp.IsSuccess() {
		return fmt.Errorf("%w: status %d", domain.ErrProbeFailed, resp.StatusCode())
	}
	contentType := resp.Header().Get("Content-Type")
	if !isMedia(contentType) {
		return fmt.Errorf("%w: content type %q", domain.ErrInvalidMedia, contentType)
	}

	return nil
}

// Snapshot downloads the current frame of a camera.
func (c *Client) Snapshot(ctx context.Context, cameraID domain.CameraID) (*domain.Snapshot, error) {
	ctx, span := tracing.TraceBridgeCall(ctx, "bridge.snapshot", string(cameraID))
	defer span.End()

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("src", string(cameraID)).
		Get(c.opts.SnapshotPath)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, apperrors.NewBridgeUnavailableError("could not reach the camera bridge for a snapshot", err)
	}

	tracing.AddSpanAttributes(ctx, tracing.StatusKey.Int(resp.StatusCode()))

	if !resp.IsSuccess() {
		return nil, apperrors.NewBridgeUnavailableError(
			fmt.Sprintf("camera bridge refused the snapshot (status %d)", resp.StatusCode()), nil)
	}

	contentType := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(mediaType(contentType), "image/") {
		return nil, apperrors.NewBridgeUnavailableError(
			fmt.Sprintf("camera bridge returned %q instead of an image", contentType), domain.ErrInvalidMedia)
	}
	if len(resp.Body()) == 0 {
		return nil, apperrors.NewBridgeUnavailableError("camera bridge returned an empty snapshot", nil)
	}

	return &domain.Snapshot{
		CameraID:    cameraID,
		ContentType: mediaType(contentType),
		Data:        resp.Body(),
		TakenAt:     resp.ReceivedAt(),
	}, nil
}

// StreamURL returns http://<host>:<port>/stream/<cameraId>.
func (c *Client) StreamURL(cameraID domain.CameraID) string {
	return c.opts.BaseURL() + strings.TrimRight(c.opts.StreamPath, "/") + "/" + string(cameraID)
}

func (c *Client) Protocol() string {
	return c.opts.Protocol
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

func isMedia(contentType string) bool {
	mt := mediaType(contentType)
	return strings.HasPrefix(mt, "image/") || strings.HasPrefix(mt, "video/")
}
