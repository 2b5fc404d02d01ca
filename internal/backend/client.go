// Package backend is the client for the water-body data service. Every
// operation returns a Result so callers always handle both outcomes.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-waterwatch/internal/geo"
	"github.com/joeblew999/plat-waterwatch/internal/metrics"
)

// Operation paths, relative to the service base URL.
const (
	OpTimeseries = "timeseries"
	OpForecast   = "forecast"
	OpDetails    = "details"
	OpMNDWI      = "mndwi"
	OpPondsURL   = "get-ponds-url"
	OpPondsList  = "get-ponds-list"
)

// maxBody caps response bodies; time series for a pond are a few hundred KB at most.
const maxBody = 8 << 20

// Config holds the client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// BreakerName labels the circuit breaker in logs.
	BreakerName string
}

// Client talks to the data service over form-encoded AJAX POSTs.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

// New creates a client. Requests are not retried; a run of consecutive
// failures opens the breaker for 30 seconds.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.BreakerName
	if name == "" {
		name = "waterwatch-backend"
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A click superseded by a newer one cancels its requests; that says
		// nothing about the health of the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    cb,
		logger:     logger,
	}
}

// Timeseries returns the historical water coverage of the pond at a location.
func (c *Client) Timeseries(ctx context.Context, at geo.LatLon) Result[TimeSeries] {
	return call[TimeSeries](ctx, c, OpTimeseries, latLonForm(at))
}

// Forecast returns the forecast water coverage of the pond at a location.
func (c *Client) Forecast(ctx context.Context, at geo.LatLon) Result[TimeSeries] {
	return call[TimeSeries](ctx, c, OpForecast, latLonForm(at))
}

// Details returns the pond name, surface and administrative units at a location.
func (c *Client) Details(ctx context.Context, at geo.LatLon) Result[Details] {
	return call[Details](ctx, c, OpDetails, latLonForm(at))
}

// MNDWI returns the true-color and water-classification tile URLs of one scene.
func (c *Client) MNDWI(ctx context.Context, q PointQuery) Result[Imagery] {
	form := latLonForm(q.At)
	form.Set("xValue", strconv.FormatInt(q.X, 10))
	form.Set("yValue", strconv.FormatFloat(q.Y, 'f', -1, 64))
	return call[Imagery](ctx, c, OpMNDWI, form)
}

// PondsURL returns the ponds overlay tile URL template.
func (c *Client) PondsURL(ctx context.Context) Result[PondsURL] {
	return call[PondsURL](ctx, c, OpPondsURL, url.Values{})
}

// PondsList returns the names and centers of all monitored ponds.
func (c *Client) PondsList(ctx context.Context) Result[PondsList] {
	return call[PondsList](ctx, c, OpPondsList, url.Values{})
}

func call[T any](ctx context.Context, c *Client, op string, form url.Values) Result[T] {
	start := time.Now()
	defer func() {
		metrics.BackendDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	body, err := c.post(ctx, op, form)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(op, FailureTransport.String()).Inc()
		c.logger.Warn("data service request failed",
			zap.String("operation", op),
			zap.Error(err))
		return Fail[T](FailureTransport, err.Error())
	}

	var v T
	if f := decodeEnvelope(body, &v); f != nil {
		metrics.BackendRequestsTotal.WithLabelValues(op, f.Kind.String()).Inc()
		c.logger.Warn("data service reported failure",
			zap.String("operation", op),
			zap.String("kind", f.Kind.String()),
			zap.String("error", f.Message))
		return Result[T]{Err: f}
	}

	metrics.BackendRequestsTotal.WithLabelValues(op, "ok").Inc()
	c.logger.Debug("data service request ok",
		zap.String("operation", op),
		zap.Duration("took", time.Since(start)))
	return Ok(v)
}

func (c *Client) post(ctx context.Context, op string, form url.Values) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		endpoint := c.baseURL + "/" + op + "/"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("creating request failed: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		// The service only answers AJAX requests.
		req.Header.Set("X-Requested-With", "XMLHttpRequest")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("data service returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return nil, fmt.Errorf("reading response failed: %w", err)
		}
		return body, nil
	})
}

func latLonForm(at geo.LatLon) url.Values {
	form := url.Values{}
	form.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	form.Set("lon", strconv.FormatFloat(at.Lon, 'f', -1, 64))
	return form
}
