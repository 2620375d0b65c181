// Package gateway talks to the shopping backend: speech-to-intent,
// wishlist, recommendations and the store catalog.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/audio"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/observability"
)

const (
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 4 << 20
	requestIDHeader  = "X-Request-ID"
)

// Endpoint labels used in logs and metrics.
const (
	EndpointVoice           = "voice"
	EndpointWishlist        = "wishlist"
	EndpointWishlistMutate  = "wishlist_mutation"
	EndpointRecommendations = "recommendations"
	EndpointStore           = "store"
)

// BreakerSettings configures the optional circuit breaker. The breaker
// only fails fast while the backend is down; it never retries.
type BreakerSettings struct {
	Failures uint32
	Open     time.Duration
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Breaker    *BreakerSettings
	HTTPClient *http.Client
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Client is stateless apart from the breaker; it is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	metrics *observability.Metrics
	logger  *zap.Logger
}

type response struct {
	status int
	body   []byte
}

// StatusError is a non-2xx backend reply.
type StatusError struct {
	Endpoint string
	Code     int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend status %d: %s", e.Endpoint, e.Code, strings.TrimSpace(string(e.Body)))
}

func (e *StatusError) HTTPStatus() int { return e.Code }

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("gateway: invalid base url %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	c := &Client{
		baseURL: base,
		http:    hc,
		metrics: opts.Metrics,
		logger:  logging.OrNop(opts.Logger).Named("gateway"),
	}
	if opts.Breaker != nil {
		c.breaker = c.newBreaker(*opts.Breaker)
	}
	return c, nil
}

func (c *Client) newBreaker(s BreakerSettings) *gobreaker.CircuitBreaker[*response] {
	failures := s.Failures
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Timeout:     s.Open,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Client-side mistakes (4xx) say nothing about backend health.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			c.metrics.SetBreakerState(name, breakerStateValue(to))
		},
	}
	c.metrics.SetBreakerState(settings.Name, 0)
	return gobreaker.NewCircuitBreaker[*response](settings)
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// do sends one request and reads the whole body. Non-2xx replies come back
// as *StatusError alongside the response.
func (c *Client) do(ctx context.Context, endpoint, method, path, contentType string, body []byte) (*response, error) {
	requestID := uuid.NewString()
	started := time.Now()

	send := func() (*response, error) {
		var rd io.Reader = http.NoBody
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set(requestIDHeader, requestID)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		defer res.Body.Close()
		data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		out := &response{status: res.StatusCode, body: data}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return out, &StatusError{Endpoint: endpoint, Code: res.StatusCode, Body: data}
		}
		return out, nil
	}

	var (
		res *response
		err error
	)
	if c.breaker != nil {
		res, err = c.breaker.Execute(send)
	} else {
		res, err = send()
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "breaker_open"
		}
		status := 0
		if res != nil {
			status = res.status
		}
		c.logger.Warn("backend request failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.metrics.ObserveGateway(endpoint, outcome, time.Since(started))
	return res, err
}

// failure converts a transport or backend error into a classified one,
// preferring the server's own message.
func failure(kind domain.Kind, res *response, err error) error {
	msg := ""
	if res != nil {
		msg = serverMessage(res.body)
	}
	return domain.NewError(kind, msg, err)
}

// serverMessage pulls a human-readable error from a reply body. The
// backend uses "error" for handled failures and "detail" for raised ones.
func serverMessage(body []byte) string {
	var env struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{env.Error, env.Detail} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		// Validation errors arrive as a list of objects with "msg".
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(raw, &items) == nil && len(items) > 0 && items[0].Msg != "" {
			return items[0].Msg
		}
	}
	return ""
}

// decode unmarshals a 2xx body, treating an "error" field as failure.
func decode(kind domain.Kind, res *response, v any) error {
	if msg := serverMessage(res.body); msg != "" {
		return domain.NewError(kind, msg, nil)
	}
	if err := json.Unmarshal(res.body, v); err != nil {
		return domain.NewError(kind, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// SubmitVoiceAudio uploads one utterance and returns the transcription
// with the intent derived from it.
func (c *Client) SubmitVoiceAudio(ctx context.Context, artifact audio.Artifact) (domain.VoiceResult, error) {
	if artifact.Size() == 0 {
		return domain.VoiceResult{}, domain.NewError(domain.KindEmptyRecording, "", nil)
	}
	body, contentType, err := multipartAudio(artifact)
	if err != nil {
		return domain.VoiceResult{}, domain.NewError(domain.KindVoiceProcessing, "", err)
	}
	res, err := c.do(ctx, EndpointVoice, http.MethodPost, "/recognise_text_to_llm", contentType, body)
	if err != nil {
		return domain.VoiceResult{}, failure(domain.KindVoiceProcessing, res, err)
	}
	var out domain.VoiceResult
	if err := decode(domain.KindVoiceProcessing, res, &out); err != nil {
		return domain.VoiceResult{}, err
	}
	if out.Intent.Status == "" {
		out.Intent.Status = domain.StatusAIGenerated
	}
	return out, nil
}

func multipartAudio(a audio.Artifact) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	name := a.FileName
	if name == "" {
		name = audio.ArtifactFileName
	}
	mime := a.MIMEType
	if mime == "" {
		mime = audio.ArtifactMIMEType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		_ = mw.Close()
		return nil, "", err
	}
	if _, err := part.Write(a.Data); err != nil {
		_ = mw.Close()
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// FetchWishlist returns the user's full wishlist.
func (c *Client) FetchWishlist(ctx context.Context, username string) ([]domain.WishlistItem, error) {
	res, err := c.do(ctx, EndpointWishlist, http.MethodGet, "/wishlist/"+url.PathEscape(username), "", nil)
	if err != nil {
		return nil, failure(domain.KindWishlistFetch, res, err)
	}
	var out struct {
		Wishlist []domain.WishlistItem `json:"wishlist"`
	}
	if err := decode(domain.KindWishlistFetch, res, &out); err != nil {
		return nil, err
	}
	if out.Wishlist == nil {
		out.Wishlist = []domain.WishlistItem{}
	}
	return out.Wishlist, nil
}

// MutationResult is the backend acknowledgement of one intent.
type MutationResult struct {
	Message string         `json:"message"`
	Data    *domain.Intent `json:"data,omitempty"`
}

// ApplyWishlistMutation submits one validated intent for username.
func (c *Client) ApplyWishlistMutation(ctx context.Context, username string, intent domain.Intent) (MutationResult, error) {
	if err := intent.Validate(); err != nil {
		return MutationResult{}, domain.NewError(domain.KindWishlistMutation, "", err)
	}
	payload, err := json.Marshal(intent)
	if err != nil {
		return MutationResult{}, domain.NewError(domain.KindWishlistMutation, "", err)
	}
	res, err := c.do(ctx, EndpointWishlistMutate, http.MethodPost, "/update_wishlist/"+url.PathEscape(username), "application/json", payload)
	if err != nil {
		return MutationResult{}, failure(domain.KindWishlistMutation, res, err)
	}
	var out MutationResult
	if err := decode(domain.KindWishlistMutation, res, &out); err != nil {
		return MutationResult{}, err
	}
	return out, nil
}

// FetchRecommendations returns suggested products and the backend's note,
// set when there is nothing to recommend from.
func (c *Client) FetchRecommendations(ctx context.Context, username string) ([]domain.Product, string, error) {
	res, err := c.do(ctx, EndpointRecommendations, http.MethodGet, "/recommendations/"+url.PathEscape(username), "", nil)
	if err != nil {
		return nil, "", failure(domain.KindRecommendation, res, err)
	}
	var out struct {
		Recommendations []domain.Product `json:"recommendations"`
		Note            string           `json:"note"`
	}
	if err := decode(domain.KindRecommendation, res, &out); err != nil {
		return nil, "", err
	}
	if out.Recommendations == nil {
		out.Recommendations = []domain.Product{}
	}
	return out.Recommendations, out.Note, nil
}

type storeItem struct {
	Product  string  `json:"product"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// FetchStoreCatalog returns every store product. The backend's quantity
// becomes Stock here and nowhere else.
func (c *Client) FetchStoreCatalog(ctx context.Context) ([]domain.StoreProduct, string, error) {
	res, err := c.do(ctx, EndpointStore, http.MethodGet, "/store", "", nil)
	if err != nil {
		return nil, "", failure(domain.KindStoreFetch, res, err)
	}
	var out struct {
		StoreItems []storeItem `json:"store_items"`
		Note       string      `json:"note"`
	}
	if err := decode(domain.KindStoreFetch, res, &out); err != nil {
		return nil, "", err
	}
	products := make([]domain.StoreProduct, 0, len(out.StoreItems))
	for _, it := range out.StoreItems {
		products = append(products, domain.StoreProduct{
			Product:  it.Product,
			Category: it.Category,
			Price:    it.Price,
			Stock:    it.Quantity,
		})
	}
	return products, out.Note, nil
}

// BreakerState reports the breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}
