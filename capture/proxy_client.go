package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	goutils "go.viam.com/utils"

	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/utils"
)

// DefaultProxyTimeout covers the proxy's own upstream retries.
const DefaultProxyTimeout = 90 * time.Second

// ProxyClient submits crops to the detection proxy.
type ProxyClient struct {
	url        string
	httpClient *http.Client
	logger     logging.Logger
}

// NewProxyClient returns a client for the proxy at url. A nil httpClient gets a default with
// DefaultProxyTimeout.
func NewProxyClient(url string, httpClient *http.Client, logger logging.Logger) *ProxyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultProxyTimeout}
	}
	return &ProxyClient{url: url, httpClient: httpClient, logger: logger}
}

type countRequest struct {
	ImageDataURL string `json:"imageDataUrl"`
	Notes        string `json:"notes,omitempty"`
}

// Count implements Counter. It fails on transport errors, unparseable bodies, bodies carrying an
// "error" field and bodies without a numeric count.
func (c *ProxyClient) Count(ctx context.Context, imageDataURL, notes string) (*Result, error) {
	payload, err := json.Marshal(countRequest{ImageDataURL: imageDataURL, Notes: notes})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "could not build count request")
	}
	req.Header.Set("Content-Type", utils.MimeTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not reach the counting service")
	}
	defer goutils.UncheckedErrorFunc(resp.Body.Close)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read counting response")
	}
	return c.parseResult(resp.StatusCode, body)
}

func (c *ProxyClient) parseResult(status int, body []byte) (*Result, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil || decoded == nil {
		return nil, errors.Errorf("malformed response from counting service (status %d)", status)
	}
	if msg, ok := decoded["error"]; ok && msg != nil {
		return nil, errors.Errorf("counting service error: %s", cast.ToString(msg))
	}
	if status < 200 || status > 299 {
		return nil, errors.Errorf("counting service returned status %d", status)
	}

	rawCount, ok := decoded["count"].(float64)
	if !ok {
		return nil, errors.New("counting response is missing a numeric count")
	}
	if rawCount < 0 || rawCount != math.Trunc(rawCount) {
		return nil, errors.Errorf("counting response has an invalid count %v", rawCount)
	}

	result := &Result{Count: int(rawCount)}
	items, _ := decoded["items"].([]interface{})
	for i, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			c.logger.Warnw("skipping malformed item", "index", i)
			continue
		}
		x, errX := cast.ToFloat64E(item["center_x"])
		y, errY := cast.ToFloat64E(item["center_y"])
		if item["center_x"] == nil || item["center_y"] == nil || errX != nil || errY != nil {
			c.logger.Warnw("skipping item without a numeric center", "index", i)
			continue
		}
		a := Annotation{Label: cast.ToString(item["label"]), X: x, Y: y}
		if conf, err := cast.ToFloat64E(item["confidence"]); err == nil && item["confidence"] != nil {
			a.Confidence = &conf
		}
		result.Annotations = append(result.Annotations, a)
	}
	return result, nil
}
