// Package detectionproxy serves the counting endpoint: it validates a cropped image, forwards it
// to the inference service and answers with a normalized count and item centroids.
package detectionproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	goutils "go.viam.com/utils"

	"github.com/invscan/autocount/config"
	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/rimage"
	"github.com/invscan/autocount/vision/objectdetection"
)

// DebugLogHeader enables debug logging for a single request. Its value tags the log lines.
const DebugLogHeader = "X-Debug-Log"

// Detector runs object detection over raw image bytes.
type Detector interface {
	Detect(ctx context.Context, token string, image []byte, mimeType string) ([]objectdetection.Detection, error)
}

// CountRequest is the body of a count request.
type CountRequest struct {
	ImageDataURL string `json:"imageDataUrl"`
	Notes        string `json:"notes,omitempty"`
}

// CountResponse is the body of a successful count request.
type CountResponse struct {
	Count int                    `json:"count"`
	Items []objectdetection.Item `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusError carries the HTTP status a request failure maps to and the message safe to show.
type statusError struct {
	status  int
	message string
	cause   error
}

func (e *statusError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *statusError) Unwrap() error {
	return e.cause
}

func newStatusError(status int, message string, cause error) *statusError {
	return &statusError{status: status, message: message, cause: cause}
}

// Handler answers count requests.
type Handler struct {
	detector     Detector
	credential   config.CredentialFunc
	threshold    float64
	maxBodyBytes int64
	logger       logging.Logger
}

// NewHandler returns a Handler using cfg for thresholds and limits. credential is consulted on
// every request.
func NewHandler(cfg *config.Config, detector Detector, credential config.CredentialFunc, logger logging.Logger) *Handler {
	return &Handler{
		detector:     detector,
		credential:   credential,
		threshold:    cfg.ConfidenceThreshold,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "detectionproxy::Count")
	defer span.End()

	if key := r.Header.Get(DebugLogHeader); key != "" {
		ctx = logging.EnableDebugMode(ctx, key)
	}
	logger := h.logger.WithFields("request_id", uuid.NewString())

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
		return
	}

	resp, err := h.count(ctx, w, r, logger)
	if err != nil {
		var se *statusError
		if !errors.As(err, &se) {
			se = newStatusError(http.StatusInternalServerError, "Internal server error", err)
		}
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: se.message})
		if se.status >= http.StatusInternalServerError {
			logger.Errorw("count request failed", "status", se.status, "error", se)
		} else {
			logger.CDebugw(ctx, "rejected count request", "status", se.status, "error", se)
		}
		writeJSON(w, se.status, errorResponse{Error: se.message})
		return
	}
	logger.CInfow(ctx, "counted items", "count", resp.Count)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) count(ctx context.Context, w http.ResponseWriter, r *http.Request, logger logging.Logger) (*CountResponse, error) {
	req, err := h.decodeRequest(w, r)
	if err != nil {
		return nil, err
	}
	img, err := rimage.ParseDataURL(req.ImageDataURL)
	if err != nil {
		return nil, newStatusError(http.StatusBadRequest, "imageDataUrl is not valid base64 image data", err)
	}

	token, ok := h.credential()
	if !ok {
		return nil, newStatusError(http.StatusInternalServerError, "Server is not configured for counting", nil)
	}

	width, height, err := rimage.DecodeDimensions(img.Data)
	if err != nil {
		logger.Warnw("could not read image dimensions, assuming 1x1", "mime_type", img.MimeType, "error", err)
		width, height = 1, 1
	}
	logger.CDebugw(ctx, "forwarding image", "mime_type", img.MimeType, "bytes", len(img.Data), "width", width, "height", height)

	dets, err := h.detector.Detect(ctx, token, img.Data, img.MimeType)
	if err != nil {
		return nil, newStatusError(http.StatusBadGateway, "Inference request failed", err)
	}
	items := objectdetection.Count(dets, h.threshold, width, height, req.Notes)
	logger.CDebugw(ctx, "filtered detections", "received", len(dets), "kept", len(items), "threshold", h.threshold)
	return &CountResponse{Count: len(items), Items: items}, nil
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (*CountRequest, error) {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	var req CountRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, newStatusError(http.StatusBadRequest, "Request body too large", err)
		}
		return nil, newStatusError(http.StatusBadRequest, "Request body must be JSON", err)
	}
	if req.ImageDataURL == "" {
		return nil, newStatusError(http.StatusBadRequest, "imageDataUrl is required", nil)
	}
	if !strings.HasPrefix(req.ImageDataURL, rimage.DataURLPrefix) {
		return nil, newStatusError(http.StatusBadRequest, "imageDataUrl must be a data:image/ URL", nil)
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	goutils.UncheckedError(json.NewEncoder(w).Encode(v))
}
