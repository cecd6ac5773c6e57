package capture

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.viam.com/test"

	"github.com/invscan/autocount/config"
	"github.com/invscan/autocount/logging"
	"github.com/invscan/autocount/rimage"
	"github.com/invscan/autocount/services/detectionproxy"
	"github.com/invscan/autocount/utils"
	"github.com/invscan/autocount/vision/objectdetection"
)

func staticProxy(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req countRequest
		test.That(t, json.NewDecoder(r.Body).Decode(&req), test.ShouldBeNil)
		test.That(t, req.ImageDataURL, test.ShouldStartWith, "data:image/")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProxyClientParsesResult(t *testing.T) {
	srv := staticProxy(t, http.StatusOK,
		`{"count":2,"items":[{"label":"1","center_x":0.25,"center_y":"0.5","confidence":0.9},{"label":"2","center_x":0.75}]}`)
	client := NewProxyClient(srv.URL, nil, logging.NewTestLogger(t))

	res, err := client.Count(context.Background(), "data:image/jpeg;base64,AAAA", "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Count, test.ShouldEqual, 2)
	test.That(t, res.Annotations, test.ShouldHaveLength, 1)
	test.That(t, res.Annotations[0].Label, test.ShouldEqual, "1")
	test.That(t, res.Annotations[0].X, test.ShouldEqual, 0.25)
	test.That(t, res.Annotations[0].Y, test.ShouldEqual, 0.5)
	test.That(t, *res.Annotations[0].Confidence, test.ShouldEqual, 0.9)
}

func TestProxyClientZeroCount(t *testing.T) {
	srv := staticProxy(t, http.StatusOK, `{"count":0,"items":[]}`)
	client := NewProxyClient(srv.URL, nil, logging.NewTestLogger(t))
	res, err := client.Count(context.Background(), "data:image/jpeg;base64,AAAA", "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Count, test.ShouldEqual, 0)
	test.That(t, res.Annotations, test.ShouldBeEmpty)
}

func TestProxyClientFailures(t *testing.T) {
	for _, tc := range []struct {
		name     string
		status   int
		body     string
		contains string
	}{
		{"malformed", http.StatusOK, `<html>oops</html>`, "malformed"},
		{"error field", http.StatusOK, `{"error":"quota exceeded","count":1}`, "quota exceeded"},
		{"error status", http.StatusBadGateway, `{"error":"Inference request failed"}`, "Inference request failed"},
		{"bare status", http.StatusInternalServerError, `{}`, "status 500"},
		{"missing count", http.StatusOK, `{"items":[]}`, "numeric count"},
		{"string count", http.StatusOK, `{"count":"3"}`, "numeric count"},
		{"negative count", http.StatusOK, `{"count":-1}`, "invalid count"},
		{"fractional count", http.StatusOK, `{"count":1.5}`, "invalid count"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := staticProxy(t, tc.status, tc.body)
			client := NewProxyClient(srv.URL, nil, logging.NewTestLogger(t))
			_, err := client.Count(context.Background(), "data:image/jpeg;base64,AAAA", "")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
		})
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewProxyClient(srv.URL, nil, logging.NewTestLogger(t))
	_, err := client.Count(context.Background(), "data:image/jpeg;base64,AAAA", "")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "could not reach")
}

type boxDetector struct{}

// Detect reports one box covering the top-left quarter of whatever it is sent.
func (boxDetector) Detect(ctx context.Context, token string, data []byte, mimeType string) ([]objectdetection.Detection, error) {
	w, h, err := rimage.DecodeDimensions(data)
	if err != nil {
		return nil, err
	}
	return []objectdetection.Detection{
		objectdetection.NewDetection(objectdetection.Box{XMax: float64(w) / 2, YMax: float64(h) / 2}, 0.95, "widget"),
	}, nil
}

func TestEditorAgainstProxy(t *testing.T) {
	logger := logging.NewTestLogger(t)
	handler := detectionproxy.NewHandler(config.Default(), boxDetector{}, func() (string, bool) {
		return "token", true
	}, logger)
	srv := httptest.NewServer(detectionproxy.NewMux(handler, logger))
	defer srv.Close()

	editor, _ := newTestEditor(t, NewProxyClient(srv.URL+"/count", srv.Client(), logger))
	ctx := context.Background()
	test.That(t, editor.Start(ctx), test.ShouldBeNil)
	_, err := editor.Capture(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, editor.Done(ctx), test.ShouldBeNil)

	state := editor.State()
	test.That(t, state.Error, test.ShouldBeEmpty)
	test.That(t, state.Result.Count, test.ShouldEqual, 1)
	a := state.Result.Annotations[0]
	test.That(t, a.Label, test.ShouldEqual, "1")
	test.That(t, a.X, test.ShouldAlmostEqual, 0.25)
	test.That(t, a.Y, test.ShouldAlmostEqual, 0.25)

	rendered, err := editor.Render(ctx)
	test.That(t, err, test.ShouldBeNil)
	encoded, err := rimage.EncodeImage(ctx, rendered, utils.MimeTypePNG)
	test.That(t, err, test.ShouldBeNil)
	w, h, err := rimage.DecodeDimensions(encoded)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, image.Pt(w, h), test.ShouldResemble, image.Pt(640, 480))
}
