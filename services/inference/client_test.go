package inference

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/invscan/autocount/logging"
)

const detectionsBody = `[{"label":"bolt","score":0.9,"box":{"xmin":0,"ymin":0,"xmax":40,"ymax":30}},` +
	`{"score":0.1,"box":{"xmin":100,"ymin":100,"xmax":140,"ymax":130}}]`

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) bool {
	r.delays = append(r.delays, d)
	return ctx.Err() == nil
}

// fakeModel answers with 503 for the first `loading` calls and then with body.
func fakeModel(t *testing.T, loading int32, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		test.That(t, r.Method, test.ShouldEqual, http.MethodPost)
		test.That(t, r.Header.Get("Authorization"), test.ShouldEqual, "Bearer secret")
		data, err := io.ReadAll(r.Body)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(data), test.ShouldEqual, "imagebytes")
		w.Header().Set("Content-Type", "application/json")
		if n <= loading {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":"Model is currently loading","estimated_time":20}`)
			return
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestDetectSucceedsAfterLoading(t *testing.T) {
	srv, calls := fakeModel(t, 2, http.StatusOK, detectionsBody)
	sleeps := &recordedSleeps{}
	client := NewClient(srv.URL, logging.NewTestLogger(t), WithSleep(sleeps.sleep))

	dets, err := client.Detect(context.Background(), "secret", []byte("imagebytes"), "image/png")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 2)
	test.That(t, dets[0].Label(), test.ShouldEqual, "bolt")
	test.That(t, dets[0].Score(), test.ShouldEqual, 0.9)
	test.That(t, dets[1].BoundingBox().XMax, test.ShouldEqual, 140.0)
	test.That(t, calls.Load(), test.ShouldEqual, int32(3))
	test.That(t, sleeps.delays, test.ShouldResemble, []time.Duration{time.Second, 2 * time.Second})
}

func TestDetectGivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := fakeModel(t, 100, http.StatusOK, detectionsBody)
	sleeps := &recordedSleeps{}
	client := NewClient(srv.URL, logging.NewTestLogger(t), WithSleep(sleeps.sleep))

	_, err := client.Detect(context.Background(), "secret", []byte("imagebytes"), "image/png")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrModelLoading), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "loading")
	test.That(t, calls.Load(), test.ShouldEqual, int32(DefaultMaxAttempts))
	test.That(t, sleeps.delays, test.ShouldHaveLength, DefaultMaxAttempts-1)
}

func TestDetectDoesNotRetryOtherErrors(t *testing.T) {
	srv, calls := fakeModel(t, 0, http.StatusBadRequest, `{"error":"bad image"}`)
	sleeps := &recordedSleeps{}
	client := NewClient(srv.URL, logging.NewTestLogger(t), WithSleep(sleeps.sleep))

	_, err := client.Detect(context.Background(), "secret", []byte("imagebytes"), "")
	test.That(t, err, test.ShouldNotBeNil)
	var statusErr *StatusError
	test.That(t, errors.As(err, &statusErr), test.ShouldBeTrue)
	test.That(t, statusErr.StatusCode, test.ShouldEqual, http.StatusBadRequest)
	test.That(t, statusErr.Message, test.ShouldEqual, "bad image")
	test.That(t, errors.Is(err, ErrModelLoading), test.ShouldBeFalse)
	test.That(t, calls.Load(), test.ShouldEqual, int32(1))
	test.That(t, sleeps.delays, test.ShouldBeEmpty)
}

func TestDetectCustomRetry(t *testing.T) {
	srv, calls := fakeModel(t, 100, http.StatusOK, detectionsBody)
	sleeps := &recordedSleeps{}
	client := NewClient(srv.URL, logging.NewTestLogger(t),
		WithSleep(sleeps.sleep), WithRetry(4, 10*time.Millisecond))

	_, err := client.Detect(context.Background(), "secret", []byte("imagebytes"), "")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, calls.Load(), test.ShouldEqual, int32(4))
	test.That(t, sleeps.delays, test.ShouldResemble,
		[]time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond})
}

func TestDetectHonoursCancellation(t *testing.T) {
	srv, calls := fakeModel(t, 100, http.StatusOK, detectionsBody)
	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(srv.URL, logging.NewTestLogger(t), WithSleep(func(ctx context.Context, d time.Duration) bool {
		cancel()
		return false
	}))

	_, err := client.Detect(ctx, "secret", []byte("imagebytes"), "")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, calls.Load(), test.ShouldEqual, int32(1))
}

func TestDetectUnparseablePayload(t *testing.T) {
	for _, body := range []string{`not json`, `{"error":"quota exceeded"}`, `{"detections":[]}`, `[{"label":"x"}]`} {
		srv, _ := fakeModel(t, 0, http.StatusOK, body)
		client := NewClient(srv.URL, logging.NewTestLogger(t))
		_, err := client.Detect(context.Background(), "secret", []byte("imagebytes"), "")
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestParseDetections(t *testing.T) {
	dets, err := ParseDetections([]byte(" []\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldBeEmpty)

	_, err = ParseDetections([]byte(`{"error":"Model is overloaded"}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Model is overloaded")

	test.That(t, (&StatusError{StatusCode: 500}).Error(), test.ShouldEqual, "inference endpoint returned status 500")
}
