package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"github.com/toftlabs/toft/models"
	toftws "github.com/toftlabs/toft/websocket"
	"golang.org/x/net/websocket"
)

type testDiscovery struct{}

func (testDiscovery) ServerID() string {
	return "ted"
}

func newTestServer() *httptest.Server {
	sessions := &models.SessionStore{
		DiscoveryService: testDiscovery{},
	}

	return httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := &toftws.RealtimeHandler{
				ClientSyncClockInterval: time.Millisecond * 250,
				ClientIdleTimeout:       time.Minute,
				FrameDuration:           time.Millisecond * 50,
				Sessions:                sessions,
			}
			defer handler.Close()

			toftws.Handle(context.Background(), conn, handler)
		},
	})
}

func TestRunSmokeTest(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	results, err := RunSmokeTest(ctx, RunSmokeTestOptions{
		FromEndpoint: "http://self.test",
		ToEndpoint:   server.URL,
		Timeout:      time.Second * 5,
	})
	require.NoError(t, err)
	require.Empty(t, results.Error)
	require.Equal(t, "http://self.test", results.FromEndpoint)
	require.Equal(t, server.URL, results.ToEndpoint)
	require.NotZero(t, results.PingLatency)
	require.NotZero(t, results.JoinLatency)
	require.NotZero(t, results.PlaceLatency)

	require.Equal(t, pingSamples, results.PingStats.Count)
	require.NotZero(t, results.PingStats.Mean)
	require.LessOrEqual(t, results.PingStats.Min, results.PingStats.Max)
	require.Equal(t, time.Duration(results.PingStats.Mean)*time.Microsecond, results.PingLatency)
}

func TestRunSmokeTestUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	results, err := RunSmokeTest(ctx, RunSmokeTestOptions{
		FromEndpoint: "http://self.test",
		ToEndpoint:   "http://127.0.0.1:1",
		Timeout:      time.Second,
	})
	require.Error(t, err)
	require.NotEmpty(t, results.Error)
}

func TestHandleSmokeTest(t *testing.T) {
	server := newTestServer()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	resultsChan := make(chan SmokeTestResults, 1)
	handler := HandleSmokeTest(ctx, Options{
		Endpoint: "http://self.test",
		SendResult: func(ctx context.Context, results SmokeTestResults) error {
			resultsChan <- results
			return nil
		},
	})

	body, err := json.Marshal(SmokeTestRequest{
		Endpoint: server.URL,
		Timeout:  time.Second * 5,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case results := <-resultsChan:
		require.Empty(t, results.Error)
		require.Equal(t, server.URL, results.ToEndpoint)

	case <-ctx.Done():
		t.Fatal("smoke test results were not sent")
	}
}

func TestHandleSmokeTestBadRequest(t *testing.T) {
	handler := HandleSmokeTest(context.Background(), Options{
		Endpoint: "http://self.test",
		SendResult: func(context.Context, SmokeTestResults) error {
			return nil
		},
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader([]byte("{"))))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader([]byte("{}"))))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebsocketURL(t *testing.T) {
	require.Equal(t, "ws://toft.test", websocketURL("http://toft.test"))
	require.Equal(t, "wss://toft.test", websocketURL("https://toft.test"))
	require.Equal(t, "ws://toft.test", websocketURL("ws://toft.test"))
	require.Equal(t, "wss://toft.test", websocketURL("wss://toft.test"))
	require.Equal(t, "wss://toft.test", websocketURL("toft.test"))
}
