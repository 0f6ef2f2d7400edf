// Package smoketest dials a toft server over its public websocket endpoint
// and exercises the core session flow end to end: join, place, state hash,
// remove. It is triggered over HTTP by the session discovery service to
// probe servers from one another.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"github.com/toftlabs/toft/grid"
	httpcmn "github.com/toftlabs/toft/http"
	"github.com/toftlabs/toft/models"
	toftws "github.com/toftlabs/toft/websocket"
	"github.com/toftlabs/toft/wire"
	"golang.org/x/net/websocket"
)

const (
	defaultTimeout = time.Second * 10

	// pingSamples is how many ping round trips feed the latency stats.
	pingSamples = 5
)

// SmokeTestRequest asks a server to probe another server.
type SmokeTestRequest struct {
	Endpoint string        `json:"endpoint"`
	Token    string        `json:"token"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// SmokeTestResults reports how the probed server behaved. PingLatency is
// the mean of several ping round trips; PingStats carries the full
// distribution.
type SmokeTestResults struct {
	FromEndpoint string              `json:"from_endpoint"`
	ToEndpoint   string              `json:"to_endpoint"`
	PingLatency  time.Duration       `json:"ping_latency"`
	PingStats    models.LatencyStats `json:"ping_stats"`
	JoinLatency  time.Duration       `json:"join_latency"`
	PlaceLatency time.Duration       `json:"place_latency"`
	Error        string              `json:"error,omitempty"`
}

type RunSmokeTestOptions struct {
	FromEndpoint    string
	ToEndpoint      string
	ToEndpointToken string
	Timeout         time.Duration
}

// RunSmokeTest connects to the target server and plays the probe scenario.
// The returned results always name both endpoints, with Error set when a
// step failed.
func RunSmokeTest(ctx context.Context, opts RunSmokeTestOptions) (SmokeTestResults, error) {
	results := SmokeTestResults{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	config, err := websocket.NewConfig(websocketURL(opts.ToEndpoint), "http://localhost")
	if err != nil {
		results.Error = err.Error()
		return results, errors.New("initializing websocket config failed").Wrap(err)
	}
	if opts.ToEndpointToken != "" {
		config.Header.Set("Authorization", "Bearer "+opts.ToEndpointToken)
	}
	config.Header.Set(httpcmn.HeaderClientID, uuid.NewString())

	conn, err := websocket.DialConfig(config)
	if err != nil {
		results.Error = err.Error()
		return results, errors.New("dialing websocket failed").Wrap(err)
	}
	defer conn.Close()

	var pings models.LatencyTracker

	steps := []struct {
		name    string
		latency *time.Duration
		run     func() error
	}{
		{"ping", &results.PingLatency, func() error {
			for i := uint32(0); i < pingSamples; i++ {
				start := time.Now()
				if err := runPing(ctx, conn, i+1); err != nil {
					return err
				}
				pings.Record(time.Since(start))
			}
			return nil
		}},
		{"join", &results.JoinLatency, func() error { return runJoin(ctx, conn) }},
		{"place", &results.PlaceLatency, func() error { return runPlace(ctx, conn) }},
	}

	for _, step := range steps {
		start := time.Now()
		if err := step.run(); err != nil {
			results.Error = err.Error()
			return results, errors.New("smoke test step failed").
				WithTag("step", step.name).
				WithTag("endpoint", opts.ToEndpoint).
				Wrap(err)
		}
		*step.latency = time.Since(start)
	}

	results.PingStats = pings.Stats()
	results.PingLatency = time.Duration(results.PingStats.Mean) * time.Microsecond
	return results, nil
}

func runPing(ctx context.Context, conn *websocket.Conn, requestID uint32) error {
	return toftws.NewScenario(conn).
		Send(func() any {
			return wire.Request{
				Type:      wire.MsgTypePingRequest,
				Timestamp: wire.Now(),
				RequestID: requestID,
			}
		}).
		Receive(
			toftws.FilterByType(wire.MsgTypePingResponse),
			toftws.FilterByRequestID(requestID),
		).
		Run(ctx)
}

func runJoin(ctx context.Context, conn *websocket.Conn) error {
	return toftws.NewScenario(conn).
		Send(func() any {
			return wire.ParticipantJoinRequest{
				Type:      wire.MsgTypeParticipantJoinRequest,
				Timestamp: wire.Now(),
				RequestID: 6,
			}
		}).
		Receive(
			toftws.FilterByType(wire.MsgTypeParticipantJoinResponse),
			toftws.FilterByRequestID(6),
			func(msg wire.Msg) error {
				var res wire.ParticipantJoinResponse
				if err := msg.DataTo(&res); err != nil {
					return err
				}
				if res.SessionID == "" {
					return errors.New("join response has no session id")
				}
				return nil
			},
		).
		Run(ctx)
}

func runPlace(ctx context.Context, conn *websocket.Conn) error {
	var objectID grid.ObjectID

	return toftws.NewScenario(conn).
		Send(func() any {
			return wire.PlaceRequest{
				Type:      wire.MsgTypePlaceRequest,
				Timestamp: wire.Now(),
				RequestID: 7,
				Cells:     []grid.Cell{{X: 0, Y: 0, Z: 0}},
			}
		}).
		Receive(
			toftws.FilterByType(wire.MsgTypePlaceResponse),
			toftws.FilterByRequestID(7),
			func(msg wire.Msg) error {
				var res wire.PlaceResponse
				if err := msg.DataTo(&res); err != nil {
					return err
				}
				if res.StateHash == "" {
					return errors.New("place response has no state hash")
				}
				objectID = res.ObjectID
				return nil
			},
		).
		Send(func() any {
			return wire.RemoveRequest{
				Type:      wire.MsgTypeRemoveRequest,
				Timestamp: wire.Now(),
				RequestID: 8,
				ObjectID:  objectID,
			}
		}).
		Receive(
			toftws.FilterByType(wire.MsgTypeRemoveResponse),
			toftws.FilterByRequestID(8),
		).
		Run(ctx)
}

type Options struct {
	Endpoint   string
	SendResult func(context.Context, SmokeTestResults) error
}

// HandleSmokeTest returns the HTTP handler that triggers a smoke test
// toward the requested endpoint. The test runs in the background; results
// travel through opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			httpcmn.InternalServerError(w, errors.New("reading body failed").Wrap(err))
			return
		}

		var req SmokeTestRequest
		if err := json.Unmarshal(b, &req); err != nil {
			httpcmn.BadRequest(w, errors.New("decoding smoke test request failed").Wrap(err))
			return
		}
		if req.Endpoint == "" {
			httpcmn.BadRequest(w, errors.New("smoke test request has no endpoint"))
			return
		}

		go func() {
			res, err := RunSmokeTest(ctx, RunSmokeTestOptions{
				FromEndpoint:    opts.Endpoint,
				ToEndpoint:      req.Endpoint,
				ToEndpointToken: req.Token,
				Timeout:         req.Timeout,
			})
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

func websocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return endpoint
	default:
		return "wss://" + endpoint
	}
}
