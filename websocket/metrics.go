package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	httpcmn "github.com/toftlabs/toft/http"
	"github.com/toftlabs/toft/modules"
	"github.com/toftlabs/toft/wire"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel        = "error_type"
	msgTypeLabel        = "msg_type"
	moduleLabel         = "module"
	publicEndpointLabel = "public_endpoint"
	appKeyLabel         = "app_key"

	defaultModule = "toft"
)

var (
	wsConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "The number of connected clients.",
	}, []string{
		publicEndpointLabel,
		appKeyLabel,
	})

	wsReceivedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_msgs",
		Help: "The number of messages received from WebSocket connections.",
	}, []string{
		publicEndpointLabel,
		msgTypeLabel,
		appKeyLabel,
	})

	wsReceivedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_bytes",
		Help: "The number of bytes received from WebSocket connections.",
	}, []string{
		publicEndpointLabel,
		msgTypeLabel,
		appKeyLabel,
	})

	wsReceiveError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_receive_errors",
		Help: "The errors that occured while receiving a websocket message.",
	}, []string{
		publicEndpointLabel,
		errTypeLabel,
		appKeyLabel,
	})

	wsSentMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_msgs",
		Help: "The number of messages sent to WebSocket connections.",
	}, []string{
		publicEndpointLabel,
		msgTypeLabel,
		appKeyLabel,
	})

	wsSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_bytes",
		Help: "The number of bytes sent to WebSocket connections.",
	}, []string{
		publicEndpointLabel,
		msgTypeLabel,
		appKeyLabel,
	})

	wsSendError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The errors that occured while sending a websocket message.",
	}, []string{
		publicEndpointLabel,
		errTypeLabel,
		msgTypeLabel,
		appKeyLabel,
	})

	wsMsgLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "ws_msg_latency",
		Help: "The time to process a WebSocket msg.",
	}, []string{
		publicEndpointLabel,
		msgTypeLabel,
		moduleLabel,
	})
)

func HandlerWithMetrics(h Handler, publicEndpoint string) Handler {
	return &handlerWithMetrics{
		Handler:        h,
		publicEndpoint: publicEndpoint,
	}
}

type handlerWithMetrics struct {
	Handler

	appKey         string
	publicEndpoint string
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	h.appKey = httpcmn.GetAppKey(conn.Request())

	wsConnectedClients.
		With(prometheus.Labels{
			publicEndpointLabel: h.publicEndpoint,
			appKeyLabel:         h.appKey,
		}).
		Inc()

	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandlePing(ctx context.Context, sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandlePing(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleParticipantJoin(ctx context.Context, handleFrame func(), sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandleParticipantJoin(ctx, handleFrame, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	wsConnectedClients.
		With(prometheus.Labels{
			publicEndpointLabel: h.publicEndpoint,
			appKeyLabel:         h.appKey,
		}).
		Dec()

	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) HandlePlace(ctx context.Context, sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandlePlace(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleRemove(ctx context.Context, sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandleRemove(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleMove(ctx context.Context, sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandleMove(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandlePlaceBatch(ctx context.Context, sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandlePlaceBatch(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleUndo(ctx context.Context, sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandleUndo(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleRedo(ctx context.Context, sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandleRedo(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleCursorUpdate(ctx context.Context, msg wire.Msg) error {
	return h.measureLatency(msg, defaultModule, func() error {
		return h.Handler.HandleCursorUpdate(ctx, msg)
	})
}

func (h *handlerWithMetrics) HandleWithModule(ctx context.Context, module modules.Module, sender wire.ResponseSender, msg wire.Msg) error {
	return h.measureLatency(msg, module.Name(), func() error {
		return h.Handler.HandleWithModule(ctx, module, sender, msg)
	})
}

func (h *handlerWithMetrics) SendSyncClock(ctx context.Context, sender wire.ResponseSender) error {
	return h.measureLatency(wire.Msg{Type: wire.MsgTypeSyncClock}, defaultModule, func() error {
		return h.Handler.SendSyncClock(ctx, sender)
	})
}

func (h *handlerWithMetrics) Receiver() wire.Receiver {
	receive := h.Handler.Receiver()

	return func() (wire.Msg, int, error) {
		msg, n, err := receive()
		if err != nil {
			wsReceiveError.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					errTypeLabel:        errors.Type(err),
					appKeyLabel:         h.appKey,
				}).
				Inc()
		} else {
			wsReceivedMsgs.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					msgTypeLabel:        string(msg.Type),
					appKeyLabel:         h.appKey,
				}).
				Inc()
		}

		if n != 0 {
			wsReceivedBytes.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					msgTypeLabel:        string(msg.Type),
					appKeyLabel:         h.appKey,
				}).
				Add(float64(n))
		}

		return msg, n, err
	}
}

func (h *handlerWithMetrics) Sender() wire.Sender {
	sender := h.Handler.Sender()

	return func(msg wire.Msg) (int, error) {
		msgType := string(msg.Type)

		n, err := sender(msg)
		if err != nil {
			wsSendError.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					msgTypeLabel:        msgType,
					errTypeLabel:        errors.Type(err),
					appKeyLabel:         h.appKey,
				}).
				Inc()
		}

		if n != 0 {
			wsSentMsgs.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					msgTypeLabel:        msgType,
					appKeyLabel:         h.appKey,
				}).
				Inc()
			wsSentBytes.
				With(prometheus.Labels{
					publicEndpointLabel: h.publicEndpoint,
					msgTypeLabel:        msgType,
					appKeyLabel:         h.appKey,
				}).
				Add(float64(n))
		}

		return n, err
	}
}

func (h *handlerWithMetrics) measureLatency(msg wire.Msg, module string, f func() error) error {
	start := time.Now()

	err := f()
	if errors.IsType(err, wire.ErrTypeMsgSkip) {
		return err
	}

	wsMsgLatency.With(prometheus.Labels{
		publicEndpointLabel: h.publicEndpoint,
		msgTypeLabel:        string(msg.Type),
		moduleLabel:         module,
	}).Observe(time.Since(start).Seconds())

	return err
}
