package receipt

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel  = "error_type"
	endpointLabel = "registry_endpoint"
)

var (
	checkpointSend = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoint_send",
		Help: "The number of checkpoints sent to the registry.",
	}, []string{
		endpointLabel,
	})

	checkpointSendError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoint_send_errors",
		Help: "The errors that occured while sending a checkpoint to the registry.",
	}, []string{
		endpointLabel,
		errTypeLabel,
	})

	checkpointSendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "checkpoint_send_latency",
		Help: "The time to send a checkpoint to the registry.",
	}, []string{
		endpointLabel,
	})

	checkpointVerificationError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoint_verification_errors",
		Help: "Invalid checkpoint counter.",
	}, []string{
		errTypeLabel,
	})
)

func instrumentVerification(f func() error) error {
	err := f()
	if err != nil {
		checkpointVerificationError.
			With(prometheus.Labels{
				errTypeLabel: errors.Type(err),
			}).
			Inc()
	}
	return err
}

func instrumentSend(endpoint string, f func() error) error {
	start := time.Now()

	err := f()
	if err != nil {
		checkpointSendError.
			With(prometheus.Labels{
				endpointLabel: endpoint,
				errTypeLabel:  errors.Type(err),
			}).
			Inc()
		return err
	}

	checkpointSend.With(prometheus.Labels{
		endpointLabel: endpoint,
	}).Inc()

	checkpointSendLatency.With(prometheus.Labels{
		endpointLabel: endpoint,
	}).Observe(time.Since(start).Seconds())

	return err
}
