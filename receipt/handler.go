// Package receipt verifies signed state checkpoints and forwards them to an
// external registry for offline auditing.
package receipt

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/segmentio/encoding/json"
	"github.com/toftlabs/toft/models"
	"github.com/toftlabs/toft/wire"
)

type Handler struct {
	// The registry URL checkpoints are forwarded to. Empty disables
	// forwarding; checkpoints are still verified and logged.
	Endpoint string

	// The address expected to have signed incoming checkpoints.
	Signer common.Address

	// Buffered channel filled by the websocket handlers.
	ReceiptChan chan wire.SignedCheckpoint

	// The HTTP client used to reach the registry. Nil uses a client with a
	// 10 second timeout.
	Client *http.Client
}

// HandleCheckpoints drains the checkpoint channel until ctx ends. Every
// checkpoint is re-verified before leaving the server: a signature that does
// not recover the expected signer indicates key misuse and is only logged.
func (h Handler) HandleCheckpoints(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case checkpoint := <-h.ReceiptChan:
				if err := instrumentVerification(func() error {
					return h.VerifyCheckpoint(checkpoint)
				}); err != nil {
					logs.Warn(errors.New("invalid checkpoint").
						WithTag("session_id", checkpoint.SessionID).
						WithTag("revision", checkpoint.Revision).
						WithTag("hash", checkpoint.Hash).
						Wrap(err))
					continue
				}

				h.forward(ctx, checkpoint)
			}
		}
	}()
}

// VerifyCheckpoint checks the checkpoint hash against its fields and the
// signature against the expected signer.
func (h Handler) VerifyCheckpoint(checkpoint wire.SignedCheckpoint) error {
	return models.VerifyCheckpoint(checkpoint, h.Signer)
}

func (h Handler) forward(ctx context.Context, checkpoint wire.SignedCheckpoint) {
	if h.Endpoint == "" {
		return
	}

	go func() {
		if err := instrumentSend(h.Endpoint, func() error {
			return h.post(ctx, checkpoint)
		}); err != nil {
			logs.Warn(errors.New("forwarding checkpoint to registry failed").
				WithTag("endpoint", h.Endpoint).
				WithTag("session_id", checkpoint.SessionID).
				Wrap(err))
		}
	}()
}

func (h Handler) post(ctx context.Context, checkpoint wire.SignedCheckpoint) error {
	body, err := json.Marshal(checkpoint)
	if err != nil {
		return errors.New("encoding checkpoint failed").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.New("creating registry request failed").Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: time.Second * 10}
	}

	res, err := client.Do(req)
	if err != nil {
		return errors.New("sending registry request failed").Wrap(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return errors.New("registry refused checkpoint").
			WithTag("status", res.StatusCode)
	}
	return nil
}
