package receipt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"github.com/toftlabs/toft/models"
	"github.com/toftlabs/toft/wire"
)

func TestVerifyCheckpoint(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	checkpoint, err := models.NewSignedCheckpoint(key, "tedx1", 4,
		common.HexToHash("0xbeef"), wire.Now())
	require.NoError(t, err)

	h := Handler{Signer: crypto.PubkeyToAddress(key.PublicKey)}
	require.NoError(t, h.VerifyCheckpoint(checkpoint))

	tampered := checkpoint
	tampered.Revision = 5
	require.Error(t, h.VerifyCheckpoint(tampered))

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	h = Handler{Signer: crypto.PubkeyToAddress(otherKey.PublicKey)}
	require.Error(t, h.VerifyCheckpoint(checkpoint))
}

func TestHandleCheckpointsForwards(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	received := make(chan wire.SignedCheckpoint, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var checkpoint wire.SignedCheckpoint
		require.NoError(t, json.Unmarshal(body, &checkpoint))
		received <- checkpoint
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Handler{
		Endpoint:    server.URL,
		Signer:      crypto.PubkeyToAddress(key.PublicKey),
		ReceiptChan: make(chan wire.SignedCheckpoint, 8),
	}
	h.HandleCheckpoints(ctx)

	checkpoint, err := models.NewSignedCheckpoint(key, "tedx1", 7,
		common.HexToHash("0xbeef"), wire.Now())
	require.NoError(t, err)

	h.ReceiptChan <- checkpoint

	select {
	case forwarded := <-received:
		require.Equal(t, checkpoint, forwarded)

	case <-time.After(time.Second * 5):
		t.Fatal("checkpoint was not forwarded")
	}
}

func TestHandleCheckpointsDropsInvalid(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	forwarded := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded <- struct{}{}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Handler{
		Endpoint:    server.URL,
		Signer:      crypto.PubkeyToAddress(key.PublicKey),
		ReceiptChan: make(chan wire.SignedCheckpoint, 8),
	}
	h.HandleCheckpoints(ctx)

	checkpoint, err := models.NewSignedCheckpoint(key, "tedx1", 7,
		common.HexToHash("0xbeef"), wire.Now())
	require.NoError(t, err)
	checkpoint.StateHash = common.HexToHash("0xdead").Hex()

	h.ReceiptChan <- checkpoint

	select {
	case <-forwarded:
		t.Fatal("invalid checkpoint was forwarded")

	case <-time.After(time.Millisecond * 250):
	}
}
