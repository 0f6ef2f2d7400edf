package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"github.com/toftlabs/toft/blueprint"
	"github.com/toftlabs/toft/featureflag"
	"github.com/toftlabs/toft/grid"
	tofthttp "github.com/toftlabs/toft/http"
	"github.com/toftlabs/toft/models"
	"github.com/toftlabs/toft/modules"
	"github.com/toftlabs/toft/modules/bjalki"
	"github.com/toftlabs/toft/modules/festa"
	"github.com/toftlabs/toft/modules/merki"
	"github.com/toftlabs/toft/modules/stofa"
	"github.com/toftlabs/toft/receipt"
	"github.com/toftlabs/toft/smoketest"
	"github.com/toftlabs/toft/store"
	toftws "github.com/toftlabs/toft/websocket"
	"github.com/toftlabs/toft/wire"
	"golang.org/x/net/websocket"
)

var (
	// The Toft version number. Set at build.
	version = "v0.3.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "toft_info",
		Help:        "Toft information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"TOFT_ADDR"                  help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"TOFT_ADMIN_ADDR"            help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"TOFT_PUBLIC_ENDPOINT"       help:"The public endpoint where this Toft server is reachable."`
	PrivateKey         string        `cli:""        env:"TOFT_PRIVATE_KEY"           help:"The private key of a Toft server-unique Ethereum-compatible wallet."`
	PrivateKeyFile     string        `cli:""        env:"TOFT_PRIVATE_KEY_FILE"      help:"The file that contains the private key of a Toft server-unique Ethereum-compatible wallet."`
	AuthSecret         string        `cli:""        env:"TOFT_AUTH_SECRET"           help:"The shared secret clients authenticate with. Empty disables authentication."`
	LogLevel           string        `cli:""        env:"TOFT_LOG_LEVEL"             help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"TOFT_LOG_INDENT"            help:"Indent logs."`
	SnapshotPath       string        `cli:""        env:"TOFT_SNAPSHOT_PATH"         help:"The SQLite file where session snapshots are persisted. Empty disables persistence."`
	BlueprintPath      string        `cli:""        env:"TOFT_BLUEPRINT_PATH"        help:"A blueprint file replayed into every new session. Empty starts sessions from an empty grid."`
	RegistryEndpoint   string        `cli:""        env:"TOFT_REGISTRY_ENDPOINT"     help:"Endpoint to where signed checkpoints are forwarded. Empty disables forwarding."`
	SyncClockInterval  time.Duration `cli:",hidden" env:"TOFT_SYNC_CLOCK_INTERVAL"   help:"Client sync clock (heartbeat) message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"TOFT_CLIENT_IDLE_TIMEOUT"   help:"Time until an idle client will be disconnected"`
	FrameDuration      time.Duration `cli:",hidden" env:"TOFT_FRAME_DURATION"        help:"The duration of a session frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"TOFT_LOG_SUMMARY_INTERVAL"  help:"The duration between each log summary by connection."`
	Grid               gridConfig    `cli:",hidden" env:"-"                          help:"Grid engine configuration."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"TOFT_FEATURE_FLAGS"         help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type gridConfig struct {
	Width        int `cli:",hidden" env:"TOFT_GRID_WIDTH"         help:"Grid width in cells. Zero is unbounded."`
	Height       int `cli:",hidden" env:"TOFT_GRID_HEIGHT"        help:"Grid height in cells. Zero is unbounded."`
	Depth        int `cli:",hidden" env:"TOFT_GRID_DEPTH"         help:"Grid depth in cells. Zero is unbounded."`
	HistoryLimit int `cli:",hidden" env:"TOFT_GRID_HISTORY_LIMIT" help:"The number of undoable commits kept per session. Zero is unbounded."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"TOFT_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"TOFT_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"TOFT_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"TOFT_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		SyncClockInterval:  time.Second * 5,
		ClientIdleTimeout:  time.Minute * 5,
		FrameDuration:      time.Millisecond * 15,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Toft server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	privateKey, err := loadPrivateKey(conf)
	if err != nil {
		logs.Fatal(errors.New("error loading private key").Wrap(err))
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "toft",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	engineOptions := engineOptions(conf.Grid)

	initialState, err := loadInitialState(conf.BlueprintPath, engineOptions)
	if err != nil {
		logs.Fatal(errors.New("error building blueprint state").
			WithTag("blueprint_path", conf.BlueprintPath).
			Wrap(err))
	}

	var snapshots toftws.SnapshotStore
	if conf.SnapshotPath != "" {
		s, err := store.Open(conf.SnapshotPath)
		if err != nil {
			logs.Fatal(errors.New("error opening snapshot store").
				WithTag("snapshot_path", conf.SnapshotPath).
				Wrap(err))
		}
		defer s.Close()
		snapshots = s
	}

	walletAddress := crypto.PubkeyToAddress(privateKey.PublicKey)

	receiptChan := make(chan wire.SignedCheckpoint, 128)
	receiptHandler := receipt.Handler{
		Endpoint:    conf.RegistryEndpoint,
		Signer:      walletAddress,
		ReceiptChan: receiptChan,
		Client:      &http.Client{Transport: transport},
	}
	receiptHandler.HandleCheckpoints(ctx)

	sessions := models.SessionStore{}

	var service http.ServeMux
	service.Handle("/health", tofthttp.HandleWithCORS(http.HandlerFunc(tofthttp.HandleHealthCheck)))
	service.Handle("/ready", tofthttp.HandleWithCORS(http.HandlerFunc(tofthttp.HandleReadyCheck(func() bool {
		return true
	}))))
	service.Handle("/version", tofthttp.HandleWithCORS(http.HandlerFunc(tofthttp.HandleVersion(version))))

	service.HandleFunc("/smoke-test", tofthttp.VerifyAuthTokenHandler(conf.AuthSecret, smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint: conf.PublicEndpoint,
		SendResult: func(ctx context.Context, res smoketest.SmokeTestResults) error {
			logs.WithTag("from_endpoint", res.FromEndpoint).
				WithTag("to_endpoint", res.ToEndpoint).
				WithTag("ping_latency", res.PingLatency).
				WithTag("join_latency", res.JoinLatency).
				WithTag("place_latency", res.PlaceLatency).
				WithTag("error", res.Error).
				Info("smoke test completed")
			return nil
		},
	})))

	service.Handle("/", tofthttp.HandleWithCORS(websocket.Server{
		Handshake: tofthttp.VerifyAuthToken(conf.AuthSecret),
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh toftws.Handler = &toftws.RealtimeHandler{
				ClientSyncClockInterval: conf.SyncClockInterval,
				ClientIdleTimeout:       conf.ClientIdleTimeout,
				FrameDuration:           conf.FrameDuration,
				Sessions:                &sessions,
				Modules: []modules.Module{
					&stofa.Module{},
					&bjalki.Module{},
					&festa.Module{},
					&merki.Module{},
				},
				FeatureFlags:  featureflag.New(conf.FeatureFlags),
				PrivateKey:    privateKey,
				ReceiptChan:   receiptChan,
				Snapshots:     snapshots,
				EngineOptions: engineOptions,
				InitialState:  initialState,
			}
			h := toftws.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = toftws.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			toftws.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", tofthttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("wallet_address", strings.ToLower(walletAddress.Hex())).
		Info("starting toft server")

	tofthttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			tofthttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func engineOptions(conf gridConfig) []grid.EngineOption {
	var opts []grid.EngineOption

	if conf.Width > 0 || conf.Height > 0 || conf.Depth > 0 {
		opts = append(opts, grid.WithBounds(grid.Bounds{
			W: conf.Width,
			H: conf.Height,
			D: conf.Depth,
		}))
	}
	if conf.HistoryLimit > 0 {
		opts = append(opts, grid.WithHistory(conf.HistoryLimit))
	}
	return opts
}

// loadInitialState builds the blueprint once at startup. Sessions all start
// from the same immutable state, so sharing the pointer is safe.
func loadInitialState(path string, opts []grid.EngineOption) (func() *grid.State, error) {
	if path == "" {
		return nil, nil
	}

	b, err := blueprint.Load(path)
	if err != nil {
		return nil, err
	}

	state, err := b.Build(opts...)
	if err != nil {
		return nil, err
	}

	logs.WithTag("blueprint", b.Name).
		WithTag("cell_count", state.Len()).
		WithTag("object_count", state.ObjectCount()).
		Info("blueprint loaded")

	return func() *grid.State {
		return state
	}, nil
}

func loadPrivateKey(conf config) (*ecdsa.PrivateKey, error) {
	privateKey := conf.PrivateKey

	if len(conf.PrivateKeyFile) != 0 {
		privateKeyBytes, err := os.ReadFile(conf.PrivateKeyFile)
		if err != nil {
			return nil, errors.New("error loading private key from file").
				WithTag("file_name", conf.PrivateKeyFile).
				Wrap(err)
		}
		privateKey = string(privateKeyBytes)
	}

	privateKey = strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")

	if len(privateKey) == 0 {
		return nil, errors.New("private key is empty")
	}

	return crypto.HexToECDSA(privateKey)
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if len(conf.PrivateKey) != 0 &&
		len(conf.PrivateKeyFile) != 0 {
		return errors.New("have to specify either private key or private key file, not both")
	}

	if len(conf.PrivateKey) == 0 &&
		len(conf.PrivateKeyFile) == 0 {
		return errors.New("have to specify either private key or private key file")
	}

	return nil
}
