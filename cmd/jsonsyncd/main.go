// Command jsonsyncd runs one replica of a synchronized JSON document.
//
// With -origin it owns the document and relays edits; otherwise it follows an
// origin. Replicas talk over websockets by default, or over Redis pub/sub when
// -redis is set, in which case the origin also journals its events to a
// Redis stream for late joiners.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"jsonstore/jsonsync/journal"
	"jsonstore/jsonsync/snapshot"
	"jsonstore/jsonsync/store"
	"jsonstore/jsonsync/synclog"
	"jsonstore/jsonsync/syncpubsub"
	"jsonstore/jsonsync/syncrelay"
)

// Config holds the command line settings.
type Config struct {
	Origin           bool
	Listen           string
	Connect          string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	NodeID           int64
	DocID            string
	SnapshotDir      string
	BadgerDir        string
	SnapshotInterval time.Duration
}

func (c Config) topic() string {
	return "jsonsync:" + c.DocID
}

func (c Config) validate() error {
	if c.DocID == "" {
		return fmt.Errorf("-doc-id must not be empty")
	}
	if c.RedisAddr == "" && !c.Origin && c.Connect == "" {
		return fmt.Errorf("a follower needs -connect or -redis")
	}
	if c.SnapshotDir != "" && c.BadgerDir != "" {
		return fmt.Errorf("-snapshot-dir and -badger-dir are exclusive")
	}
	return nil
}

type daemon struct {
	config  Config
	logger  *zap.Logger
	replica *syncrelay.Replica
	server  *http.Server
	redis   *redis.Client
	closers []func() error
	loops   sync.WaitGroup
	// lost is closed when a websocket follower loses its origin.
	lost <-chan struct{}
}

func newDaemon(config Config) *daemon {
	return &daemon{
		config: config,
		logger: synclog.GetLogger().With(zap.String("doc_id", config.DocID)),
	}
}

func (d *daemon) snapshotAdapter() (snapshot.Adapter, error) {
	switch {
	case d.config.SnapshotDir != "":
		return snapshot.NewFileAdapter(d.config.SnapshotDir)
	case d.config.BadgerDir != "":
		return snapshot.NewBadgerAdapter(d.config.BadgerDir, 0)
	default:
		return nil, nil
	}
}

// initialStore restores the origin's document from its snapshot when one
// exists. Followers always start empty and take the origin's state.
func (d *daemon) initialStore(ctx context.Context, adapter snapshot.Adapter) (*store.Store, error) {
	opts := []store.Option{store.WithOrigin(d.config.Origin)}
	if adapter == nil || !d.config.Origin {
		return store.New(opts...), nil
	}

	s, err := snapshot.Restore(ctx, adapter, d.config.DocID, opts...)
	if errors.Is(err, snapshot.ErrSnapshotNotFound) {
		d.logger.Info("no snapshot found, starting empty")
		return store.New(opts...), nil
	}
	if err != nil {
		return nil, err
	}
	d.logger.Info("restored snapshot")
	return s, nil
}

func (d *daemon) start(ctx context.Context) error {
	adapter, err := d.snapshotAdapter()
	if err != nil {
		return fmt.Errorf("failed to open snapshot storage: %w", err)
	}
	if adapter != nil {
		d.closers = append(d.closers, adapter.Close)
	}

	s, err := d.initialStore(ctx, adapter)
	if err != nil {
		return err
	}
	d.logger.Info("replica created",
		zap.String("replica_id", s.ID().String()),
		zap.Bool("origin", d.config.Origin))

	if d.config.RedisAddr != "" {
		err = d.startRedis(ctx, s)
	} else {
		err = d.startWebsocket(ctx, s)
	}
	if err != nil {
		return err
	}

	if adapter != nil {
		saver := snapshot.NewSaver(adapter, d.config.DocID, d.replica.Dump, d.config.SnapshotInterval)
		d.loops.Add(1)
		go func() {
			defer d.loops.Done()
			saver.Run(ctx)
		}()
	}
	return nil
}

func (d *daemon) startRedis(ctx context.Context, s *store.Store) error {
	d.redis = redis.NewClient(&redis.Options{
		Addr:     d.config.RedisAddr,
		Password: d.config.RedisPassword,
		DB:       d.config.RedisDB,
	})
	d.closers = append(d.closers, d.redis.Close)

	ps, err := syncpubsub.NewRedisPubSub(d.redis, &syncpubsub.Options{ClientID: s.ID().String()})
	if err != nil {
		return err
	}
	d.closers = append(d.closers, ps.Close)

	j, err := journal.NewRedisStreamsJournal(d.redis, d.config.topic()+":journal", d.config.NodeID, 0)
	if err != nil {
		return err
	}
	d.closers = append(d.closers, j.Close)

	var opts []syncrelay.ReplicaOption
	var sink *journal.Sink
	if d.config.Origin {
		sink = journal.NewSink(j)
		opts = append(opts, syncrelay.WithSinks(sink))
	} else {
		// catch up before subscribing; Deliver is not running yet
		last, err := journal.Replay(ctx, j, s, 0)
		if err != nil {
			return err
		}
		d.logger.Info("caught up from journal", zap.Int64("seq", last))
	}

	transport := syncrelay.NewPubSubTransport(ps, d.config.topic(), d.config.Origin, s.ID().String())
	d.replica = syncrelay.NewReplica(s, transport, opts...)
	d.closers = append(d.closers, d.replica.Close)
	if err := d.replica.Start(ctx); err != nil {
		return err
	}

	if d.config.Origin {
		// followers replay from the newest checkpoint, so the journal must
		// start with the origin's full document
		if err := d.checkpoint(); err != nil {
			return fmt.Errorf("failed to journal initial checkpoint: %w", err)
		}
		d.loops.Add(1)
		go func() {
			defer d.loops.Done()
			d.checkpointLoop(ctx, sink)
		}()
	}

	if d.config.Listen != "" {
		d.serveHTTP(http.NewServeMux())
	}
	return nil
}

func (d *daemon) checkpoint() error {
	return d.replica.Do(func(s *store.Store) error {
		_, err := journal.Checkpoint(s)
		return err
	})
}

// checkpointLoop writes a new checkpoint once enough events have piled up
// behind the last one for stream trimming to reach it.
func (d *daemon) checkpointLoop(ctx context.Context, sink *journal.Sink) {
	interval := d.config.SnapshotInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sink.Pending() < journal.CheckpointEvery {
				continue
			}
			if err := d.checkpoint(); err != nil {
				d.logger.Warn("checkpoint failed", zap.Error(err))
				continue
			}
			d.logger.Debug("journal checkpoint written", zap.Int64("seq", sink.LastSeq()))
		}
	}
}

func (d *daemon) startWebsocket(ctx context.Context, s *store.Store) error {
	if !d.config.Origin {
		client, err := syncrelay.Dial(ctx, d.config.Connect, s)
		if err != nil {
			return err
		}
		d.replica = client.Replica()
		d.lost = client.Done()
		d.closers = append(d.closers, d.replica.Close)
		if d.config.Listen != "" {
			d.serveHTTP(http.NewServeMux())
		}
		return nil
	}

	hub := syncrelay.NewHub(s)
	d.replica = hub.Replica()
	d.closers = append(d.closers, d.replica.Close)
	if err := hub.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/sync", hub)
	mux.HandleFunc("/peers", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%d\n", hub.Peers())
	})
	d.serveHTTP(mux)
	return nil
}

func (d *daemon) serveHTTP(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/doc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(d.replica.Dump()))
	})

	d.server = &http.Server{Addr: d.config.Listen, Handler: mux}
	go func() {
		d.logger.Info("listening", zap.String("addr", d.config.Listen))
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("http server failed", zap.Error(err))
		}
	}()
}

func (d *daemon) stop() {
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Warn("http shutdown", zap.Error(err))
		}
		cancel()
	}
	d.loops.Wait()
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("close failed", zap.Error(err))
		}
	}
}

func main() {
	var config Config
	flag.BoolVar(&config.Origin, "origin", false, "own the document and relay edits")
	flag.StringVar(&config.Listen, "listen", ":8080", "HTTP listen address")
	flag.StringVar(&config.Connect, "connect", "", "websocket URL of the origin, e.g. ws://host:8080/sync")
	flag.StringVar(&config.RedisAddr, "redis", "", "Redis address; switches the transport to Redis pub/sub")
	flag.StringVar(&config.RedisPassword, "redis-password", "", "Redis password")
	flag.IntVar(&config.RedisDB, "redis-db", 0, "Redis database number")
	flag.Int64Var(&config.NodeID, "node-id", 1, "journal sequence node id (0-1023)")
	flag.StringVar(&config.DocID, "doc-id", "default", "document id")
	flag.StringVar(&config.SnapshotDir, "snapshot-dir", "", "directory for JSON snapshots")
	flag.StringVar(&config.BadgerDir, "badger-dir", "", "directory for a Badger snapshot database")
	flag.DurationVar(&config.SnapshotInterval, "snapshot-interval", 30*time.Second, "time between snapshots")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	dev := flag.Bool("dev", false, "human readable development logging")
	flag.Parse()

	if err := synclog.ConfigureLogger(*dev, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logger: %v\n", err)
		os.Exit(1)
	}
	defer synclog.GetLogger().Sync()

	if err := config.validate(); err != nil {
		synclog.Error("invalid configuration", zap.Error(err))
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d := newDaemon(config)
	if err := d.start(ctx); err != nil {
		synclog.Error("failed to start", zap.Error(err))
		cancel()
		d.stop()
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
		synclog.Info("shutting down")
		d.stop()
	case <-d.lost:
		// exit so a supervisor restarts the follower; a new connection
		// starts from the origin's greeting
		synclog.Error("lost connection to origin", zap.String("url", config.Connect))
		cancel()
		d.stop()
		os.Exit(1)
	}
}
