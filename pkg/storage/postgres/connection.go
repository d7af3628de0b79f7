package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/taskhub/pkg/async"
	"github.com/platinummonkey/taskhub/pkg/observability"
)

const (
	defaultDialTimeout   = 10 * time.Second
	defaultPruneInterval = 30 * time.Second
	minReplicaConns      = 2
)

// ClusterConfig describes a writer and its read replicas
type ClusterConfig struct {
	Driver      string // defaults to postgres
	WriterURL   string
	ReaderURLs  []string
	MaxConns    int
	IdleConns   int
	DialTimeout time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
	// PruneInterval > 0 drops readers that stop answering pings
	PruneInterval time.Duration
}

func (c ClusterConfig) withDefaults() ClusterConfig {
	if c.Driver == "" {
		c.Driver = string(DialectPostgres)
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	return c
}

// Cluster routes writes to one database and spreads reads across replicas.
// Every dialed replica stays open for the life of the cluster; Prune only
// moves replicas in and out of the read rotation.
type Cluster struct {
	writer   *sql.DB
	replicas []*sql.DB
	cfg      ClusterConfig

	mu      sync.RWMutex
	readers []*sql.DB // replicas in rotation
	next    atomic.Uint32

	stopPrune context.CancelFunc
	pruning   async.Group
}

// DialCluster connects to the writer, which must answer a ping, and to each
// reader that does. Unreachable readers are logged and left out.
func DialCluster(ctx context.Context, cfg ClusterConfig) (*Cluster, error) {
	cfg = cfg.withDefaults()
	logger := observability.FromContext(ctx).WithField("component", "sql_cluster")

	writer, err := dial(ctx, cfg, cfg.WriterURL, cfg.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}

	c := &Cluster{writer: writer, cfg: cfg}
	readerConns := max(cfg.MaxConns/2, minReplicaConns)
	for i, url := range cfg.ReaderURLs {
		reader, err := dial(ctx, cfg, url, readerConns)
		if err != nil {
			logger.WithError(err).WithField("reader", i).Warn("Reader unavailable, continuing without it")
			continue
		}
		c.replicas = append(c.replicas, reader)
	}
	c.readers = append([]*sql.DB(nil), c.replicas...)

	if cfg.PruneInterval > 0 {
		c.watch(ctx, cfg.PruneInterval)
	}

	logger.WithField("readers", len(c.readers)).Info("SQL cluster ready")
	return c, nil
}

func dial(ctx context.Context, cfg ClusterConfig, url string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, url)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(cfg.IdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// Writer is the database all writes and read-your-write queries use
func (c *Cluster) Writer() *sql.DB {
	return c.writer
}

// Reader picks the next replica in turn, or the writer when none are left
func (c *Cluster) Reader() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.readers) == 0 {
		return c.writer
	}
	n := c.next.Add(1)
	return c.readers[int(n%uint32(len(c.readers)))]
}

func (c *Cluster) snapshot() []*sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*sql.DB(nil), c.readers...)
}

// Check pings everything concurrently. The cluster is unhealthy when the
// writer is down or every replica is.
func (c *Cluster) Check(ctx context.Context) error {
	readers := c.replicas
	failed := make([]bool, len(readers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.writer.PingContext(gctx); err != nil {
			return fmt.Errorf("writer unhealthy: %w", err)
		}
		return nil
	})
	for i, r := range readers {
		g.Go(func() error {
			failed[i] = r.PingContext(ctx) != nil
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	down := 0
	for _, f := range failed {
		if f {
			down++
		}
	}
	if len(readers) > 0 && down == len(readers) {
		return fmt.Errorf("all %d readers unhealthy", down)
	}
	return nil
}

// Prune pings every replica without holding the rotation lock, then swaps in
// the ones that answered. Replicas that recover rejoin on a later Prune.
// It returns how many replicas are out of rotation.
func (c *Cluster) Prune(ctx context.Context) int {
	healthy := make([]bool, len(c.replicas))
	var g errgroup.Group
	for i, r := range c.replicas {
		g.Go(func() error {
			healthy[i] = r.PingContext(ctx) == nil
			return nil
		})
	}
	_ = g.Wait()

	live := make([]*sql.DB, 0, len(c.replicas))
	for i, r := range c.replicas {
		if healthy[i] {
			live = append(live, r)
		}
	}

	c.mu.Lock()
	c.readers = live
	c.mu.Unlock()
	return len(c.replicas) - len(live)
}

func (c *Cluster) watch(parent context.Context, every time.Duration) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	c.stopPrune = cancel
	logger := observability.FromContext(parent).WithField("component", "sql_cluster")

	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.pruning.Go(ctx, every/2, "prune sql readers", func(ctx context.Context) error {
					if n := c.Prune(ctx); n > 0 {
						logger.WithField("out_of_rotation", n).Warn("Replicas failing health checks")
					}
					return nil
				})
				_ = c.pruning.Wait(ctx)
			}
		}
	}()
}

// PoolStats reports database/sql pool counters for the writer and every
// replica, in or out of rotation
type PoolStats struct {
	Writer  sql.DBStats
	Readers []sql.DBStats
}

// Stats snapshots pool counters
func (c *Cluster) Stats() PoolStats {
	readers := c.replicas
	stats := PoolStats{Writer: c.writer.Stats(), Readers: make([]sql.DBStats, len(readers))}
	for i, r := range readers {
		stats.Readers[i] = r.Stats()
	}
	return stats
}

// Close stops pruning and closes every connection
func (c *Cluster) Close() error {
	if c.stopPrune != nil {
		c.stopPrune()
		_ = c.pruning.Wait(context.Background())
	}

	c.mu.Lock()
	c.readers = nil
	c.mu.Unlock()
	readers := c.replicas

	var errs []error
	if err := c.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("writer: %w", err))
	}
	for i, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("reader %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
