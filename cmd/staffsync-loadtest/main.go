package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/staffsync/notify"
	"github.com/MrEthical07/staffsync/storage/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// countingConn is a hub connection that only counts deliveries.
type countingConn struct {
	id       string
	received atomic.Int64
}

func (c *countingConn) ID() string { return c.id }

func (c *countingConn) Send(notify.Event) error {
	c.received.Add(1)
	return nil
}

func (c *countingConn) Close() error { return nil }

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users with a live connection")
		connsPer    = flag.Int("conns", 2, "live connections per user")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (create + read + count)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "key prefix")
	)
	flag.Parse()

	if *users <= 0 || *connsPer <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, conns, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	hub := notify.NewHub(notify.WithHubLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	svc := notify.NewService(redisstore.New(client, *prefix), hub)

	owners := make([]string, *users)
	conns := make([]*countingConn, 0, (*users)*(*connsPer))
	for i := range owners {
		owners[i] = fmt.Sprintf("user-%d", i)
		for j := 0; j < *connsPer; j++ {
			c := &countingConn{id: uuid.NewString()}
			hub.Join(c, owners[i])
			conns = append(conns, c)
		}
	}
	fmt.Printf("joined %d connections across %d rooms\n", len(conns), hub.Stats().Rooms)

	var (
		idsMu sync.Mutex
		ids   = make([]string, 0, *ops)
	)
	createStats := runPhase(*ops, *concurrency, func(r *rand.Rand, i int) error {
		n, err := svc.Create(ctx, owners[r.Intn(len(owners))], fmt.Sprintf("load %d", i), "generated", notify.KindInfo)
		if err != nil {
			return err
		}
		idsMu.Lock()
		ids = append(ids, n.ID)
		idsMu.Unlock()
		return nil
	})
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "create phase produced no notifications")
		os.Exit(1)
	}

	readStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := svc.MarkAsRead(ctx, ids[r.Intn(len(ids))])
		return err
	})
	countStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		_, err := svc.UnreadCount(ctx, owners[r.Intn(len(owners))])
		return err
	})

	var delivered int64
	for _, c := range conns {
		delivered += c.received.Load()
	}
	stats := hub.Stats()

	fmt.Println("---- results ----")
	printStats("create", createStats)
	printStats("read", readStats)
	printStats("unread-count", countStats)
	fmt.Printf("hub: delivered=%d dropped=%d evicted=%d conn_received=%d\n",
		stats.Delivered, stats.Dropped, stats.Evicted, delivered)
}

// runPhase runs ops calls of fn across concurrency workers and records each
// call's latency.
func runPhase(ops, concurrency int, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
