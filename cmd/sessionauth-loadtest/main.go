// Command sessionauth-loadtest measures the two per-request hot paths: the
// rate limiter's Redis counters and session token signing plus
// verification.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/maccas-one/sessionauth/internal/rate"
	"github.com/maccas-one/sessionauth/jwt"
	"github.com/maccas-one/sessionauth/role"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		clients     = flag.Int("clients", 10000, "number of distinct client IPs")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (ratecheck + token)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, and ops must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	limiter := rate.New(rate.NewRedisCounter(client), rate.Config{
		Scopes: map[rate.Scope]rate.ScopePolicy{
			rate.ScopeLogin: {
				IP:   rate.Policy{Limit: 1 << 30, Window: time.Hour},
				IPUA: rate.Policy{Limit: 1 << 30, Window: time.Hour},
			},
		},
	})

	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("loadtest-signing-key-0123456789abcdef"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "jwt manager: %v\n", err)
		os.Exit(1)
	}

	rateStats := runRatePhase(ctx, limiter, *clients, *ops, *concurrency)
	tokenStats := runTokenPhase(tokens, *ops, *concurrency)

	if err := limiter.Clear(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "clear failed: %v\n", err)
	}

	fmt.Println("---- results ----")
	printStats("ratecheck", rateStats)
	printStats("token", tokenStats)
}

// runPhase spreads ops across concurrency workers and records per-op latency.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRatePhase(ctx context.Context, limiter *rate.Limiter, clients, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 7919, func(r *rand.Rand, _ int) error {
		n := r.Intn(clients)
		req := rate.Request{
			IP:        fmt.Sprintf("10.%d.%d.%d", (n>>16)&0xFF, (n>>8)&0xFF, n&0xFF),
			UserAgent: "loadtest/1.0",
		}
		d, err := limiter.Check(ctx, rate.ScopeLogin, req)
		if err != nil {
			return err
		}
		if d.Limited {
			return fmt.Errorf("unexpectedly limited on %v", d.Dimensions)
		}
		return nil
	})
}

func runTokenPhase(tokens *jwt.Manager, ops, concurrency int) phaseStats {
	roles := role.NewSet(role.User, role.Points).Names()
	return runPhase(ops, concurrency, 6151, func(_ *rand.Rand, i int) error {
		now := time.Now()
		tok, err := tokens.CreateAccess(fmt.Sprintf("u-%d", i), fmt.Sprintf("s-%d", i), roles, now, now.Add(time.Hour))
		if err != nil {
			return err
		}
		_, err = tokens.ParseAccess(tok)
		return err
	})
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
