// Command gogate-loadtest drives the request gate in-process against Redis and
// reports latency percentiles per phase.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
)

type seeded struct {
	userID string
	token  string
	csrf   string
}

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		users       = flag.Int("users", 1000, "number of distinct principals")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *sessions <= 0 || *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := openRedis(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := buildEngine(client, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	fmt.Printf("seeding %d sessions for %d users...\n", *sessions, *users)
	startSeed := time.Now()
	states := make([]seeded, *sessions)
	for i := range states {
		userID := userName(i % *users)
		issued, err := engine.CreateSession(ctx, userID, session.Fingerprint{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create session: %v\n", err)
			os.Exit(1)
		}
		states[i] = seeded{userID: userID, token: issued.Token, csrf: issued.CSRFToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	checkStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		s := states[r.Intn(len(states))]
		_, err := engine.Check(ctx, goGate.GateRequest{
			Method:      http.MethodGet,
			Token:       s.token,
			Class:       goGate.RouteAPI,
			Permissions: []permission.Permission{permission.MediaRead},
		})
		return err
	})

	ownedStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		s := states[r.Intn(len(states))]
		_, err := engine.Check(ctx, goGate.GateRequest{
			Method:      http.MethodDelete,
			Token:       s.token,
			CSRFCookie:  s.csrf,
			CSRFHeader:  s.csrf,
			Class:       goGate.RouteAPI,
			Permissions: []permission.Permission{permission.MediaDelete},
			Resource:    &permission.Resource{Kind: "media", ID: "m-" + s.userID},
		})
		return err
	})

	fmt.Println("---- results ----")
	printStats("check", checkStats)
	printStats("check-owned", ownedStats)
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func buildEngine(client redis.UniversalClient, users int) (*goGate.Engine, error) {
	key, err := internal.NewSecret(32)
	if err != nil {
		return nil, err
	}
	cfg := goGate.DefaultConfig()
	cfg.Token.PrivateKey = []byte(key)
	cfg.Audit.Enabled = false
	for class := range cfg.RateLimit.Policies {
		cfg.RateLimit.Policies[class].Limit = 1 << 30
	}

	creds := goGate.NewMemoryCredentialStore()
	for i := 0; i < users; i++ {
		creds.Put(goGate.Principal{UserID: userName(i), Identifier: userName(i) + "@load.test", Role: permission.RoleUser})
	}

	return goGate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(creds).
		WithOwnershipResolver(permission.OwnershipFunc(ownerFromID)).
		Build()
}

func userName(i int) string {
	return fmt.Sprintf("u%d", i)
}

// ownerFromID resolves "m-<user>" to "<user>".
func ownerFromID(_ context.Context, r permission.Resource) (string, error) {
	owner, ok := strings.CutPrefix(r.ID, "m-")
	if !ok {
		return "", permission.ErrResourceNotFound
	}
	return owner, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
	firstErr error
}

// runPhase calls op ops times across concurrency workers.
func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		firstErr  atomic.Value
		latencies = make([]time.Duration, ops)
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
				err := op(r)
				latencies[i] = time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					firstErr.CompareAndSwap(nil, errHolder{err})
				}
			}
		}(w)
	}
	wg.Wait()

	stats := computeStats(time.Since(start), latencies, failures)
	if h, ok := firstErr.Load().(errHolder); ok {
		stats.firstErr = h.err
	}
	return stats
}

type errHolder struct{ err error }

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

// percentile expects samples sorted ascending.
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
	if s.firstErr != nil {
		var gerr *goGate.Error
		if errors.As(s.firstErr, &gerr) {
			fmt.Printf("  first failure: %s\n", gerr.Code)
		} else {
			fmt.Printf("  first failure: %v\n", s.firstErr)
		}
	}
}
