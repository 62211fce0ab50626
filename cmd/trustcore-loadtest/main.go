// Command trustcore-loadtest drives concurrent Authorize and Fulfill calls
// against Redis-backed stores and checks that no quota is overspent and no
// job is notified twice.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/MrEthical07/trustcore"
	"github.com/MrEthical07/trustcore/store/redisstore"
)

func main() {
	app := &cli.App{
		Name:  "trustcore-loadtest",
		Usage: "Exercise trustcore quota and fulfillment under contention",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-addr",
				EnvVars: []string{"REDIS_ADDR"},
				Usage:   "redis address; an embedded miniredis is used when empty",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Value:   64,
				Usage:   "number of concurrent workers",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "authorize",
				Usage: "Spend API key quotas concurrently",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "keys", Value: 100, Usage: "number of API keys to seed"},
					&cli.Int64Flag{Name: "quota", Value: 50, Usage: "quota per key"},
					&cli.IntFlag{Name: "ops", Value: 20000, Usage: "total Authorize calls"},
				},
				Action: runAuthorize,
			},
			{
				Name:  "fulfill",
				Usage: "Dispatch the same jobs from many workers",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "jobs", Value: 1000, Usage: "number of pending jobs to seed"},
					&cli.IntFlag{Name: "callers", Value: 8, Usage: "concurrent Fulfill calls per job"},
				},
				Action: runFulfill,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func connect(c *cli.Context) (redis.UniversalClient, func(), error) {
	addr := c.String("redis-addr")
	if addr == "" {
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
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func buildEngine(b *trustcore.Builder) (*trustcore.Engine, error) {
	cfg := trustcore.DefaultConfig()
	cfg.Session.Secret = "loadtest"
	cfg.Metrics.EnableLatencyHistograms = true
	return b.WithConfig(cfg).
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))).
		Build()
}

func runAuthorize(c *cli.Context) error {
	keys, quota, ops, concurrency := c.Int("keys"), c.Int64("quota"), c.Int("ops"), c.Int("concurrency")
	if keys <= 0 || quota <= 0 || ops <= 0 || concurrency <= 0 {
		return cli.Exit("keys, quota, ops and concurrency must be > 0", 2)
	}

	client, cleanup, err := connect(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := c.Context
	store := redisstore.New(client, redisstore.WithPrefix("tc:loadtest:"))
	for i := 0; i < keys; i++ {
		err := store.PutCredential(ctx, trustcore.Credential{
			Identity: trustcore.Identity{ID: int64(i + 1)},
			Key:      keyName(i),
			Quota:    trustcore.Limited(quota),
		})
		if err != nil {
			return fmt.Errorf("seed credential: %w", err)
		}
	}

	engine, err := buildEngine(trustcore.New().WithCredentialStore(store))
	if err != nil {
		return err
	}
	defer engine.Close()

	var (
		cursor    atomic.Int64
		admitted  = make([]atomic.Int64, keys)
		denied    atomic.Int64
		failures  atomic.Int64
		latencies = newSamples(ops)
		wg        sync.WaitGroup
	)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops {
					return
				}
				k := i % keys
				t0 := time.Now()
				_, err := engine.Authorize(ctx, keyName(k))
				latencies.add(time.Since(t0))
				switch {
				case err == nil:
					admitted[k].Add(1)
				case errors.Is(err, trustcore.ErrQuotaExceeded):
					denied.Add(1)
				default:
					failures.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	printStats("authorize", computeStats(time.Since(start), latencies.values(), failures.Load()))
	fmt.Printf("denied=%d\n", denied.Load())

	for k := 0; k < keys; k++ {
		cred, err := store.LookupCredential(ctx, keyName(k))
		if err != nil {
			return fmt.Errorf("read back %s: %w", keyName(k), err)
		}
		if cred.QuotaUsed > quota {
			return cli.Exit(fmt.Sprintf("quota overspent on %s: used %d of %d", keyName(k), cred.QuotaUsed, quota), 1)
		}
		if cred.QuotaUsed != admitted[k].Load() {
			return cli.Exit(fmt.Sprintf("usage mismatch on %s: stored %d, admitted %d", keyName(k), cred.QuotaUsed, admitted[k].Load()), 1)
		}
	}
	fmt.Println("quota invariant holds")
	return nil
}

func runFulfill(c *cli.Context) error {
	jobs, callers, concurrency := c.Int("jobs"), c.Int("callers"), c.Int("concurrency")
	if jobs <= 0 || callers <= 0 || concurrency <= 0 {
		return cli.Exit("jobs, callers and concurrency must be > 0", 2)
	}

	client, cleanup, err := connect(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := c.Context
	store := redisstore.New(client, redisstore.WithPrefix("tc:loadtest:"))
	for i := 0; i < jobs; i++ {
		err := store.PutJob(ctx, trustcore.Job{
			ID:            jobName(i),
			Status:        trustcore.JobPending,
			TargetAddress: "desk@example.org",
			Title:         "Load test complaint",
		})
		if err != nil {
			return fmt.Errorf("seed job: %w", err)
		}
	}

	sent := make([]atomic.Int64, jobs)
	notifier := trustcore.NotifierFunc(func(_ context.Context, n trustcore.Notification) error {
		var idx int
		if _, err := fmt.Sscanf(n.JobID, "job-%d", &idx); err != nil {
			return err
		}
		sent[idx].Add(1)
		return nil
	})

	engine, err := buildEngine(trustcore.New().WithJobStore(store).WithNotifier(notifier))
	if err != nil {
		return err
	}
	defer engine.Close()

	total := jobs * callers
	var (
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = newSamples(total)
		wg        sync.WaitGroup
	)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= total {
					return
				}
				t0 := time.Now()
				if _, err := engine.Fulfill(ctx, jobName(i%jobs)); err != nil {
					failures.Add(1)
				}
				latencies.add(time.Since(t0))
			}
		}()
	}
	wg.Wait()

	printStats("fulfill", computeStats(time.Since(start), latencies.values(), failures.Load()))
	for i := range sent {
		if n := sent[i].Load(); n != 1 {
			return cli.Exit(fmt.Sprintf("%s notified %d times", jobName(i), n), 1)
		}
	}
	fmt.Println("single-dispatch invariant holds")
	return nil
}

func keyName(i int) string { return fmt.Sprintf("key-%d", i) }
func jobName(i int) string { return fmt.Sprintf("job-%d", i) }
