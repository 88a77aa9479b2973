package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/time/rate"

	groupbuyv1 "github.com/kkkkikiki/groupbuy/internal/api/groupbuyv1"
)

// PerfResult gathers aggregated metrics for the test run.
// Atomic counters are used to avoid lock-contention on hot paths.
// LatencySum & P95Latency are in nanoseconds.
//
// P95Latency is maintained via a lightweight reservoir sampler.
type PerfResult struct {
	TotalRequests  int64
	SuccessCount   int64
	RejectedCount  int64 // capacity or window rejections reported by the engine
	ErrorCount     int64
	PlacedQuantity int64
	LatencySum     int64
	P95Latency     int64
}

type perfConfig struct {
	BaseURL    string        `env:"BASE_URL,default=http://localhost:8080"`
	CampaignID string        `env:"CAMPAIGN_ID,required"`
	OfferID    string        `env:"OFFER_ID,required"`
	Quantity   int64         `env:"QUANTITY,default=1"`
	RPS        int           `env:"RPS,default=700"`
	Workers    int           `env:"WORKERS,default=50"`
	Duration   time.Duration `env:"DURATION,default=30s"`
}

const defaultTimeout = 30 * time.Second

func main() {
	cfg, err := loadPerfConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// ─── HTTP Client & Transport ─────────────────────────────────
	transport := &http.Transport{
		MaxIdleConns:        cfg.Workers * 4,
		MaxIdleConnsPerHost: cfg.Workers * 4,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}

	client := groupbuyv1.NewGroupbuyServiceClient(httpClient, cfg.BaseURL)

	before, err := campaignTotal(client, cfg.CampaignID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read campaign summary: %v\n", err)
		os.Exit(1)
	}

	// ─── Banner ──────────────────────────────────────────────────
	fmt.Println("==========================================")
	fmt.Println("Group-buy order load test")
	fmt.Println("==========================================")
	fmt.Printf("Campaign ID    : %s\n", cfg.CampaignID)
	fmt.Printf("Offer ID       : %s\n", cfg.OfferID)
	fmt.Printf("Quantity/order : %d\n", cfg.Quantity)
	fmt.Printf("RPS            : %d\n", cfg.RPS)
	fmt.Printf("Duration       : %v\n", cfg.Duration)
	fmt.Println("==========================================")

	// ─── Rate limiter & context ─────────────────────────────────
	burst := cfg.RPS / cfg.Workers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), burst)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var result PerfResult
	var wg sync.WaitGroup

	// latencyChan collects latencies for P95 estimation.
	latencyChan := make(chan time.Duration, 4096)
	trackerDone := make(chan struct{})
	go func() {
		trackP95(latencyChan, &result)
		close(trackerDone)
	}()

	// Every request comes from a fresh participant so each success is a new order.
	runID := uuid.NewString()[:8]
	var seq int64

	// ─── Workers ────────────────────────────────────────────────
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil { // context cancelled, exit
					return
				}
				participantID := fmt.Sprintf("perf-%s-%d", runID, atomic.AddInt64(&seq, 1))
				placeOrder(client, cfg, participantID, &result, latencyChan)
			}
		}()
	}

	start := time.Now()
	<-ctx.Done() // wait for duration

	// ─── Cleanup ────────────────────────────────────────────────
	wg.Wait()
	close(latencyChan)
	<-trackerDone

	totalDur := time.Since(start)

	// ─── Report ─────────────────────────────────────────────────
	fmt.Println("==========================================")
	fmt.Println("Results")
	fmt.Println("==========================================")
	fmt.Printf("Elapsed          : %.2fs\n", totalDur.Seconds())
	fmt.Printf("Total requests   : %d\n", result.TotalRequests)
	fmt.Printf("Placed orders    : %d\n", result.SuccessCount)
	fmt.Printf("Rejected orders  : %d\n", result.RejectedCount)
	fmt.Printf("Failed requests  : %d\n", result.ErrorCount)

	var avgLatency time.Duration
	if result.SuccessCount > 0 {
		avgLatency = time.Duration(result.LatencySum / result.SuccessCount)
	}
	var successRate float64
	if result.TotalRequests > 0 {
		successRate = float64(result.SuccessCount) / float64(result.TotalRequests) * 100
	}

	fmt.Printf("Actual RPS       : %.2f\n", float64(result.SuccessCount)/totalDur.Seconds())
	fmt.Printf("Success rate     : %.2f%%\n", successRate)
	fmt.Printf("Average latency  : %v\n", avgLatency)
	fmt.Printf("P95 latency      : %v\n", time.Duration(atomic.LoadInt64(&result.P95Latency)))
	fmt.Println("==========================================")

	// ─── Data Consistency Check ─────────────────────────────────
	fmt.Println("Aggregate consistency")
	fmt.Println("==========================================")

	if err := verifyDataConsistency(client, cfg.CampaignID, before, result.PlacedQuantity); err != nil {
		fmt.Printf("FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK: campaign total matches placed quantity")
	fmt.Println("==========================================")
}

func loadPerfConfig() (perfConfig, error) {
	var cfg perfConfig
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper("PERF_", envconfig.OsLookuper()),
	}); err != nil {
		return cfg, err
	}

	switch {
	case cfg.Quantity < 1:
		return cfg, fmt.Errorf("PERF_QUANTITY must be at least 1, got %d", cfg.Quantity)
	case cfg.RPS < 1:
		return cfg, fmt.Errorf("PERF_RPS must be at least 1, got %d", cfg.RPS)
	case cfg.Workers < 1:
		return cfg, fmt.Errorf("PERF_WORKERS must be at least 1, got %d", cfg.Workers)
	case cfg.Duration <= 0:
		return cfg, fmt.Errorf("PERF_DURATION must be positive, got %s", cfg.Duration)
	}
	return cfg, nil
}

// placeOrder performs a single CreateOrUpdateOrder RPC and collects metrics.
func placeOrder(client *groupbuyv1.GroupbuyServiceClient, cfg perfConfig, participantID string, result *PerfResult, latencyChan chan<- time.Duration) {
	// Use independent context to avoid cancellation when test ends
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	req := connect.NewRequest(&groupbuyv1.CreateOrUpdateOrderRequest{
		CampaignID:    cfg.CampaignID,
		OfferID:       cfg.OfferID,
		ParticipantID: participantID,
		Quantity:      cfg.Quantity,
	})

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)

	resp, err := client.CreateOrUpdateOrder(ctx, req)
	latency := time.Since(start)

	if err != nil {
		if groupbuyv1.ErrorCode(err) != "" {
			atomic.AddInt64(&result.RejectedCount, 1)
		} else {
			atomic.AddInt64(&result.ErrorCount, 1)
		}
		return
	}
	if resp.Msg.Order == nil || resp.Msg.Order.ID == "" {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}

	atomic.AddInt64(&result.SuccessCount, 1)
	atomic.AddInt64(&result.PlacedQuantity, resp.Msg.Order.Quantity)
	atomic.AddInt64(&result.LatencySum, latency.Nanoseconds())
	select {
	case latencyChan <- latency:
	default:
	}
}

// trackP95 maintains a best-effort rolling P95 latency estimation.
func trackP95(latencies <-chan time.Duration, result *PerfResult) {
	const size = 1000
	buf := make([]int64, 0, size)

	for lat := range latencies {
		if len(buf) < size {
			buf = append(buf, lat.Nanoseconds())
		} else {
			// Replace random element (simple reservoir sampling)
			if idx := time.Now().UnixNano() % int64(size); idx < int64(size/10) {
				buf[idx] = lat.Nanoseconds()
			}
		}

		// Update P95 periodically
		if len(buf) >= 100 && len(buf)%100 == 0 {
			atomic.StoreInt64(&result.P95Latency, percentile(buf, 0.95))
		}
	}
}

func percentile(samples []int64, p float64) int64 {
	sorted := make([]int64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func campaignTotal(client *groupbuyv1.GroupbuyServiceClient, campaignID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.GetQuantitySummary(ctx, connect.NewRequest(&groupbuyv1.GetQuantitySummaryRequest{
		CampaignID: campaignID,
	}))
	if err != nil {
		return 0, fmt.Errorf("failed to get quantity summary: %w", err)
	}
	return resp.Msg.TotalQuantity, nil
}

// verifyDataConsistency checks that the campaign's live quantity grew by exactly
// what the successful orders placed
func verifyDataConsistency(client *groupbuyv1.GroupbuyServiceClient, campaignID string, before, placed int64) error {
	after, err := campaignTotal(client, campaignID)
	if err != nil {
		return err
	}

	fmt.Printf("Campaign ID        : %s\n", campaignID)
	fmt.Printf("Total before run   : %d\n", before)
	fmt.Printf("Total after run    : %d\n", after)
	fmt.Printf("Placed by this run : %d\n", placed)

	if got := after - before; got != placed {
		return fmt.Errorf("quantity mismatch: store grew by %d, client placed %d, diff %d", got, placed, got-placed)
	}
	return nil
}
