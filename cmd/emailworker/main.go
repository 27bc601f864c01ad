package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/refundmyrail/refundmyrail/cache"
	"github.com/refundmyrail/refundmyrail/delay"
	"github.com/refundmyrail/refundmyrail/hsp"
	"github.com/refundmyrail/refundmyrail/mail"
	"github.com/refundmyrail/refundmyrail/queue"
	"github.com/refundmyrail/refundmyrail/report"
	"github.com/refundmyrail/refundmyrail/subs"
)

// The worker runs one batch pass and exits; the weekly cadence comes
// from an external scheduler.
func main() {
	_ = godotenv.Load()

	annualPrice := pflag.Float64("annualprice", delay.DefaultAnnualPrice, "annual season ticket price")
	journeysPerYear := pflag.Int("journeysperyear", delay.DefaultJourneysPerYear, "journeys taken per year")
	cacheDir := pflag.String("cachedir", ".cache", "cache directory used when no redis is configured")
	pause := pflag.Duration("pause", 1500*time.Millisecond, "delay between upstream calls")
	timeout := pflag.Duration("awaittimeout", 30*time.Second, "deadline for waiting on a queued fetch")
	consume := pflag.Bool("consume", true, "run a queue consumer in this process")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	apiKey := os.Getenv("RAIL_API_KEY")
	if apiKey == "" {
		log.Fatal("RAIL_API_KEY is not set")
	}

	store, broker, err := buildBackends(os.Getenv("REDIS_URL"), *cacheDir)
	if err != nil {
		log.Fatal(err)
	}

	subsStore, err := buildSubsStore()
	if err != nil {
		log.Fatal(err)
	}

	client, err := hsp.New(&hsp.Config{APIKey: apiKey})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *consume {
		consumer := queue.NewConsumer(broker, client, store, *pause)
		go consumer.Run(ctx)
	}

	resolver := &queue.Resolver{
		Store: store,
		Queue: queue.New(broker, *timeout),
	}

	orch, err := report.New(&report.Config{
		PerJourneyPrice: delay.PerJourneyPrice(*annualPrice, *journeysPerYear),
	}, resolver, subsStore, mail.NewSender(smtpConfig()))
	if err != nil {
		log.Fatal(err)
	}

	rep, err := orch.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("done: %d subscriptions processed, %d emails sent", rep.Processed, rep.EmailsSent)
	if len(rep.FailedMetrics) > 0 || len(rep.FailedDetails) > 0 {
		log.Warnf("some upstream calls failed: %d service lists, %d detail lookups",
			len(rep.FailedMetrics), len(rep.FailedDetails))
	}
}

// buildBackends selects the shared cache and queue backends: redis when
// configured, local fallbacks otherwise.
func buildBackends(redisURL, cacheDir string) (cache.Store, queue.Broker, error) {
	if redisURL == "" {
		log.Warnf("no REDIS_URL configured, using file cache in %s and an in-process queue", cacheDir)
		store, err := cache.NewFileStore(cacheDir)
		if err != nil {
			return nil, nil, err
		}
		return store, queue.NewMemoryBroker(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	return cache.NewRedisStore(client), queue.NewRedisBroker(client), nil
}

// buildSubsStore connects to the subscription database. Records may
// live in a separate redis instance from the cache.
func buildSubsStore() (subs.Store, error) {
	url := os.Getenv("REDIS_URL_DB")
	if url == "" {
		url = os.Getenv("REDIS_URL")
	}
	if url == "" {
		log.Fatal("REDIS_URL or REDIS_URL_DB is required to read subscriptions")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return subs.NewRedisStore(redis.NewClient(opts)), nil
}

func smtpConfig() *mail.SMTPConfig {
	port := 587
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil {
		port = p
	}
	return &mail.SMTPConfig{
		Host:     envOrDefault("SMTP_HOST", "smtp.gmail.com"),
		Port:     port,
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     os.Getenv("SMTP_FROM"),
	}
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
