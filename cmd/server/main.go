package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/refundmyrail/refundmyrail/cache"
	"github.com/refundmyrail/refundmyrail/hsp"
	"github.com/refundmyrail/refundmyrail/queue"
	"github.com/refundmyrail/refundmyrail/server"
)

func main() {
	_ = godotenv.Load()

	listAddr := pflag.StringP("listenaddr", "l", ":8080", "http listen address")
	tlsListAddr := pflag.StringP("tlsaddr", "t", ":8443", "https listen address")
	tlsKey := pflag.StringP("tlskey", "k", "", "TLS private key file path")
	tlsCert := pflag.StringP("tlscert", "c", "", "TLS certificate file path")
	tlsOnly := pflag.BoolP("tlsonly", "s", false, "Only serve TLS")
	cacheDir := pflag.String("cachedir", ".cache", "cache directory used when no redis is configured")
	pause := pflag.Duration("pause", 1500*time.Millisecond, "delay between upstream calls")
	timeout := pflag.Duration("awaittimeout", 30*time.Second, "deadline for waiting on a queued fetch")
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

	client, err := hsp.New(&hsp.Config{APIKey: apiKey})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(broker, client, store, *pause)
	go consumer.Run(ctx)

	resolver := &queue.Resolver{
		Store: store,
		Queue: queue.New(broker, *timeout),
	}

	s, err := server.New(&server.Config{
		ListenAddr:    *listAddr,
		TLSListenAddr: *tlsListAddr,
		TLSOnly:       *tlsOnly,
		TLS: &server.TLSConfig{
			KeyFile:  *tlsKey,
			CertFile: *tlsCert,
		},
		Verbose: *verbose,
	}, resolver)
	if err != nil {
		log.Fatal(err)
	}

	s.ListenAndServe()
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
