package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/cart"
	"storefront/checkout"
	"storefront/client"
	"storefront/logger"
)

type options struct {
	apiURL   string
	stateDir string
	redis    string
	logLevel string
	timeout  time.Duration
}

// app is the wiring for one CLI invocation.
type app struct {
	out     io.Writer
	session *checkout.Session
	logger  *zap.Logger
	closers []func() error
}

// printNotifier writes cart feedback the way the shop's toasts would show it.
type printNotifier struct {
	out io.Writer
}

func (n printNotifier) ItemAdded(name string, merged bool) {
	if merged {
		fmt.Fprintf(n.out, "Updated %s in your cart\n", name)
		return
	}
	fmt.Fprintf(n.out, "Added %s to your cart\n", name)
}

func (n printNotifier) PersistFailed(err error) {
	fmt.Fprintf(n.out, "Warning: your cart could not be saved (%v)\n", err)
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shopper"
	}
	return filepath.Join(home, ".shopper")
}

func newApp(opts options, out, errOut io.Writer) (*app, error) {
	log, err := logger.New("development", opts.logLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{out: out, logger: log}

	var storage cart.Storage
	if opts.redis != "" {
		rdb := redis.NewClient(&redis.Options{Addr: opts.redis})
		a.closers = append(a.closers, rdb.Close)
		storage = cart.NewRedisStorage(rdb, "shopper:")
	} else {
		fs, err := cart.NewFileStorage(opts.stateDir)
		if err != nil {
			a.Close()
			return nil, err
		}
		storage = fs
	}

	api, err := client.New(opts.apiURL, opts.timeout)
	if err != nil {
		a.Close()
		return nil, err
	}

	engine := cart.Open(storage, cart.StorageKey, printNotifier{out: errOut}, log)
	a.session = checkout.NewSession(api, engine, log)
	return a, nil
}

// Close releases the Redis client and flushes the logger. It is safe to call
// more than once.
func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
	_ = a.logger.Sync()
}
