package seeder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
	"github.com/GenivalfSilva/Sistema-Compras/internal/client"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
)

// Config controls a seeding run.
type Config struct {
	// Count is how many solicitations to create.
	Count int
	// Quotations added to each created solicitation. Needs procurement
	// permission.
	Quotations int
	// Concurrency bounds the requests in flight.
	Concurrency int
	// Seed makes the generated data reproducible when non-zero.
	Seed int64
}

// Result summarises a run.
type Result struct {
	Created    []int64
	Quotations int
	Failed     int
	Duration   time.Duration
}

// Runner creates data through an authenticated API client.
type Runner struct {
	client *client.Client
	cfg    Config
	logger *logging.Logger
}

func NewRunner(c *client.Client, cfg Config, logger *logging.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{client: c, cfg: cfg, logger: logger}
}

// Run creates the configured data. Individual failures are counted and
// logged; an expired session or a cancelled context stops the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	// Payloads are generated up front so a seed gives the same data
	// regardless of scheduling.
	gen := NewGenerator(r.cfg.Seed)
	payloads := make([]model.NewSolicitation, r.cfg.Count)
	quotes := make([][]model.Quotation, r.cfg.Count)
	for i := range payloads {
		payloads[i] = gen.Solicitation()
		qty := 1.0
		if len(payloads[i].Itens) > 0 {
			qty = payloads[i].Itens[0].Quantidade
		}
		for range r.cfg.Quotations {
			quotes[i] = append(quotes[i], gen.Quotation(qty))
		}
	}

	var (
		mu  sync.Mutex
		res Result
	)
	fail := func(err error, attrs ...any) error {
		if apperr.KindOf(err) == apperr.KindSessionExpired || errors.Is(err, context.Canceled) {
			return err
		}
		mu.Lock()
		res.Failed++
		mu.Unlock()
		r.logger.WarnContext(ctx, "seed request failed", append(attrs, logging.Error(err))...)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i := range payloads {
		g.Go(func() error {
			sol, err := r.client.CreateSolicitation(gctx, payloads[i])
			if err != nil {
				return fail(err, slog.Int("index", i))
			}
			mu.Lock()
			res.Created = append(res.Created, sol.ID)
			mu.Unlock()

			for _, q := range quotes[i] {
				if _, err := r.client.AddQuotation(gctx, sol.ID, q); err != nil {
					if err := fail(err, logging.Solicitation(sol.ID)); err != nil {
						return err
					}
					continue
				}
				mu.Lock()
				res.Quotations++
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()

	res.Duration = time.Since(start)
	r.logger.InfoContext(ctx, "seed finished",
		slog.Int("created", len(res.Created)), slog.Int("quotations", res.Quotations),
		slog.Int("failed", res.Failed), logging.Duration(res.Duration.Milliseconds()))
	return &res, err
}
