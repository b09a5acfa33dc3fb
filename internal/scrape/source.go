package scrape

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/boostwatch/boostwatch/internal/models"
)

// Source produces one snapshot of the currently promoted odds.
type Source interface {
	Snapshot(ctx context.Context) ([]models.MarketQuote, error)
}

// Config drives the headless-browser source.
type Config struct {
	URL           string
	WaitSelector  string
	UserAgent     string
	RenderTimeout time.Duration
	FetchRetries  int
	RetryDelay    time.Duration
	// MinInterval is the politeness floor between page loads, independent
	// of how often the watcher asks for a snapshot.
	MinInterval time.Duration
	// Breaker knobs. Zero values fall back to 5 consecutive failures and a
	// 2m cooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// ChromeSource renders the promotions page in headless Chrome and parses
// the result. The card list is built client-side, so a plain HTTP GET
// returns an empty shell.
type ChromeSource struct {
	cfg     Config
	parser  *Parser
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger

	// render is swapped out in tests; everything else in Snapshot is
	// exercised as-is.
	render func(ctx context.Context) (string, error)
	now    func() time.Time
}

func NewChromeSource(cfg Config, log zerolog.Logger) *ChromeSource {
	s := &ChromeSource{
		cfg:     cfg,
		parser:  NewParser(log),
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		log:     log,
		now:     time.Now,
	}
	s.render = s.renderPage

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "promotions-page",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("scrape breaker state change")
		},
	})
	return s
}

// Snapshot fetches and parses the page. Failures surface as *SnapshotError
// so the watcher can apply its backoff policy.
func (s *ChromeSource) Snapshot(ctx context.Context) ([]models.MarketQuote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &SnapshotError{Stage: "fetch", Err: err}
	}

	html, err := s.fetchWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	return s.parser.Parse(html, s.now())
}

func (s *ChromeSource) fetchWithRetry(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.FetchRetries; attempt++ {
		if attempt > 0 {
			s.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("retrying page render")
			select {
			case <-ctx.Done():
				return "", &SnapshotError{Stage: "fetch", Err: ctx.Err()}
			case <-time.After(s.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		result, err := s.breaker.Execute(func() (any, error) {
			return s.render(ctx)
		})
		if err == nil {
			return result.(string), nil
		}
		lastErr = err
		// An open breaker or a dead context will not heal within this
		// retry loop.
		if errors.Is(err, gobreaker.ErrOpenState) || ctx.Err() != nil {
			break
		}
	}

	var scrapeErr *SnapshotError
	if errors.As(lastErr, &scrapeErr) {
		return "", scrapeErr
	}
	return "", &SnapshotError{Stage: "fetch", Err: lastErr}
}

func (s *ChromeSource) renderPage(ctx context.Context) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, s.cfg.RenderTimeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(s.cfg.URL),
		chromedp.WaitVisible(s.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &SnapshotError{Stage: "render", Err: err}
	}
	return html, nil
}
