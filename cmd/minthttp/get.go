package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-i2p/minthttp/lib/metrics"
	"github.com/go-i2p/minthttp/lib/pool"
	"github.com/go-i2p/minthttp/lib/ratelimit"
)

type getOptions struct {
	repeat      int
	wait        time.Duration
	headers     []string
	verbose     bool
	fail        bool
	showMetrics bool
	rate        float64
}

func newGetCmd() *cobra.Command {
	var o getOptions

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Send GET requests over a connection pool",
		Long: `Send one or more GET requests to a URL over a shared connection pool.
Each response prints its status line, the local address it used and
whether the connection was reused. Pool statistics are printed at the end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0], o)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&o.repeat, "repeat", "n", 1, "number of requests to send")
	f.DurationVar(&o.wait, "wait", 0, "pause between requests")
	f.StringArrayVarP(&o.headers, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log each exchange with sensitive values masked")
	f.BoolVar(&o.fail, "fail", false, "exit with an error on 4xx and 5xx responses")
	f.Float64Var(&o.rate, "rate", 0, "maximum requests per second to the destination (0 for no limit)")
	f.BoolVar(&o.showMetrics, "metrics", false, "print metrics in Prometheus text format at the end")
	return cmd
}

func runGet(cmd *cobra.Command, rawURL string, o getOptions) error {
	if o.repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}
	headers, err := parseHeaders(o.headers)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p := pool.New(nil, cfg.PoolConfig())
	defer p.Close()

	var limiter *ratelimit.KeyedLimiter
	if o.rate > 0 {
		limiter = ratelimit.NewKeyed(o.rate, 1, 0)
		defer limiter.Close()
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for i := 0; i < o.repeat; i++ {
		if i > 0 && o.wait > 0 {
			select {
			case <-time.After(o.wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req := cfg.NewRequest().UsePool(p).UseLimiter(limiter)
		for _, h := range headers {
			req.Header(h[0], h[1])
		}
		if o.verbose {
			l := cfg.RequestLogger()
			l.Output = cmd.ErrOrStderr()
			req.UseLogger(l)
		}

		resp, err := req.Get(ctx, rawURL, nil)
		if err != nil {
			return err
		}

		local := "-"
		if resp.LocalAddr != nil {
			local = resp.LocalAddr.String()
		}
		fmt.Fprintf(out, "#%d %s local=%s reused=%v time=%s\n",
			i+1, resp, local, resp.Reused, resp.Timings.Total.Round(time.Microsecond))

		if o.fail {
			if err := resp.Raise(); err != nil {
				return err
			}
		}
	}

	stats := p.Stats()
	fmt.Fprintf(out, "pool: entries=%d idle=%d created=%d reused=%d evicted=%d\n",
		stats.Entries, stats.Idle, stats.Created, stats.Reused, stats.Evicted)

	if o.showMetrics {
		pool.UpdateMetrics(stats)
		fmt.Fprint(out, metrics.Expose())
	}
	return nil
}

// parseHeaders splits "Name: value" flags.
func parseHeaders(raw []string) ([][2]string, error) {
	headers := make([][2]string, 0, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		headers = append(headers, [2]string{name, strings.TrimSpace(value)})
	}
	return headers, nil
}
