package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ambiyansyah-risyal/wapi"
)

const (
	FlagParam           = "param"
	FlagForm            = "form"
	FlagMethod          = "method"
	FlagContent         = "content"
	FlagCacheTime       = "cache-time"
	FlagRepeat          = "repeat"
	FlagAllowDuplicates = "allow-duplicates"
	FlagMetricsAddr     = "metrics-addr"
	FlagOutput          = "output"
)

// result is one row of the get command output.
type result struct {
	Index    int           `yaml:"index"`
	State    string        `yaml:"state"`
	Status   int           `yaml:"status,omitempty"`
	Bytes    int           `yaml:"bytes"`
	Duration time.Duration `yaml:"duration"`
	Error    string        `yaml:"error,omitempty"`
}

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "Start a request one or more times and print how each was resolved",
		Args:  cobra.ExactArgs(1),
		Example: `  # Fetch items twice concurrently; the second start is dropped as a duplicate.
  wapi get items --base-url https://api.example.com/ --param q=books --repeat 2

  # Cache the response for a minute under the content name "items".
  wapi get items --base-url https://api.example.com/ --content items --cache-time 1m`,
		RunE:              runGet,
		DisableAutoGenTag: true,
	}

	flags := cmd.Flags()
	flags.StringArray(FlagParam, nil, "URL parameter as name=value, repeatable")
	flags.StringArray(FlagForm, nil, "form body parameter as name=value, repeatable")
	flags.String(FlagMethod, string(wapi.MethodGet), "HTTP method")
	flags.String(FlagContent, "", "content name to cache the response under")
	flags.Duration(FlagCacheTime, 0, "how long to cache the response; needs --content")
	flags.Int(FlagRepeat, 1, "number of concurrent starts of the same request")
	flags.Bool(FlagAllowDuplicates, false, "run every start instead of dropping duplicates")
	flags.String(FlagMetricsAddr, "", "serve Prometheus metrics on this address until interrupted")
	flags.StringP(FlagOutput, "o", "table", "output format: table or yaml")

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	query, err := paramsFromFlag(cmd, FlagParam)
	if err != nil {
		return err
	}
	form, err := paramsFromFlag(cmd, FlagForm)
	if err != nil {
		return err
	}
	method, _ := cmd.Flags().GetString(FlagMethod)
	content, _ := cmd.Flags().GetString(FlagContent)
	cacheTime, _ := cmd.Flags().GetDuration(FlagCacheTime)
	repeat, _ := cmd.Flags().GetInt(FlagRepeat)
	allowDuplicates, _ := cmd.Flags().GetBool(FlagAllowDuplicates)
	metricsAddr, _ := cmd.Flags().GetString(FlagMetricsAddr)
	output, _ := cmd.Flags().GetString(FlagOutput)

	if repeat < 1 {
		return fmt.Errorf("--%s must be at least 1", FlagRepeat)
	}
	if output != "table" && output != "yaml" {
		return fmt.Errorf("unknown output format %q", output)
	}

	registry := prometheus.NewRegistry()
	options := []wapi.Option{
		wapi.WithMetricsCollector(wapi.NewMetricsCollectorWithRegistry(registry)),
	}
	if allowDuplicates {
		options = append(options, wapi.WithAllowDuplicates(true))
	}
	if content != "" && cacheTime > 0 {
		options = append(options, wapi.WithCache())
	}
	if cfg.Debug {
		cfg.Debug = false
		options = append(options, debugOptions(cmd)...)
	}

	client := wapi.NewFromConfig(cfg, options...)
	if !client.IsValid() {
		return client.ValidationError()
	}

	newRequest := func() *wapi.SimpleRequest {
		return &wapi.SimpleRequest{
			Endpoint: args[0],
			Verb:     wapi.Method(strings.ToUpper(method)),
			Query:    query,
			Form:     form,
			Content:  content,
			TTL:      cacheTime,
		}
	}

	results, err := startConcurrently(ctx, client, repeat, newRequest)
	if err != nil {
		return err
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), client.Timeout())
	defer cancel()
	if err := client.Close(closeCtx); err != nil {
		return fmt.Errorf("waiting for open requests failed: %w", err)
	}

	if err := render(cmd.OutOrStdout(), output, results); err != nil {
		return err
	}

	if metricsAddr == "" {
		return nil
	}
	return serveMetrics(ctx, cmd, metricsAddr, registry)
}

// startConcurrently starts n copies of a request at once and waits for each
// one that was not dropped as a duplicate.
func startConcurrently(ctx context.Context, client *wapi.Client, n int, newRequest func() *wapi.SimpleRequest) ([]result, error) {
	results := make([]result, n)

	eg, egctx := errgroup.WithContext(ctx)
	for i := range n {
		eg.Go(func() error {
			req := newRequest()
			start := time.Now()

			state, err := client.StartRequest(req)
			if err != nil {
				return err
			}

			row := result{Index: i + 1, State: state.String()}
			if state == wapi.RequestInFlight || state == wapi.RequestCacheHit {
				if err := req.Wait(egctx); err != nil && !req.IsResolved() {
					return err
				}
				row.State = resolvedState(state, req)
				if resp := req.Response(); resp != nil {
					row.Status = resp.StatusCode
					row.Bytes = len(resp.Body)
				}
				if err := req.Err(); err != nil {
					row.Error = err.Error()
				}
			}
			row.Duration = time.Since(start)
			results[i] = row
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func resolvedState(started wapi.RequestState, req *wapi.SimpleRequest) string {
	switch {
	case started == wapi.RequestCacheHit:
		return wapi.RequestCacheHit.String()
	case req.HasFailed():
		return wapi.RequestFailed.String()
	default:
		return wapi.RequestCompleted.String()
	}
}

func paramsFromFlag(cmd *cobra.Command, flag string) (*wapi.Params, error) {
	values, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	params := wapi.NewParams()
	for _, value := range values {
		name, v, ok := strings.Cut(value, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--%s %q: expected name=value", flag, value)
		}
		params.Set(name, v)
	}
	return params, nil
}

func serveMetrics(ctx context.Context, cmd *cobra.Command, addr string, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s failed: %w", addr, err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	fmt.Fprintf(cmd.ErrOrStderr(), "serving metrics on http://%s/metrics\n", listener.Addr())

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(egctx), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
