package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/epsil/linkgrab/internal/fetch"
	"github.com/epsil/linkgrab/internal/fingerprint"
	"github.com/epsil/linkgrab/internal/metrics"
	"github.com/epsil/linkgrab/internal/storage"
	"github.com/epsil/linkgrab/internal/storage/csvbackend"
	"github.com/epsil/linkgrab/internal/storage/ndjson"
	"github.com/epsil/linkgrab/internal/storage/postgres"
	"github.com/epsil/linkgrab/internal/storage/sqlite"
	"github.com/epsil/linkgrab/pkg/proxy"
	"github.com/epsil/linkgrab/pkg/ratelimit"
	"github.com/epsil/linkgrab/pkg/useragent"
)

const defaultFetchTimeout = 30 * time.Second

// initConfig layers an optional viper config file under the command's flags.
// A flag set on the command line always wins over the file.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()

	cfgFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".linkgrab")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LINKGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			// An explicitly named file must exist and parse.
			if cfgFile != "" {
				return fmt.Errorf("load config file %s: %w", cfgFile, err)
			}
			if !os.IsNotExist(err) {
				return fmt.Errorf("load config file: %w", err)
			}
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed && v.IsSet(f.Name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil && bindErr == nil {
				bindErr = fmt.Errorf("apply config value for %s: %w", f.Name, err)
			}
		}
	})
	return bindErr
}

// setupLogger creates a structured logger based on verbosity setting.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// session bundles the shared pieces every subcommand needs: logger, fetcher,
// audit trail, metrics server.
type session struct {
	logger     *slog.Logger
	fetcher    *fetch.Fetcher
	audit      *recordingBackend
	limiter    *ratelimit.Limiter
	metricsSrv *metrics.Server
}

// newSession builds the shared runtime from the command's flags.
func newSession(cmd *cobra.Command) (*session, error) {
	if err := initConfig(cmd); err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, err
	}
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	var proxyPool *proxy.Pool
	if proxyFile, _ := flags.GetString("proxy-file"); proxyFile != "" {
		proxyPool = proxy.NewPool(proxy.Config{
			MaxFailures: 3,
			Cooldown:    5 * time.Minute,
		})
		if err := proxyPool.LoadFile(proxyFile); err != nil {
			return nil, fmt.Errorf("load proxy file: %w", err)
		}
	}

	var uaPool *useragent.Pool
	if ua, _ := flags.GetString("user-agent"); ua != "" {
		uaPool = useragent.NewStatic(ua)
	}

	var limiter *ratelimit.Limiter
	rps, _ := flags.GetFloat64("rps")
	jitter, _ := flags.GetFloat64("jitter")
	if rps > 0 {
		limiter = ratelimit.NewLimiter(rps, jitter)
	}

	dsn, _ := flags.GetString("audit")
	inner, err := openAudit(cmd.Context(), dsn)
	if err != nil {
		return nil, err
	}
	audit := &recordingBackend{inner: inner}

	fp, _ := flags.GetString("fingerprint")
	fetcher, err := fetch.New(fetch.Config{
		Timeout:      defaultFetchTimeout,
		MaxRedirects: 10,
		ProxyPool:    proxyPool,
		UAPool:       uaPool,
		Fingerprint:  fingerprint.Profile(fp),
		Limiter:      limiter,
		Audit:        audit,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	var srv *metrics.Server
	if port, _ := flags.GetInt("metrics-port"); port > 0 {
		srv = metrics.Start(port)
		logger.Debug("metrics server started", "port", port)
	}

	return &session{
		logger:     logger,
		fetcher:    fetcher,
		audit:      audit,
		limiter:    limiter,
		metricsSrv: srv,
	}, nil
}

// shutdown releases the session's resources. Safe to call once at exit.
func (r *session) shutdown(ctx context.Context) {
	if r.limiter != nil {
		r.limiter.Stop()
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Stop(ctx); err != nil {
			r.logger.Warn("failed to stop metrics server", "err", err)
		}
	}
	if err := r.audit.Close(); err != nil {
		r.logger.Warn("failed to close audit backend", "err", err)
	}
}

// openAudit maps a DSN to a storage backend. An empty DSN disables
// persistence; the recording wrapper still keeps records in memory for the
// run summary.
func openAudit(ctx context.Context, dsn string) (storage.Backend, error) {
	if dsn == "" {
		return nil, nil
	}
	scheme, rest, found := strings.Cut(dsn, "://")
	if !found {
		return nil, fmt.Errorf("invalid audit DSN %q: missing scheme", dsn)
	}
	switch scheme {
	case "sqlite":
		return sqlite.New(rest)
	case "postgres", "postgresql":
		return postgres.New(ctx, dsn)
	case "csv":
		return csvbackend.New(rest)
	case "ndjson":
		return ndjson.New(rest)
	default:
		return nil, fmt.Errorf("unsupported audit DSN scheme %q", scheme)
	}
}

// recordingBackend keeps every saved record in memory for the end-of-run
// summary, forwarding to an optional persistent backend.
type recordingBackend struct {
	mu      sync.Mutex
	records []*storage.FetchRecord
	inner   storage.Backend
}

func (b *recordingBackend) Save(ctx context.Context, rec *storage.FetchRecord) error {
	b.mu.Lock()
	b.records = append(b.records, rec)
	b.mu.Unlock()

	if b.inner != nil {
		return b.inner.Save(ctx, rec)
	}
	return nil
}

func (b *recordingBackend) Query(ctx context.Context, f storage.Filter) ([]*storage.FetchRecord, error) {
	if b.inner != nil {
		return b.inner.Query(ctx, f)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*storage.FetchRecord, 0, len(b.records))
	for _, rec := range b.records {
		if f.URL != "" && !strings.Contains(rec.URL, f.URL) {
			continue
		}
		if f.Blocked != nil && rec.Blocked != *f.Blocked {
			continue
		}
		if f.Since != nil && rec.CreatedAt.Before(*f.Since) {
			continue
		}
		out = append(out, rec)
	}
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (b *recordingBackend) Close() error {
	if b.inner != nil {
		return b.inner.Close()
	}
	return nil
}

// Records returns a snapshot of everything saved during the run.
func (b *recordingBackend) Records() []*storage.FetchRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*storage.FetchRecord, len(b.records))
	copy(out, b.records)
	return out
}
