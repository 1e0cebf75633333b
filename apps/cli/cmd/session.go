package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/abdul-hamid-achik/reqx/packages/core/config"
	"github.com/abdul-hamid-achik/reqx/packages/history"
	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// sessionFlags override config file settings for the sessions a command
// opens.
type sessionFlags struct {
	connectTimeout time.Duration
	cookieJar      string
	compressed     bool
	rateLimit      float64
	maxBody        int64
}

func (f *sessionFlags) register(fs *pflag.FlagSet) {
	fs.DurationVar(&f.connectTimeout, "connect-timeout", 0, "Connect timeout (e.g., 5s)")
	fs.StringVarP(&f.cookieJar, "cookie-jar", "c", getEnvString("REQX_COOKIE_JAR", ""), "Load and save cookies in this Netscape cookie file (env: REQX_COOKIE_JAR)")
	fs.BoolVar(&f.compressed, "compressed", false, "Request a compressed response and decode it")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "Limit every session to this many requests per second")
	fs.Int64Var(&f.maxBody, "max-body", 0, "Maximum response body size in bytes")
}

// overrides turns the set flags into a config layer for Merge.
func (f *sessionFlags) overrides() *config.Config {
	o := &config.Config{
		ConnectTimeout: int(f.connectTimeout.Milliseconds()),
		CookieJar:      f.cookieJar,
		RateLimit:      f.rateLimit,
		MaxBodySize:    f.maxBody,
		History:        historyFlag,
	}
	if f.compressed {
		o.Compression = config.BoolPtr(true)
	}
	if noColorFlag {
		o.NoColor = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		o.Verbose = config.BoolPtr(true)
	}
	return o
}

// sessionSetup holds what a command needs to open sessions: options
// derived from config and flags, and the history recorder if one is
// configured.
type sessionSetup struct {
	cfg      *config.Config
	log      *slog.Logger
	opts     []http.Option
	recorder *history.Recorder
}

func newSessionSetup(f *sessionFlags) (*sessionSetup, error) {
	base, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := base.Merge(f.overrides())
	if err := config.Validate(cfg); err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}

	log := newLogger()
	opts, err := cfg.SessionOptions()
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}
	opts = append(opts, http.WithLogger(log))

	setup := &sessionSetup{cfg: cfg, log: log, opts: opts}
	if cfg.History != "" {
		rec, err := history.Open(cfg.History, log)
		if err != nil {
			return nil, &exitError{code: ExitConfigError, err: err}
		}
		setup.recorder = rec
		setup.opts = append(setup.opts, http.WithHook(rec))
	}
	return setup, nil
}

func (s *sessionSetup) newSession() (*http.Session, error) {
	return http.NewSession(s.opts...)
}

func (s *sessionSetup) newPool(size int) *http.Pool {
	if size <= 0 {
		size = s.cfg.PoolSize
	}
	return http.NewPool(size, s.opts...)
}

func (s *sessionSetup) close() {
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.log.Warn("closing history", "error", err)
		}
	}
}
