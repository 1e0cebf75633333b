package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/reqx/packages/core/config"
	"github.com/abdul-hamid-achik/reqx/packages/core/vars"
	"github.com/abdul-hamid-achik/reqx/packages/http"
	"github.com/abdul-hamid-achik/reqx/packages/output"
)

var sendCmd = &cobra.Command{
	Use:   "send <file.yaml>...",
	Short: "Send requests described in YAML request files",
	Long: `Send one or more requests described in YAML request files, in order,
through a single session, and check each response against the file's
expect block.

Values captured from one response are available to the files after it
as {{name}} placeholders, alongside --var values and {{$ENV}} lookups.

Examples:
  reqx send login.yaml profile.yaml
  reqx send create.yaml --var base=http://localhost:8080 --env-file .env
  reqx send create.yaml --format junit --output-file report.xml
  reqx send create.yaml --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

var (
	sendFormatFlag     string
	sendOutputFileFlag string
	sendWatchFlag      bool
	sendBailFlag       bool
	sendVarFlags       []string
	sendEnvFileFlags   []string
	sendSessionFlags   sessionFlags
)

func init() {
	sendCmd.Flags().StringVar(&sendFormatFlag, "format", getEnvString("REQX_FORMAT", "console"), "Output format: console, json, junit, tap (env: REQX_FORMAT)")
	sendCmd.Flags().StringVar(&sendOutputFileFlag, "output-file", "", "Write output to file (default: stdout)")
	sendCmd.Flags().BoolVarP(&sendWatchFlag, "watch", "w", false, "Watch the request files and send again on change")
	sendCmd.Flags().BoolVar(&sendBailFlag, "bail", false, "Stop at the first failed request")
	sendCmd.Flags().StringArrayVar(&sendVarFlags, "var", nil, "Variable name=value for {{name}} placeholders (repeatable)")
	sendCmd.Flags().StringArrayVar(&sendEnvFileFlags, "env-file", nil, "Load .env values for {{$NAME}} placeholders (repeatable)")
	sendSessionFlags.register(sendCmd.Flags())
}

type runFormatter interface {
	FormatRun(run *output.Run)
}

type flushable interface {
	Flush(totalDuration time.Duration) error
}

func newRunFormatter(format string, w io.Writer, cfg *config.Config) (runFormatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w)), nil
	case "tap":
		return output.NewTAPFormatter(output.TAPWithWriter(w)), nil
	case "console", "":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(cfg.GetVerbose()),
			output.WithNoColor(cfg.GetNoColor()),
		), nil
	}
	return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("unknown format %q", format)}
}

func runSend(cmd *cobra.Command, args []string) error {
	setup, err := newSessionSetup(&sendSessionFlags)
	if err != nil {
		return err
	}
	defer setup.close()

	var out io.Writer = cmd.OutOrStdout()
	if sendOutputFileFlag != "" {
		f, err := os.Create(sendOutputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	session, err := setup.newSession()
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			setup.log.Warn("closing session", "error", err)
		}
	}()

	base, err := newResolver(sendVarFlags, sendEnvFileFlags)
	if err != nil {
		return err
	}
	base.SetWarnFunc(setup.log.Warn)

	once := func() (*output.Run, error) {
		formatter, err := newRunFormatter(sendFormatFlag, out, setup.cfg)
		if err != nil {
			return nil, err
		}
		run, err := sendFiles(cmd.Context(), session, base.Clone(), args, sendBailFlag)
		if err != nil {
			return nil, err
		}
		formatter.FormatRun(run)
		if fl, ok := formatter.(flushable); ok {
			if err := fl.Flush(run.Duration); err != nil {
				return nil, fmt.Errorf("error writing output: %w", err)
			}
		}
		return run, nil
	}

	run, err := once()
	if err != nil {
		return err
	}

	if !sendWatchFlag {
		if _, failed, errored := run.Counts(); failed+errored > 0 {
			return &exitError{code: ExitFailure, err: fmt.Errorf("%d of %d requests failed", failed+errored, len(run.Results))}
		}
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n")
	var mu sync.Mutex
	return config.Watch(cmd.Context(), args, func(path string) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(cmd.ErrOrStderr(), "\nFile changed: %s\nSending again...\n", path)
		session.Reset()
		if _, err := once(); err != nil {
			output.NewConsoleFormatter(output.WithWriter(cmd.ErrOrStderr())).FormatError(err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n")
	})
}

// newResolver seeds a resolver with name=value pairs and .env files.
func newResolver(pairs, envFiles []string) (*vars.Resolver, error) {
	r := vars.NewResolver()
	for _, path := range envFiles {
		values, err := vars.LoadDotEnv(path)
		if err != nil {
			return nil, &exitError{code: ExitConfigError, err: err}
		}
		r.SetDotEnv(values)
	}
	for _, pair := range pairs {
		name, value, err := splitPair(pair, "=", "variable")
		if err != nil {
			return nil, err
		}
		r.SetVariable(name, value)
	}
	return r, nil
}

// sendFiles sends each request file in order through s, expanding
// placeholders with r and feeding captures back into it. Files that fail
// to parse abort the run before anything is sent.
func sendFiles(ctx context.Context, s *http.Session, r *vars.Resolver, paths []string, bail bool) (*output.Run, error) {
	if r == nil {
		r = vars.NewResolver()
	}
	files := make([]*config.RequestFile, len(paths))
	for i, p := range paths {
		rf, err := config.LoadRequestFile(p)
		if err != nil {
			return nil, &exitError{code: ExitParseError, err: fmt.Errorf("%s: %w", p, err)}
		}
		files[i] = rf
	}

	run := &output.Run{Source: strings.Join(paths, ", ")}
	start := time.Now()
	for i, rf := range files {
		result := sendFile(ctx, s, r, paths[i], rf)
		run.Results = append(run.Results, result)
		if bail && !result.Passed() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	run.Duration = time.Since(start)
	return run, nil
}

func sendFile(ctx context.Context, s *http.Session, r *vars.Resolver, path string, rf *config.RequestFile) output.Result {
	rf = rf.Resolve(r)
	result := output.Result{Name: rf.Name, Method: rf.Method, URL: rf.URL}
	if result.Name == "" {
		result.Name = filepath.Base(path)
	}
	if result.Method == "" {
		result.Method = http.MethodGet
	}

	req, err := rf.Build()
	if err != nil {
		result.Err = err
		return result
	}

	start := time.Now()
	resp, err := s.SendContext(ctx, req)
	result.Duration = time.Since(start)
	result.Response = resp
	if err != nil {
		result.Err = err
		return result
	}

	if missing := rf.Capture(resp, r); len(missing) > 0 {
		r.Warn("captures not found", "request", result.Name, "names", missing)
	}

	checks, err := rf.Check(resp)
	result.Checks = checks
	if err != nil {
		result.Err = err
	}
	return result
}
