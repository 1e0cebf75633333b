package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/reqx/packages/http"
	"github.com/abdul-hamid-achik/reqx/packages/output"
)

// requestFlags describe one request on the command line.
type requestFlags struct {
	headers      []string
	params       []string
	cookies      []string
	data         string
	json         string
	forms        []string
	user         string
	digest       bool
	proxy        string
	insecure     bool
	noRedirect   bool
	maxRedirects int
	outputFile   string
	maxTime      time.Duration
	format       string
	fail         bool

	// set when --max-redirects was given, so 0 means "follow none"
	maxRedirectsSet bool
	session         sessionFlags
}

func (f *requestFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&f.headers, "header", "H", nil, `Request header "Name: value" (repeatable)`)
	fs.StringArrayVarP(&f.params, "param", "q", nil, "Query parameter key=value (repeatable)")
	fs.StringArrayVarP(&f.cookies, "cookie", "b", nil, "Cookie name=value (repeatable)")
	fs.StringVarP(&f.data, "data", "d", "", "Request body, or @file to read it from a file")
	fs.StringVar(&f.json, "json", "", "JSON request body, or @file; sets Content-Type and Accept")
	fs.StringArrayVarP(&f.forms, "form", "F", nil, "Multipart file field=@path (repeatable)")
	fs.StringVarP(&f.user, "user", "u", "", "Credentials user:password")
	fs.BoolVar(&f.digest, "digest", false, "Use digest instead of basic authentication")
	fs.StringVarP(&f.proxy, "proxy", "x", getEnvString("REQX_PROXY", ""), "Proxy URL (env: REQX_PROXY)")
	fs.BoolVarP(&f.insecure, "insecure", "k", getEnvBool("REQX_INSECURE", false), "Skip TLS certificate verification (env: REQX_INSECURE)")
	fs.BoolVar(&f.noRedirect, "no-redirect", false, "Do not follow redirects")
	fs.IntVar(&f.maxRedirects, "max-redirects", 0, "Maximum redirects to follow (default 30)")
	fs.StringVarP(&f.outputFile, "output", "o", "", "Write the response body to a file")
	fs.DurationVarP(&f.maxTime, "max-time", "m", 0, "Timeout for the whole request (e.g., 10s)")
	fs.StringVar(&f.format, "format", getEnvString("REQX_FORMAT", "console"), "Output format: console, json, body (env: REQX_FORMAT)")
	fs.BoolVarP(&f.fail, "fail", "f", false, "Exit with an error on a 4xx or 5xx response")
	f.session.register(fs)
}

// readArg returns s, or the contents of the file when s starts with @.
func readArg(s string) ([]byte, error) {
	if path, ok := strings.CutPrefix(s, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return data, nil
	}
	return []byte(s), nil
}

func splitPair(s, sep, what string) (string, string, error) {
	k, v, ok := strings.Cut(s, sep)
	if !ok || k == "" {
		return "", "", &exitError{code: ExitUsageError, err: fmt.Errorf("invalid %s %q, want key%svalue", what, s, sep)}
	}
	return k, v, nil
}

func (f *requestFlags) build(method, url string) (*http.Request, error) {
	var opts []http.RequestOption

	for _, line := range f.headers {
		name, value, err := splitPair(line, ":", "header")
		if err != nil {
			return nil, err
		}
		opts = append(opts, http.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	for _, p := range f.params {
		k, v, err := splitPair(p, "=", "param")
		if err != nil {
			return nil, err
		}
		opts = append(opts, http.WithParam(k, v))
	}

	if len(f.cookies) > 0 {
		jar := http.NewCookies(nil)
		for _, c := range f.cookies {
			k, v, err := splitPair(c, "=", "cookie")
			if err != nil {
				return nil, err
			}
			jar.Add(k, v)
		}
		opts = append(opts, http.WithCookies(jar))
	}

	switch {
	case f.json != "" && f.data != "":
		return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("--json and --data are mutually exclusive")}
	case f.json != "":
		body, err := readArg(f.json)
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(body) {
			return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("--json is not valid JSON")}
		}
		opts = append(opts,
			http.WithBody(body),
			http.WithHeader("Content-Type", "application/json"),
			http.WithHeader("Accept", "application/json"),
		)
	case f.data != "":
		body, err := readArg(f.data)
		if err != nil {
			return nil, err
		}
		opts = append(opts, http.WithBody(body))
	}

	for _, form := range f.forms {
		field, value, err := splitPair(form, "=", "form field")
		if err != nil {
			return nil, err
		}
		path, ok := strings.CutPrefix(value, "@")
		if !ok {
			return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("form field %q must reference a file as @path", field)}
		}
		opts = append(opts, http.WithFile(field, path))
	}

	if f.user != "" {
		auth := http.ParseAuth(f.user)
		if f.digest {
			opts = append(opts, http.WithDigestAuth(auth.Username, auth.Password))
		} else {
			opts = append(opts, http.WithBasicAuth(auth.Username, auth.Password))
		}
	}

	if f.proxy != "" {
		opts = append(opts, http.WithProxy(f.proxy))
	}
	if f.insecure {
		opts = append(opts, http.WithInsecureSkipVerify())
	}
	if f.noRedirect {
		opts = append(opts, http.WithoutRedirects())
	} else if f.maxRedirectsSet {
		opts = append(opts, http.WithRedirects(f.maxRedirects))
	}
	if f.maxTime > 0 {
		opts = append(opts, http.WithTimeout(f.maxTime))
	}
	if f.outputFile != "" {
		opts = append(opts, http.WithOutputFile(f.outputFile))
	}

	return http.NewRequest(method, url, opts...)
}

func newVerbCommand(method string) *cobra.Command {
	flags := &requestFlags{}
	name := strings.ToLower(method)

	cmd := &cobra.Command{
		Use:   name + " <url>",
		Short: fmt.Sprintf("Send a %s request", method),
		Example: fmt.Sprintf(`  reqx %[1]s https://httpbin.org/anything
  reqx %[1]s https://api.example.com/items -H "Accept: application/json" -q page=2
  reqx %[1]s https://api.example.com/items --json '{"name":"widget"}' -u user:secret`, name),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.maxRedirectsSet = cmd.Flags().Changed("max-redirects")
			return runRequest(cmd, method, args[0], flags)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func runRequest(cmd *cobra.Command, method, url string, flags *requestFlags) error {
	setup, err := newSessionSetup(&flags.session)
	if err != nil {
		return err
	}
	defer setup.close()

	req, err := flags.build(method, url)
	if err != nil {
		return err
	}
	render, err := responseRenderer(cmd, flags.format, setup)
	if err != nil {
		return err
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

	resp, err := session.SendContext(cmd.Context(), req)
	if err != nil {
		return err
	}
	if err := render(resp); err != nil {
		return err
	}

	if flags.fail {
		return resp.RaiseForStatus()
	}
	return nil
}

// responseRenderer picks the output for a single response.
func responseRenderer(cmd *cobra.Command, format string, setup *sessionSetup) (func(*http.Response) error, error) {
	out := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "json":
		f := output.NewJSONFormatter(output.JSONWithWriter(out))
		return f.FormatResponse, nil
	case "body":
		f := output.NewConsoleFormatter(output.WithWriter(out), output.WithBodyOnly(true))
		return func(resp *http.Response) error {
			f.FormatResponse(resp)
			return nil
		}, nil
	case "console", "":
		f := output.NewConsoleFormatter(
			output.WithWriter(out),
			output.WithVerbose(setup.cfg.GetVerbose()),
			output.WithNoColor(setup.cfg.GetNoColor()),
		)
		return func(resp *http.Response) error {
			f.FormatResponse(resp)
			return nil
		}, nil
	}
	return nil, &exitError{code: ExitUsageError, err: fmt.Errorf("unknown format %q", format)}
}
