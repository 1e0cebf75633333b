package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// RequestFile describes one request in YAML:
//
//	method: POST
//	url: https://api.example.com/items
//	headers:
//	  Accept: application/json
//	json:
//	  name: widget
//	expect:
//	  status: 201
//	capture:
//	  itemId: id
//
// String fields may hold {{...}} placeholders, expanded by Resolve.
type RequestFile struct {
	Name            string            `yaml:"name,omitempty"`
	Method          string            `yaml:"method,omitempty" validate:"omitempty,uppercase"`
	URL             string            `yaml:"url" validate:"required"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Params          map[string]string `yaml:"params,omitempty"`
	Cookies         map[string]string `yaml:"cookies,omitempty"`
	Body            string            `yaml:"body,omitempty"`
	JSON            any               `yaml:"json,omitempty"`
	Files           []FileSpec        `yaml:"files,omitempty" validate:"dive"`
	Auth            *AuthSpec         `yaml:"auth,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	MaxRedirects    *int              `yaml:"maxRedirects,omitempty" validate:"omitempty,gte=0"`
	Insecure        bool              `yaml:"insecure,omitempty"`
	Timeout         int               `yaml:"timeout,omitempty" validate:"gte=0"` // milliseconds
	Output          string            `yaml:"output,omitempty"`
	Expect          *Expect           `yaml:"expect,omitempty"`
	// Vars are added to the resolver before placeholders are expanded.
	Vars map[string]any `yaml:"vars,omitempty"`
	// Captures map names to response sources, see extract.
	Captures map[string]string `yaml:"capture,omitempty"`

	// baseDir resolves relative file, output and schema paths
	baseDir string
}

type FileSpec struct {
	Field string `yaml:"field" validate:"required"`
	Path  string `yaml:"path" validate:"required"`
}

type AuthSpec struct {
	Type     string `yaml:"type" validate:"required,oneof=basic digest"`
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password"`
}

// LoadRequestFile reads and validates a request file.
func LoadRequestFile(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}
	return ParseRequestFile(data, filepath.Dir(path))
}

// ParseRequestFile parses a request document. Relative paths inside it are
// resolved against baseDir.
func ParseRequestFile(data []byte, baseDir string) (*RequestFile, error) {
	var rf RequestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing request file: %w", err)
	}
	rf.Method = strings.ToUpper(rf.Method)
	if err := Validate(&rf); err != nil {
		return nil, fmt.Errorf("invalid request file: %w", err)
	}
	if rf.Body != "" && rf.JSON != nil {
		return nil, fmt.Errorf("invalid request file: body and json are mutually exclusive")
	}
	rf.baseDir = baseDir
	return &rf, nil
}

func (rf *RequestFile) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || rf.baseDir == "" {
		return path
	}
	return filepath.Join(rf.baseDir, path)
}

// SchemaPath returns the expect.schema path resolved against the file.
func (rf *RequestFile) SchemaPath() string {
	if rf.Expect == nil {
		return ""
	}
	return rf.resolve(rf.Expect.Schema)
}

// Build turns the file into a request descriptor.
func (rf *RequestFile) Build() (*http.Request, error) {
	opts := []http.RequestOption{http.WithParams(rf.Params)}

	for _, name := range sortedKeys(rf.Headers) {
		opts = append(opts, http.WithHeader(name, rf.Headers[name]))
	}

	if len(rf.Cookies) > 0 {
		opts = append(opts, http.WithCookies(http.NewCookies(rf.Cookies)))
	}

	switch {
	case rf.JSON != nil:
		opts = append(opts, http.WithJSON(rf.JSON))
	case rf.Body != "":
		opts = append(opts, http.WithBodyString(rf.Body))
	}

	for _, f := range rf.Files {
		opts = append(opts, http.WithFile(f.Field, rf.resolve(f.Path)))
	}

	if rf.Auth != nil {
		switch rf.Auth.Type {
		case "digest":
			opts = append(opts, http.WithDigestAuth(rf.Auth.Username, rf.Auth.Password))
		default:
			opts = append(opts, http.WithBasicAuth(rf.Auth.Username, rf.Auth.Password))
		}
	}

	if rf.Proxy != "" {
		opts = append(opts, http.WithProxy(rf.Proxy))
	}
	if rf.FollowRedirects != nil && !*rf.FollowRedirects {
		opts = append(opts, http.WithoutRedirects())
	} else if rf.MaxRedirects != nil {
		opts = append(opts, http.WithRedirects(*rf.MaxRedirects))
	}
	if rf.Insecure {
		opts = append(opts, http.WithInsecureSkipVerify())
	}
	if rf.Timeout > 0 {
		opts = append(opts, http.WithTimeout(time.Duration(rf.Timeout)*time.Millisecond))
	}
	if rf.Output != "" {
		opts = append(opts, http.WithOutputFile(rf.resolve(rf.Output)))
	}

	return http.NewRequest(rf.Method, rf.URL, opts...)
}
