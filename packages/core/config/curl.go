package config

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// curlValueFlags take a value argument and are recognized but not mapped.
var curlValueFlags = map[string]bool{
	"--connect-timeout": true, "-c": true, "--cookie-jar": true,
	"-w": true, "--write-out": true, "--retry": true, "-r": true, "--range": true,
	"--resolve": true, "--cacert": true, "--cert": true, "--key": true,
}

// ParseCurl turns a curl command line into a request file. Flags without
// a request file equivalent are skipped.
func ParseCurl(command string) (*RequestFile, error) {
	command = strings.ReplaceAll(command, "\\\n", " ")
	tokens := tokenize(strings.TrimSpace(command))
	if len(tokens) > 0 && tokens[0] == "curl" {
		tokens = tokens[1:]
	}

	rf := &RequestFile{}
	follow := false
	getMode := false
	head := false
	var data []string

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		value := func() (string, error) {
			if i+1 >= len(tokens) {
				return "", fmt.Errorf("missing value for %s", tok)
			}
			i++
			return tokens[i], nil
		}

		if !strings.HasPrefix(tok, "-") || tok == "-" {
			if rf.URL == "" {
				rf.URL = tok
			}
			continue
		}

		switch tok {
		case "-L", "--location":
			follow = true
		case "-k", "--insecure":
			rf.Insecure = true
		case "-G", "--get":
			getMode = true
		case "-I", "--head":
			head = true
		case "--compressed", "-s", "--silent", "-S", "--show-error", "-v", "--verbose", "-i", "--include", "-f", "--fail":
		case "--digest":
			if rf.Auth == nil {
				rf.Auth = &AuthSpec{}
			}
			rf.Auth.Type = "digest"
		default:
			v, err := value()
			if err != nil {
				return nil, err
			}
			if err := applyCurlFlag(rf, tok, v, &data); err != nil {
				return nil, err
			}
		}
	}

	if rf.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}

	if len(data) > 0 {
		if getMode {
			params, err := url.ParseQuery(strings.Join(data, "&"))
			if err != nil {
				return nil, fmt.Errorf("parsing -G data: %w", err)
			}
			if rf.Params == nil {
				rf.Params = make(map[string]string, len(params))
			}
			for k := range params {
				rf.Params[k] = params.Get(k)
			}
		} else if rf.JSON == nil {
			rf.Body = strings.Join(data, "&")
		}
	}

	switch {
	case rf.Method != "":
	case head:
		rf.Method = "HEAD"
	case !getMode && (rf.Body != "" || rf.JSON != nil || len(rf.Files) > 0):
		rf.Method = "POST"
	default:
		rf.Method = "GET"
	}

	if !follow {
		rf.FollowRedirects = new(bool)
	}
	if rf.Auth != nil && rf.Auth.Type == "" {
		rf.Auth.Type = "basic"
	}
	rf.Name = curlName(rf.Method, rf.URL)

	if err := Validate(rf); err != nil {
		return nil, fmt.Errorf("invalid curl command: %w", err)
	}
	return rf, nil
}

func applyCurlFlag(rf *RequestFile, flag, v string, data *[]string) error {
	switch flag {
	case "-X", "--request":
		rf.Method = strings.ToUpper(v)
	case "-H", "--header":
		name, value, ok := strings.Cut(v, ":")
		if !ok {
			return fmt.Errorf("invalid header %q", v)
		}
		setMap(&rf.Headers, strings.TrimSpace(name), strings.TrimSpace(value))
	case "-A", "--user-agent":
		setMap(&rf.Headers, "User-Agent", v)
	case "-e", "--referer":
		setMap(&rf.Headers, "Referer", v)
	case "-b", "--cookie":
		for _, part := range strings.Split(v, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && name != "" {
				setMap(&rf.Cookies, name, value)
			}
		}
	case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii":
		*data = append(*data, v)
	case "--data-urlencode":
		if name, value, ok := strings.Cut(v, "="); ok {
			*data = append(*data, name+"="+url.QueryEscape(value))
		} else {
			*data = append(*data, url.QueryEscape(v))
		}
	case "--json":
		var doc any
		if err := yaml.Unmarshal([]byte(v), &doc); err != nil {
			return fmt.Errorf("invalid --json: %w", err)
		}
		rf.JSON = doc
	case "-F", "--form":
		field, value, ok := strings.Cut(v, "=")
		if !ok {
			return fmt.Errorf("invalid form field %q", v)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			rf.Files = append(rf.Files, FileSpec{Field: field, Path: path})
		} else {
			setMap(&rf.Params, field, value)
		}
	case "-u", "--user":
		user, pass, _ := strings.Cut(v, ":")
		if rf.Auth == nil {
			rf.Auth = &AuthSpec{}
		}
		rf.Auth.Username = user
		rf.Auth.Password = pass
	case "-x", "--proxy":
		rf.Proxy = v
	case "-m", "--max-time":
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid --max-time %q", v)
		}
		rf.Timeout = int(secs * 1000)
	case "--max-redirs":
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid --max-redirs %q", v)
		}
		rf.MaxRedirects = &n
	case "-o", "--output":
		rf.Output = v
	case "--url":
		rf.URL = v
	default:
		if !curlValueFlags[flag] {
			return fmt.Errorf("unsupported curl option %s", flag)
		}
	}
	return nil
}

func setMap(m *map[string]string, k, v string) {
	if *m == nil {
		*m = make(map[string]string)
	}
	(*m)[k] = v
}

// ReadCurlCommands splits r into curl commands, one per line, joining
// backslash continuations and skipping blank lines and # comments.
func ReadCurlCommands(r io.Reader) ([]string, error) {
	var commands []string
	var current strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if current.Len() == 0 && (line == "" || strings.HasPrefix(line, "#")) {
			continue
		}
		if cont, ok := strings.CutSuffix(line, "\\"); ok {
			current.WriteString(strings.TrimSpace(cont))
			current.WriteString(" ")
			continue
		}
		current.WriteString(line)
		commands = append(commands, current.String())
		current.Reset()
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading curl commands: %w", err)
	}
	if current.Len() > 0 {
		commands = append(commands, current.String())
	}
	return commands, nil
}

// MarshalRequestFiles encodes files as a YAML stream, one document each.
func MarshalRequestFiles(files ...*RequestFile) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, rf := range files {
		if err := enc.Encode(rf); err != nil {
			return nil, fmt.Errorf("encoding request file: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding request file: %w", err)
	}
	return buf.Bytes(), nil
}

// tokenize splits a shell-like command line, honoring quotes and
// backslash escapes outside single quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingle, inDouble, escaped, started := false, false, false, false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}
		switch {
		case r == '\\' && !inSingle:
			escaped = true
			started = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			started = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			started = true
		case (r == ' ' || r == '\t' || r == '\n') && !inSingle && !inDouble:
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// curlName derives "get items_42" style names from method and URL path.
func curlName(method, rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		path = u.Path
	}
	path = strings.Trim(nonWord.ReplaceAllString(strings.ToLower(path), "_"), "_")
	if path == "" {
		path = "root"
	}
	return strings.ToLower(method) + " " + path
}
