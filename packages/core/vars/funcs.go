package vars

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Func is a built-in callable from a placeholder, e.g. {{random(1, 10)}}.
type Func func(args []string) (any, error)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func defaultFuncs() map[string]Func {
	return map[string]Func{
		"now":          funcNow,
		"timestamp":    funcTimestamp,
		"timestampMs":  funcTimestampMs,
		"date":         funcDate,
		"uuid":         funcUUID,
		"random":       funcRandom,
		"randomString": funcRandomString,
		"randomEmail":  funcRandomEmail,
		"base64":       funcBase64,
		"sha256":       funcSHA256,
		"urlEncode":    funcURLEncode,
	}
}

// Register adds or replaces a function.
func (r *Resolver) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

func (r *Resolver) lookupFunc(expr string) (Func, string, bool) {
	m := funcCallPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, "", false
	}
	r.mu.RLock()
	fn, ok := r.funcs[m[1]]
	r.mu.RUnlock()
	return fn, m[2], ok
}

func (r *Resolver) hasFunc(expr string) bool {
	_, _, ok := r.lookupFunc(expr)
	return ok
}

func (r *Resolver) call(expr string) (any, bool) {
	fn, rawArgs, ok := r.lookupFunc(expr)
	if !ok {
		return nil, false
	}
	var args []string
	if rawArgs != "" {
		args = parseArgs(rawArgs)
	}
	result, err := fn(args)
	if err != nil {
		r.Warn("function call failed", "expr", expr, "error", err)
		return nil, false
	}
	return result, true
}

// parseArgs splits on commas outside single or double quotes and strips
// the quotes.
func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	var quote byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i || args[i] == "" {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not an integer", i+1, args[i])
	}
	return n, nil
}

func funcNow(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcTimestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ []string) (any, error) {
	return time.Now().UnixMilli(), nil
}

// funcDate formats today's date with a Go layout, default 2006-01-02.
func funcDate(args []string) (any, error) {
	layout := "2006-01-02"
	if len(args) > 0 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().Format(layout), nil
}

func funcUUID(_ []string) (any, error) {
	return uuid.NewString(), nil
}

// funcRandom returns an integer in [min, max], default [0, 100].
func funcRandom(args []string) (any, error) {
	lo, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	hi, err := intArg(args, 1, 100)
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, fmt.Errorf("max %d is less than min %d", hi, lo)
	}
	return lo + rand.Intn(hi-lo+1), nil
}

func funcRandomString(args []string) (any, error) {
	n, err := intArg(args, 0, 10)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("length %d is negative", n)
	}
	return randomString(n, alphanumeric), nil
}

func funcRandomEmail(_ []string) (any, error) {
	const lower = "abcdefghijklmnopqrstuvwxyz"
	return randomString(8, lower) + "@" + randomString(6, lower) + ".com", nil
}

func funcBase64(args []string) (any, error) {
	if len(args) == 0 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), nil
}

func funcSHA256(args []string) (any, error) {
	if len(args) == 0 {
		return "", nil
	}
	sum := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(sum[:]), nil
}

func funcURLEncode(args []string) (any, error) {
	if len(args) == 0 {
		return "", nil
	}
	return url.QueryEscape(args[0]), nil
}

func randomString(n int, charset string) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
