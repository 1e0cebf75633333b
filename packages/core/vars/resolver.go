package vars

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives slog-style warnings, so a *slog.Logger's Warn method
// can be passed directly.
type WarnFunc func(msg string, args ...any)

// Resolver expands placeholders. It is safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	dotenv    map[string]string
	funcs     map[string]Func
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
		dotenv:    make(map[string]string),
		funcs:     defaultFuncs(),
	}
}

func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

// Warn reports through the warn function, if one is set.
func (r *Resolver) Warn(msg string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(msg, args...)
	}
}

// SetVariables adds vars, overwriting existing names.
func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetDotEnv adds values consulted for {{$NAME}} when the process
// environment does not define NAME.
func (r *Resolver) SetDotEnv(values map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range values {
		r.dotenv[k] = v
	}
}

// SetCapture stores a value captured from the response of request. It is
// reachable both as {{request.name}} and as {{name}}.
func (r *Resolver) SetCapture(request, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request != "" {
		r.captures[request+"."+name] = value
	}
	r.captures[name] = value
}

// Lookup returns a capture or variable. Captures win.
func (r *Resolver) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) env(name string) (string, bool) {
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.dotenv[name]
	return v, ok
}

// Resolve expands every placeholder in input.
func (r *Resolver) Resolve(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if name, ok := strings.CutPrefix(expr, "$"); ok {
			if val, ok := r.env(name); ok {
				return val
			}
			r.Warn("unresolved environment variable", "name", name)
			return match
		}

		if strings.Contains(expr, "(") {
			if result, ok := r.call(expr); ok {
				return fmt.Sprint(result)
			}
			r.Warn("unresolved function call", "expr", expr)
			return match
		}

		if val, ok := r.Lookup(expr); ok {
			return fmt.Sprint(val)
		}
		r.Warn("unresolved variable", "name", expr)
		return match
	})
}

// ResolveMap returns a copy of values with every value resolved.
func (r *Resolver) ResolveMap(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// ResolveValue walks a decoded YAML or JSON value and resolves its strings.
// Keys are left alone.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	default:
		return v
	}
}

// Unresolved reports whether input still holds placeholders that would
// not expand.
func (r *Resolver) Unresolved(input string) []string {
	var missing []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(expr, "$"):
			if _, ok := r.env(expr[1:]); !ok {
				missing = append(missing, expr)
			}
		case strings.Contains(expr, "("):
			if !r.hasFunc(expr) {
				missing = append(missing, expr)
			}
		default:
			if _, ok := r.Lookup(expr); !ok {
				missing = append(missing, expr)
			}
		}
	}
	return missing
}

// Clone copies variables, captures and .env values into a new resolver.
func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.captures {
		clone.captures[k] = v
	}
	for k, v := range r.dotenv {
		clone.dotenv[k] = v
	}
	clone.warnFunc = r.warnFunc
	return clone
}
