package http

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

// digestChallenge holds the parameters of a WWW-Authenticate: Digest
// challenge.
type digestChallenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	Qop       string
	Algorithm string
}

// parseDigestChallenge parses a WWW-Authenticate header. It returns false
// when the header is not a digest challenge.
func parseDigestChallenge(header string) (digestChallenge, bool) {
	scheme, rest, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "Digest") {
		return digestChallenge{}, false
	}

	params := make(map[string]string)
	for _, part := range splitChallenge(rest) {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(value), `"`)
	}

	c := digestChallenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Opaque:    params["opaque"],
		Algorithm: params["algorithm"],
	}
	// Prefer "auth" when the server offers several qop values.
	for _, q := range strings.Split(params["qop"], ",") {
		q = strings.TrimSpace(q)
		if q == "auth" {
			c.Qop = q
			break
		}
		if c.Qop == "" {
			c.Qop = q
		}
	}
	return c, c.Nonce != ""
}

// splitChallenge splits on commas outside quoted strings.
func splitChallenge(s string) []string {
	var parts []string
	var inQuote bool
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func (c digestChallenge) newHash() (func() hash.Hash, error) {
	switch strings.TrimSuffix(strings.ToUpper(c.Algorithm), "-SESS") {
	case "", "MD5":
		return md5.New, nil
	case "SHA-256":
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %q", c.Algorithm)
	}
}

// authorization builds the Authorization header value for one request.
// body is the entity body, hashed into HA2 under qop=auth-int.
func (c digestChallenge) authorization(method, uri string, body []byte, username, password, cnonce string, nc int) (string, error) {
	newHash, err := c.newHash()
	if err != nil {
		return "", err
	}
	sum := func(s string) string {
		h := newHash()
		_, _ = io.WriteString(h, s)
		return hex.EncodeToString(h.Sum(nil))
	}

	var ha2 string
	switch c.Qop {
	case "", "auth":
		ha2 = sum(method + ":" + uri)
	case "auth-int":
		h := newHash()
		_, _ = h.Write(body)
		ha2 = sum(method + ":" + uri + ":" + hex.EncodeToString(h.Sum(nil)))
	default:
		return "", fmt.Errorf("unsupported digest qop %q", c.Qop)
	}

	ha1 := sum(username + ":" + c.Realm + ":" + password)
	if strings.HasSuffix(strings.ToUpper(c.Algorithm), "-SESS") {
		ha1 = sum(ha1 + ":" + c.Nonce + ":" + cnonce)
	}
	ncValue := fmt.Sprintf("%08x", nc)

	var response string
	if c.Qop != "" {
		response = sum(strings.Join([]string{ha1, c.Nonce, ncValue, cnonce, c.Qop, ha2}, ":"))
	} else {
		response = sum(ha1 + ":" + c.Nonce + ":" + ha2)
	}

	parts := []string{
		fmt.Sprintf(`username="%s"`, username),
		fmt.Sprintf(`realm="%s"`, c.Realm),
		fmt.Sprintf(`nonce="%s"`, c.Nonce),
		fmt.Sprintf(`uri="%s"`, uri),
		fmt.Sprintf(`response="%s"`, response),
	}
	if c.Algorithm != "" {
		parts = append(parts, "algorithm="+c.Algorithm)
	}
	if c.Qop != "" {
		parts = append(parts, "qop="+c.Qop, "nc="+ncValue, fmt.Sprintf(`cnonce="%s"`, cnonce))
	}
	if c.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, c.Opaque))
	}
	return "Digest " + strings.Join(parts, ", "), nil
}

func newCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
