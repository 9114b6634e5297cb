package vault

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/julianstephens/progressquest/internal/constants"
)

// CookieScope stores each value as a Set-Cookie line with a fixed lifetime. It is the most
// persistent scope and the last one consulted. Expired cookies read as absent.
type CookieScope struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

func NewCookieScope(path string) *CookieScope {
	return &CookieScope{path: path, maxAge: constants.CookieMaxAge, now: time.Now}
}

func (c *CookieScope) Name() string { return "cookie" }

func (c *CookieScope) Path() string { return c.path }

func (c *CookieScope) read() ([]*http.Cookie, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []*http.Cookie
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ck, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		cookies = append(cookies, ck)
	}
	return cookies, sc.Err()
}

func (c *CookieScope) write(cookies []*http.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}
	var b strings.Builder
	for _, ck := range cookies {
		b.WriteString(ck.String())
		b.WriteByte('\n')
	}
	return os.WriteFile(c.path, []byte(b.String()), 0600)
}

func (c *CookieScope) live(ck *http.Cookie) bool {
	return ck.Expires.IsZero() || c.now().Before(ck.Expires)
}

func (c *CookieScope) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cookies, err := c.read()
	if err != nil {
		return "", err
	}
	for _, ck := range cookies {
		if ck.Name != key || !c.live(ck) {
			continue
		}
		v, err := url.QueryUnescape(ck.Value)
		if err != nil || v == "" {
			return "", ErrNotFound
		}
		return v, nil
	}
	return "", ErrNotFound
}

func (c *CookieScope) Set(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cookies, err := c.read()
	if err != nil {
		cookies = nil
	}

	kept := cookies[:0]
	for _, ck := range cookies {
		if ck.Name != key && c.live(ck) {
			kept = append(kept, ck)
		}
	}
	kept = append(kept, &http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Expires:  c.now().Add(c.maxAge).UTC().Truncate(time.Second),
		SameSite: http.SameSiteStrictMode,
	})
	return c.write(kept)
}

func (c *CookieScope) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cookies, err := c.read()
	if err != nil {
		return err
	}
	kept := cookies[:0]
	removed := false
	for _, ck := range cookies {
		if ck.Name == key {
			removed = true
			continue
		}
		kept = append(kept, ck)
	}
	if !removed {
		return nil
	}
	return c.write(kept)
}
