package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const defaultPostgresPort = 5432

// DSN returns the libpq connection string. Components of YOOZAK_DATABASE_URL
// win over the individual fields when both are set.
func (c *DatabaseConfig) DSN() string {
	resolved := *c
	if c.URL != "" {
		// An unparsable URL is reported by Validate
		_ = resolved.applyURL()
	}

	pairs := []string{
		"host=" + quoteDSNValue(resolved.Host),
		"port=" + strconv.Itoa(resolved.Port),
		"user=" + quoteDSNValue(resolved.User),
		"password=" + quoteDSNValue(resolved.Password),
		"dbname=" + quoteDSNValue(resolved.Database),
		"sslmode=" + quoteDSNValue(resolved.sslMode()),
	}

	keys := make([]string, 0, len(resolved.Options))
	for k := range resolved.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, k+"="+quoteDSNValue(resolved.Options[k]))
	}

	return strings.Join(pairs, " ")
}

func (c *DatabaseConfig) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

// applyURL copies the components of URL into the individual fields.
// Query parameters other than sslmode are kept as extra DSN options.
func (c *DatabaseConfig) applyURL() error {
	raw := strings.Replace(c.URL, "postgresql://", "postgres://", 1)

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid database URL: %w", err)
	}
	if u.Scheme != "postgres" {
		return fmt.Errorf("invalid database URL scheme %q, expected postgres", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("database URL has no host")
	}

	c.Host = u.Hostname()
	c.Port = defaultPostgresPort
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid port in database URL: %w", err)
		}
		c.Port = port
	}

	if u.User != nil {
		c.User = u.User.Username()
		c.Password, _ = u.User.Password()
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		c.Database = db
	}

	query := u.Query()
	if mode := query.Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
	query.Del("sslmode")

	for k, v := range query {
		if len(v) == 0 {
			continue
		}
		if c.Options == nil {
			c.Options = make(map[string]string)
		}
		c.Options[k] = v[0]
	}
	return nil
}

// quoteDSNValue quotes a libpq keyword value when it is empty or holds
// spaces, quotes or backslashes.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
