// Package i18n translates API messages for the operator dashboards.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Supported locales. Operators work in French; English is kept for integrators.
const (
	LocaleFrench  = "fr"
	LocaleEnglish = "en"
	DefaultLocale = LocaleFrench
)

var supported = []string{LocaleFrench, LocaleEnglish}

type localeKey struct{}

var (
	// catalog maps locale -> dotted key -> message
	catalog     map[string]map[string]string
	catalogOnce sync.Once
)

func loadCatalog() {
	catalogOnce.Do(func() {
		catalog = make(map[string]map[string]string, len(supported))
		for _, locale := range supported {
			data, err := messagesFS.ReadFile("messages/" + locale + ".json")
			if err != nil {
				continue
			}
			var tree map[string]interface{}
			if err := json.Unmarshal(data, &tree); err != nil {
				continue
			}
			flat := make(map[string]string)
			flatten("", tree, flat)
			catalog[locale] = flat
		}
	})
}

func flatten(prefix string, tree map[string]interface{}, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]interface{}:
			flatten(key, val, out)
		}
	}
}

// Supported reports whether locale has a message catalog
func Supported(locale string) bool {
	for _, l := range supported {
		if l == locale {
			return true
		}
	}
	return false
}

// Localizer translates message keys for one locale
type Localizer struct {
	locale string
}

// NewLocalizer returns a localizer, falling back to the default locale
func NewLocalizer(locale string) *Localizer {
	loadCatalog()
	if !Supported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale}
}

// LocalizerFromContext creates a localizer from context
func LocalizerFromContext(ctx context.Context) *Localizer {
	return NewLocalizer(GetLocaleFromContext(ctx))
}

// Locale returns the localizer's locale
func (l *Localizer) Locale() string {
	return l.locale
}

// T translates key, replacing {name} placeholders with params. Unknown keys
// fall back to the default locale, then to the key itself.
func (l *Localizer) T(key string, params ...map[string]string) string {
	msg, ok := catalog[l.locale][key]
	if !ok {
		msg, ok = catalog[DefaultLocale][key]
	}
	if !ok {
		return key
	}

	if len(params) > 0 {
		for k, v := range params[0] {
			msg = strings.ReplaceAll(msg, "{"+k+"}", v)
		}
	}
	return msg
}

// WithLocale adds locale to context
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocaleFromContext retrieves locale from context
func GetLocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// ParseAcceptLanguage picks the supported locale with the highest quality
// value. Ties keep header order.
func ParseAcceptLanguage(header string) string {
	type candidate struct {
		locale string
		q      float64
	}
	var found []candidate

	for _, part := range strings.Split(strings.ToLower(header), ",") {
		fields := strings.Split(part, ";")
		tag := strings.TrimSpace(fields[0])
		base := strings.SplitN(tag, "-", 2)[0]
		if !Supported(base) {
			continue
		}

		q := 1.0
		for _, f := range fields[1:] {
			f = strings.TrimSpace(f)
			if v, ok := strings.CutPrefix(f, "q="); ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}
		if q > 0 {
			found = append(found, candidate{locale: base, q: q})
		}
	}

	if len(found) == 0 {
		return DefaultLocale
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].q > found[j].q })
	return found[0].locale
}

// T translates using the default locale
func T(key string, params ...map[string]string) string {
	return NewLocalizer(DefaultLocale).T(key, params...)
}

// TWithLocale translates using the specified locale
func TWithLocale(locale, key string, params ...map[string]string) string {
	return NewLocalizer(locale).T(key, params...)
}

// TFromContext translates using locale from context
func TFromContext(ctx context.Context, key string, params ...map[string]string) string {
	return LocalizerFromContext(ctx).T(key, params...)
}
