package directive

import (
	"net/url"
	"strings"
	"unicode"
)

const (
	maxTitle     = 80
	maxBody      = 700
	maxItem      = 100
	maxItems     = 7
	ellipsis     = "…"
	secureScheme = "https"
)

// Sanitize turns raw echo_show fields into a bounded Directive. It returns nil
// when nothing renderable survives.
func Sanitize(fields map[string]any) *Directive {
	d := &Directive{
		Template: TemplateContentList,
		Title:    truncate(stringField(fields, "title"), maxTitle),
		Body:     truncate(stringField(fields, "body"), maxBody),
		Items:    sanitizeItems(fields["items"]),
		ImageURL: sanitizeImageURL(stringField(fields, "image_url")),
	}
	if d.Title == "" && d.Body == "" && len(d.Items) == 0 && d.ImageURL == "" {
		return nil
	}
	return d
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

func sanitizeItems(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var items []string
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		items = append(items, truncate(s, maxItem))
		if len(items) == maxItems {
			break
		}
	}
	return items
}

func sanitizeImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Scheme != secureScheme || u.Host == "" {
		return ""
	}
	return u.String()
}

// truncate caps s at limit runes, the ellipsis included.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimRightFunc(string(r[:limit-1]), unicode.IsSpace) + ellipsis
}
