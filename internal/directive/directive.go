// Package directive separates speech from the optional visual payload the
// backend embeds in its reply text. The reply is untrusted free text: any
// payload that fails validation is dropped and the text is spoken as-is.
package directive

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// TemplateContentList is the only recognized directive template.
const TemplateContentList = "content_list_v1"

const fallbackSpeech = "Here's what I found."

//go:embed envelope.schema.json
var envelopeSchema string

// fencePattern matches ```lang ... ``` blocks; the language tag is optional.
var fencePattern = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \\t]*\\r?\\n?(.*?)```")

// Directive is the sanitized payload handed to the rendering layer.
type Directive struct {
	Template string   `json:"template"`
	Title    string   `json:"title,omitempty"`
	Body     string   `json:"body,omitempty"`
	Items    []string `json:"items,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

// Result is what the turn speaks and, optionally, renders.
type Result struct {
	SpeechText string
	Directive  *Directive
}

// Extractor is stateless after construction and safe for concurrent use.
type Extractor struct {
	schema *jsonschema.Schema
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) (*Extractor, error) {
	schema, err := jsonschema.CompileString("envelope.schema.json", envelopeSchema)
	if err != nil {
		return nil, fmt.Errorf("compile directive schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{schema: schema, logger: logger}, nil
}

type segment struct {
	start, end int
	inner      string
}

// fencedSegments lists candidate fenced blocks in order of appearance.
func fencedSegments(text string) []segment {
	matches := fencePattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]segment, 0, len(matches))
	for _, m := range matches {
		out = append(out, segment{start: m[0], end: m[1], inner: text[m[2]:m[3]]})
	}
	return out
}

// Extract splits reply text into speech and an optional directive. It never
// fails; malformed payloads degrade to speech-only output.
func (e *Extractor) Extract(text string) Result {
	original := normalizeWhitespace(text)

	for i, seg := range fencedSegments(text) {
		fields, ok := e.envelope(seg.inner)
		if !ok {
			continue
		}
		d := Sanitize(fields)
		if d == nil {
			e.logger.Debug("directive empty after sanitization", zap.Int("segment", i))
			return Result{SpeechText: original}
		}
		speech := normalizeWhitespace(text[:seg.start] + " " + text[seg.end:])
		return withSpeech(speech, d)
	}

	if fields, ok := e.envelope(text); ok {
		if d := Sanitize(fields); d != nil {
			return withSpeech("", d)
		}
	}
	return Result{SpeechText: original}
}

// envelope parses raw as JSON and returns the echo_show fields when the
// envelope validates.
func (e *Extractor) envelope(raw string) (map[string]any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw[0] != '{' {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	if err := e.schema.Validate(v); err != nil {
		e.logger.Debug("directive envelope rejected", zap.Error(err))
		return nil, false
	}
	obj, _ := v.(map[string]any)
	fields, _ := obj["echo_show"].(map[string]any)
	return fields, fields != nil
}

func withSpeech(speech string, d *Directive) Result {
	if speech == "" {
		speech = deriveSpeech(d)
	}
	return Result{SpeechText: speech, Directive: d}
}

func deriveSpeech(d *Directive) string {
	switch {
	case d.Body != "":
		return d.Body
	case d.Title != "":
		return d.Title
	case len(d.Items) > 0:
		return strings.Join(d.Items, ". ")
	default:
		return fallbackSpeech
	}
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
