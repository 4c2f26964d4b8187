package ai

import (
	"fmt"
	"strings"
)

// ParseFailure is returned when a model response holds no usable JSON.
type ParseFailure struct {
	Fragment string
	Err      error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse model response: %v (fragment: %q)", e.Err, fragment(e.Fragment))
}

func (e *ParseFailure) Unwrap() error { return e.Err }

func fragment(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}

// ExtractObject returns the span from the first '{' to the last '}' of raw
// after stripping markdown code fences.
func ExtractObject(raw string) (string, error) {
	s := stripFences(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", &ParseFailure{Fragment: raw, Err: fmt.Errorf("no JSON object found")}
	}
	return s[start : end+1], nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseInto decodes the JSON object embedded in raw into out. Malformed
// JSON is repaired where possible. Any failure is a *ParseFailure.
func ParseInto(raw string, out any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ParseFailure{Fragment: raw, Err: fmt.Errorf("panic while decoding: %v", r)}
		}
	}()

	obj, err := ExtractObject(raw)
	if err != nil {
		return err
	}
	if err := UnmarshalFlexible(obj, out); err != nil {
		return &ParseFailure{Fragment: obj, Err: err}
	}
	return nil
}
