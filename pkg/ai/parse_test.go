package ai

import (
	"context"
	"errors"
	"testing"
)

type verdictPayload struct {
	IsSufficient bool     `json:"is_sufficient"`
	Confidence   float64  `json:"confidence"`
	Missing      []string `json:"missing_aspects"`
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", raw: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around", raw: "Sure! Here it is: {\"a\":{\"b\":2}} hope it helps", want: `{"a":{"b":2}}`},
		{name: "no object", raw: "I cannot answer that.", wantErr: true},
		{name: "reversed braces", raw: "} nope {", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractObject(tt.raw)
			if tt.wantErr {
				var pf *ParseFailure
				if !errors.As(err, &pf) {
					t.Fatalf("ExtractObject() error = %v, want *ParseFailure", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractObject() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ExtractObject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseInto(t *testing.T) {
	raw := "```json\n{is_sufficient: true, 'confidence': 0.8, \"missing_aspects\": [\"pricing\",],}\n```"
	var v verdictPayload
	if err := ParseInto(raw, &v); err != nil {
		t.Fatalf("ParseInto() error = %v", err)
	}
	if !v.IsSufficient || v.Confidence != 0.8 || len(v.Missing) != 1 || v.Missing[0] != "pricing" {
		t.Fatalf("ParseInto() = %+v", v)
	}
}

func TestParseIntoFailureCarriesFragment(t *testing.T) {
	var v verdictPayload
	err := ParseInto("no json here", &v)
	var pf *ParseFailure
	if !errors.As(err, &pf) {
		t.Fatalf("ParseInto() error = %v, want *ParseFailure", err)
	}
	if pf.Fragment != "no json here" {
		t.Fatalf("Fragment = %q", pf.Fragment)
	}
}

func TestParseIntoNonPointerDoesNotPanic(t *testing.T) {
	var v verdictPayload
	if err := ParseInto(`{"confidence": 1}`, v); err == nil {
		t.Fatalf("ParseInto() into a non-pointer should fail")
	}
}

func TestCompletionErrorKinds(t *testing.T) {
	timeout := ClassifyContext(context.DeadlineExceeded)
	if !IsFailure(timeout, FailureTimeout) {
		t.Fatalf("deadline should classify as timeout, got %v", timeout.Kind)
	}
	transport := ClassifyContext(errors.New("connection refused"))
	if !IsFailure(transport, FailureTransport) {
		t.Fatalf("generic error should classify as transport, got %v", transport.Kind)
	}
	up := NewUpstream(503, errors.New("overloaded"))
	wrapped := errors.Join(errors.New("extract"), up)
	if !IsFailure(wrapped, FailureUpstream) {
		t.Fatalf("wrapped upstream failure not detected")
	}
	if IsFailure(wrapped, FailureTimeout) {
		t.Fatalf("upstream failure misreported as timeout")
	}
	if ClassifyContext(up) != up {
		t.Fatalf("ClassifyContext should keep an existing CompletionError")
	}
}

func TestWithFormatBuildsSchema(t *testing.T) {
	o := ApplyOptions(GenerateOptions{Temperature: 0.3},
		WithFormat("verdict", "sufficiency verdict", &verdictPayload{}),
		WithTemperature(0.1),
		WithMaxTokens(100),
	)
	if o.Format == nil || o.Format.Name != "verdict" || o.Format.Schema == nil {
		t.Fatalf("Format = %+v", o.Format)
	}
	if o.Temperature != 0.1 || o.MaxTokens != 100 {
		t.Fatalf("options = %+v", o)
	}
}
