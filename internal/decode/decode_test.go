package decode

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDecodeWellFormedMatchesDirectParse(t *testing.T) {
	inputs := []string{
		`{"a": 1}`,
		`{"posts":[{"index":1,"caption":"hi, there"}]}`,
		`[1, 2, 3]`,
		`"just a string"`,
		`{"nested":{"list":[true,false,null]},"s":"a,}"}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			var want any
			if err := json.Unmarshal([]byte(in), &want); err != nil {
				t.Fatalf("fixture is not valid JSON: %v", err)
			}
			got := Decode[any](in, "fallback")
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Decode = %#v, want %#v", got, want)
			}
		})
	}
}

func TestDecodeRepairScenarios(t *testing.T) {
	fallback := map[string]any{"a": float64(0)}
	tests := []struct {
		name string
		in   string
		want map[string]any
	}{
		{"trailing comma", `{"a": 1,}`, map[string]any{"a": float64(1)}},
		{"byte order mark", "\uFEFF" + `{"a": 1}`, map[string]any{"a": float64(1)}},
		{"byte order mark after newline", "\n\uFEFF{\"a\":1}", map[string]any{"a": float64(1)}},
		{"truncated", `{"a": 1`, fallback},
		{"garbage", `the model is sorry`, fallback},
		{"empty", ``, fallback},
		{"code fence", "```json\n{\"a\": 1}\n```", map[string]any{"a": float64(1)}},
		{"control characters", "{\"a\":\x00 1\x07}", map[string]any{"a": float64(1)}},
		{"escaped single quote", `{"a": 1, "b": "it\'s"}`, map[string]any{"a": float64(1), "b": "it's"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.in, fallback)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Decode(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeFallbackIsReturnedAsIs(t *testing.T) {
	type theme struct{ Mood string }
	fb := theme{Mood: "static"}
	if got := Decode(`{"Mood": "x"`, fb); got != fb {
		t.Fatalf("got %+v, want fallback %+v", got, fb)
	}
}

func TestDecodeTypeMismatchFallsBack(t *testing.T) {
	type item struct{ Index int }
	fb := item{Index: -1}
	if got := Decode(`{"Index": "one"}`, fb); got != fb {
		t.Fatalf("got %+v, want fallback", got)
	}
}

func TestIntoOutcomes(t *testing.T) {
	var seen []Outcome
	d := New(WithObserver(func(o Outcome) { seen = append(seen, o) }))

	var v map[string]any
	if o, err := d.Into(`{"x":1}`, &v); err != nil || o != OutcomeDirect {
		t.Fatalf("direct: outcome=%s err=%v", o, err)
	}
	if o, err := d.Into(`{"x":[1,2,],}`, &v); err != nil || o != OutcomeRepaired {
		t.Fatalf("repaired: outcome=%s err=%v", o, err)
	}
	if o, err := d.Into(`{"x":`, &v); err != ErrUnrecoverable || o != OutcomeFailed {
		t.Fatalf("failed: outcome=%s err=%v", o, err)
	}
	want := []Outcome{OutcomeDirect, OutcomeRepaired, OutcomeFailed}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("observer saw %v, want %v", seen, want)
	}
}

func TestValueNilDecoder(t *testing.T) {
	if got := Value[int](nil, `42`, 0); got != 42 {
		t.Fatalf("got %d", got)
	}
}
