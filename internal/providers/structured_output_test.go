package providers

import "testing"

func TestBalancedSpan(t *testing.T) {
	tests := []struct {
		content string
		start   int
		want    string
	}{
		{`x [1, {"a":2}] y`, 2, `[1, {"a":2}]`},
		{`[{"a":1}] see [2]`, 0, `[{"a":1}]`},
		{`{"q":"a ] b"} trailing }`, 0, `{"q":"a ] b"}`},
		{`{"q":"say \"]\""}`, 0, `{"q":"say \"]\""}`},
		{"nothing", 0, ""},
		{`[1, 2`, 0, ""},
		{`[1}`, 0, ""},
	}
	for _, tt := range tests {
		if got := BalancedSpan(tt.content, tt.start); got != tt.want {
			t.Errorf("BalancedSpan(%q, %d) = %q, want %q", tt.content, tt.start, got, tt.want)
		}
	}
}

func TestFirstJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{name: "whole text", content: `[{"a":1},{"a":2}]`, want: 2},
		{name: "fenced", content: "```json\n[{\"a\":1}]\n```", want: 1},
		{name: "brackets in trailing prose", content: "Result:\n[{\"a\":1}]\nFrom excerpts [1] and [2].", want: 1},
		{name: "brace in leading prose", content: `Note {see below}: [{"a":1}]`, want: 1},
		{name: "bracket inside string", content: `list: [{"a":"x]y"}] done`, want: 1},
		{name: "skips non-json bracket", content: `[sic] then [{"a":1}]`, want: 1},
		{name: "none", content: `no arrays here`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstJSONArray(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Errorf("FirstJSONArray() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FirstJSONArray() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("FirstJSONArray() len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
