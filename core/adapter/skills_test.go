package adapter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSkills(t *testing.T) {
	cases := []struct {
		name   string
		values []any
		want   []string
	}{
		{"nil", []any{nil, nil}, []string{}},
		{"scalar", []any{"Delivery"}, []string{"delivery"}},
		{"json array string", []any{"delivery", `["diesel","Gas"]`}, []string{"delivery", "diesel", "gas"}},
		{"json scalar string", []any{`"repair"`}, []string{"repair"}},
		{"double encoded", []any{`"[\"repair\",\"fryer\"]"`}, []string{"repair", "fryer"}},
		{"string slice", []any{[]string{"a", "b"}, "b"}, []string{"a", "b"}},
		{"any slice", []any{[]any{"a", 3, nil}}, []string{"a", "3"}},
		{"comma separated", []any{"delivery, repair ,"}, []string{"delivery", "repair"}},
		{"broken json", []any{"[delivery, repair"}, []string{"delivery", "repair"}},
		{"raw message", []any{json.RawMessage(`["x"]`)}, []string{"x"}},
		{"dedupe across sources", []any{"delivery", []string{"DELIVERY", "repair"}}, []string{"delivery", "repair"}},
		{"blank", []any{"   ", ""}, []string{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, NormalizeSkills(c.values...))
		})
	}
}
