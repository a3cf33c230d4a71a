package state

import (
	"testing"

	"agui-stream/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPatch(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		ops  []events.PatchOperation
		want string
	}{
		{
			name: "add object member",
			doc:  `{"a":1}`,
			ops:  []events.PatchOperation{{Op: "add", Path: "/b", Value: "x"}},
			want: `{"a":1,"b":"x"}`,
		},
		{
			name: "add inserts into array",
			doc:  `{"l":[1,3]}`,
			ops:  []events.PatchOperation{{Op: "add", Path: "/l/1", Value: 2}},
			want: `{"l":[1,2,3]}`,
		},
		{
			name: "add appends with dash",
			doc:  `{"l":[]}`,
			ops:  []events.PatchOperation{{Op: "add", Path: "/l/-", Value: map[string]any{"k": true}}},
			want: `{"l":[{"k":true}]}`,
		},
		{
			name: "add at end index",
			doc:  `{"l":[1]}`,
			ops:  []events.PatchOperation{{Op: "add", Path: "/l/1", Value: 2}},
			want: `{"l":[1,2]}`,
		},
		{
			name: "replace whole document",
			doc:  `{"a":1}`,
			ops:  []events.PatchOperation{{Op: "replace", Path: "", Value: []any{"x"}}},
			want: `["x"]`,
		},
		{
			name: "remove array element",
			doc:  `{"l":[1,2,3]}`,
			ops:  []events.PatchOperation{{Op: "remove", Path: "/l/1"}},
			want: `{"l":[1,3]}`,
		},
		{
			name: "escaped keys",
			doc:  `{"a/b":{"c.d":1},"m~n":2}`,
			ops: []events.PatchOperation{
				{Op: "replace", Path: "/a~1b/c.d", Value: 5},
				{Op: "remove", Path: "/m~0n"},
			},
			want: `{"a/b":{"c.d":5}}`,
		},
		{
			name: "move",
			doc:  `{"a":{"x":1},"b":{}}`,
			ops:  []events.PatchOperation{{Op: "move", From: "/a/x", Path: "/b/y"}},
			want: `{"a":{},"b":{"y":1}}`,
		},
		{
			name: "copy",
			doc:  `{"a":[1,2]}`,
			ops:  []events.PatchOperation{{Op: "copy", From: "/a", Path: "/b"}},
			want: `{"a":[1,2],"b":[1,2]}`,
		},
		{
			name: "test passes",
			doc:  `{"a":{"x":[1,"y"]}}`,
			ops:  []events.PatchOperation{{Op: "test", Path: "/a", Value: map[string]any{"x": []any{1, "y"}}}},
			want: `{"a":{"x":[1,"y"]}}`,
		},
		{
			name: "empty document starts as object",
			doc:  ``,
			ops:  []events.PatchOperation{{Op: "add", Path: "/a", Value: 1}},
			want: `{"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyPatch([]byte(tt.doc), tt.ops)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestApplyPatchErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		op   events.PatchOperation
	}{
		{"add without parent", `{}`, events.PatchOperation{Op: "add", Path: "/a/b", Value: 1}},
		{"add past array end", `{"l":[]}`, events.PatchOperation{Op: "add", Path: "/l/2", Value: 1}},
		{"add leading zero index", `{"l":[1]}`, events.PatchOperation{Op: "add", Path: "/l/01", Value: 1}},
		{"remove missing", `{}`, events.PatchOperation{Op: "remove", Path: "/a"}},
		{"remove out of range", `{"l":[1]}`, events.PatchOperation{Op: "remove", Path: "/l/1"}},
		{"replace missing", `{}`, events.PatchOperation{Op: "replace", Path: "/a", Value: 1}},
		{"move into child", `{"a":{}}`, events.PatchOperation{Op: "move", From: "/a", Path: "/a/b"}},
		{"copy missing", `{}`, events.PatchOperation{Op: "copy", From: "/x", Path: "/y"}},
		{"into scalar", `{"a":1}`, events.PatchOperation{Op: "add", Path: "/a/b", Value: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyPatch([]byte(tt.doc), []events.PatchOperation{tt.op})
			var perr *PatchError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.doc, string(got))
		})
	}
}

func TestApplyPatchIsAtomic(t *testing.T) {
	doc := []byte(`{"a":1}`)
	got, err := ApplyPatch(doc, []events.PatchOperation{
		{Op: "replace", Path: "/a", Value: 2},
		{Op: "test", Path: "/a", Value: 3},
	})
	assert.ErrorIs(t, err, ErrTestFailed)
	assert.JSONEq(t, `{"a":1}`, string(got))
}
