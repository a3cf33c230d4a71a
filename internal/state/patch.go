package state

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"agui-stream/internal/events"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrTestFailed is matched by patch errors from a failed "test" operation
var ErrTestFailed = errors.New("test operation failed")

// PatchError reports the operation of a JSON Patch that could not be applied
type PatchError struct {
	Index int
	Op    string
	Path  string
	Err   error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch op %d (%s %s): %v", e.Index, e.Op, e.Path, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

// ApplyPatch applies RFC 6902 operations to doc and returns the patched document. The
// operations are all-or-nothing: on error doc is returned unchanged along with the error.
func ApplyPatch(doc json.RawMessage, ops []events.PatchOperation) (json.RawMessage, error) {
	d := &patchDoc{raw: []byte(`{}`)}
	if len(doc) > 0 {
		if !gjson.ValidBytes(doc) {
			return doc, errors.New("state is not valid JSON")
		}
		d.raw = append([]byte(nil), doc...)
	}
	for i, op := range ops {
		if err := d.apply(op); err != nil {
			return doc, &PatchError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
	}
	return d.raw, nil
}

type patchDoc struct {
	raw []byte
}

func (d *patchDoc) apply(op events.PatchOperation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	path, err := parsePointer(op.Path)
	if err != nil {
		return err
	}

	switch op.Op {
	case events.PatchAdd, events.PatchReplace, events.PatchTest:
		value, err := json.Marshal(op.Value)
		if err != nil {
			return err
		}
		switch op.Op {
		case events.PatchAdd:
			return d.add(path, value)
		case events.PatchReplace:
			if !d.get(path).Exists() {
				return errors.New("path does not exist")
			}
			return d.set(path, value)
		default:
			current := d.get(path)
			if !current.Exists() {
				return errors.New("path does not exist")
			}
			if !jsonEqual([]byte(current.Raw), value) {
				return ErrTestFailed
			}
			return nil
		}
	case events.PatchRemove:
		return d.remove(path)
	case events.PatchMove, events.PatchCopy:
		from, err := parsePointer(op.From)
		if err != nil {
			return err
		}
		value := d.get(from)
		if !value.Exists() {
			return errors.New("from path does not exist")
		}
		raw := []byte(value.Raw)
		if op.Op == events.PatchCopy {
			return d.add(path, raw)
		}
		if op.From == op.Path {
			return nil
		}
		if strings.HasPrefix(op.Path, op.From+"/") {
			return errors.New("cannot move a value into one of its children")
		}
		if err := d.remove(from); err != nil {
			return err
		}
		return d.add(path, raw)
	default:
		return fmt.Errorf("unknown operation %q", op.Op)
	}
}

func (d *patchDoc) get(path []string) gjson.Result {
	if len(path) == 0 {
		return gjson.ParseBytes(d.raw)
	}
	return gjson.GetBytes(d.raw, joinPath(path))
}

func (d *patchDoc) set(path []string, value []byte) error {
	if len(path) == 0 {
		d.raw = value
		return nil
	}
	raw, err := sjson.SetRawBytes(d.raw, joinPath(path), value)
	if err != nil {
		return err
	}
	d.raw = raw
	return nil
}

func (d *patchDoc) add(path []string, value []byte) error {
	if len(path) == 0 {
		d.raw = value
		return nil
	}
	parentPath, last := path[:len(path)-1], path[len(path)-1]
	parent := d.get(parentPath)
	switch {
	case parent.IsArray():
		elems := parent.Array()
		idx := len(elems)
		if last != "-" {
			var err error
			if idx, err = arrayIndex(last, len(elems)+1); err != nil {
				return err
			}
		}
		return d.set(parentPath, insertRaw(elems, idx, value))
	case parent.IsObject():
		return d.set(path, value)
	case !parent.Exists():
		return errors.New("parent path does not exist")
	default:
		return errors.New("parent is not an object or array")
	}
}

func (d *patchDoc) remove(path []string) error {
	if len(path) == 0 {
		return errors.New("cannot remove the whole document")
	}
	parent := d.get(path[:len(path)-1])
	if parent.IsArray() {
		if _, err := arrayIndex(path[len(path)-1], len(parent.Array())); err != nil {
			return err
		}
	} else if !d.get(path).Exists() {
		return errors.New("path does not exist")
	}
	raw, err := sjson.DeleteBytes(d.raw, joinPath(path))
	if err != nil {
		return err
	}
	d.raw = raw
	return nil
}

func insertRaw(elems []gjson.Result, idx int, value []byte) []byte {
	out := []byte{'['}
	write := func(raw []byte) {
		if len(out) > 1 {
			out = append(out, ',')
		}
		out = append(out, raw...)
	}
	for i, e := range elems {
		if i == idx {
			write(value)
		}
		write([]byte(e.Raw))
	}
	if idx == len(elems) {
		write(value)
	}
	return append(out, ']')
}

// arrayIndex parses an RFC 6901 array index that must be below limit
func arrayIndex(tok string, limit int) (int, error) {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	if n >= limit {
		return 0, fmt.Errorf("array index %d out of range", n)
	}
	return n, nil
}

// parsePointer splits an RFC 6901 JSON pointer into unescaped reference tokens
func parsePointer(ptr string) ([]string, error) {
	if ptr == "" {
		return nil, nil
	}
	if ptr[0] != '/' {
		return nil, fmt.Errorf("invalid JSON pointer %q", ptr)
	}
	tokens := strings.Split(ptr[1:], "/")
	for i, tok := range tokens {
		tokens[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(tok)
	}
	return tokens, nil
}

// joinPath turns reference tokens into a gjson/sjson path, escaping every ASCII
// punctuation character so keys are matched literally.
func joinPath(tokens []string) string {
	var b strings.Builder
	for i, tok := range tokens {
		if i > 0 {
			b.WriteByte('.')
		}
		for j := 0; j < len(tok); j++ {
			c := tok[j]
			if c < 0x80 && c > ' ' && !isAlnum(c) && c != '_' {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func jsonEqual(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
