// Package jsondup finds object keys that occur more than once in raw JSON.
// Decoding into a map keeps only the last occurrence, so extracted data with
// repeated keys silently loses values.
package jsondup

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/reoring/schemaform"
)

type frame struct {
	object    bool
	keys      map[string]struct{}
	expectKey bool
	key       string
	index     int
}

// Check scans data and reports every repeated key as a warning whose path
// uses field path syntax ("items[1].code"). A syntax error stops the scan and
// is returned with the issues found so far.
func Check(data []byte) (schemaform.Issues, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var (
		issues schemaform.Issues
		stack  []*frame
	)
	top := func() *frame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}
	valueDone := func() {
		if f := top(); f != nil && f.object {
			f.expectKey = true
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			if len(stack) > 0 {
				return issues, fmt.Errorf("scan json: %w", io.ErrUnexpectedEOF)
			}
			return issues, nil
		}
		if err != nil {
			return issues, fmt.Errorf("scan json: %w", err)
		}
		if d, ok := tok.(json.Delim); ok && (d == '}' || d == ']') {
			stack = stack[:len(stack)-1]
			valueDone()
			continue
		}
		f := top()
		if f != nil && f.object && f.expectKey {
			key, _ := tok.(string)
			if _, seen := f.keys[key]; seen {
				path := join(pathOf(stack[:len(stack)-1]), key)
				issues = append(issues, schemaform.Issue{
					Path:     path,
					Code:     schemaform.CodeDuplicateKey,
					Message:  fmt.Sprintf("key %q appears more than once; the last value wins", key),
					Severity: schemaform.SeverityWarning,
				})
			}
			f.keys[key] = struct{}{}
			f.key = key
			f.expectKey = false
			continue
		}
		if f != nil && !f.object {
			f.index++
		}
		if d, ok := tok.(json.Delim); ok {
			stack = append(stack, &frame{object: d == '{', keys: map[string]struct{}{}, expectKey: d == '{', index: -1})
			continue
		}
		valueDone()
	}
}

func pathOf(stack []*frame) string {
	path := ""
	for _, f := range stack {
		if f.object {
			path = join(path, f.key)
			continue
		}
		path += "[" + strconv.Itoa(f.index) + "]"
	}
	return path
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
