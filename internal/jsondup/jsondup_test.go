package jsondup

import (
	"testing"

	"github.com/reoring/schemaform"
)

func TestCheck_ReportsPaths(t *testing.T) {
	data := []byte(`{"a":1,"items":[{"c":1},{"c":2,"c":3}],"meta":{"x":[1,2]},"a":2}`)
	issues, err := Check(data)
	if err != nil {
		t.Fatalf("check err: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", issues)
	}
	if issues[0].Path != "items[1].c" || issues[1].Path != "a" {
		t.Fatalf("unexpected paths: %q %q", issues[0].Path, issues[1].Path)
	}
	for _, is := range issues {
		if is.Code != schemaform.CodeDuplicateKey || is.Severity != schemaform.SeverityWarning {
			t.Fatalf("unexpected issue: %+v", is)
		}
	}
}

func TestCheck_SameKeyInSiblingObjects(t *testing.T) {
	issues, err := Check([]byte(`[{"k":1},{"k":2},{"n":{"k":3}}]`))
	if err != nil {
		t.Fatalf("check err: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("sibling objects may share keys, got %v", issues)
	}
}

func TestCheck_NestedArrayIndex(t *testing.T) {
	issues, err := Check([]byte(`{"rows":[[0],[{"v":1,"v":2}]]}`))
	if err != nil {
		t.Fatalf("check err: %v", err)
	}
	if len(issues) != 1 || issues[0].Path != "rows[1][0].v" {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestCheck_SyntaxError(t *testing.T) {
	issues, err := Check([]byte(`{"a":1,"a":2,`))
	if err == nil {
		t.Fatalf("expected syntax error")
	}
	if len(issues) != 1 {
		t.Fatalf("issues before the error are kept, got %v", issues)
	}
}
