package history

import (
	"context"
	"fmt"
	"time"

	"github.com/risor-io/risor/object"

	"github.com/jward/codeviz/internal/runtime"
)

// ScriptTransform returns a Transform that runs a Risor script with the
// commit list bound to the global "commits". Each commit is a map with
// hash, author, subject, date (RFC 3339) and files keys. The value of the
// script's final expression must be a list of such maps and becomes the
// new commit list.
//
//	kept := []
//	for i := 0; i < len(commits); i++ {
//	    if commits[i]["author"] != "dependabot" { kept.append(commits[i]) }
//	}
//	kept
func ScriptTransform(rt *runtime.Runtime, source string) Transform {
	return scriptTransform(func(ctx context.Context, globals map[string]any) (object.Object, error) {
		return rt.RunSource(ctx, source, globals)
	})
}

// ScriptFileTransform is ScriptTransform for a script file resolved by the
// runtime's loader.
func ScriptFileTransform(rt *runtime.Runtime, path string) Transform {
	return scriptTransform(func(ctx context.Context, globals map[string]any) (object.Object, error) {
		return rt.RunScript(ctx, path, globals)
	})
}

func scriptTransform(run func(context.Context, map[string]any) (object.Object, error)) Transform {
	return func(ctx context.Context, commits []Commit) ([]Commit, error) {
		result, err := run(ctx, map[string]any{"commits": commitsToObject(commits)})
		if err != nil {
			return nil, err
		}
		return commitsFromObject(result)
	}
}

func commitsToObject(commits []Commit) object.Object {
	items := make([]any, len(commits))
	for i, c := range commits {
		files := make([]any, len(c.Files))
		for j, f := range c.Files {
			files[j] = f
		}
		items[i] = map[string]any{
			"hash":    c.Hash,
			"author":  c.Author,
			"subject": c.Subject,
			"date":    c.Date.Format(time.RFC3339),
			"files":   files,
		}
	}
	return runtime.FromGo(items)
}

func commitsFromObject(obj object.Object) ([]Commit, error) {
	list, ok := runtime.ToGo(obj).([]any)
	if !ok {
		return nil, fmt.Errorf("script result: expected list of commits, got %s", typeName(obj))
	}
	commits := make([]Commit, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("script result[%d]: expected map, got %T", i, item)
		}
		c := Commit{
			Hash:    str(m["hash"]),
			Author:  str(m["author"]),
			Subject: str(m["subject"]),
			Files:   []string{},
		}
		if raw := str(m["date"]); raw != "" {
			d, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: script result[%d]: date %q: %v", ErrMalformedCommit, i, raw, err)
			}
			c.Date = d
		}
		if files, ok := m["files"].([]any); ok {
			for _, f := range files {
				if s, ok := f.(string); ok {
					c.Files = append(c.Files, s)
				}
			}
		}
		commits = append(commits, c)
	}
	return commits, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func typeName(obj object.Object) string {
	if obj == nil {
		return "nil"
	}
	return string(obj.Type())
}
