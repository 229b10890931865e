package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/codeviz/internal/graph"
	"github.com/jward/codeviz/internal/store"
)

// makeDBQueryFn creates a db_query bridge that executes read-only SQL.
// Returns a list of maps (column name → value).
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		queryArgs := make([]any, 0, len(args)-1)
		for _, arg := range args[1:] {
			queryArgs = append(queryArgs, ToGo(arg))
		}

		cols, rows, err := s.ReadOnlyQuery(ctx, sqlStr, queryArgs...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		results := make([]object.Object, 0, len(rows))
		for _, row := range rows {
			m := make(map[string]object.Object, len(cols))
			for _, col := range cols {
				m[col] = FromGo(row[col])
			}
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// makeTopChangedFilesFn exposes Store.TopChangedFiles as a list of
// {path, count} maps.
func makeTopChangedFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("top_changed_files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("top_changed_files", 1, len(args))
		}
		n, ok := args[0].(*object.Int)
		if !ok {
			return object.Errorf("top_changed_files: expected int, got %s", args[0].Type())
		}
		counts, err := s.TopChangedFiles(int(n.Value()))
		if err != nil {
			return object.Errorf("top_changed_files: %v", err)
		}
		results := make([]object.Object, 0, len(counts))
		for _, fc := range counts {
			results = append(results, object.NewMap(map[string]object.Object{
				"path":  object.NewString(fc.Path),
				"count": object.NewInt(int64(fc.Count)),
			}))
		}
		return object.NewList(results)
	})
}

func makeCallersFn(s *store.Store) *object.Builtin {
	return makeSymbolListFn("callers", s.Callers)
}

func makeCalleesFn(s *store.Store) *object.Builtin {
	return makeSymbolListFn("callees", s.Callees)
}

func makeSymbolListFn(name string, fn func(graph.Symbol) ([]graph.Symbol, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		sym, err := toString(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		syms, err := fn(graph.Symbol(sym))
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		results := make([]object.Object, 0, len(syms))
		for _, s := range syms {
			results = append(results, object.NewString(string(s)))
		}
		return object.NewList(results)
	})
}

// --- Conversion helpers ---

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// ToGo converts a Risor value into plain Go data: strings, int64, float64,
// bool, nil, []any and map[string]any. Other values are formatted with
// their Inspect form.
func ToGo(obj object.Object) any {
	switch v := obj.(type) {
	case nil:
		return nil
	case *object.NilType:
		return nil
	case *object.String:
		return v.Value()
	case *object.Int:
		return v.Value()
	case *object.Float:
		return v.Value()
	case *object.Bool:
		return v.Value()
	case *object.List:
		items := v.Value()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = ToGo(item)
		}
		return out
	case *object.Map:
		out := make(map[string]any, len(v.Value()))
		for k, item := range v.Value() {
			out[k] = ToGo(item)
		}
		return out
	default:
		return obj.Inspect()
	}
}

// FromGo converts plain Go data into a Risor value. It is the inverse of
// ToGo for the types ToGo produces; []string and int are accepted too.
func FromGo(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case string:
		return object.NewString(val)
	case []byte:
		return object.NewString(string(val))
	case int:
		return object.NewInt(int64(val))
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case bool:
		return object.NewBool(val)
	case []string:
		items := make([]object.Object, len(val))
		for i, s := range val {
			items[i] = object.NewString(s)
		}
		return object.NewList(items)
	case []any:
		items := make([]object.Object, len(val))
		for i, item := range val {
			items[i] = FromGo(item)
		}
		return object.NewList(items)
	case map[string]any:
		m := make(map[string]object.Object, len(val))
		for k, item := range val {
			m[k] = FromGo(item)
		}
		return object.NewMap(m)
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}
