package predicate

import (
	"strings"

	"github.com/hugr-lab/entityfilter/schema"
)

// resolvePath resolves a dot-separated member path against the parameter
// type. The path is split on the first dot and the remainder is resolved
// against the type of the member found. An empty path yields nil.
func resolvePath(p *Param, path string) (*Member, error) {
	if path == "" {
		return nil, nil
	}

	m := &Member{Param: p}
	cur := p.Type
	rest := path
	for {
		seg, tail, more := strings.Cut(rest, ".")
		if cur.Kind != schema.KindStruct {
			return nil, compileErr(ErrUnresolvablePath, path, "cannot access member %q of %s", seg, cur)
		}
		f, ok := cur.Field(seg)
		if !ok {
			return nil, compileErr(ErrUnresolvablePath, path, "type %s has no member %q", cur, seg)
		}
		m.Path = append(m.Path, f)
		if !more {
			return m, nil
		}
		cur, rest = f.Type, tail
	}
}

// leafOperand resolves the member a leaf expression tests. Without a path
// the leaf tests the parameter itself, which is only possible when the
// parameter is a scalar, e.g. the element of a list of strings.
func leafOperand(p *Param, path string) (*Member, error) {
	m, err := resolvePath(p, path)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return m, nil
	}
	if !p.Type.IsScalar() {
		return nil, compileErr(ErrUnresolvablePath, "", "a property is required on %s", p.Type)
	}
	return &Member{Param: p}, nil
}
