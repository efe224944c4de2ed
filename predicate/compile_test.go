package predicate

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/entityfilter/filter"
	"github.com/hugr-lab/entityfilter/schema"
)

func TestCompileEmpty(t *testing.T) {
	ot := orderType(t)

	for name, f := range map[string]*filter.Filter{
		"nil":         nil,
		"no exprs":    {},
		"or no expr":  filter.Or(),
		"not no expr": filter.Not(),
	} {
		t.Run(name, func(t *testing.T) {
			p, err := Compile(f, ot)
			require.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestCompileAllSkipped(t *testing.T) {
	ot := orderType(t)

	p, err := Compile(filter.And(
		filter.Expr("Customer", filter.TypeContains, nil),
		filter.Group(filter.Or()),
	), ot)
	require.NoError(t, err)
	assert.Nil(t, p)

	got, err := Where(p, orders())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCompileNilType(t *testing.T) {
	_, err := Compile(filter.And(filter.Expr("A", filter.TypeEqual, 1)), nil)
	require.Error(t, err)
}

// operatorTests run against the order fixtures, in memory and in DuckDB.
var operatorTests = []struct {
	name   string
	filter string
	want   []string
}{
	{
		name:   "contains is case-insensitive",
		filter: `{"expressions":[{"property":"Customer","expressionType":"Contains","value":"SMITH"}]}`,
		want:   []string{"Alice Smith"},
	},
	{
		name:   "contains on a number",
		filter: `{"expressions":[{"property":"Number","expressionType":"Contains","value":2}]}`,
		want:   []string{"Bob Jones"},
	},
	{
		name:   "contains on a time",
		filter: `{"expressions":[{"property":"CreatedAt","expressionType":"Contains","value":"03-01 10:00"}]}`,
		want:   []string{"Alice Smith"},
	},
	{
		name:   "contains on a time uses the sql text form",
		filter: `{"expressions":[{"property":"CreatedAt","expressionType":"Contains","value":"T10"}]}`,
		want:   []string{},
	},
	{
		name:   "contains without text is skipped",
		filter: `{"expressions":[{"property":"Customer","expressionType":"Contains","value":null},{"property":"Number","expressionType":"Equal","value":3}]}`,
		want:   []string{"carol"},
	},
	{
		name:   "equal",
		filter: `{"expressions":[{"property":"Customer","expressionType":"Equal","value":"carol"}]}`,
		want:   []string{"carol"},
	},
	{
		name:   "equal is case-sensitive",
		filter: `{"expressions":[{"property":"Customer","expressionType":"Equal","value":"Carol"}]}`,
		want:   []string{},
	},
	{
		name:   "not equal",
		filter: `{"expressions":[{"property":"Customer","expressionType":"NotEqual","value":"carol"}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
	{
		name:   "equal null",
		filter: `{"expressions":[{"property":"Note","expressionType":"Equal","value":null}]}`,
		want:   []string{"Bob Jones", "carol"},
	},
	{
		name:   "not equal null",
		filter: `{"expressions":[{"property":"Note","expressionType":"NotEqual","value":null}]}`,
		want:   []string{"Alice Smith"},
	},
	{
		name:   "not equal matches null members",
		filter: `{"expressions":[{"property":"Note","expressionType":"NotEqual","value":"call first"}]}`,
		want:   []string{"Bob Jones", "carol"},
	},
	{
		name:   "more than float",
		filter: `{"expressions":[{"property":"Total","expressionType":"MoreThan","value":10}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
	{
		name:   "less than or equal from string",
		filter: `{"expressions":[{"property":"Total","expressionType":"LessThanOrEqual","value":"10.5"}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "more than uint16",
		filter: `{"expressions":[{"property":"Count","expressionType":"MoreThan","value":2}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "less than time",
		filter: `{"expressions":[{"property":"CreatedAt","expressionType":"LessThan","value":"2024-03-02"}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
	{
		name:   "enum by name",
		filter: `{"expressions":[{"property":"Level","expressionType":"MoreThanOrEqual","value":"mid"}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "enum by number",
		filter: `{"expressions":[{"property":"Level","expressionType":"Equal","value":1}]}`,
		want:   []string{"Bob Jones"},
	},
	{
		name:   "in",
		filter: `{"expressions":[{"property":"Number","expressionType":"In","value":[1,3]}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "in empty list",
		filter: `{"expressions":[{"property":"Customer","expressionType":"In","value":[]}]}`,
		want:   []string{},
	},
	{
		name:   "in enum names",
		filter: `{"expressions":[{"property":"Level","expressionType":"In","value":["low","high"]}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
	{
		name:   "equal to date",
		filter: `{"expressions":[{"property":"CreatedAt","expressionType":"EqualToDate","value":"2024-03-01T05:00:00Z"}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
	{
		name:   "equal to date on nullable time",
		filter: `{"expressions":[{"property":"ShippedAt","expressionType":"EqualToDate","value":"2024-03-02"}]}`,
		want:   []string{"Alice Smith"},
	},
	{
		name:   "uuid from string",
		filter: `{"expressions":[{"property":"ID","expressionType":"Equal","value":"6f1c0e9e-8a59-4c43-9a53-0d6c8f0a0002"}]}`,
		want:   []string{"Bob Jones"},
	},
	{
		name:   "bool from string",
		filter: `{"expressions":[{"property":"Paid","expressionType":"Equal","value":"true"}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "nested path",
		filter: `{"expressions":[{"property":"Ship.City","expressionType":"Equal","value":"Paris"}]}`,
		want:   []string{"Bob Jones"},
	},
	{
		name:   "nested path through null",
		filter: `{"expressions":[{"property":"Ship.City","expressionType":"NotEqual","value":"Paris"}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "nested null member",
		filter: `{"expressions":[{"property":"Ship.Zip","expressionType":"Equal","value":null}]}`,
		want:   []string{"Bob Jones", "carol"},
	},
	{
		name:   "case-insensitive member names",
		filter: `{"expressions":[{"property":"ship.city","expressionType":"equal","value":"Berlin"}]}`,
		want:   []string{"Alice Smith"},
	},
	{
		name:   "any without value",
		filter: `{"expressions":[{"property":"Lines","expressionType":"Any"}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
	{
		name:   "any on nil collection",
		filter: `{"expressions":[{"property":"Labels","expressionType":"Any","value":null}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "any with element filter",
		filter: `{"expressions":[{"property":"Lines","expressionType":"Any","value":{"expressions":[{"property":"Qty","expressionType":"MoreThan","value":5}]}}]}`,
		want:   []string{"Bob Jones"},
	},
	{
		name:   "any with empty element filter",
		filter: `{"expressions":[{"property":"Lines","expressionType":"Any","value":{"expressions":[]}}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
	{
		name:   "any over scalar elements",
		filter: `{"expressions":[{"property":"Labels","expressionType":"Any","value":{"expressions":[{"expressionType":"Equal","value":"eu"}]}}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "nested any",
		filter: `{"expressions":[{"property":"Lines","expressionType":"Any","value":{"expressions":[{"property":"Tags","expressionType":"Any","value":{"expressions":[{"expressionType":"Equal","value":"red"}]}}]}}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
	{
		name:   "embedded filter",
		filter: `{"logicalOperator":"Or","expressions":[{"property":"Customer","expressionType":"Equal","value":"carol"},{"expressionType":"Filter","value":{"expressions":[{"property":"Paid","expressionType":"Equal","value":true},{"property":"Total","expressionType":"MoreThan","value":5}]}}]}`,
		want:   []string{"Alice Smith", "carol"},
	},
	{
		name:   "embedded empty filter is skipped",
		filter: `{"expressions":[{"expressionType":"Filter","value":{"expressions":[]}},{"property":"Paid","expressionType":"Equal","value":false}]}`,
		want:   []string{"Bob Jones"},
	},
	{
		name:   "integer wire operators",
		filter: `{"logicalOperator":1,"expressions":[{"property":"Number","expressionType":1,"value":1},{"property":"Number","expressionType":1,"value":2}]}`,
		want:   []string{"Alice Smith", "Bob Jones"},
	},
}

func TestOperators(t *testing.T) {
	for _, tt := range operatorTests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectOrders(t, tt.filter))
		})
	}
}

func TestLogicalFold(t *testing.T) {
	e1 := filter.Expr("Paid", filter.TypeEqual, true)
	e2 := filter.Expr("Number", filter.TypeLessThan, 3)
	e3 := filter.Expr("Level", filter.TypeEqual, "high")

	tests := []struct {
		name string
		f    *filter.Filter
		want []string
	}{
		{"and", filter.And(e1, e2, e3), []string{"Alice Smith"}},
		{"or", filter.Or(e1, e2, e3), []string{"Alice Smith", "Bob Jones", "carol"}},
		{"not single", filter.Not(e1), []string{"Bob Jones"}},
		// Not(a, b, c) is !a && !b && !c, not !(a && b && c).
		{"not many", filter.Not(e2, e3), []string{"carol"}},
		{"not all", filter.Not(e1, e2, e3), []string{}},
	}

	ot := orderType(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.f, ot)
			require.NoError(t, err)
			got, err := Where(p, orders())
			require.NoError(t, err)
			assert.Equal(t, tt.want, customers(got))
		})
	}
}

func TestLogicalFoldShape(t *testing.T) {
	ot := orderType(t)
	a := filter.Expr("Customer", filter.TypeEqual, "a")
	b := filter.Expr("Customer", filter.TypeEqual, "b")
	c := filter.Expr("Customer", filter.TypeEqual, "c")

	tests := []struct {
		f    *filter.Filter
		want string
	}{
		{filter.And(a), `x => (x.Customer == "a")`},
		{filter.And(a, b, c), `x => (((x.Customer == "a") && (x.Customer == "b")) && (x.Customer == "c"))`},
		{filter.Or(a, b), `x => ((x.Customer == "a") || (x.Customer == "b"))`},
		{filter.Not(a), `x => !(x.Customer == "a")`},
		{filter.Not(a, b, c), `x => ((!(x.Customer == "a") && !(x.Customer == "b")) && !(x.Customer == "c"))`},
		{filter.Not(filter.Expr("Customer", filter.TypeContains, nil), a), `x => !(x.Customer == "a")`},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			p, err := Compile(tt.f, ot)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestTreeShape(t *testing.T) {
	ot := orderType(t)

	p, err := Compile(filter.And(
		filter.Any("Lines", filter.And(filter.Expr("Qty", filter.TypeMoreThan, 5))),
		filter.Expr("Customer", filter.TypeContains, "Bo"),
		filter.Expr("CreatedAt", filter.TypeEqualToDate, "2024-03-01"),
	), ot)
	require.NoError(t, err)
	assert.Equal(t,
		`x => ((((x.Lines != null) && any(x.Lines, x1 => (x1.Qty > 5))) && ((x.Customer != null) && contains(lower(x.Customer), "bo"))) && (x.CreatedAt.Date == 2024-03-01T00:00:00Z))`,
		p.String())

	and, ok := p.Root.(*And)
	require.True(t, ok)
	date, ok := and.R.(*Compare)
	require.True(t, ok)
	assert.IsType(t, &DateOf{}, date.Left)
	assert.Equal(t, schema.KindTime, date.Right.T.Kind)
}

func TestConstantsHaveMemberType(t *testing.T) {
	ot := orderType(t)

	p, err := Compile(filter.And(
		filter.Expr("Count", filter.TypeEqual, "7"),
		filter.Expr("Level", filter.TypeEqual, "mid"),
		filter.Expr("Ship.Zip", filter.TypeEqual, 10115.0),
	), ot)
	require.NoError(t, err)

	var consts []any
	var walk func(Expr)
	walk = func(x Expr) {
		switch n := x.(type) {
		case *And:
			walk(n.L)
			walk(n.R)
		case *Compare:
			consts = append(consts, n.Right.Value)
		}
	}
	walk(p.Root)
	assert.Equal(t, []any{uint16(7), levelMid, 10115}, consts)
}

func TestCompileErrors(t *testing.T) {
	ot := orderType(t)

	tests := []struct {
		name     string
		f        *filter.Filter
		err      error
		property string
	}{
		{
			name:     "missing member",
			f:        filter.And(filter.Expr("Missing", filter.TypeEqual, 1)),
			err:      ErrUnresolvablePath,
			property: "Missing",
		},
		{
			name:     "missing nested member",
			f:        filter.And(filter.Expr("Ship.Street", filter.TypeEqual, "x")),
			err:      ErrUnresolvablePath,
			property: "Ship.Street",
		},
		{
			name:     "member of a scalar",
			f:        filter.And(filter.Expr("Customer.Length", filter.TypeEqual, 1)),
			err:      ErrUnresolvablePath,
			property: "Customer.Length",
		},
		{
			name:     "path on an embedded filter",
			f:        filter.And(filter.Expression{Property: "Nope", ExpressionType: filter.TypeFilter, Value: filter.Nested(filter.And())}),
			err:      ErrUnresolvablePath,
			property: "Nope",
		},
		{
			name: "leaf without property on an entity",
			f:    filter.And(filter.Expr("", filter.TypeEqual, 1)),
			err:  ErrUnresolvablePath,
		},
		{
			name: "missing member inside any",
			f:    filter.And(filter.Any("Lines", filter.And(filter.Expr("Missing", filter.TypeEqual, 1)))),
			err:  ErrUnresolvablePath,
		},
		{
			name:     "any on a scalar",
			f:        filter.And(filter.Any("Customer", nil)),
			err:      ErrUnsupportedOperation,
			property: "Customer",
		},
		{
			name: "any without property on an entity",
			f:    filter.And(filter.Any("", nil)),
			err:  ErrUnsupportedOperation,
		},
		{
			name:     "ordering a bool",
			f:        filter.And(filter.Expr("Paid", filter.TypeMoreThan, true)),
			err:      ErrUnsupportedOperation,
			property: "Paid",
		},
		{
			name:     "ordering a uuid",
			f:        filter.And(filter.Expr("ID", filter.TypeLessThan, bobID)),
			err:      ErrUnsupportedOperation,
			property: "ID",
		},
		{
			name:     "date of a number",
			f:        filter.And(filter.Expr("Number", filter.TypeEqualToDate, "2024-01-01")),
			err:      ErrUnsupportedOperation,
			property: "Number",
		},
		{
			name:     "equal on a struct",
			f:        filter.And(filter.Expr("Ship", filter.TypeEqual, nil)),
			err:      ErrUnsupportedOperation,
			property: "Ship",
		},
		{
			name:     "contains on a list",
			f:        filter.And(filter.Expr("Labels", filter.TypeContains, "eu")),
			err:      ErrUnsupportedOperation,
			property: "Labels",
		},
		{
			name:     "not a number",
			f:        filter.And(filter.Expr("Number", filter.TypeEqual, "abc")),
			err:      ErrValueCoercion,
			property: "Number",
		},
		{
			name:     "fraction for an integer",
			f:        filter.And(filter.Expr("Number", filter.TypeEqual, 1.5)),
			err:      ErrValueCoercion,
			property: "Number",
		},
		{
			name:     "negative for an unsigned",
			f:        filter.And(filter.Expr("Count", filter.TypeEqual, -1)),
			err:      ErrValueCoercion,
			property: "Count",
		},
		{
			name:     "overflow",
			f:        filter.And(filter.Expr("Count", filter.TypeEqual, 70000)),
			err:      ErrValueCoercion,
			property: "Count",
		},
		{
			name:     "unknown enum name",
			f:        filter.And(filter.Expr("Level", filter.TypeEqual, "urgent")),
			err:      ErrValueCoercion,
			property: "Level",
		},
		{
			name:     "in with a scalar",
			f:        filter.And(filter.Expr("Number", filter.TypeIn, 1)),
			err:      ErrValueCoercion,
			property: "Number",
		},
		{
			name:     "date null",
			f:        filter.And(filter.Expr("CreatedAt", filter.TypeEqualToDate, nil)),
			err:      ErrValueCoercion,
			property: "CreatedAt",
		},
		{
			name:     "filter as a value",
			f:        filter.And(filter.Expr("Number", filter.TypeEqual, filter.And())),
			err:      ErrValueCoercion,
			property: "Number",
		},
		{
			name: "unknown expression type",
			f:    filter.And(filter.Expression{Property: "Number", ExpressionType: filter.ExpressionType(42)}),
			err:  ErrUnknownOperator,
		},
		{
			name: "unknown logical operator",
			f:    &filter.Filter{LogicalOperator: filter.LogicalOperator(9), Expressions: []filter.Expression{filter.Expr("Number", filter.TypeEqual, 1)}},
			err:  ErrUnknownOperator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.f, ot)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			if tt.property != "" {
				assert.Equal(t, tt.property, ce.Property)
			}
		})
	}
}

func TestMaxDepth(t *testing.T) {
	ot := orderType(t)

	nest := func(n int) *filter.Filter {
		f := filter.And(filter.Expr("Number", filter.TypeEqual, 1))
		for range n {
			f = filter.And(filter.Group(f))
		}
		return f
	}

	c := NewCompiler(&Options{MaxDepth: 3})
	p, err := c.Compile(nest(3), ot)
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = c.Compile(nest(4), ot)
	assert.ErrorIs(t, err, ErrMaxDepth)

	anyNest := filter.And(filter.Any("Lines", filter.And(filter.Any("Tags", nil))))
	_, err = NewCompiler(&Options{MaxDepth: 1}).Compile(anyNest, ot)
	assert.ErrorIs(t, err, ErrMaxDepth)

	_, err = Compile(nest(DefaultMaxDepth+1), ot)
	assert.ErrorIs(t, err, ErrMaxDepth)
}

func TestSkippedExpressionIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := NewCompiler(&Options{Logger: logger})
	p, err := c.Compile(filter.And(
		filter.Expr("Customer", filter.TypeContains, nil),
		filter.Expr("Paid", filter.TypeEqual, true),
	), orderType(t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Contains(t, buf.String(), "filter expression skipped")
	assert.Contains(t, buf.String(), "property=Customer")
	assert.Contains(t, buf.String(), "expression_type=Contains")
}

func TestCompileIsIdempotent(t *testing.T) {
	ot := orderType(t)
	f := parseFilter(t, `{"logicalOperator":"Or","expressions":[
		{"property":"Customer","expressionType":"Contains","value":"o"},
		{"property":"Lines","expressionType":"Any","value":{"expressions":[{"property":"Price","expressionType":"LessThan","value":1}]}}
	]}`)

	p1, err := Compile(f, ot)
	require.NoError(t, err)
	p2, err := Compile(f, ot)
	require.NoError(t, err)

	assert.NotSame(t, p1, p2)
	assert.Equal(t, p1.String(), p2.String())

	for _, o := range orders() {
		m1, err := p1.Match(o)
		require.NoError(t, err)
		m2, err := p2.Match(&o)
		require.NoError(t, err)
		assert.Equal(t, m1, m2, o.Customer)
	}
}

func TestConcurrentUse(t *testing.T) {
	ot := orderType(t)
	f := parseFilter(t, `{"expressions":[{"property":"Lines","expressionType":"Any","value":{"expressions":[{"property":"Qty","expressionType":"MoreThan","value":1}]}}]}`)
	c := NewCompiler(nil)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Compile(f, ot)
			if err != nil {
				errs <- err
				return
			}
			got, err := Where(p, orders())
			if err != nil {
				errs <- err
				return
			}
			if len(got) != 2 {
				errs <- errors.New("unexpected match count")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
