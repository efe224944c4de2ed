package predicate

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/entityfilter/filter"
	"github.com/hugr-lab/entityfilter/schema"
)

type level uint8

const (
	levelLow level = iota + 1
	levelMid
	levelHigh
)

func (l *level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "low":
		*l = levelLow
	case "mid":
		*l = levelMid
	case "high":
		*l = levelHigh
	default:
		return fmt.Errorf("unknown level %q", text)
	}
	return nil
}

type address struct {
	City string
	Zip  *int
}

type line struct {
	SKU   string `db:"sku"`
	Qty   int    `db:"qty"`
	Price float64
	Tags  []string
}

type order struct {
	ID        uuid.UUID
	Number    int64 `db:"number"`
	Customer  string
	Note      *string
	Total     float64
	Count     uint16
	Paid      bool
	Level     level
	CreatedAt time.Time  `db:"created_at"`
	ShippedAt *time.Time `db:"shipped_at"`
	Ship      *address
	Lines     []line
	Labels    []string
}

var (
	aliceID = uuid.MustParse("6f1c0e9e-8a59-4c43-9a53-0d6c8f0a0001")
	bobID   = uuid.MustParse("6f1c0e9e-8a59-4c43-9a53-0d6c8f0a0002")
	carolID = uuid.MustParse("6f1c0e9e-8a59-4c43-9a53-0d6c8f0a0003")
)

func ptr[T any](v T) *T { return &v }

func orders() []order {
	return []order{
		{
			ID:        aliceID,
			Number:    1,
			Customer:  "Alice Smith",
			Note:      ptr("call first"),
			Total:     10.5,
			Count:     3,
			Paid:      true,
			Level:     levelHigh,
			CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			ShippedAt: ptr(time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)),
			Ship:      &address{City: "Berlin", Zip: ptr(10115)},
			Lines: []line{
				{SKU: "A1", Qty: 2, Price: 5, Tags: []string{"red"}},
				{SKU: "B2", Qty: 1, Price: 0.5},
			},
			Labels: []string{"vip", "eu"},
		},
		{
			ID:        bobID,
			Number:    2,
			Customer:  "Bob Jones",
			Total:     99,
			Paid:      false,
			Level:     levelLow,
			CreatedAt: time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC),
			Ship:      &address{City: "Paris"},
			Lines: []line{
				{SKU: "C3", Qty: 10, Price: 9.9, Tags: []string{"blue", "red"}},
			},
		},
		{
			ID:        carolID,
			Number:    3,
			Customer:  "carol",
			Total:     0,
			Count:     7,
			Paid:      true,
			Level:     levelMid,
			CreatedAt: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			Lines:     []line{},
			Labels:    []string{"eu"},
		},
	}
}

func orderType(t testing.TB) *schema.Type {
	t.Helper()
	ot, err := schema.Of[order]()
	require.NoError(t, err)
	return ot
}

func parseFilter(t testing.TB, src string) *filter.Filter {
	t.Helper()
	f, err := filter.Parse([]byte(src))
	require.NoError(t, err)
	return f
}

func customers(items []order) []string {
	out := []string{}
	for _, o := range items {
		out = append(out, o.Customer)
	}
	return out
}

// selectOrders compiles src against order and returns the customers of the
// matching fixtures.
func selectOrders(t testing.TB, src string) []string {
	t.Helper()
	p, err := Compile(parseFilter(t, src), orderType(t))
	require.NoError(t, err)
	got, err := Where(p, orders())
	require.NoError(t, err)
	return customers(got)
}
