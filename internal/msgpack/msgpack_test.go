package msgpack

import "testing"

type query struct {
	Schema  string   `msgpack:"schema"`
	Columns []string `msgpack:"columns,omitempty"`
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(query{Schema: "main", Columns: []string{"id"}})
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	var got query
	if err := Decode(data, &got); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got.Schema != "main" || len(got.Columns) != 1 || got.Columns[0] != "id" {
		t.Errorf("Decode() = %+v", got)
	}
}

func TestDecodeEmpty(t *testing.T) {
	var q query
	if err := Decode(nil, &q); err == nil {
		t.Error("Expected error for empty data")
	}
	if err := Decode([]byte{0xc1}, &q); err == nil {
		t.Error("Expected error for invalid data")
	}
}
