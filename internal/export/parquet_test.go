package export

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func readBack(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open parquet file: %v", err)
	}
	reader := parquet.NewGenericReader[map[string]any](bytes.NewReader(data), file.Schema())
	defer func() { _ = reader.Close() }()

	rows := make([]map[string]any, reader.NumRows())
	for i := range rows {
		rows[i] = map[string]any{}
	}
	if _, err := reader.Read(rows); err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("read parquet rows: %v", err)
	}
	return rows
}

func TestWriteParquetRoundTrip(t *testing.T) {
	columns := []string{"Name", "Survived", "Fare"}
	rows := []map[string]any{
		{"Name": "Ada", "Survived": int64(1), "Fare": 71.28},
		{"Name": "Ben", "Survived": int64(0), "Fare": 7.25},
	}

	var buf bytes.Buffer
	if err := WriteParquet(&buf, columns, rows); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}

	got := readBack(t, buf.Bytes())
	if len(got) != 2 {
		t.Fatalf("rows read = %d, want 2", len(got))
	}
	if got[0]["Name"] != "Ada" {
		t.Fatalf("Name = %v", got[0]["Name"])
	}
	if got[0]["Survived"] != int64(1) {
		t.Fatalf("Survived = %v (%T)", got[0]["Survived"], got[0]["Survived"])
	}
	if got[1]["Fare"] != 7.25 {
		t.Fatalf("Fare = %v", got[1]["Fare"])
	}
}

func TestWriteParquetHandlesNullsAndMixedCells(t *testing.T) {
	columns := []string{"Name", "Age"}
	rows := []map[string]any{
		{"Name": "Ada", "Age": int64(36)},
		{"Name": "Ben", "Age": nil},
	}

	var buf bytes.Buffer
	if err := WriteParquet(&buf, columns, rows); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}

	got := readBack(t, buf.Bytes())
	if len(got) != 2 {
		t.Fatalf("rows read = %d, want 2", len(got))
	}
	if got[1]["Age"] != nil {
		t.Fatalf("null cell came back as %v", got[1]["Age"])
	}
}

func TestWriteParquetEmptyResultStillValid(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteParquet(&buf, []string{"a"}, nil); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty result should still produce a parquet file")
	}
	if got := readBack(t, buf.Bytes()); len(got) != 0 {
		t.Fatalf("rows read = %d, want 0", len(got))
	}
}

func TestWriteParquetRequiresColumns(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteParquet(&buf, nil, nil); err == nil {
		t.Fatal("WriteParquet() without columns should fail")
	}
}
