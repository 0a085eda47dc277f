package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"disparos/internal/core"
)

func sample() []core.AggregateRecord {
	return []core.AggregateRecord{
		{DateKey: "01/03/2024", TimeKey: "08:15", Partner: "GOV SP", Product: "CARTÃO", Count: 20324, Channel: "RCS", Cost: decimal.RequireFromString("2134.02")},
		{DateKey: "01/03/2024", TimeKey: "09:00", Partner: "INSS", Product: "NOVO", Count: 1, Channel: "RCS", Cost: decimal.RequireFromString("0.10")},
		{DateKey: "", TimeKey: "", Partner: "OUTRO", Product: "OUTRO", Count: 3, Channel: "RCS", Cost: decimal.RequireFromString("0.32")},
	}
}

func TestWriteFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sample()[:2]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "DATA DISPARO;HORA DISPARO;CONVENIO;PRODUTO;quantidade;canal;gasto\n" +
		"01/03/2024;08:15;GOV SP;CARTÃO;20324;RCS;2134.02\n" +
		"01/03/2024;09:00;INSS;NOVO;1;RCS;0.10\n"
	if buf.String() != want {
		t.Errorf("Write() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	in := sample()
	if err := WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	out, err := Read(f)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d records, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].DateKey != in[i].DateKey || out[i].TimeKey != in[i].TimeKey ||
			out[i].Partner != in[i].Partner || out[i].Product != in[i].Product ||
			out[i].Count != in[i].Count || out[i].Channel != in[i].Channel ||
			!out[i].Cost.Equal(in[i].Cost) {
			t.Errorf("record %d = %+v, want %+v", i, out[i], in[i])
		}
	}
	if !core.TotalCost(out).Equal(core.TotalCost(in)) {
		t.Errorf("total cost changed: %s vs %s", core.TotalCost(out), core.TotalCost(in))
	}
}

func TestReadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		schema bool
	}{
		{"wrong header", "DATA;HORA;CONVENIO;PRODUTO;quantidade;canal;gasto\n", true},
		{"bad count", strings.Join(core.DefaultHeader, ";") + "\n01/03/2024;08:15;A;B;x;RCS;1.00\n", false},
		{"bad cost", strings.Join(core.DefaultHeader, ";") + "\n01/03/2024;08:15;A;B;1;RCS;1,00\n", false},
		{"short row", strings.Join(core.DefaultHeader, ";") + "\n01/03/2024;08:15\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, core.ErrSchemaMismatch); got != tt.schema {
				t.Errorf("errors.Is(ErrSchemaMismatch) = %v, want %v (%v)", got, tt.schema, err)
			}
		})
	}
}

func TestReadEmpty(t *testing.T) {
	out, err := Read(strings.NewReader(""))
	if err != nil || out != nil {
		t.Fatalf("Read(\"\") = %v, %v", out, err)
	}
}
