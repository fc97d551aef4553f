package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"

	apperrors "github.com/yungbote/simgraph/internal/pkg/errors"
)

const sample = `JobId,c0,c1,title
j1,0.9,0.1,first
j2,0.8,0.2,second
j3,0.1,0.9,third
`

func testSchema() Schema {
	return Schema{IDColumn: "JobId", ClusterColumns: DefaultClusterColumns(2)}
}

func TestParseKeepsRowOrder(t *testing.T) {
	ds, err := Parse(strings.NewReader(sample), testSchema())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ds.Entities) != 3 {
		t.Fatalf("entities: want=3 got=%d", len(ds.Entities))
	}
	for i, want := range []string{"j1", "j2", "j3"} {
		if ds.Entities[i].ID != want {
			t.Fatalf("entity %d: want=%q got=%q", i, want, ds.Entities[i].ID)
		}
	}
	if got := ds.Entities[2].Scores; got[0] != 0.1 || got[1] != 0.9 {
		t.Fatalf("scores: got=%v", got)
	}
	if len(ds.Fingerprint) != 64 {
		t.Fatalf("fingerprint: got=%q", ds.Fingerprint)
	}
	again, _ := Parse(strings.NewReader(sample), testSchema())
	if again.Fingerprint != ds.Fingerprint {
		t.Fatalf("fingerprint not stable")
	}
}

func TestParseInputErrors(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		column string
	}{
		{"empty", "", ""},
		{"missing id column", "id,c0,c1\na,1,2\n", "JobId"},
		{"missing cluster column", "JobId,c0\na,1\n", "c1"},
		{"non numeric", "JobId,c0,c1\na,1,x\n", "c1"},
		{"non finite", "JobId,c0,c1\na,NaN,1\n", "c0"},
		{"blank id", "JobId,c0,c1\n ,1,1\n", "JobId"},
		{"duplicate id", "JobId,c0,c1\na,1,1\na,2,2\n", "JobId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.input), testSchema())
			var inErr *InputError
			if !errors.As(err, &inErr) {
				t.Fatalf("want InputError, got=%T %v", err, err)
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("want ErrInvalidInput in chain: %v", err)
			}
			if inErr.Column != tc.column {
				t.Fatalf("column: want=%q got=%q", tc.column, inErr.Column)
			}
		})
	}
}

func TestLoadFromMemFS(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/jobs.csv", []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	opener := NewOpener(nil)
	opener.FS = fs

	ds, err := Load(context.Background(), opener, "/data/jobs.csv", testSchema())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Entities) != 3 {
		t.Fatalf("entities: want=3 got=%d", len(ds.Entities))
	}

	_, err = Load(context.Background(), opener, "file:///data/missing.csv", testSchema())
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("missing file: want ErrInvalidInput, got=%v", err)
	}
}

func TestLoadFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	opener := NewOpener(nil)
	ds, err := Load(context.Background(), opener, srv.URL+"/jobs.csv", testSchema())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ds.Entities) != 3 {
		t.Fatalf("entities: want=3 got=%d", len(ds.Entities))
	}

	_, err = Load(context.Background(), opener, srv.URL+"/nope.csv", testSchema())
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("404: want ErrInvalidInput, got=%v", err)
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := NewOpener(nil).Open(context.Background(), "ftp://host/file.csv")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got=%v", err)
	}
}
