package envutil

import (
	"reflect"
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("EU_INT", "42")
	t.Setenv("EU_BAD_INT", "x")
	t.Setenv("EU_FLOAT", "0.95")
	t.Setenv("EU_BOOL", "yes")
	t.Setenv("EU_DUR", "15s")
	t.Setenv("EU_DUR_SECS", "7")
	t.Setenv("EU_LIST", " a, ,b ,c")

	if got := Int("EU_INT", 1); got != 42 {
		t.Fatalf("Int: want=%d got=%d", 42, got)
	}
	if got := Int("EU_BAD_INT", 1); got != 1 {
		t.Fatalf("Int fallback: want=%d got=%d", 1, got)
	}
	if got := Float("EU_FLOAT", 0); got != 0.95 {
		t.Fatalf("Float: want=%v got=%v", 0.95, got)
	}
	if got := Bool("EU_BOOL", false); !got {
		t.Fatalf("Bool: want=true got=false")
	}
	if got := Duration("EU_DUR", time.Second); got != 15*time.Second {
		t.Fatalf("Duration: want=%v got=%v", 15*time.Second, got)
	}
	if got := Duration("EU_DUR_SECS", time.Second); got != 7*time.Second {
		t.Fatalf("Duration secs: want=%v got=%v", 7*time.Second, got)
	}
	if got := List("EU_LIST", nil); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("List: got=%v", got)
	}
	if got := String("EU_MISSING", "def"); got != "def" {
		t.Fatalf("String: want=%q got=%q", "def", got)
	}
}
