package env

import (
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("WORSHIP_TEST_STR", "value")
	t.Setenv("WORSHIP_TEST_BLANK", "  ")
	t.Setenv("WORSHIP_TEST_INT", "42")
	t.Setenv("WORSHIP_TEST_BAD_INT", "forty")
	t.Setenv("WORSHIP_TEST_BOOL", "true")
	t.Setenv("WORSHIP_TEST_DUR", "90s")
	t.Setenv("WORSHIP_TEST_LIST", "a, b,,c ")

	if got := GetEnv("WORSHIP_TEST_STR", "def"); got != "value" {
		t.Errorf("GetEnv = %q, want value", got)
	}
	if got := GetEnv("WORSHIP_TEST_BLANK", "def"); got != "def" {
		t.Errorf("GetEnv blank = %q, want def", got)
	}
	if got := GetEnv("WORSHIP_TEST_UNSET", "def"); got != "def" {
		t.Errorf("GetEnv unset = %q, want def", got)
	}
	if got := GetEnvInt("WORSHIP_TEST_INT", 1); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}
	if got := GetEnvInt("WORSHIP_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetEnvInt bad = %d, want 7", got)
	}
	if got := GetEnvBool("WORSHIP_TEST_BOOL", false); !got {
		t.Errorf("GetEnvBool = false, want true")
	}
	if got := GetEnvDuration("WORSHIP_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("GetEnvDuration = %s, want 90s", got)
	}
	got := GetEnvList("WORSHIP_TEST_LIST", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("GetEnvList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetEnvList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
