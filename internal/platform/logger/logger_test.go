package logger

import (
	"strings"
	"testing"
)

func TestRedactorRedactsAndHashes(t *testing.T) {
	r := &redactor{}
	out := r.kvs([]interface{}{
		"requester_id", "user-123",
		"session_token", "abc",
		"job_id", "fp-1",
		"dangling",
	})
	if len(out) != 7 {
		t.Fatalf("len: want=7 got=%d", len(out))
	}
	if got, ok := out[1].(string); !ok || got == "user-123" || len(got) != len("hash:")+12 {
		t.Fatalf("requester_id should be hashed, got %v", out[1])
	}
	if out[3] != redacted {
		t.Fatalf("session_token should be redacted, got %v", out[3])
	}
	if out[5] != "fp-1" {
		t.Fatalf("job_id should pass through, got %v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("dangling key should be kept, got %v", out[6])
	}
}

func TestRedactorSaltChangesHash(t *testing.T) {
	plain := (&redactor{}).hash("user-1")
	salted := (&redactor{salt: "pepper"}).hash("user-1")
	if plain == salted {
		t.Fatalf("salt should change the hash")
	}
}

func TestRedactorClipsUserText(t *testing.T) {
	long := strings.Repeat("a", maxTextRunes+50)
	out := (&redactor{}).kvs([]interface{}{"topic", long, "error", long})
	if s := out[1].(string); len([]rune(s)) != maxTextRunes+1 {
		t.Fatalf("topic not clipped: %d runes", len([]rune(s)))
	}
	if out[3] != long {
		t.Fatalf("error values are not user text and stay whole")
	}
}

func TestRedactionCanBeDisabled(t *testing.T) {
	out := (&redactor{off: true}).kvs([]interface{}{"requester_id", "user-1"})
	if out[1] != "user-1" {
		t.Fatalf("redaction off should pass values through, got %v", out[1])
	}
}

func TestNopLoggerIsUsable(t *testing.T) {
	log, err := New("test", WithHashSalt("s"), WithRedaction(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.With("component", "x").Info("hello", "k", "v")
	log.Sync()
}
