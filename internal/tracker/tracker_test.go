package tracker

import (
	"path/filepath"
	"testing"
)

func TestMarkAsReadAndIsRead(t *testing.T) {
	tr := New()
	if tr.IsRead("a.txt") {
		t.Fatal("expected unread path to report false")
	}
	tr.MarkAsRead("a.txt")
	if !tr.IsRead("a.txt") {
		t.Fatal("expected marked path to report true")
	}
}

func TestMarkAsReadResolvesRelativeAndAbsoluteToSamePath(t *testing.T) {
	tr := New()
	tr.MarkAsRead("./sub/../a.txt")
	abs, err := filepath.Abs("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.IsRead(abs) {
		t.Fatal("expected normalized paths to collide")
	}
}

func TestNeverAutoClears(t *testing.T) {
	tr := New()
	tr.MarkAsRead("a.txt")
	tr.MarkAsRead("b.txt")
	if !tr.IsRead("a.txt") || !tr.IsRead("b.txt") {
		t.Fatal("expected both reads to persist without explicit Clear")
	}
}

func TestClearRemovesAllReads(t *testing.T) {
	tr := New()
	tr.MarkAsRead("a.txt")
	tr.Clear()
	if tr.IsRead("a.txt") {
		t.Fatal("expected Clear to remove prior reads")
	}
}
