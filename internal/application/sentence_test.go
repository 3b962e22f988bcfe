package application

import (
	"reflect"
	"testing"
)

func TestSentenceAssembler_PassthroughWhenUngrouped(t *testing.T) {
	a := newSentenceAssembler(false, 0)

	got := a.Add("Paris")
	if !reflect.DeepEqual(got, []string{"Paris"}) {
		t.Errorf("Add: got %v", got)
	}
	got = a.Add(" is the capital")
	if !reflect.DeepEqual(got, []string{" is the capital"}) {
		t.Errorf("Add: got %v", got)
	}
	if got := a.Add(""); got != nil {
		t.Errorf("Add empty chunk: got %v", got)
	}
	if tail := a.Flush(); tail != "" {
		t.Errorf("Flush: got %q", tail)
	}
}

func TestSentenceAssembler_GroupsToSentenceBoundaries(t *testing.T) {
	a := newSentenceAssembler(true, 0)

	if got := a.Add("The capital of France"); got != nil {
		t.Errorf("incomplete sentence emitted: %v", got)
	}
	got := a.Add(" is Paris. It has")
	if !reflect.DeepEqual(got, []string{"The capital of France is Paris."}) {
		t.Errorf("Add: got %v", got)
	}
	got = a.Add(" many museums. And cafes.")
	want := []string{"It has many museums.", "And cafes."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Add: got %v, want %v", got, want)
	}
}

func TestSentenceAssembler_FlushReturnsRemainder(t *testing.T) {
	a := newSentenceAssembler(true, 0)

	a.Add("Yes. And one more thing")
	if tail := a.Flush(); tail != "And one more thing" {
		t.Errorf("Flush: got %q", tail)
	}
	if tail := a.Flush(); tail != "" {
		t.Errorf("second Flush: got %q", tail)
	}
}

func TestSentenceAssembler_SplitsOversizedBuffer(t *testing.T) {
	a := newSentenceAssembler(true, 10)

	got := a.Add("abcdefghijklmnop")
	if len(got) != 1 || got[0] != "abcdefghijklmnop" {
		t.Errorf("Add: got %v, want the oversized buffer flushed", got)
	}
	if tail := a.Flush(); tail != "" {
		t.Errorf("Flush: got %q", tail)
	}
}

func TestSentenceAssembler_NewlineIsABoundary(t *testing.T) {
	a := newSentenceAssembler(true, 0)

	got := a.Add("First line\nsecond")
	if !reflect.DeepEqual(got, []string{"First line"}) {
		t.Errorf("Add: got %v", got)
	}
	if tail := a.Flush(); tail != "second" {
		t.Errorf("Flush: got %q", tail)
	}
}
