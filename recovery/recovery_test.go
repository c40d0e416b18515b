package recovery

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestGuardPassesThroughResult(t *testing.T) {
	if err := Guard("page", func() error { return nil }); err != nil {
		t.Errorf("err = %v", err)
	}
	want := errors.New("boom")
	if err := Guard("page", func() error { return want }); !errors.Is(err, want) {
		t.Errorf("err = %v", err)
	}
}

func TestGuardConvertsPanic(t *testing.T) {
	err := Guard("rewrite", func() error { panic("index out of range") })
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rewrite: panic: index out of range") {
		t.Errorf("err = %v", err)
	}
}

func TestStrictFailsImmediately(t *testing.T) {
	var s Strict
	if got := s.OnError(errors.New("x"), Location{Page: 0, Component: "content"}); got != ActionFail {
		t.Errorf("action = %v", got)
	}
}

func TestLenientSkipsAndRecords(t *testing.T) {
	var s Lenient
	for i := 0; i < 3; i++ {
		if got := s.OnError(errors.New("bad stream"), Location{Page: i, Component: "content"}); got != ActionSkip {
			t.Errorf("action = %v", got)
		}
	}
	errs := s.Errors()
	if len(errs) != 3 {
		t.Errorf("errors = %v", errs)
	}
	if !strings.Contains(errs[1].Error(), "page 2") {
		t.Errorf("errors[1] = %v", errs[1])
	}
}

func TestLenientConcurrentRecording(t *testing.T) {
	var s Lenient
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.OnError(errors.New("bad stream"), Location{Page: page, Component: "content"})
			}
		}(i)
	}
	wg.Wait()
	if got := len(s.Errors()); got != 8*50 {
		t.Errorf("recorded %d errors, want %d", got, 8*50)
	}
}
