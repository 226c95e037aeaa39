package relay

import (
	"testing"
	"time"

	"chordmesh/internal/ring"
)

func id(x uint64) ring.Id { return ring.FromUint64(x) }

func freshSend(from, to []ring.Id, payload Payload) *Envelope {
	e := &Envelope{Method: SEND, Payload: payload, TTLDeadline: time.Now().Add(time.Hour)}
	for _, v := range from {
		e.FromPath.PushBack(v)
	}
	for _, v := range to {
		e.ToPath.PushBack(v)
	}
	return e
}

func TestNextHopExtendsBothPaths(t *testing.T) {
	a, b, c := id(1), id(2), id(3)
	e := freshSend([]ring.Id{a}, []ring.Id{b}, FindSuccessor{ID: a})

	if err := e.NextHop(b, c); err != nil {
		t.Fatalf("NextHop: %v", err)
	}
	tail, ok := e.ActiveTail()
	if !ok || !tail.Equal(c) {
		t.Fatalf("active tail = %v, want c", tail)
	}
	fromTail, ok := tailOf(&e.FromPath)
	if !ok || !fromTail.Equal(b) {
		t.Fatalf("from_path tail = %v, want b", fromTail)
	}
}

func TestPushPrevReportAssertsTailAndPops(t *testing.T) {
	a, b, c := id(1), id(2), id(3)
	e := &Envelope{Method: REPORT, TTLDeadline: time.Now().Add(time.Hour)}
	e.ToPath.PushBack(a)
	e.ToPath.PushBack(b) // tail = b = "current"
	e.FromPath.PushBack(b)
	e.FromPath.PushBack(c)

	if err := e.PushPrev(b, c); err != nil {
		t.Fatalf("PushPrev: %v", err)
	}
	tail, ok := e.ActiveTail()
	if !ok || !tail.Equal(a) {
		t.Fatalf("to_path tail after PushPrev = %v, want a", tail)
	}
}

func TestPushPrevReportRejectsTailMismatch(t *testing.T) {
	a, b := id(1), id(2)
	e := &Envelope{Method: REPORT, TTLDeadline: time.Now().Add(time.Hour)}
	e.ToPath.PushBack(a)
	e.ToPath.PushBack(b)

	if err := e.PushPrev(a, b); err != ErrBadEnvelope {
		// current claimed is a, but tail is b: must reject.
		t.Fatalf("err = %v, want ErrBadEnvelope", err)
	}
}

func TestToReportSwapsPaths(t *testing.T) {
	a, b, c := id(1), id(2), id(3)
	// At C: SEND{from=[a,b], to=[b,c]}.
	e := freshSend([]ring.Id{a, b}, []ring.Id{b, c}, FindSuccessor{ID: a})

	e.ToReport(FoundSuccessor{Successor: c})

	if e.Method != REPORT {
		t.Fatalf("method = %v, want REPORT", e.Method)
	}
	if e.ToPath.Len() != 2 || !e.ToPath.At(0).Equal(a) || !e.ToPath.At(1).Equal(b) {
		t.Fatalf("to_path after ToReport should equal old from_path [a,b]")
	}
	if e.FromPath.Len() != 2 || !e.FromPath.At(0).Equal(b) || !e.FromPath.At(1).Equal(c) {
		t.Fatalf("from_path after ToReport should equal old to_path [b,c]")
	}
}

func TestValidateRejectsExpiredAndWrongTail(t *testing.T) {
	a, b := id(1), id(2)
	e := freshSend([]ring.Id{a}, []ring.Id{b}, FindSuccessor{ID: a})

	if err := e.Validate(b, time.Now(), nil); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}
	if err := e.Validate(a, time.Now(), nil); err != ErrBadEnvelope {
		t.Fatalf("wrong receiver: err = %v, want ErrBadEnvelope", err)
	}

	e.TTLDeadline = time.Now().Add(-time.Second)
	if err := e.Validate(b, time.Now(), nil); err != ErrBadEnvelope {
		t.Fatalf("expired envelope: err = %v, want ErrBadEnvelope", err)
	}
}

func TestRemoveToAndFromPath(t *testing.T) {
	a, b := id(1), id(2)
	e := freshSend([]ring.Id{a}, []ring.Id{b}, FindSuccessor{ID: a})

	v, ok := e.RemoveToPath()
	if !ok || !v.Equal(b) {
		t.Fatalf("RemoveToPath = %v, want b", v)
	}
	if e.ToPath.Len() != 0 {
		t.Fatalf("to_path should be empty after removal")
	}

	v, ok = e.RemoveFromPath()
	if !ok || !v.Equal(a) {
		t.Fatalf("RemoveFromPath = %v, want a", v)
	}
}
