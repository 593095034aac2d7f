package host

import (
	"bytes"
	"testing"

	"github.com/aykutozdemir/fsmos-go/platform"
)

func TestSinkWritesBytes(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	for _, b := range []byte("ok\n") {
		s.WriteByte(b)
	}
	if buf.String() != "ok\n" {
		t.Fatalf("got %q, want %q", buf.String(), "ok\n")
	}
}

func TestSinkDefaultsToStdoutWithoutPanicking(t *testing.T) {
	s := NewSink(nil)
	s.WriteByte('x')
}

func TestWatchdogCountsFeeds(t *testing.T) {
	w := &Watchdog{}
	w.Enable(4000)
	w.Feed()
	w.Feed()
	if w.Feeds() != 2 {
		t.Fatalf("Feeds() = %d, want 2", w.Feeds())
	}
}

func TestResetRegisterReadAndClear(t *testing.T) {
	r := &ResetRegister{Flags: 0x05}
	if got := r.ReadAndClear(); got != 0x05 {
		t.Fatalf("ReadAndClear() = %#x, want 0x05", got)
	}
	if got := r.ReadAndClear(); got != 0 {
		t.Fatalf("second ReadAndClear() = %#x, want 0", got)
	}
}

func TestNoInitRoundTrips(t *testing.T) {
	n := &NoInit{}
	want := platform.NoInitRecord{ResetReason: 1, LastTaskID: 9}
	n.Store(want)
	if got := n.Load(); got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestTimebaseIsMonotonicNonNegative(t *testing.T) {
	tb := NewTimebase()
	a := tb.NowMs()
	b := tb.NowMs()
	if b < a {
		t.Fatalf("NowMs went backwards: %d then %d", a, b)
	}
}

func TestCanaryLength(t *testing.T) {
	if len(Canary()) == 0 {
		t.Fatal("Canary() returned an empty region")
	}
}
