package hal

import (
	"testing"
	"time"
)

func TestParseParkerKind(t *testing.T) {
	cases := []struct {
		in      string
		want    ParkerKind
		wantErr bool
	}{
		{"", ParkerChan, false},
		{"chan", ParkerChan, false},
		{"eventfd", ParkerEventfd, false},
		{"spin", ParkerSpin, false},
		{"wfi", "", true},
	}
	for _, tc := range cases {
		got, err := ParseParkerKind(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseParkerKind(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseParkerKind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParkersKeepStickyToken(t *testing.T) {
	for _, kind := range []ParkerKind{ParkerChan, ParkerSpin} {
		p, closer, err := NewParker(kind)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		p.Unpark()
		p.Unpark()

		start := time.Now()
		p.Park(-1)
		if time.Since(start) > time.Second {
			t.Fatalf("%s: park with pending token blocked", kind)
		}

		start = time.Now()
		p.Park(10 * time.Millisecond)
		if time.Since(start) < 5*time.Millisecond {
			t.Fatalf("%s: second park returned without a token", kind)
		}
		if err := closer.Close(); err != nil {
			t.Fatalf("%s close: %v", kind, err)
		}
	}
}

func TestParkerWakesFromAnotherGoroutine(t *testing.T) {
	p := NewSpinParker()
	go func() {
		time.Sleep(2 * time.Millisecond)
		p.Unpark()
	}()
	p.Park(-1)
	if p.Spins() == 0 {
		t.Fatalf("spin parker returned before the token arrived")
	}
}
