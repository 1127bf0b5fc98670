package link

import "testing"

func TestParseWitness(t *testing.T) {
	tests := []struct {
		line  string
		ok    bool
		round int
		corr  float64
	}{
		{"WIT round=12 corr=0.823", true, 12, 0.823},
		{"WIT corr=0.5 round=3", true, 3, 0.5},
		{"WIT round=1 corr=0.9 extra=stuff", true, 1, 0.9},
		{"WIT round=abc corr=xyz", true, 0, 0},
		{"WIT", true, 0, 0},
		{"WIT garbage", true, 0, 0},
		{"CHAL round=1 seed=2 leader=0 dur=1200", false, 0, 0},
		{"", false, 0, 0},
		{"wit round=1 corr=0.9", false, 0, 0},
	}

	for _, tt := range tests {
		rep, ok := ParseWitness(tt.line)

		if ok != tt.ok {
			t.Fatalf("ParseWitness(%q) ok should be %t", tt.line, tt.ok)
		}

		if !ok {
			continue
		}

		if rep.Round != tt.round {
			t.Fatalf("ParseWitness(%q) round should be %d, not %d", tt.line, tt.round, rep.Round)
		}

		if rep.Corr != tt.corr {
			t.Fatalf("ParseWitness(%q) corr should be %f, not %f", tt.line, tt.corr, rep.Corr)
		}
	}
}

func TestInmemLink(t *testing.T) {
	lk := NewInmemLink()
	defer lk.Close()

	if _, ok := lk.ReadLine(); ok {
		t.Fatal("ReadLine on empty link should not return a line")
	}

	lk.Inject("WIT round=1 corr=0.9")

	line, ok := lk.ReadLine()
	if !ok {
		t.Fatal("ReadLine should return the injected line")
	}
	if line != "WIT round=1 corr=0.9" {
		t.Fatalf("unexpected line %q", line)
	}

	if err := lk.WriteLine("CHAL round=1 seed=2 leader=1 dur=1200"); err != nil {
		t.Fatal(err)
	}

	sent := lk.Sent()
	if len(sent) != 1 || sent[0] != "CHAL round=1 seed=2 leader=1 dur=1200" {
		t.Fatalf("unexpected sent lines %v", sent)
	}
}

func TestInmemLinkInjectAfterClose(t *testing.T) {
	lk := NewInmemLink()

	if err := lk.Close(); err != nil {
		t.Fatal(err)
	}

	lk.Inject("WIT round=1 corr=0.9")

	if line, ok := lk.ReadLine(); ok {
		t.Fatalf("closed link should drop injected lines, got %q", line)
	}
}
