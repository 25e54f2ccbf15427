package presence

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func testConfig(limit uint) Config {
	return Config{LockThreshold: -72, UnlockThreshold: -55, BorderlineLimit: limit, PollInterval: time.Second}
}

type step struct {
	sample     Sample
	action     Action
	unlocked   bool
	borderline uint
}

func runSteps(t *testing.T, cfg Config, start State, steps []step) {
	t.Helper()
	st := start
	for i, s := range steps {
		var a Action
		st, a = Decide(cfg, st, s.sample)
		if a != s.action || st.Unlocked != s.unlocked || st.Borderline != s.borderline {
			t.Fatalf("step %d (%v): got %v %+v, want %v {Unlocked:%v Borderline:%d}",
				i, s.sample, a, st, s.action, s.unlocked, s.borderline)
		}
	}
}

func TestDecideRules(t *testing.T) {
	cfg := testConfig(2)
	tests := []struct {
		name   string
		st     State
		sample Sample
		want   State
		action Action
	}{
		{"failure while unlocked locks, count kept", State{true, 1}, Failed(), State{false, 1}, Lock},
		{"failure while locked", State{false, 2}, Failed(), State{false, 2}, NoChange},
		{"strong while locked", State{false, 1}, Reading(-55), State{true, 0}, Unlock},
		{"strong while unlocked", State{true, 1}, Reading(-40), State{true, 0}, NoChange},
		{"weak at limit locks", State{true, 2}, Reading(-72), State{false, 2}, Lock},
		{"weak above limit locks", State{true, 5}, Reading(-90), State{false, 5}, Lock},
		{"weak below limit counts", State{true, 1}, Reading(-80), State{true, 2}, NoChange},
		{"weak while locked", State{false, 1}, Reading(-80), State{false, 1}, NoChange},
		{"middle resets count", State{true, 1}, Reading(-60), State{true, 0}, NoChange},
		{"middle while locked", State{false, 2}, Reading(-71), State{false, 0}, NoChange},
		{"unreadable is neutral", State{true, 1}, Unreadable(), State{true, 1}, NoChange},
		{"unreadable while locked", State{false, 0}, Unreadable(), State{false, 0}, NoChange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, a := Decide(cfg, tt.st, tt.sample)
			if st != tt.want || a != tt.action {
				t.Errorf("Decide(%+v, %v) = %+v, %v, want %+v, %v", tt.st, tt.sample, st, a, tt.want, tt.action)
			}
		})
	}
}

func TestGracePeriod(t *testing.T) {
	// Locking needs the count to reach the limit before the weak sample,
	// so with limit 3 the fourth consecutive weak sample locks.
	weak := Reading(-73)
	runSteps(t, testConfig(3), State{}, []step{
		{Reading(-55), Unlock, true, 0},
		{weak, NoChange, true, 1},
		{weak, NoChange, true, 2},
		{weak, NoChange, true, 3},
		{weak, Lock, false, 3},
	})

	runSteps(t, testConfig(2), State{}, []step{
		{Reading(-55), Unlock, true, 0},
		{weak, NoChange, true, 1},
		{weak, NoChange, true, 2},
		{weak, Lock, false, 2},
	})

	runSteps(t, testConfig(0), State{}, []step{
		{Reading(-55), Unlock, true, 0},
		{weak, Lock, false, 0},
	})
}

func TestSignalStream(t *testing.T) {
	runSteps(t, testConfig(2), State{}, []step{
		{Reading(-50), Unlock, true, 0},
		{Reading(-60), NoChange, true, 0},
		{Reading(-70), NoChange, true, 0},
		{Reading(-75), NoChange, true, 1},
		{Reading(-50), NoChange, true, 0},
	})
}

func TestStrongSampleClearsCountAfterRelock(t *testing.T) {
	runSteps(t, testConfig(1), State{}, []step{
		{Reading(-50), Unlock, true, 0},
		{Reading(-80), NoChange, true, 1},
		{Reading(-80), Lock, false, 1},
		{Reading(-80), NoChange, false, 1},
		{Reading(-50), Unlock, true, 0},
	})
}

func randomSample(r *rand.Rand) Sample {
	switch r.Intn(10) {
	case 0:
		return Failed()
	case 1:
		return Unreadable()
	}
	return Reading(-100 + r.Intn(80))
}

func TestActionsAlternate(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for run := 0; run < 200; run++ {
		cfg := testConfig(uint(r.Intn(5)))
		st := State{}
		last := Lock
		for i := 0; i < 500; i++ {
			prev := st
			var a Action
			st, a = Decide(cfg, st, randomSample(r))
			switch a {
			case Unlock:
				if last == Unlock || prev.Unlocked {
					t.Fatalf("run %d step %d: Unlock without intervening Lock", run, i)
				}
				last = a
			case Lock:
				if last == Lock || !prev.Unlocked {
					t.Fatalf("run %d step %d: Lock without intervening Unlock", run, i)
				}
				last = a
			case NoChange:
				if st.Unlocked != prev.Unlocked {
					t.Fatalf("run %d step %d: state flipped without an action", run, i)
				}
			}
		}
	}
}

func TestFailureWhileUnlockedLocksOnce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	cfg := testConfig(3)
	for i := 0; i < 1000; i++ {
		st := State{Unlocked: true, Borderline: uint(r.Intn(4))}
		next, a := Decide(cfg, st, Failed())
		if a != Lock || next.Unlocked || next.Borderline != st.Borderline {
			t.Fatalf("Decide(%+v, failed) = %+v, %v", st, next, a)
		}
		if _, again := Decide(cfg, next, Failed()); again != NoChange {
			t.Fatalf("second failure emitted %v", again)
		}
	}
}

func TestEngine(t *testing.T) {
	if _, err := NewEngine(Config{LockThreshold: -50, UnlockThreshold: -60, PollInterval: time.Second}); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("NewEngine(inverted thresholds) error = %v", err)
	}
	if _, err := NewEngine(Config{LockThreshold: -60, UnlockThreshold: -60, PollInterval: time.Second}); !errors.Is(err, ErrInvalidThresholds) {
		t.Errorf("NewEngine(equal thresholds) error = %v", err)
	}
	if _, err := NewEngine(Config{LockThreshold: -70, UnlockThreshold: -60}); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("NewEngine(zero interval) error = %v", err)
	}

	e, err := NewEngine(testConfig(2))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if e.State() != (State{}) {
		t.Fatalf("initial state = %+v, want locked", e.State())
	}
	if a := e.Observe(Reading(-40)); a != Unlock {
		t.Errorf("Observe(strong) = %v", a)
	}
	if a := e.Observe(Failed()); a != Lock {
		t.Errorf("Observe(failed) = %v", a)
	}
	if e.State().Unlocked {
		t.Error("engine still unlocked")
	}
}

func TestActionString(t *testing.T) {
	for a, want := range map[Action]string{NoChange: "none", Lock: "lock", Unlock: "unlock", Action(9): "Action(9)"} {
		if got := a.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(a), got, want)
		}
	}
}
