package hotkey

import "testing"

func TestDiagnoseReportsSomething(t *testing.T) {
	// Environment-dependent: a headless host may legitimately fail, but a
	// success must come with a human-readable summary.
	msg, err := Diagnose()
	if err == nil && msg == "" {
		t.Fatal("diagnosis succeeded with no summary")
	}
}

func TestFakeDeliversFullChord(t *testing.T) {
	f := NewFake()
	if err := f.Register(); err != nil {
		t.Fatal(err)
	}
	if !f.Registered {
		t.Fatal("register not recorded")
	}

	f.Press()
	select {
	case <-f.Keydown():
	default:
		t.Fatal("no keydown delivered")
	}
	select {
	case <-f.Keyup():
	default:
		t.Fatal("no keyup delivered")
	}

	f.Unregister()
	if !f.Unregistered {
		t.Fatal("unregister not recorded")
	}
}
