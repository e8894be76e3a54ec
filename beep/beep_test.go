package beep

import "testing"

func abs16(v int16) int {
	if v < 0 {
		return -int(v)
	}
	return int(v)
}

func peak(s []int16) int {
	m := 0
	for _, v := range s {
		m = max(m, abs16(v))
	}
	return m
}

func TestAlertSamplesDecay(t *testing.T) {
	s := alertSamples()
	if want := int(sampleRate * alertDuration); len(s) != want {
		t.Fatalf("len = %d, want %d", len(s), want)
	}
	q := len(s) / 4
	head, tail := peak(s[:q]), peak(s[len(s)-q:])
	if head == 0 || tail >= head {
		t.Errorf("expected decaying envelope: head peak %d, tail peak %d", head, tail)
	}
	limit := 32767 * alertVolume
	if head > int(limit)+1 {
		t.Errorf("peak %d exceeds volume", head)
	}
}

func TestErrorSamplesHaveGap(t *testing.T) {
	s := errorSamples()
	b := int(sampleRate * 0.08)
	gap := int(sampleRate * 0.05)
	if len(s) != 2*b+gap {
		t.Fatalf("len = %d, want %d", len(s), 2*b+gap)
	}
	if peak(s[b:b+gap]) != 0 {
		t.Error("gap between beeps should be silent")
	}
}

func TestPlayerDisabledIsSilent(t *testing.T) {
	Disable()
	Player{}.PlayAlert()
	PlayError()
}
