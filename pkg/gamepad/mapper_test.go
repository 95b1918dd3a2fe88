package gamepad

import "testing"

func TestMapButtonPassthrough(t *testing.T) {
	m := NewMapper(Config{ButtonRemap: map[int]int{8: 6}})
	ev := m.MapButton(0, 1)
	if ev.Kind != EventButton || ev.Number != 0 || ev.Value != 1 {
		t.Fatalf("expected passthrough button 0 pressed, got %+v", ev)
	}
}

func TestMapButtonRemap(t *testing.T) {
	m := NewMapper(standardXPadLayout)
	ev := m.MapButton(8, 1)
	if ev.Kind != EventButton || ev.Number != 6 {
		t.Fatalf("expected button 8 remapped to 6, got %+v", ev)
	}
}

func TestMapButtonTriggerBecomesAxis(t *testing.T) {
	m := NewMapper(standardXPadLayout)
	ev := m.MapButton(6, 0.5)
	if ev.Kind != EventAxis || ev.Number != 2 {
		t.Fatalf("expected wire button 6 to map to trigger axis 2, got %+v", ev)
	}
	if ev.Value != NormalizeTrigger(0.5) {
		t.Fatalf("expected trigger-normalized value, got %d", ev.Value)
	}
}

func TestMapButtonDpadSignedAxis(t *testing.T) {
	m := NewMapper(standardXPadLayout)
	pos := m.MapButton(15, 1)
	neg := m.MapButton(14, 1)
	if pos.Kind != EventAxis || pos.Number != 6 || neg.Kind != EventAxis || neg.Number != 6 {
		t.Fatalf("expected both d-pad buttons to map to axis 6, got %+v / %+v", pos, neg)
	}
	if pos.Value <= 0 || neg.Value >= 0 {
		t.Fatalf("expected opposite signed axis values, got pos=%d neg=%d", pos.Value, neg.Value)
	}
}

func TestMapAxisRemap(t *testing.T) {
	m := NewMapper(standardXPadLayout)
	ev := m.MapAxis(2, 1.0)
	if ev.Kind != EventAxis || ev.Number != 3 {
		t.Fatalf("expected axis 2 remapped to 3, got %+v", ev)
	}
	if ev.Value != NormalizeAxis(1.0) {
		t.Fatalf("expected normalized value, got %d", ev.Value)
	}
}

func TestNormalizeAxisClamps(t *testing.T) {
	if got := NormalizeAxis(2.0); got != axisMax {
		t.Fatalf("expected clamp to axisMax, got %d", got)
	}
	if got := NormalizeAxis(-2.0); got != axisMin {
		t.Fatalf("expected clamp to axisMin, got %d", got)
	}
}

func TestNormalizeTriggerClamps(t *testing.T) {
	if got := NormalizeTrigger(2.0); got != axisMax {
		t.Fatalf("expected clamp to axisMax, got %d", got)
	}
	if got := NormalizeTrigger(-1.0); got != axisMin {
		t.Fatalf("expected clamp to axisMin, got %d", got)
	}
}

func TestDetectConfigFallsBackToStandard(t *testing.T) {
	cfg, known := DetectConfig("some random name")
	if known {
		t.Fatal("expected no device to be recognized by name")
	}
	if cfg.NumButtons != standardXPadLayout.NumButtons || cfg.NumAxes != standardXPadLayout.NumAxes {
		t.Fatalf("expected fallback to standardXPadLayout, got %+v", cfg)
	}
}
