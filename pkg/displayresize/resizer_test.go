package displayresize

import (
	"context"
	"testing"

	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
)

const sampleXrandr = `Screen 0: minimum 320 x 200, current 1280 x 720, maximum 16384 x 16384
HDMI-1 connected 1280x720+0+0 (normal left inverted right x axis y axis) 521mm x 293mm
   1280x720      60.00*+  59.94
   1024x768      60.00
`

const sampleCvt = `# 1920x1080 59.96 Hz (CVT 2.07M9-R) hsync: 66.59 kHz; pclk: 138.50 MHz
Modeline "1920x1080_60.00"  138.50  1920 1968 2000 2080  1080 1083 1088 1111 +hsync -vsync
`

type fakeRunner struct {
	newModeCalls []string
	addModeCalls []string
	setModeCalls []string
}

func (f *fakeRunner) XrandrQuery(ctx context.Context) (string, error) { return sampleXrandr, nil }

func (f *fakeRunner) CvtModeline(ctx context.Context, w, h, refresh int) (string, error) {
	return sampleCvt, nil
}

func (f *fakeRunner) XrandrNewMode(ctx context.Context, name, modeline string) error {
	f.newModeCalls = append(f.newModeCalls, name)
	return nil
}

func (f *fakeRunner) XrandrAddMode(ctx context.Context, screen, name string) error {
	f.addModeCalls = append(f.addModeCalls, screen+":"+name)
	return nil
}

func (f *fakeRunner) XrandrSetMode(ctx context.Context, screen, name string) error {
	f.setModeCalls = append(f.setModeCalls, screen+":"+name)
	return nil
}

// S4: target 1920x1080, current 1280x720, mode not already advertised.
func TestResizeGeneratesModelineWhenMissing(t *testing.T) {
	r := New(logger.Default(), &fakeRunner{})
	fr := r.runner.(*fakeRunner)

	if err := r.Resize(context.Background(), Resolution{Width: 1920, Height: 1080}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fr.newModeCalls) != 1 || fr.newModeCalls[0] != "1920x1080_60.00" {
		t.Fatalf("expected one newmode call for 1920x1080_60.00, got %v", fr.newModeCalls)
	}
	if len(fr.addModeCalls) != 1 || fr.addModeCalls[0] != "HDMI-1:1920x1080_60.00" {
		t.Fatalf("expected addmode HDMI-1:1920x1080_60.00, got %v", fr.addModeCalls)
	}
	if len(fr.setModeCalls) != 1 || fr.setModeCalls[0] != "HDMI-1:1920x1080_60.00" {
		t.Fatalf("expected setmode HDMI-1:1920x1080_60.00, got %v", fr.setModeCalls)
	}
}

func TestResizeNoopWhenAlreadyCurrent(t *testing.T) {
	r := New(logger.Default(), &fakeRunner{})
	fr := r.runner.(*fakeRunner)

	if err := r.Resize(context.Background(), Resolution{Width: 1280, Height: 720}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fr.setModeCalls) != 0 {
		t.Fatalf("expected no xrandr calls for a no-op resize, got %v", fr.setModeCalls)
	}
}

func TestResizeSkipsModelineWhenAlreadyAdvertised(t *testing.T) {
	r := New(logger.Default(), &fakeRunner{})
	fr := r.runner.(*fakeRunner)

	if err := r.Resize(context.Background(), Resolution{Width: 1024, Height: 768}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fr.newModeCalls) != 0 {
		t.Fatalf("expected no newmode call for an already-advertised mode, got %v", fr.newModeCalls)
	}
	if len(fr.setModeCalls) != 1 || fr.setModeCalls[0] != "HDMI-1:1024x768" {
		t.Fatalf("expected setmode HDMI-1:1024x768, got %v", fr.setModeCalls)
	}
}

// §8 property 7: fit_res returns pixel-even dimensions <= cap, idempotent
// when already in range.
func TestFitResClampsAndRoundsEven(t *testing.T) {
	got := FitRes(100, 101, 1000, 1000)
	if got.Width%2 != 0 || got.Height%2 != 0 {
		t.Fatalf("expected even dimensions, got %v", got)
	}
	if got.Width > 1000 || got.Height > 1000 {
		t.Fatalf("expected dimensions within cap, got %v", got)
	}

	again := FitRes(got.Width, got.Height, 1000, 1000)
	if again != got {
		t.Fatalf("expected idempotent fit, got %v then %v", got, again)
	}
}

func TestFitResShrinksOversizedTarget(t *testing.T) {
	got := FitRes(10000, 10000, 2560, 1600)
	if got.Width > 2560 || got.Height > 1600 {
		t.Fatalf("expected clamp to cap, got %v", got)
	}
}
