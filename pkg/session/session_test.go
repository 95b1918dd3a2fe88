package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/selkies-project/selkies-streamer-core/pkg/clipboard"
	"github.com/selkies-project/selkies-streamer-core/pkg/config"
	"github.com/selkies-project/selkies-streamer-core/pkg/cursor"
	"github.com/selkies-project/selkies-streamer-core/pkg/displayresize"
	"github.com/selkies-project/selkies-streamer-core/pkg/encoder"
	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx/fake"
	"github.com/selkies-project/selkies-streamer-core/pkg/pipeline"
	"github.com/selkies-project/selkies-streamer-core/pkg/session"
	"github.com/selkies-project/selkies-streamer-core/pkg/webrtcsession"

	"github.com/pion/webrtc/v4"
)

type fakeInjector struct{}

func (fakeInjector) KeyDown(uint32) error        { return nil }
func (fakeInjector) KeyUp(uint32) error          { return nil }
func (fakeInjector) MoveAbsolute(int, int) error { return nil }
func (fakeInjector) MoveRelative(int, int) error { return nil }
func (fakeInjector) Button(int, bool) error      { return nil }
func (fakeInjector) Scroll(int, int) error       { return nil }

type fakeCursorSource struct{}

func (fakeCursorSource) Subscribe(ctx context.Context) (<-chan cursor.CursorEvent, error) {
	ch := make(chan cursor.CursorEvent)
	return ch, nil
}
func (fakeCursorSource) FetchImage(serial uint64) (cursor.CursorImage, error) {
	return cursor.CursorImage{Width: 1, Height: 1, ARGB: []uint32{0}}, nil
}

type fakeClipboardRunner struct{}

func (fakeClipboardRunner) Read(ctx context.Context) (string, error)     { return "", nil }
func (fakeClipboardRunner) Write(ctx context.Context, text string) error { return nil }

type fakeResizeRunner struct{}

func (fakeResizeRunner) XrandrQuery(ctx context.Context) (string, error) { return "", nil }
func (fakeResizeRunner) CvtModeline(ctx context.Context, w, h, refresh int) (string, error) {
	return "", nil
}
func (fakeResizeRunner) XrandrNewMode(ctx context.Context, name, modeline string) error { return nil }
func (fakeResizeRunner) XrandrAddMode(ctx context.Context, screen, name string) error   { return nil }
func (fakeResizeRunner) XrandrSetMode(ctx context.Context, screen, name string) error   { return nil }

func newFakePipeline() mediafx.Pipeline { return fake.NewPipeline() }

func newTestParams(t *testing.T) session.Params {
	t.Helper()
	cfg := config.Default()
	cfg.Gamepad.SocketDir = t.TempDir()

	webrtcSess, err := webrtcsession.New(logger.Default(), webrtcsession.Callbacks{})
	if err != nil {
		t.Fatalf("webrtcsession.New failed: %v", err)
	}
	t.Cleanup(func() { _ = webrtcSess.Close() })

	return session.Params{
		Mode:            session.ModeWebRTC,
		Config:          cfg,
		Log:             logger.Default(),
		Injector:        fakeInjector{},
		CursorSource:    fakeCursorSource{},
		ClipboardRunner: fakeClipboardRunner{},
		ResizeRunner:    fakeResizeRunner{},
		Builder:         pipeline.NewBuilder(fake.NewFactory()),
		NewPipeline:     newFakePipeline,
		Profile:         encoder.X264,
		WebRTC:          webrtcSess,
	}
}

func TestNewBuildsAndClosesCleanly(t *testing.T) {
	s, err := session.New(newTestParams(t))
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	if s.ID() == "" {
		t.Error("expected a non-empty session id")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := session.New(newTestParams(t))
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}

	done := make(chan error, 2)
	go func() { done <- s.Close() }()
	go func() { done <- s.Close() }()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Close returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent Close calls did not both return")
		}
	}
}

func TestHandleControlMessageRoundTripsThroughRouter(t *testing.T) {
	s, err := session.New(newTestParams(t))
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	defer s.Close()

	// kd,65 is a no-op observably (fakeInjector discards), but Dispatch
	// must not block or panic when posted from outside the owning loop.
	s.HandleControlMessage("kd,65")
	s.HandleControlMessage("r,1921x1079")

	// Give the loop goroutine a moment to drain the posted closures before
	// Close races the assertions in this test's deferred cleanup.
	time.Sleep(10 * time.Millisecond)
}

func TestOnICECandidateForwardsToRelay(t *testing.T) {
	p := newTestParams(t)
	relayed := make(chan webrtc.ICECandidateInit, 1)
	p.OnICECandidate = func(c webrtc.ICECandidateInit) { relayed <- c }

	s, err := session.New(p)
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	defer s.Close()

	want := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 1 typ host"}
	s.OnICECandidate(want)

	select {
	case got := <-relayed:
		if got.Candidate != want.Candidate {
			t.Errorf("got candidate %q, want %q", got.Candidate, want.Candidate)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("relay callback was not invoked")
	}
}
