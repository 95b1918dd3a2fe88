package pipeline_test

import (
	"errors"
	"testing"

	"github.com/selkies-project/selkies-streamer-core/pkg/encoder"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx/fake"
	"github.com/selkies-project/selkies-streamer-core/pkg/pipeline"
)

func newFakePipeline() mediafx.Pipeline { return fake.NewPipeline() }

func TestBuildWebRTCVideoSuccess(t *testing.T) {
	b := pipeline.NewBuilder(fake.NewFactory())
	vp, err := b.BuildWebRTCVideo(newFakePipeline, pipeline.Params{
		Profile:           encoder.X264,
		Encode:            encoder.EncodeParams{VideoBitrateBps: 4_000_000, FramerateFPS: 30, KeyframeDistanceSec: -1},
		SourceElementName: "x11",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vp.Pipeline.Elements()) == 0 {
		t.Error("expected elements to be added to the pipeline")
	}
}

func TestBuildWebRTCVideoMissingPlugin(t *testing.T) {
	b := pipeline.NewBuilder(fake.NewFactory("x264enc"))
	_, err := b.BuildWebRTCVideo(newFakePipeline, pipeline.Params{
		Profile:           encoder.X264,
		Encode:            encoder.EncodeParams{VideoBitrateBps: 4_000_000, FramerateFPS: 30},
		SourceElementName: "x11",
	})
	if !errors.Is(err, pipeline.ErrConstruction) {
		t.Fatalf("expected ErrConstruction, got %v", err)
	}
}

func TestBuildWebSocketVideoRejectsUnsupportedProfile(t *testing.T) {
	b := pipeline.NewBuilder(fake.NewFactory())
	_, err := b.BuildWebSocketVideo(newFakePipeline, pipeline.Params{
		Profile: encoder.VP9,
		Encode:  encoder.EncodeParams{VideoBitrateBps: 4_000_000, FramerateFPS: 30},
	})
	if !errors.Is(err, pipeline.ErrConstruction) {
		t.Fatalf("expected ErrConstruction for vp9 over WebSocket, got %v", err)
	}
}

func TestSetVideoBitrateUpdatesEncoderProperty(t *testing.T) {
	b := pipeline.NewBuilder(fake.NewFactory())
	vp, err := b.BuildWebRTCVideo(newFakePipeline, pipeline.Params{
		Profile:           encoder.X264,
		Encode:            encoder.EncodeParams{VideoBitrateBps: 4_000_000, FramerateFPS: 30, KeyframeDistanceSec: -1},
		SourceElementName: "x11",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := vp.SetVideoBitrate(2_000_000, true); err != nil {
		t.Fatal(err)
	}
	if got := vp.CurrentBitrate(); got != 2_000_000 {
		t.Errorf("CurrentBitrate() = %d, want 2000000", got)
	}
}

func TestBuildsKeepIndependentBitrates(t *testing.T) {
	factory := fake.NewFactory()
	b := pipeline.NewBuilder(factory)
	// Building twice with a fresh fake pipeline each time must not share
	// state between VideoPipeline instances. Link failures are not
	// exercised here.
	vp1, err := b.BuildWebRTCVideo(newFakePipeline, pipeline.Params{
		Profile: encoder.X264,
		Encode:  encoder.EncodeParams{VideoBitrateBps: 1_000_000, FramerateFPS: 30},
	})
	if err != nil {
		t.Fatal(err)
	}
	vp2, err := b.BuildWebRTCVideo(newFakePipeline, pipeline.Params{
		Profile: encoder.X264,
		Encode:  encoder.EncodeParams{VideoBitrateBps: 9_000_000, FramerateFPS: 30},
	})
	if err != nil {
		t.Fatal(err)
	}
	if vp1.CurrentBitrate() == vp2.CurrentBitrate() {
		t.Error("expected independent pipelines to have independent bitrates")
	}
}
