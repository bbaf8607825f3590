package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

func TestFilterBuilder(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(1920, 1080).Format("nv12").Custom("hwupload").Build()

	expected := "scale=1920:1080,format=nv12,hwupload"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Build()

	if filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func TestFilterBuilderSkipsInvalid(t *testing.T) {
	filter := NewFilterBuilder().Scale(0, 100).ScaleToHeight(0).Format("").Custom("").Build()
	if filter != "" {
		t.Errorf("expected invalid filters to be skipped, got %q", filter)
	}
}

func TestFilterBuilderExpressions(t *testing.T) {
	filter := NewFilterBuilder().
		ScaleToHeight(1720).
		CropExpr("min(in_w,1080)", "1720", "(in_w-out_w)/2", "0").
		Pad(1080, 1920, "(ow-iw)/2", "0", "").
		Build()

	expected := "scale=-2:1720,crop='min(in_w,1080)':1720:(in_w-out_w)/2:0,pad=1080:1920:(ow-iw)/2:0:black"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterGraph(t *testing.T) {
	graph := NewFilterGraph().
		Chain([]string{"0:v"}, "scale=2:2", "a").
		Chain([]string{"a", "1:v"}, "overlay=0:0", "out").
		Build()

	expected := "[0:v]scale=2:2[a];[a][1:v]overlay=0:0[out]"
	if graph != expected {
		t.Errorf("expected %q, got %q", expected, graph)
	}
}

func verticalSpec() TransformSpec {
	return TransformSpec{
		Input:  "/in/merged_001.webm",
		Output: "/out/merged_001_vertical.webm",
		Width:  1080,
		Height: 1920,
		Bar:    200,
		Overlays: []OverlaySpec{
			{Path: "/assets/icon.png", Width: 300, Height: 200, X: "0", Y: "H-h"},
			{Path: "/assets/logo.png", Width: 180, Height: 180, X: "W-w-20", Y: "H-h-10"},
		},
		Codec: VP9Opus(),
	}
}

func TestBuildVerticalGraph(t *testing.T) {
	graph := buildVerticalGraph(verticalSpec())

	expected := strings.Join([]string{
		"[0:v]scale=-2:1720,crop='min(in_w,1080)':1720:(in_w-out_w)/2:0,pad=1080:1920:(ow-iw)/2:0:black[base]",
		"[1:v]scale=300:200[ov1]",
		"[base][ov1]overlay=0:H-h[v1]",
		"[2:v]scale=180:180[ov2]",
		"[v1][ov2]overlay=W-w-20:H-h-10[vout]",
	}, ";")
	if graph != expected {
		t.Errorf("graph mismatch\nwant %s\ngot  %s", expected, graph)
	}
}

func TestBuildVerticalGraphNoOverlays(t *testing.T) {
	spec := verticalSpec()
	spec.Overlays = nil

	graph := buildVerticalGraph(spec)
	if !strings.HasSuffix(graph, "[vout]") || strings.Contains(graph, ";") {
		t.Errorf("expected single chain ending in [vout], got %q", graph)
	}
}

func TestBuildVerticalGraphFilterSuffix(t *testing.T) {
	spec := verticalSpec()
	spec.Overlays = spec.Overlays[:1]
	spec.Codec = H264AAC("h264_vaapi")

	graph := buildVerticalGraph(spec)
	if !strings.HasSuffix(graph, "[v1]format=nv12,hwupload[vout]") {
		t.Errorf("expected hwupload tail, got %q", graph)
	}
}

func TestBuildTransformArgsWithMusic(t *testing.T) {
	spec := verticalSpec()
	spec.Music = "/music/track.mp3"

	args, err := buildTransformArgs(spec)
	if err != nil {
		t.Fatalf("buildTransformArgs: %v", err)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i /in/merged_001.webm -i /assets/icon.png -i /assets/logo.png -stream_loop -1 -i /music/track.mp3",
		"-map [vout] -map 3:a:0",
		"-c:v libvpx-vp9 -crf 30 -b:v 0",
		"-c:a libopus -b:a 128k",
		"-shortest /out/merged_001_vertical.webm",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q\n%s", want, joined)
		}
	}
}

func TestBuildTransformArgsWithoutMusic(t *testing.T) {
	args, err := buildTransformArgs(verticalSpec())
	if err != nil {
		t.Fatalf("buildTransformArgs: %v", err)
	}

	if slices.Contains(args, "-shortest") || slices.Contains(args, "-stream_loop") {
		t.Errorf("unexpected music args: %v", args)
	}
	if !strings.Contains(strings.Join(args, " "), "-map 0:a?") {
		t.Errorf("expected optional source audio map: %v", args)
	}
}

func TestBuildTransformArgsMuted(t *testing.T) {
	spec := verticalSpec()
	spec.Mute = true

	args, err := buildTransformArgs(spec)
	if err != nil {
		t.Fatalf("buildTransformArgs: %v", err)
	}

	joined := strings.Join(args, " ")
	if !strings.HasSuffix(joined, "-pix_fmt yuv420p -an /out/merged_001_vertical.webm") {
		t.Errorf("expected audio dropped: %s", joined)
	}
	if slices.Contains(args, "-c:a") || strings.Contains(joined, "0:a?") {
		t.Errorf("unexpected audio args: %s", joined)
	}

	// music wins over mute
	spec.Music = "/music/track.mp3"
	args, err = buildTransformArgs(spec)
	if err != nil {
		t.Fatalf("buildTransformArgs: %v", err)
	}
	if slices.Contains(args, "-an") || !slices.Contains(args, "-shortest") {
		t.Errorf("music should be mapped when set: %v", args)
	}
}

func TestBuildTransformArgsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TransformSpec)
	}{
		{"no input", func(s *TransformSpec) { s.Input = "" }},
		{"no output", func(s *TransformSpec) { s.Output = "" }},
		{"zero canvas", func(s *TransformSpec) { s.Width = 0 }},
		{"bar too tall", func(s *TransformSpec) { s.Bar = 1920 }},
		{"overlay without path", func(s *TransformSpec) { s.Overlays[0].Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := verticalSpec()
			tt.mutate(&spec)
			if _, err := buildTransformArgs(spec); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildTranscodeArgs(t *testing.T) {
	codec := H264AAC("libx264")
	codec.VideoFilter = "crop=in_h*9/16:in_h:(in_w-out_w)/2:0,scale=1080:1920"

	args, err := buildTranscodeArgs(TranscodeSpec{Input: "a.webm", Output: "a.mp4", Codec: codec})
	if err != nil {
		t.Fatalf("buildTranscodeArgs: %v", err)
	}

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i a.webm -vf crop=in_h*9/16:in_h:(in_w-out_w)/2:0,scale=1080:1920",
		"-c:v libx264 -b:v 6M -maxrate 8M -bufsize 12M",
		"-c:a aac -b:a 128k -movflags +faststart a.mp4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q\n%s", want, joined)
		}
	}
}

func TestCodecSpecArgs(t *testing.T) {
	got := VP9Opus().Args()
	want := []string{
		"-c:v", "libvpx-vp9", "-crf", "30", "-b:v", "0",
		"-deadline", "realtime", "-cpu-used", "4", "-row-mt", "1",
		"-pix_fmt", "yuv420p", "-c:a", "libopus", "-b:a", "128k",
	}
	if !slices.Equal(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

func TestPresetFor(t *testing.T) {
	if _, err := PresetFor("gif", "libx264"); err == nil {
		t.Error("expected error for unknown format")
	}
	mp4, err := PresetFor("mp4", "h264_nvenc")
	if err != nil {
		t.Fatal(err)
	}
	if mp4.VideoCodec != "h264_nvenc" || mp4.Extension != ".mp4" {
		t.Errorf("unexpected mp4 preset %+v", mp4)
	}
	if EncoderConfig("whatever").Encoder != "libx264" {
		t.Error("unknown encoders should fall back to libx264")
	}
}

func TestPlanParts(t *testing.T) {
	parts, err := PlanParts(100*time.Second, 4)
	if err != nil {
		t.Fatalf("PlanParts: %v", err)
	}

	if len(parts) != 4 {
		t.Fatalf("expected 4 parts, got %d", len(parts))
	}
	for i, p := range parts {
		if p.Index != i+1 {
			t.Errorf("part %d has index %d", i, p.Index)
		}
		if p.Offset != time.Duration(i)*25*time.Second {
			t.Errorf("part %d offset = %v", i, p.Offset)
		}
		if p.Duration != 25*time.Second {
			t.Errorf("part %d duration = %v", i, p.Duration)
		}
	}
}

func TestPlanPartsRemainder(t *testing.T) {
	parts, err := PlanParts(10*time.Second+1, 3)
	if err != nil {
		t.Fatal(err)
	}

	var total time.Duration
	for _, p := range parts {
		total += p.Duration
	}
	if total != 10*time.Second+1 {
		t.Errorf("parts cover %v, want %v", total, 10*time.Second+1)
	}
	last := parts[len(parts)-1]
	if last.Offset+last.Duration != 10*time.Second+1 {
		t.Errorf("last part does not end at total")
	}
}

func TestPlanPartsErrors(t *testing.T) {
	if _, err := PlanParts(10*time.Second, 0); !errors.Is(err, ErrSegment) {
		t.Errorf("expected ErrSegment for zero parts, got %v", err)
	}
	if _, err := PlanParts(0, 4); !errors.Is(err, ErrSegment) {
		t.Errorf("expected ErrSegment for unknown duration, got %v", err)
	}
}

func TestWriteConcatList(t *testing.T) {
	var sb strings.Builder
	if err := writeConcatList(&sb, []string{"/clips/clip_001.webm", "/clips/it's.webm"}); err != nil {
		t.Fatal(err)
	}

	expected := "file '/clips/clip_001.webm'\nfile '/clips/it'\\''s.webm'\n"
	if sb.String() != expected {
		t.Errorf("expected %q, got %q", expected, sb.String())
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"format": {"duration": "3600.500000", "bit_rate": "8000000"},
		"streams": [
			{"codec_type": "video", "codec_name": "vp9", "width": 3840, "height": 2160, "r_frame_rate": "60/1"},
			{"codec_type": "audio", "codec_name": "opus", "bit_rate": "128000"}
		]
	}`)

	info, err := parseProbe("/rec.webm", out)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}

	if info.Duration != time.Hour+500*time.Millisecond {
		t.Errorf("duration = %v", info.Duration)
	}
	if info.Width != 3840 || info.Height != 2160 || info.FPS != 60 {
		t.Errorf("unexpected video info %+v", info)
	}
	if !info.HasAudio || info.AudioCodec != "opus" {
		t.Errorf("unexpected audio info %+v", info)
	}
}

func TestParseVideoInfoInvalid(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"not json", "not json"},
		{"missing duration", `{"format": {}, "streams": []}`},
		{"zero duration", `{"format": {"duration": "0.000000"}, "streams": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseProbe("x", []byte(tt.out)); !errors.Is(err, ErrProbe) {
				t.Errorf("expected ErrProbe, got %v", err)
			}
		})
	}
}

func TestConcatNeedsTwoInputs(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}

	for _, inputs := range [][]string{nil, {"/clips/clip_001.webm"}} {
		err := e.Concat(context.Background(), ConcatOptions{Inputs: inputs, Output: "/out/merged.webm"})
		if !errors.Is(err, ErrConcat) {
			t.Errorf("%d inputs: expected ErrConcat, got %v", len(inputs), err)
		}
	}
}

func TestStreamOutputProgress(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}
	out := strings.Join([]string{
		"Input #0, matroska,webm, from 'in.webm':",
		"frame=48",
		"fps=24.0",
		"out_time=00:00:02.000000",
		"speed=2.01x",
		"progress=continue",
		"frame=0",
		"progress=end",
	}, "\n")

	var (
		progress []Progress
		logs     []string
	)
	e.streamOutput(strings.NewReader(out), func(p *Progress) {
		progress = append(progress, *p)
	}, func(line string) {
		logs = append(logs, line)
	})

	if len(progress) != 1 {
		t.Fatalf("expected one progress block, got %+v", progress)
	}
	if progress[0].Frame != 48 || progress[0].Time != "00:00:02.000000" || progress[0].Speed != "2.01x" {
		t.Errorf("unexpected progress %+v", progress[0])
	}
	if len(logs) != 1 || !strings.HasPrefix(logs[0], "Input #0") {
		t.Errorf("unexpected log lines %v", logs)
	}
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	LogProgress(logger, "clip_001")(&Progress{Frame: 10, Time: "00:00:01.000000", Speed: "1x"})

	line := buf.String()
	for _, want := range []string{`"item":"clip_001"`, `"frame":10`, `"speed":"1x"`, `"message":"ffmpeg progress"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %s: %s", want, line)
		}
	}
}

func TestLineRing(t *testing.T) {
	r := newLineRing(2)
	r.add("one")
	r.add("  ")
	r.add("two")
	r.add("three")

	if got := r.String(); got != "two | three" {
		t.Errorf("got %q", got)
	}
}
