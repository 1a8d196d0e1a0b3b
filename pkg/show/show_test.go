package show

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/airloom/showmix/pkg/audio/pcm"
	"github.com/airloom/showmix/pkg/audio/wav"
	"github.com/airloom/showmix/pkg/jingle"
	"github.com/airloom/showmix/pkg/speaker"
	"github.com/airloom/showmix/pkg/storage"
	"github.com/airloom/showmix/pkg/tts"
	"github.com/airloom/showmix/pkg/voice"
)

// synthFunc adapts a function to the Synthesizer interface.
type synthFunc func(ctx context.Context, req *tts.Request) (*tts.Response, error)

func (f synthFunc) Synthesize(ctx context.Context, req *tts.Request) (*tts.Response, error) {
	return f(ctx, req)
}

// tone builds a constant-amplitude clip so mixed output is never all zeros.
func tone(f pcm.Format, d time.Duration) []byte {
	data := f.Silence(d)
	for i := 0; i+1 < len(data); i += 2 {
		pcm.FromSample(data, i, 0.1)
	}
	return data
}

func toneResponse(d time.Duration) *tts.Response {
	f := pcm.Mono24K
	data := tone(f, d)
	return &tts.Response{Audio: data, Format: f, Duration: f.Duration(len(data))}
}

func testSpeakers() *speaker.Registry {
	return speaker.NewRegistry([]speaker.Profile{
		{Name: "marta", VoiceID: "v-marta", Language: "de"},
		{Name: "jens", VoiceID: "v-jens", Language: "de", RoleAliases: []string{"weather"}},
	})
}

func writeJingle(t *testing.T, store storage.FileStore, path string, d time.Duration) {
	t.Helper()
	f := pcm.Mono16K
	w, err := store.Write(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if err := wav.Encode(w, f, tone(f, d)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

// testWorld wires an orchestrator over a local store with one 45s jingle.
func testWorld(t *testing.T, synth Synthesizer) (*Orchestrator, storage.FileStore) {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeJingle(t, store, "jingles/default.wav", 45*time.Second)
	jingles := jingle.NewCatalog([]jingle.Asset{
		{ID: "default", FileRef: "jingles/default.wav", Format: "wav", Duration: 45 * time.Second, QualityScore: 0.8},
	})
	o := New(testSpeakers(), voice.NewCatalog(voice.DefaultTiers()), jingles, synth, store)
	return o, store
}

func TestGenerateSingleSegment(t *testing.T) {
	synth := synthFunc(func(_ context.Context, _ *tts.Request) (*tts.Response, error) {
		return toneResponse(2 * time.Second), nil
	})
	o, store := testWorld(t, synth)

	out, err := o.Generate(context.Background(), Config{PrimarySpeaker: "marta"},
		[]ScriptSegment{{Index: 0, Speaker: "marta", Text: "good morning"}})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(out.FileRef, "file://") {
		t.Errorf("FileRef = %s", out.FileRef)
	}
	path := "shows/" + out.ShowID + ".wav"
	ok, err := store.Exists(context.Background(), path)
	if err != nil || !ok {
		t.Errorf("artifact %s missing (err=%v)", path, err)
	}

	// Speech shorter than the fade window still yields all six phases.
	want := out.SpeechDuration + 11*time.Second
	if want < 28*time.Second {
		want = 28 * time.Second
	}
	if diff := out.TotalDuration - want; diff < -50*time.Millisecond || diff > 50*time.Millisecond {
		t.Errorf("TotalDuration = %v, want %v +-50ms", out.TotalDuration, want)
	}
	for i := 1; i < len(out.PhaseBoundaries); i++ {
		if out.PhaseBoundaries[i] < out.PhaseBoundaries[i-1] {
			t.Errorf("boundaries not monotone: %v", out.PhaseBoundaries)
		}
	}
	if out.JingleID != "default" {
		t.Errorf("JingleID = %s", out.JingleID)
	}
}

func TestClipOrderIndependentOfCompletionOrder(t *testing.T) {
	// Earlier segments finish last; slots must still come out in index order.
	var mu sync.Mutex
	var completionOrder []string
	synth := synthFunc(func(ctx context.Context, req *tts.Request) (*tts.Response, error) {
		var delay time.Duration
		if strings.HasPrefix(req.Text, "segment-0") {
			delay = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		mu.Lock()
		completionOrder = append(completionOrder, req.Text)
		mu.Unlock()

		// Distinct durations per segment let the test identify each clip.
		n := int(req.Text[len(req.Text)-1] - '0')
		return toneResponse(time.Duration(n+1) * 100 * time.Millisecond), nil
	})
	o, _ := testWorld(t, synth)

	segments := make([]ScriptSegment, 6)
	for i := range segments {
		segments[i] = ScriptSegment{Index: i, Speaker: "marta", Text: "segment-" + string(rune('0'+i))}
	}

	cfg := Config{PrimarySpeaker: "marta"}
	plan, tier, gerr := o.collect("test", cfg, segments)
	if gerr != nil {
		t.Fatal(gerr)
	}
	clips, total, gerr := o.synthesizeAll(context.Background(), "test", cfg, tier, plan, o.log)
	if gerr != nil {
		t.Fatal(gerr)
	}

	var wantTotal time.Duration
	for i, c := range clips {
		want := time.Duration(i+1) * 100 * time.Millisecond
		if got := c.Format.Duration(len(c.Data)); got != want {
			t.Errorf("clip %d duration = %v, want %v", i, got, want)
		}
		wantTotal += want
	}
	if total != wantTotal {
		t.Errorf("speech total = %v, want %v", total, wantTotal)
	}
	if len(completionOrder) != len(segments) {
		t.Fatalf("completions = %d, want %d", len(completionOrder), len(segments))
	}
}

func TestPermanentFailureWithoutFillerFails(t *testing.T) {
	synth := synthFunc(func(_ context.Context, req *tts.Request) (*tts.Response, error) {
		if strings.Contains(req.Text, "weather") {
			return nil, &tts.Error{Code: tts.CodeQuotaExhausted, Msg: "quota exhausted", HTTPStatus: 402}
		}
		return toneResponse(time.Second), nil
	})
	o, store := testWorld(t, synth)

	out, err := o.Generate(context.Background(), Config{PrimarySpeaker: "marta"},
		[]ScriptSegment{
			{Index: 0, Speaker: "marta", Text: "intro"},
			{Index: 1, Speaker: "marta", Text: "weather report"},
			{Index: 2, Speaker: "marta", Text: "outro"},
		})
	if out != nil {
		t.Fatal("expected no artifact on permanent failure")
	}
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("error = %T %v", err, err)
	}
	if gerr.Reason != ReasonSynthesis || gerr.Segment != 1 || gerr.Component != "tts" {
		t.Errorf("GenerationError = %+v", gerr)
	}

	// Nothing was stored for the failed show.
	ok, _ := store.Exists(context.Background(), "shows/"+gerr.ShowID+".wav")
	if ok {
		t.Error("failed show left an artifact behind")
	}
}

func TestPermanentFailureWithSilenceFiller(t *testing.T) {
	synth := synthFunc(func(_ context.Context, req *tts.Request) (*tts.Response, error) {
		if strings.Contains(req.Text, "weather") {
			return nil, &tts.Error{Code: tts.CodeInvalidVoice, Msg: "no such voice", HTTPStatus: 400}
		}
		return toneResponse(time.Second), nil
	})
	o, _ := testWorld(t, synth)

	out, err := o.Generate(context.Background(),
		Config{PrimarySpeaker: "marta", Filler: FillerSilence},
		[]ScriptSegment{
			{Index: 0, Speaker: "marta", Text: "intro"},
			{Index: 1, Speaker: "marta", Text: "weather report", EstimatedDuration: 2 * time.Second},
			{Index: 2, Speaker: "marta", Text: "outro"},
		})
	if err != nil {
		t.Fatal(err)
	}
	// 1s + 2s filler + 1s of speech.
	if diff := out.SpeechDuration - 4*time.Second; diff < -50*time.Millisecond || diff > 50*time.Millisecond {
		t.Errorf("SpeechDuration = %v, want ~4s", out.SpeechDuration)
	}
}

func TestTransientExhaustedFailsEvenWithFiller(t *testing.T) {
	synth := synthFunc(func(_ context.Context, _ *tts.Request) (*tts.Response, error) {
		return nil, &tts.Error{Code: tts.CodeRateLimited, Msg: "slow down", HTTPStatus: 429}
	})
	o, _ := testWorld(t, synth)

	_, err := o.Generate(context.Background(),
		Config{PrimarySpeaker: "marta", Filler: FillerSilence},
		[]ScriptSegment{{Index: 0, Speaker: "marta", Text: "hello"}})
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Reason != ReasonSynthesis {
		t.Fatalf("error = %v", err)
	}
}

func TestGenerateCancelled(t *testing.T) {
	synth := synthFunc(func(ctx context.Context, _ *tts.Request) (*tts.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o, _ := testWorld(t, synth)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	segments := make([]ScriptSegment, 6)
	for i := range segments {
		segments[i] = ScriptSegment{Index: i, Speaker: "marta", Text: "x"}
	}
	_, err := o.Generate(ctx, Config{PrimarySpeaker: "marta"}, segments)
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("error = %v", err)
	}
	if gerr.Reason != ReasonCancelled {
		t.Errorf("Reason = %s, want %s", gerr.Reason, ReasonCancelled)
	}
}

func TestShowBudgetTimeout(t *testing.T) {
	synth := synthFunc(func(ctx context.Context, _ *tts.Request) (*tts.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	jingles := jingle.NewCatalog([]jingle.Asset{{ID: "j", FileRef: "jingles/j.wav", Duration: 45 * time.Second}})
	o := New(testSpeakers(), voice.NewCatalog(voice.DefaultTiers()), jingles, synth, store,
		WithShowBudget(30*time.Millisecond))

	_, genErr := o.Generate(context.Background(), Config{PrimarySpeaker: "marta"},
		[]ScriptSegment{{Index: 0, Speaker: "marta", Text: "x"}})
	var gerr *GenerationError
	if !errors.As(genErr, &gerr) || gerr.Reason != ReasonTimeout {
		t.Fatalf("error = %v", genErr)
	}
}

func TestUnknownSpeakerIsConfigError(t *testing.T) {
	synth := synthFunc(func(_ context.Context, _ *tts.Request) (*tts.Response, error) {
		t.Error("synthesis must not run for invalid config")
		return nil, errors.New("unexpected call")
	})
	o, _ := testWorld(t, synth)

	_, err := o.Generate(context.Background(), Config{},
		[]ScriptSegment{{Index: 0, Speaker: "nobody", Text: "x"}})
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Reason != ReasonConfig {
		t.Fatalf("error = %v", err)
	}
	var unknown *speaker.UnknownSpeakerError
	if !errors.As(err, &unknown) {
		t.Errorf("cause should be UnknownSpeakerError, got %v", gerr.Err)
	}
}

func TestSegmentIndexValidation(t *testing.T) {
	cases := []struct {
		name    string
		indexes []int
		ok      bool
	}{
		{"contiguous", []int{0, 1, 2}, true},
		{"unordered but contiguous", []int{2, 0, 1}, true},
		{"gap", []int{0, 2, 3}, false},
		{"duplicate", []int{0, 1, 1}, false},
		{"one-based", []int{1, 2, 3}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			segs := make([]ScriptSegment, len(tc.indexes))
			for i, idx := range tc.indexes {
				segs[i] = ScriptSegment{Index: idx}
			}
			ordered, err := validateSegments(segs)
			if tc.ok {
				if err != nil {
					t.Fatal(err)
				}
				for i := range ordered {
					if ordered[i].Index != i {
						t.Errorf("position %d holds index %d", i, ordered[i].Index)
					}
				}
			} else if err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestJingleReselectionOnUnreadableAsset(t *testing.T) {
	synth := synthFunc(func(_ context.Context, _ *tts.Request) (*tts.Response, error) {
		return toneResponse(time.Second), nil
	})
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// The better-scored asset has no file behind it; the fallback does.
	writeJingle(t, store, "jingles/backup.wav", 45*time.Second)
	jingles := jingle.NewCatalog([]jingle.Asset{
		{ID: "ghost", FileRef: "jingles/ghost.wav", Duration: 60 * time.Second, QualityScore: 0.9},
		{ID: "backup", FileRef: "jingles/backup.wav", Duration: 45 * time.Second, QualityScore: 0.5},
	})
	o := New(testSpeakers(), voice.NewCatalog(voice.DefaultTiers()), jingles, synth, store)

	out, genErr := o.Generate(context.Background(), Config{PrimarySpeaker: "marta"},
		[]ScriptSegment{{Index: 0, Speaker: "marta", Text: "hello"}})
	if genErr != nil {
		t.Fatal(genErr)
	}
	if out.JingleID != "backup" {
		t.Errorf("JingleID = %s, want backup", out.JingleID)
	}
}

func TestSecondarySpeakerRole(t *testing.T) {
	var mu sync.Mutex
	voices := map[string]string{}
	synth := synthFunc(func(_ context.Context, req *tts.Request) (*tts.Response, error) {
		mu.Lock()
		voices[req.Text] = req.VoiceID
		mu.Unlock()
		return toneResponse(time.Second), nil
	})
	o, _ := testWorld(t, synth)

	_, err := o.Generate(context.Background(),
		Config{PrimarySpeaker: "marta", SecondarySpeaker: "jens"},
		[]ScriptSegment{
			{Index: 0, Speaker: "primary", Text: "opening"},
			{Index: 1, Speaker: "secondary", Text: "reply"},
		})
	if err != nil {
		t.Fatal(err)
	}
	if voices["opening"] != "v-marta" {
		t.Errorf("opening voice = %s, want v-marta", voices["opening"])
	}
	if voices["reply"] != "v-jens" {
		t.Errorf("reply voice = %s, want v-jens", voices["reply"])
	}
}

func TestUnknownSecondarySpeakerIsConfigError(t *testing.T) {
	synth := synthFunc(func(_ context.Context, _ *tts.Request) (*tts.Response, error) {
		t.Error("synthesis must not run for invalid config")
		return nil, errors.New("unexpected call")
	})
	o, _ := testWorld(t, synth)

	// The broken secondary fails the show even though no segment uses it.
	_, err := o.Generate(context.Background(),
		Config{PrimarySpeaker: "marta", SecondarySpeaker: "nobody"},
		[]ScriptSegment{{Index: 0, Speaker: "marta", Text: "x"}})
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Reason != ReasonConfig {
		t.Fatalf("error = %v", err)
	}
	var unknown *speaker.UnknownSpeakerError
	if !errors.As(err, &unknown) {
		t.Errorf("cause should be UnknownSpeakerError, got %v", gerr.Err)
	}
}

func TestWeatherRoleResolution(t *testing.T) {
	var mu sync.Mutex
	voices := map[string]string{}
	synth := synthFunc(func(_ context.Context, req *tts.Request) (*tts.Response, error) {
		mu.Lock()
		voices[req.Text] = req.VoiceID
		mu.Unlock()
		return toneResponse(time.Second), nil
	})
	o, _ := testWorld(t, synth)

	_, err := o.Generate(context.Background(),
		Config{PrimarySpeaker: "marta", ActiveCategories: []string{"weather"}},
		[]ScriptSegment{
			{Index: 0, Speaker: "marta", Text: "news"},
			{Index: 1, Speaker: "weather", Text: "forecast"},
		})
	if err != nil {
		t.Fatal(err)
	}
	if voices["news"] != "v-marta" {
		t.Errorf("news voice = %s, want v-marta", voices["news"])
	}
	if voices["forecast"] != "v-jens" {
		t.Errorf("forecast voice = %s, want v-jens", voices["forecast"])
	}
}
