package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"echomic/internal/domain"
	"echomic/internal/ports"
	"echomic/internal/resample"
	"echomic/internal/testutil"
)

func newTestController(audio *fakeAudioCapture, tr *fakeTranscriber, clip *fakeClipboard, hist *fakeHistory, events *fakeEventSink, cfg Config) *SessionController {
	// Nil fakes must become nil interfaces, not typed nils.
	var (
		transcriber ports.Transcriber
		clipboard   ports.Clipboard
		history     ports.HistoryStore
	)
	if tr != nil {
		transcriber = tr
	}
	if clip != nil {
		clipboard = clip
	}
	if hist != nil {
		history = hist
	}
	return NewSessionController(audio, transcriber, clipboard, history, events, cfg)
}

func TestSessionControllerStartStopSuccess(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(8000), SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{" hello world "}}
	clipboard := &fakeClipboard{}
	history := &fakeHistory{}
	events := &fakeEventSink{}
	controller := newTestController(audio, tr, clipboard, history, events, Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if result.Transcript != "hello world" || !result.Copied {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.SessionID == "" {
		t.Fatalf("expected a session id")
	}
	if clipboard.text() != "hello world" {
		t.Fatalf("clipboard got %q", clipboard.text())
	}

	reqs := tr.snapshotRequests()
	if len(reqs) != 1 || reqs[0].SampleRate != 16000 || len(reqs[0].WAV) == 0 {
		t.Fatalf("expected one raw request, got %+v", reqs)
	}

	want := []domain.SessionStateReason{
		domain.SessionReasonRecordingStarted,
		domain.SessionReasonProcessing,
		domain.SessionReasonTranscribing,
		domain.SessionReasonTranscriptCopied,
	}
	states := events.snapshotStates()
	if len(states) != len(want) {
		t.Fatalf("expected %d transitions, got %+v", len(want), states)
	}
	for i, reason := range want {
		if states[i].reason != reason {
			t.Fatalf("transition %d: got %s want %s", i, states[i].reason, reason)
		}
	}
	if got := controller.Status(); got.State != domain.SessionStateIdle || got.Active {
		t.Fatalf("unexpected status: %+v", got)
	}

	records := history.snapshot()
	if len(records) != 1 || records[0].Outcome != string(domain.SessionReasonTranscriptCopied) || records[0].Transcript != "hello world" {
		t.Fatalf("unexpected history: %+v", records)
	}
	if records[0].ID != result.SessionID {
		t.Fatalf("history id %q does not match session %q", records[0].ID, result.SessionID)
	}
}

func TestSessionControllerStopWithoutActiveSession(t *testing.T) {
	t.Parallel()

	controller := newTestController(&fakeAudioCapture{}, &fakeTranscriber{}, &fakeClipboard{}, nil, &fakeEventSink{}, Config{})

	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if err := controller.Abort(); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession from abort, got %v", err)
	}
}

func TestSessionControllerAbortLifecycle(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(100), SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{"never"}}
	events := &fakeEventSink{}
	controller := newTestController(audio, tr, &fakeClipboard{}, nil, events, Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Abort(); err != nil {
		t.Fatalf("abort failed: %v", err)
	}

	if events.lastReason() != domain.SessionReasonRecordingDiscarded {
		t.Fatalf("expected discarded reason, got %s", events.lastReason())
	}
	if audio.stops != 1 {
		t.Fatalf("expected audio to be stopped once, got %d", audio.stops)
	}
	if len(tr.snapshotRequests()) != 0 {
		t.Fatalf("aborted audio must not be transcribed")
	}
}

func TestSessionControllerRestartWhileRecording(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{}
	events := &fakeEventSink{}
	controller := newTestController(audio, &fakeTranscriber{}, nil, nil, events, Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if audio.starts != 1 || audio.clears != 1 {
		t.Fatalf("expected one device start and one clear, got starts=%d clears=%d", audio.starts, audio.clears)
	}
	if events.lastReason() != domain.SessionReasonRecordingRestarted {
		t.Fatalf("expected restart reason, got %s", events.lastReason())
	}
	if !controller.Status().Active {
		t.Fatalf("expected an active session after restart")
	}
}

func TestSessionControllerAudioStartFailure(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{startErr: errBoom}
	events := &fakeEventSink{}
	controller := newTestController(audio, &fakeTranscriber{}, nil, nil, events, Config{})

	if err := controller.Start(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if controller.Status().State != domain.SessionStateError {
		t.Fatalf("expected error state, got %s", controller.Status().State)
	}
	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeAudioDevice {
		t.Fatalf("expected audio device error, got %+v", errs)
	}
}

func TestSessionControllerStopFailureWithoutAudio(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{stopErr: errBoom}
	events := &fakeEventSink{}
	history := &fakeHistory{}
	controller := newTestController(audio, &fakeTranscriber{}, nil, history, events, Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if events.lastReason() != domain.SessionReasonAudioFailed {
		t.Fatalf("expected audio_failed, got %s", events.lastReason())
	}
	if records := history.snapshot(); len(records) != 1 || records[0].Outcome != string(domain.SessionReasonAudioFailed) {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestSessionControllerEmptyRecordingIsNoSpeech(t *testing.T) {
	t.Parallel()

	tests := map[string]Config{
		"raw": {},
		"vad": {UseVAD: true},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			samples := []float32(nil)
			if cfg.UseVAD {
				samples = make([]float32, 16000)
			}
			audio := &fakeAudioCapture{recording: domain.Recording{Samples: samples, SampleRate: 16000}}
			tr := &fakeTranscriber{}
			events := &fakeEventSink{}
			controller := newTestController(audio, tr, nil, nil, events, cfg)

			if err := controller.Start(context.Background()); err != nil {
				t.Fatalf("start failed: %v", err)
			}
			if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNoSpeech) {
				t.Fatalf("expected ErrNoSpeech, got %v", err)
			}
			if events.lastReason() != domain.SessionReasonNoSpeech {
				t.Fatalf("expected no_speech, got %s", events.lastReason())
			}
			if len(tr.snapshotRequests()) != 0 {
				t.Fatalf("silence must not reach the transcriber")
			}
		})
	}
}

func TestSessionControllerTranscribesSegmentsInOrder(t *testing.T) {
	t.Parallel()

	samples := append(tone(16000), make([]float32, 16000)...)
	samples = append(samples, tone(16000)...)
	audio := &fakeAudioCapture{recording: domain.Recording{Samples: samples, SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{"one", "two"}}
	events := &fakeEventSink{}
	controller := newTestController(audio, tr, &fakeClipboard{}, nil, events, Config{UseVAD: true})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Transcript != "one two" || result.Segments != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for _, req := range tr.snapshotRequests() {
		if req.SampleRate != resample.TargetRate || len(req.Samples) == 0 {
			t.Fatalf("unexpected segment request: rate=%d samples=%d", req.SampleRate, len(req.Samples))
		}
	}
	if strings.Join(events.segments, ",") != "one,two" {
		t.Fatalf("unexpected segment events: %v", events.segments)
	}
}

func TestSessionControllerPartialSegmentFailure(t *testing.T) {
	t.Parallel()

	samples := append(tone(16000), make([]float32, 16000)...)
	samples = append(samples, tone(16000)...)
	audio := &fakeAudioCapture{recording: domain.Recording{Samples: samples, SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{"", "two"}, errs: []error{errBoom}}
	events := &fakeEventSink{}
	controller := newTestController(audio, tr, &fakeClipboard{}, nil, events, Config{UseVAD: true})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Transcript != "two" {
		t.Fatalf("unexpected transcript: %q", result.Transcript)
	}
	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeTranscription {
		t.Fatalf("expected one transcription error, got %+v", errs)
	}
}

func TestSessionControllerTranscriptionOutcomes(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		tr      *fakeTranscriber
		wantErr error
		reason  domain.SessionStateReason
	}{
		"provider failure": {tr: &fakeTranscriber{errs: []error{errBoom}}, wantErr: errBoom, reason: domain.SessionReasonTranscriptionFailed},
		"blank transcript": {tr: &fakeTranscriber{texts: []string{"   "}}, wantErr: ErrNoTranscript, reason: domain.SessionReasonNoTranscript},
		"no provider":      {tr: nil, reason: domain.SessionReasonSegmentsReady},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}}
			events := &fakeEventSink{}
			history := &fakeHistory{}
			controller := newTestController(audio, tc.tr, &fakeClipboard{}, history, events, Config{})

			if err := controller.Start(context.Background()); err != nil {
				t.Fatalf("start failed: %v", err)
			}
			_, err := controller.Stop(context.Background())
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if events.lastReason() != tc.reason {
				t.Fatalf("expected %s, got %s", tc.reason, events.lastReason())
			}
			if records := history.snapshot(); len(records) != 1 || records[0].Outcome != string(tc.reason) {
				t.Fatalf("unexpected history: %+v", records)
			}
		})
	}
}

func TestSessionControllerClipboardFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}}
	events := &fakeEventSink{}
	controller := newTestController(audio, &fakeTranscriber{texts: []string{"text"}}, &fakeClipboard{err: errBoom}, nil, events, Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Copied || result.Transcript != "text" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if events.lastReason() != domain.SessionReasonTranscriptReadyClipboardFailed {
		t.Fatalf("unexpected final reason: %s", events.lastReason())
	}
	errs := events.snapshotErrors()
	if len(errs) == 0 || errs[len(errs)-1].code != domain.ErrorCodeClipboard {
		t.Fatalf("expected clipboard error event")
	}
}

func TestSessionControllerTranscriptionDoesNotMaskNewRecording(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{"first"}}
	events := &fakeEventSink{}
	controller := newTestController(audio, tr, &fakeClipboard{}, nil, events, Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	p, err := controller.Finish(context.Background())
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	result, err := controller.Transcribe(context.Background(), p)
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if result.Transcript != "first" {
		t.Fatalf("unexpected transcript: %q", result.Transcript)
	}
	if events.lastReason() != domain.SessionReasonRecordingStarted {
		t.Fatalf("transcription leaked a state change over the new recording: %s", events.lastReason())
	}
	if got := controller.Status(); got.State != domain.SessionStateRecording || !got.Active {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestSessionControllerSavesRecordings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}}
	controller := newTestController(audio, nil, nil, nil, &fakeEventSink{}, Config{SaveRecordings: true, RecordingsDir: dir})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	p, err := controller.Finish(context.Background())
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if len(p.Saved) != 1 || !strings.HasPrefix(p.Saved[0], dir) || !strings.HasSuffix(p.Saved[0], "_raw.wav") {
		t.Fatalf("unexpected saved paths: %v", p.Saved)
	}
}

func TestSessionControllerApplyPreferences(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{}
	controller := newTestController(audio, nil, nil, nil, &fakeEventSink{}, Config{MaxRecordingSeconds: 30})
	if audio.maxSeconds != 30 {
		t.Fatalf("expected initial max duration 30, got %d", audio.maxSeconds)
	}

	controller.ApplyPreferences(domain.Preferences{MaxRecordingSeconds: 90, UseVAD: true})
	if audio.maxSeconds != 90 {
		t.Fatalf("expected max duration 90, got %d", audio.maxSeconds)
	}
	if !controller.config().UseVAD {
		t.Fatalf("expected VAD to be enabled")
	}
}

func TestSessionControllerAppliesSubstitutions(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{"open a pull request"}}
	clipboard := &fakeClipboard{}
	controller := newTestController(audio, tr, clipboard, &fakeHistory{}, &fakeEventSink{}, Config{})
	controller.ApplyPreferences(domain.Preferences{
		MaxRecordingSeconds: 60,
		Substitutions:       []string{"pull request => PR", `s/^open a\s+//`},
	})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Transcript != "PR" || clipboard.text() != "PR" {
		t.Fatalf("expected rewritten transcript, got %q / %q", result.Transcript, clipboard.text())
	}

	// A rejected rule set keeps the previous one.
	controller.ApplyPreferences(domain.Preferences{MaxRecordingSeconds: 60, Substitutions: []string{"s/(/x/"}})
	if controller.config().Rules.Len() != 2 {
		t.Fatalf("expected previous rules to survive, got %d", controller.config().Rules.Len())
	}
}

func TestSessionControllerSubstitutionToEmpty(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{"um"}}
	events := &fakeEventSink{}
	controller := newTestController(audio, tr, &fakeClipboard{}, &fakeHistory{}, events, Config{})
	controller.ApplyPreferences(domain.Preferences{MaxRecordingSeconds: 60, Substitutions: []string{"um => "}})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
	if events.lastReason() != domain.SessionReasonNoTranscript {
		t.Fatalf("unexpected final reason %s", events.lastReason())
	}
}

func TestSessionControllerLogsHistoryFailure(t *testing.T) {
	logs := testutil.CaptureLogBuffer(t, slog.LevelWarn)

	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{"hello"}}
	history := &fakeHistory{err: errBoom}
	controller := newTestController(audio, tr, &fakeClipboard{}, history, &fakeEventSink{}, Config{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil || result.Transcript != "hello" {
		t.Fatalf("history failure must not fail the session: %+v %v", result, err)
	}
	if !strings.Contains(logs.String(), "[session] history write failed") {
		t.Fatalf("expected history warning, got %q", logs.String())
	}
}

func TestSessionControllerWithoutHistory(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioCapture{recording: domain.Recording{Samples: tone(1600), SampleRate: 16000}}
	tr := &fakeTranscriber{texts: []string{"hello"}}
	controller := newTestController(audio, tr, &fakeClipboard{}, nil, &fakeEventSink{}, Config{})
	if controller.history != nil {
		t.Fatalf("a nil history fake must leave the store unset")
	}

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil || result.Transcript != "hello" {
		t.Fatalf("unexpected result: %+v %v", result, err)
	}
}
