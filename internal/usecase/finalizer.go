package usecase

import (
	"context"
	"log/slog"

	"echomic/internal/domain"
	"echomic/internal/ports"
)

type transcriptFinalizer struct {
	clipboard ports.Clipboard
	events    ports.EventSink
}

func newTranscriptFinalizer(clipboard ports.Clipboard, events ports.EventSink) transcriptFinalizer {
	return transcriptFinalizer{clipboard: clipboard, events: events}
}

// Finalize delivers the transcript to the clipboard. A clipboard failure
// still yields a result.
func (f transcriptFinalizer) Finalize(ctx context.Context, text string) (domain.StopResult, domain.SessionStateReason) {
	result := domain.StopResult{Transcript: text, Copied: true}
	reason := domain.SessionReasonTranscriptCopied

	if f.clipboard == nil {
		result.Copied = false
		return result, domain.SessionReasonSegmentsReady
	}
	if err := f.clipboard.SetText(ctx, text); err != nil {
		slog.Warn("[session] clipboard write failed", "error", err)
		result.Copied = false
		reason = domain.SessionReasonTranscriptReadyClipboardFailed
		f.events.SessionError(domain.ErrorCodeClipboard, "transcript ready but clipboard write failed")
	}
	return result, reason
}
