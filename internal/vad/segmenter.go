package vad

import "log/slog"

const (
	FrameSize        = 512
	HangoverFrames   = 10
	MinSpeechSamples = 4800

	speechThreshold  = 0.5
	silenceThreshold = 0.01
)

type State int

const (
	Silence State = iota
	Speaking
)

func (s State) String() string {
	if s == Speaking {
		return "speaking"
	}
	return "silence"
}

// Segment is one trimmed utterance at 16 kHz.
type Segment []float32

// Segmenter is a two-state machine with hangover. It is not safe for
// concurrent use.
type Segmenter struct {
	classifier Classifier

	state   State
	silent  int
	current []float32
	frame   [FrameSize]float32
}

func NewSegmenter(classifier Classifier) *Segmenter {
	if classifier == nil {
		classifier = NewEnergyClassifier()
	}
	return &Segmenter{classifier: classifier}
}

func (s *Segmenter) State() State {
	return s.state
}

// Process classifies samples frame by frame and returns the segments that
// closed during this call. A trailing partial frame is zero padded for
// classification, but only its real samples join the segment.
func (s *Segmenter) Process(samples []float32) []Segment {
	var out []Segment
	for start := 0; start < len(samples); start += FrameSize {
		chunk := samples[start:min(start+FrameSize, len(samples))]
		n := copy(s.frame[:], chunk)
		clear(s.frame[n:])

		speech := s.classifier.Predict(s.frame[:]) > speechThreshold
		switch {
		case s.state == Silence && !speech:
			continue
		case s.state == Silence:
			s.state = Speaking
			s.silent = 0
		case speech:
			s.silent = 0
		default:
			s.silent++
		}
		s.current = append(s.current, chunk...)

		if s.silent >= HangoverFrames {
			if seg, ok := s.close(); ok {
				out = append(out, seg)
			}
		}
	}
	slog.Debug("[vad] processed samples", "samples", len(samples), "segments", len(out), "state", s.state.String())
	return out
}

// Finish flushes an utterance that was still open when input ended.
func (s *Segmenter) Finish() (Segment, bool) {
	if s.state != Speaking {
		return nil, false
	}
	return s.close()
}

func (s *Segmenter) Reset() {
	s.state = Silence
	s.silent = 0
	s.current = s.current[:0]
}

func (s *Segmenter) close() (Segment, bool) {
	defer s.Reset()
	if len(s.current) < MinSpeechSamples {
		return nil, false
	}
	trimmed := trim(s.current)
	if len(trimmed) == 0 {
		return nil, false
	}
	return Segment(append([]float32(nil), trimmed...)), true
}

// trim strips leading and trailing samples at or below the silence threshold.
func trim(samples []float32) []float32 {
	start := 0
	for start < len(samples) && abs(samples[start]) <= silenceThreshold {
		start++
	}
	end := len(samples)
	for end > start && abs(samples[end-1]) <= silenceThreshold {
		end--
	}
	return samples[start:end]
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
