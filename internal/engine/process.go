package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/RadhiFadlillah/whatlanggo"
)

// Transcript processing: language detection, translation to English,
// regex normalization, and optional LLM punctuation repair. Every stage
// degrades to its input on failure; processing never loses the transcript.

const (
	detectSampleRunes   = 1000
	translateChunkRunes = 2000
	improveWindowSize   = 4000
	improveOverlap      = 200
)

// ProcessOutcome records what the pipeline did to a transcript.
type ProcessOutcome struct {
	DetectedLang         string
	Translated           bool
	TranslationFailed    bool
	Improved             bool
	ImprovementFallbacks int
}

// Processor normalizes raw transcripts for retrieval.
type Processor struct {
	LLM       *RateLimitedLLM
	Translate TranslateFunc

	// SkipImproveChars disables LLM repair above this length; long
	// transcripts would burn the token budget for marginal gain.
	SkipImproveChars int

	// Pause between improvement windows. Zero in tests.
	Pause time.Duration
}

// NewProcessor wires a Processor from config.
func NewProcessor(cfg Config, llm *RateLimitedLLM, translate TranslateFunc) *Processor {
	return &Processor{
		LLM:              llm,
		Translate:        translate,
		SkipImproveChars: cfg.LongTranscriptChars,
		Pause:            2 * time.Second,
	}
}

// Process runs the full pipeline and returns the normalized transcript.
// The result is never empty when the input is non-empty.
func (p *Processor) Process(ctx context.Context, raw string) (string, ProcessOutcome) {
	var out ProcessOutcome

	text := raw
	out.DetectedLang = DetectLanguage(text)
	if p.Translate != nil && out.DetectedLang != "" && out.DetectedLang != "en" {
		translated, err := p.translateAll(ctx, text, out.DetectedLang)
		if err != nil {
			out.TranslationFailed = true
			slog.Warn("translation failed, keeping original language",
				slog.String("lang", out.DetectedLang), slog.Any("error", err))
		} else {
			out.Translated = true
			text = translated
		}
	}

	text = CleanTranscript(text)
	text = p.improve(ctx, text, &out)
	return text, out
}

// DetectLanguage returns the ISO 639-1 code of the transcript language,
// or "" when detection is not reliable. Only a sample of the text is
// examined.
func DetectLanguage(text string) string {
	sample := TruncateRunes(text, detectSampleRunes, "")
	if strings.TrimSpace(sample) == "" {
		return ""
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// translateAll converts text to English in fixed-size pieces. A single
// failed piece fails the whole translation; the caller keeps the original.
func (p *Processor) translateAll(ctx context.Context, text, src string) (string, error) {
	runes := []rune(text)
	var sb strings.Builder
	for start := 0; start < len(runes); start += translateChunkRunes {
		end := start + translateChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		part, err := p.Translate(ctx, string(runes[start:end]), src)
		if err != nil {
			return "", err
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(part)
	}
	return sb.String(), nil
}

var (
	bracketRe     = regexp.MustCompile(`\[.*?\]`)
	parenRe       = regexp.MustCompile(`\(.*?\)`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	sentenceGapRe = regexp.MustCompile(`(\w)\.(\w)`)
	multiPunctRe  = regexp.MustCompile(`([.!?]){2,}`)
	contractionRe = regexp.MustCompile(`(\w)\s+'(\w)`)
)

// CleanTranscript strips caption annotations and repairs the most
// common transcript artifacts. Pure text transform, no network.
func CleanTranscript(text string) string {
	text = bracketRe.ReplaceAllString(text, "")  // [Music], [Applause]
	text = parenRe.ReplaceAllString(text, "")    // (laughs)
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = sentenceGapRe.ReplaceAllString(text, "$1. $2")
	text = multiPunctRe.ReplaceAllString(text, "$1")
	text = contractionRe.ReplaceAllString(text, "$1'$2") // "don 't" → "don't"
	return strings.TrimSpace(text)
}

// improve repairs punctuation and sentence boundaries via the LLM.
// Transcripts beyond SkipImproveChars are returned as-is; medium ones
// go through in overlapping windows. Any window that fails keeps its
// original text.
func (p *Processor) improve(ctx context.Context, text string, out *ProcessOutcome) string {
	if p.LLM == nil || len(text) > p.SkipImproveChars {
		return text
	}

	if len(text) <= improveWindowSize {
		improved, err := p.improveWindow(ctx, text)
		if err != nil {
			out.ImprovementFallbacks++
			slog.Warn("transcript improvement failed, using cleaned text", slog.Any("error", err))
			return text
		}
		out.Improved = true
		return improved
	}

	windows := SplitWindows(text, improveWindowSize, improveOverlap)
	parts := make([]string, 0, len(windows))
	for i, w := range windows {
		improved, err := p.improveWindow(ctx, w)
		if err != nil {
			out.ImprovementFallbacks++
			slog.Warn("improvement window failed, keeping original",
				slog.Int("window", i), slog.Any("error", err))
			improved = w
		}
		parts = append(parts, improved)
		if p.Pause > 0 && i < len(windows)-1 {
			select {
			case <-time.After(p.Pause):
			case <-ctx.Done():
				// Keep what we have plus the untouched remainder.
				for _, rest := range windows[i+1:] {
					parts = append(parts, rest)
				}
				return strings.Join(parts, " ")
			}
		}
	}
	out.Improved = out.ImprovementFallbacks < len(windows)
	return strings.Join(parts, " ")
}

func (p *Processor) improveWindow(ctx context.Context, window string) (string, error) {
	resp, err := p.LLM.Invoke(ctx, improvementPrompt+window, 0)
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return window, nil
	}
	return resp, nil
}

// SplitWindows cuts text into fixed-size pieces where each piece after
// the first repeats the last overlap bytes of its predecessor. Cuts
// land on rune boundaries.
func SplitWindows(text string, size, overlap int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	if overlap >= size {
		overlap = size / 2
	}
	var windows []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			windows = append(windows, text[start:])
			break
		}
		end = snapRuneStart(text, end)
		windows = append(windows, text[start:end])
		start = snapRuneStart(text, end-overlap)
	}
	return windows
}
