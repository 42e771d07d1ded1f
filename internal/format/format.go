// Package format renders structured transcription results into the
// supported output shapes (TXT lines, SRT documents) and normalises the
// request-level format fields into a single [engine.OutputFormat].
package format

import (
	"fmt"
	"strings"

	"github.com/MrWong99/audioscribe/internal/engine"
)

// responseFormatMap translates OpenAI-style response_format values to the
// internal output formats. Bare internal values pass through unchanged.
var responseFormatMap = map[string]engine.OutputFormat{
	"verbose_json": engine.FormatJSON,
	"text":         engine.FormatTXT,
	"vtt":          engine.FormatSRT,
}

// UnknownFormatError is returned by [Normalize] for a format value outside
// the recognised set.
type UnknownFormatError struct {
	// Value is the offending format string.
	Value string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown output format %q: expected json, txt, srt, verbose_json, text, or vtt", e.Value)
}

// Normalize resolves the modern output_format and legacy OpenAI
// response_format fields into one effective format. When both are supplied
// the legacy field wins. An empty pair defaults to JSON.
func Normalize(outputFormat, responseFormat string) (engine.OutputFormat, error) {
	value := outputFormat
	if responseFormat != "" {
		value = responseFormat
	}
	if value == "" {
		return engine.FormatJSON, nil
	}
	if mapped, ok := responseFormatMap[value]; ok {
		return mapped, nil
	}
	f := engine.OutputFormat(value)
	if !f.IsValid() {
		return "", &UnknownFormatError{Value: value}
	}
	return f, nil
}

// RenderTXT produces human-readable transcript lines, one per segment:
//
//	[Speaker 0]: text
//
// or, with withTimestamp:
//
//	[02:15] [Speaker 0]: text
//
// Segments without a speaker label are tagged [Unknown].
func RenderTXT(segments []engine.Segment, withTimestamp bool) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		if withTimestamp {
			seconds := seg.StartMS / 1000
			fmt.Fprintf(&b, "[%02d:%02d] ", seconds/60, seconds%60)
		}
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(&b, "[%s]: %s", speaker, seg.Text)
	}
	return b.String()
}

// RenderSRT produces a standard SRT subtitle document with 1-based cue
// numbering, HH:MM:SS,mmm timestamps, a speaker prefix, and a blank line
// between cues:
//
//	1
//	00:00:05,000 --> 00:00:20,000
//	[Speaker 0]: so what is some of the questions?
func RenderSRT(segments []engine.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "Speaker 0"
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n[%s]: %s\n\n",
			i+1, srtTime(seg.StartMS), srtTime(seg.EndMS), speaker, seg.Text)
	}
	return b.String()
}

// BuildResult shapes a runtime's structured reply into an [engine.Result]
// for the requested output format. TXT and SRT are rendered from the
// segments when present; a runtime that returned no segment information
// falls back to the plain text for every format.
func BuildResult(text string, segments []engine.Segment, language string, audioDuration float64, opts engine.Options) *engine.Result {
	res := &engine.Result{
		Text:          text,
		Language:      language,
		AudioDuration: audioDuration,
	}
	if len(segments) == 0 {
		return res
	}
	switch opts.Format {
	case engine.FormatTXT:
		res.Text = RenderTXT(segments, opts.WithTimestamp)
	case engine.FormatSRT:
		res.Text = RenderSRT(segments)
	default:
		res.Segments = segments
	}
	return res
}

// srtTime converts milliseconds to the SRT timestamp format HH:MM:SS,mmm.
// Negative inputs clamp to zero.
func srtTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		ms/3600000, (ms%3600000)/60000, (ms%60000)/1000, ms%1000)
}
