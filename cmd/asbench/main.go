// Command asbench benchmarks a running audioscribe instance. It submits
// audio files through the OpenAI-compatible transcription endpoint and
// reports latency and RTF (real-time factor, elapsed / audio duration).
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

// result captures one benchmark run. Mirrors the fields of the saved JSON.
type result struct {
	File          string  `json:"file"`
	AudioDuration float64 `json:"audio_duration_s,omitempty"`
	FileSizeMB    float64 `json:"file_size_mb"`
	Elapsed       float64 `json:"elapsed_s"`
	RTF           float64 `json:"rtf,omitempty"`
	SpeedRatio    float64 `json:"speed_ratio,omitempty"`
	TextLength    int     `json:"text_length"`
	TextPreview   string  `json:"text_preview"`
	Err           string  `json:"error,omitempty"`
}

// serverInfo is the GET /v1/models/current body, kept loosely typed so the
// whole object can be embedded in saved results.
type serverInfo map[string]any

func main() {
	os.Exit(run())
}

func run() int {
	baseURL := flag.String("base-url", "http://localhost:50070", "audioscribe base URL")
	file := flag.String("file", "", "benchmark a single audio file")
	dir := flag.String("dir", "", "benchmark every audio file in a directory")
	model := flag.String("model", "", "model alias to request (empty keeps the loaded one)")
	language := flag.String("language", "", "language hint (empty means auto-detect)")
	save := flag.String("save", "", "write results JSON to this path")
	flag.Parse()

	files, err := collectFiles(*file, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asbench: %v\n", err)
		return 1
	}

	ctx := context.Background()

	info, err := fetchServerInfo(ctx, *baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asbench: server not reachable at %s: %v\n", *baseURL, err)
		return 1
	}
	fmt.Printf("Server: engine=%v model=%v queue=%v/%v\n\n",
		info["engine_type"], info["alias"], info["queue_size"], info["max_queue_size"])

	// The service ignores authentication, but the client requires a key.
	client := oai.NewClient(
		option.WithBaseURL(strings.TrimRight(*baseURL, "/")+"/v1/"),
		option.WithAPIKey("local"),
		option.WithHTTPClient(&http.Client{Timeout: 10 * time.Minute}),
	)

	results := make([]result, 0, len(files))
	for _, path := range files {
		fmt.Printf("Benchmarking %s\n", filepath.Base(path))
		r := benchmarkFile(ctx, client, path, *model, *language)
		printResult(r)
		results = append(results, r)
	}

	if len(results) > 1 {
		printSummaryTable(results)
	}

	if *save != "" {
		if err := saveResults(*save, info, results); err != nil {
			fmt.Fprintf(os.Stderr, "asbench: save results: %v\n", err)
			return 1
		}
		fmt.Printf("\nResults written to %s\n", *save)
	}

	for _, r := range results {
		if r.Err != "" {
			return 1
		}
	}
	return 0
}

func benchmarkFile(ctx context.Context, client oai.Client, path, model, language string) result {
	r := result{File: filepath.Base(path)}

	fi, err := os.Stat(path)
	if err != nil {
		r.Err = err.Error()
		return r
	}
	r.FileSizeMB = float64(fi.Size()) / (1024 * 1024)
	r.AudioDuration = wavDuration(path)

	f, err := os.Open(path)
	if err != nil {
		r.Err = err.Error()
		return r
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:           f,
		Model:          oai.AudioModel(modelOrDefault(model)),
		ResponseFormat: oai.AudioResponseFormatJSON,
	}
	if language != "" {
		params.Language = param.NewOpt(language)
	}

	start := time.Now()
	resp, err := client.Audio.Transcriptions.New(ctx, params)
	r.Elapsed = time.Since(start).Seconds()
	if err != nil {
		r.Err = err.Error()
		return r
	}

	r.TextLength = len(resp.Text)
	r.TextPreview = preview(resp.Text, 150)
	if r.AudioDuration > 0 && r.Elapsed > 0 {
		r.RTF = r.Elapsed / r.AudioDuration
		r.SpeedRatio = r.AudioDuration / r.Elapsed
	}
	return r
}

// modelOrDefault substitutes the passthrough alias so an empty -model flag
// keeps whatever the server has loaded.
func modelOrDefault(model string) string {
	if model == "" {
		return "whisper-1"
	}
	return model
}

func fetchServerInfo(ctx context.Context, baseURL string) (serverInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(baseURL, "/")+"/v1/models/current", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var info serverInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return info, nil
}

func collectFiles(file, dir string) ([]string, error) {
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return nil, err
		}
		return []string{file}, nil
	}
	if dir == "" {
		return nil, fmt.Errorf("pass -file <path> or -dir <path>")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no audio files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// wavDuration reads the duration of a PCM WAV file from its header. Returns
// 0 for non-WAV files or unparsable headers, in which case RTF is omitted.
func wavDuration(path string) float64 {
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		return 0
	}
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return 0
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0
	}

	var byteRate uint32
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			return 0
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		switch id {
		case "fmt ":
			var format [16]byte
			if _, err := io.ReadFull(f, format[:]); err != nil {
				return 0
			}
			byteRate = binary.LittleEndian.Uint32(format[8:12])
			if skip := int64(size) - 16; skip > 0 {
				if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
					return 0
				}
			}
		case "data":
			if byteRate == 0 {
				return 0
			}
			return float64(size) / float64(byteRate)
		default:
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				return 0
			}
		}
	}
}

func preview(text string, n int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > n {
		return text[:n]
	}
	return text
}

func printResult(r result) {
	if r.Err != "" {
		fmt.Printf("  ERROR: %s\n\n", r.Err)
		return
	}
	fmt.Printf("  Size: %.2f MB, Elapsed: %.2fs\n", r.FileSizeMB, r.Elapsed)
	if r.RTF > 0 {
		fmt.Printf("  RTF: %.4f (%.1fx realtime)\n", r.RTF, r.SpeedRatio)
	}
	fmt.Printf("  Text: %d chars\n", r.TextLength)
	fmt.Printf("  Preview: %s\n\n", preview(r.TextPreview, 100))
}

func printSummaryTable(results []result) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-30s %10s %10s %10s %10s\n", "File", "Duration", "Elapsed", "RTF", "Speed")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range results {
		if r.Err != "" {
			fmt.Printf("%-30s %10s\n", r.File, "ERROR")
			continue
		}
		fmt.Printf("%-30s %9.1fs %9.2fs %10.4f %9.1fx\n",
			r.File, r.AudioDuration, r.Elapsed, r.RTF, r.SpeedRatio)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func saveResults(path string, info serverInfo, results []result) error {
	payload := struct {
		Timestamp time.Time  `json:"timestamp"`
		Server    serverInfo `json:"server"`
		Results   []result   `json:"results"`
	}{
		Timestamp: time.Now().UTC(),
		Server:    info,
		Results:   results,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
