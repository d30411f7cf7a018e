package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/quotevoice/cmd/quotevoice/internal/app"
	"github.com/haivivi/quotevoice/pkg/kv"
	"github.com/haivivi/quotevoice/pkg/llm"
	"github.com/haivivi/quotevoice/pkg/quote"
	"github.com/haivivi/quotevoice/pkg/voice"
	"github.com/haivivi/quotevoice/pkg/voiceprint"
)

// wordEmbedder embeds by keyword.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	switch {
	case strings.Contains(text, "love"):
		return []float32{1, 0}, nil
	case strings.Contains(text, "war"):
		return []float32{0, 1}, nil
	}
	return []float32{-1, 0}, nil
}

func (e wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (wordEmbedder) Dimension() int { return 2 }

type countingGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGenerator) Generate(context.Context, string, llm.Params) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return "Love is patient, as Paul said.", nil
}

// audioModel maps the audio bytes to a fixed embedding.
type audioModel struct{}

var voices = map[string][]float32{
	"alice": {1, 0, 0},
	"bob":   {0, 1, 0},
	"noise": {-1, -1, 0},
}

func (audioModel) Extract(_ context.Context, audio []byte) ([]float32, error) {
	v, ok := voices[strings.TrimSpace(string(audio))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sample", voiceprint.ErrExtractionFailed)
	}
	return v, nil
}
func (audioModel) Dimension() int { return 3 }
func (audioModel) Close() error   { return nil }

type fixedTranscriber struct{ text string }

func (f fixedTranscriber) Transcribe(context.Context, []byte) (voice.Transcript, error) {
	return voice.Transcript{Text: f.text, Language: "en"}, nil
}

type recordingSynth struct{ got voice.VoiceParams }

func (s *recordingSynth) Synthesize(_ context.Context, text string, p voice.VoiceParams) ([]byte, error) {
	s.got = p
	return []byte("RIFF" + text), nil
}

type testEnv struct {
	dir    string
	config string
	quotes *quote.Memory
	gen    *countingGenerator
	synth  *recordingSynth
}

// setupTestEnv writes a config for the yaml quote backend with a local
// speaker table and installs fake backends.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		quotes: quote.NewMemory(
			quote.Quote{ID: "love", ShortText: "Love is patient.", Authors: []string{"Paul"}, Embedding: []float32{1, 0}},
			quote.Quote{ID: "war", ShortText: "War is hell.", Authors: []string{"Sherman"}, Embedding: []float32{0, 1}},
			quote.Quote{ID: "todo", ShortText: "Imagination rules the world.", Authors: []string{"Napoleon"}},
		),
		gen:   &countingGenerator{},
		synth: &recordingSynth{},
	}
	cfg := fmt.Sprintf(`
quotes:
  backend: yaml
  file: %s
neo4j:
  password: supersecretpassword
storage:
  dir: %s
kv:
  in_memory: true
`, filepath.Join(dir, "unused.yaml"), filepath.Join(dir, "data"))
	if err := os.WriteFile(env.config, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	testOverrides = &app.Overrides{
		Quotes:      env.quotes,
		Embedder:    wordEmbedder{},
		Generator:   env.gen,
		Voiceprint:  audioModel{},
		KV:          kv.NewMemory(nil),
		Transcriber: fixedTranscriber{text: "what is love"},
		Synthesizer: env.synth,
	}
	t.Cleanup(func() { testOverrides = nil })
	return env
}

// writeAudio stores a fake sample whose content names the voice.
func (e *testEnv) writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.dir, name+".wav")
	if err := os.WriteFile(path, []byte(name), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	resetFlags(rootCmd)

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var outBuf, errBuf bytes.Buffer
	outBuf.ReadFrom(rOut)
	errBuf.ReadFrom(rErr)

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		stderr += err.Error()
		exitCode = 1
	}
	return
}

// run runs a command against env's config and fails the test on error.
func (e *testEnv) run(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, code := runCmd(t, append([]string{"-c", e.config}, args...)...)
	if code != 0 {
		t.Fatalf("%v: exit %d\nstderr: %s", args, code, stderr)
	}
	return stdout
}
