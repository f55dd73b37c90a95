package prosody

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/MrWong99/prosodia/internal/lazy"
	"github.com/MrWong99/prosodia/pkg/types"
)

//go:embed prosody.praat
var praatScript []byte

// Compile-time interface assertion.
var _ Engine = (*PraatEngine)(nil)

// PraatEngine runs the Praat binary on a bundled script and parses the
// key=value lines it prints.
type PraatEngine struct {
	bin    string
	script *lazy.Value[string]
}

// NewPraatEngine creates an engine that runs bin (default "praat"). The
// bundled script is written to dir (default [os.TempDir]) on first use.
func NewPraatEngine(bin, dir string) *PraatEngine {
	if bin == "" {
		bin = "praat"
	}
	return &PraatEngine{
		bin: bin,
		script: lazy.New("praat-script", func(context.Context) (string, error) {
			f, err := os.CreateTemp(dir, "prosody-*.praat")
			if err != nil {
				return "", err
			}
			if _, err := f.Write(praatScript); err != nil {
				f.Close()
				os.Remove(f.Name())
				return "", err
			}
			return f.Name(), f.Close()
		}),
	}
}

// Name implements [Engine].
func (*PraatEngine) Name() string { return "praat" }

// Analyze implements [Engine].
func (p *PraatEngine) Analyze(ctx context.Context, path string) (*types.ProsodyFeatures, error) {
	script, err := p.script.Get(ctx)
	if err != nil {
		return nil, err
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.bin, "--run", script, path)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w: %s", p.bin, err, strings.TrimSpace(stderr.String()))
	}
	return ParseFeatures(&stdout)
}

// Close removes the script file if it was written.
func (p *PraatEngine) Close() error {
	if p.script.State() != lazy.StateReady {
		return nil
	}
	path, _ := p.script.Get(context.Background())
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ParseFeatures reads key=value lines. Unknown keys are ignored and values
// Praat reports as undefined are left at zero. At least one known key must
// be present.
func ParseFeatures(r io.Reader) (*types.ProsodyFeatures, error) {
	var (
		f     types.ProsodyFeatures
		found int
	)
	fields := map[string]*float64{
		"f0_mean":        &f.F0Mean,
		"f0_std":         &f.F0Std,
		"f0_range":       &f.F0Range,
		"intensity_mean": &f.IntensityMean,
		"f1":             &f.F1,
		"f2":             &f.F2,
		"duration":       &f.Duration,
		"syllable_rate":  &f.SyllableRate,
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		dst, known := fields[strings.TrimSpace(key)]
		if !known {
			continue
		}
		found++
		val = strings.TrimSpace(val)
		if strings.Contains(val, "undefined") {
			continue
		}
		// Praat appends units ("123.4 Hz"); keep the number.
		if i := strings.IndexByte(val, ' '); i > 0 {
			val = val[:i]
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, errors.New("no prosody values in output")
	}
	return &f, nil
}
