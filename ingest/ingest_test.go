// File: ingest/ingest_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// End-to-end runs over real files in a temp dir: result count and order
// match the input, per-file failures stay isolated, repeat runs agree, a
// single-worker pool still completes every task, and the three run modes
// agree with each other.

package ingest_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ingest/api"
	"github.com/momentics/hioload-ingest/ingest"
)

// lineParser is the stand-in external collaborator: payload is the line count.
func lineParser(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	return strings.Count(string(buf), "\n"), nil
}

func writeFiles(t *testing.T, contents []string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(contents))
	for i, c := range contents {
		paths[i] = filepath.Join(dir, fmt.Sprintf("f%03d.obj", i))
		require.NoError(t, os.WriteFile(paths[i], []byte(c), 0o644))
	}
	return paths
}

func newIngestor(t *testing.T, cfg *ingest.Config) *ingest.Ingestor[int] {
	t.Helper()
	in, err := ingest.New[int](lineParser, cfg)
	require.NoError(t, err)
	return in
}

func TestRunReturnsResultsInInputOrder(t *testing.T) {
	contents := make([]string, 20)
	for i := range contents {
		// i+1 lines in file i: payload identifies which file was parsed.
		contents[i] = strings.Repeat("v 0 0 0\n", i+1)
	}
	paths := writeFiles(t, contents)

	in := newIngestor(t, nil)
	results, err := in.Run(paths)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	for i, r := range results {
		require.NoError(t, r.Err, "file %d", i)
		require.Equal(t, paths[i], r.Path, "result %d out of input order", i)
		require.Equal(t, i+1, r.Payload, "result %d carries another file's payload", i)
		require.EqualValues(t, len(contents[i]), r.Status)
	}
}

func TestMissingFileDoesNotAbortOthers(t *testing.T) {
	paths := writeFiles(t, []string{"a\n", "b\n"})
	mixed := []string{paths[0], filepath.Join(t.TempDir(), "nope.obj"), paths[1]}

	in := newIngestor(t, nil)
	results, err := in.Run(mixed)
	require.NoError(t, err)
	require.Len(t, results, 3)

	var oe *api.OpenError
	require.ErrorAs(t, results[1].Err, &oe)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[2].Err)
	require.Equal(t, 1, results[0].Payload)
	require.Equal(t, 1, results[2].Payload)
}

func TestEmptyInputReturnsEmptyResults(t *testing.T) {
	in := newIngestor(t, nil)
	results, err := in.Run(nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestRepeatRunsAgree(t *testing.T) {
	paths := writeFiles(t, []string{"a\nb\n", "c\n", "", "d\ne\nf\n"})
	in := newIngestor(t, nil)

	first, err := in.Run(paths)
	require.NoError(t, err)
	second, err := in.Run(paths)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSingleWorkerCompletesManyFiles(t *testing.T) {
	const k = 32
	contents := make([]string, k)
	for i := range contents {
		contents[i] = "x\n"
	}
	paths := writeFiles(t, contents)

	in := newIngestor(t, &ingest.Config{NumWorkers: 1})
	results, err := in.Run(paths)
	require.NoError(t, err)
	require.Len(t, results, k)
	for i, r := range results {
		require.NoError(t, r.Err, "file %d", i)
	}
}

func TestTenCopiesOfOneFile(t *testing.T) {
	paths := writeFiles(t, []string{"v 1 2 3\nv 4 5 6\nf 1 2\n"})
	repeated := make([]string, 10)
	for i := range repeated {
		repeated[i] = paths[0]
	}

	in := newIngestor(t, nil)
	results, err := in.Run(repeated)
	require.NoError(t, err)
	require.Len(t, results, 10)
	for i, r := range results {
		require.True(t, r.Ok(), "copy %d: %v", i, r.Err)
		require.Equal(t, paths[0], r.Path)
		require.Equal(t, 3, r.Payload, "copy %d payload differs", i)
	}
}

func TestZeroByteFileParsesEmptyBuffer(t *testing.T) {
	paths := writeFiles(t, []string{""})
	in := newIngestor(t, nil)
	results, err := in.Run(paths)
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	require.Zero(t, results[0].Payload)
	require.Zero(t, results[0].Status)
}

func TestParserErrorIsolatedPerFile(t *testing.T) {
	paths := writeFiles(t, []string{"good\n", "poison\n", "good\n"})
	parser := func(buf []byte) (int, error) {
		if strings.HasPrefix(string(buf), "poison") {
			return 0, fmt.Errorf("unparseable")
		}
		return 1, nil
	}
	in, err := ingest.New[int](parser, nil)
	require.NoError(t, err)

	results, err := in.Run(paths)
	require.NoError(t, err)
	var pe *api.ParseError
	require.ErrorAs(t, results[1].Err, &pe)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[2].Err)
}

func TestRunModesAgree(t *testing.T) {
	contents := []string{"a\n", "b\nc\n", "", "d\ne\nf\ng\n"}
	paths := writeFiles(t, contents)
	withMissing := append([]string{filepath.Join(t.TempDir(), "gone.obj")}, paths...)

	in := newIngestor(t, nil)
	async, err := in.Run(withMissing)
	require.NoError(t, err)
	bulk, err := in.RunBulk(withMissing)
	require.NoError(t, err)
	sync := in.RunSync(withMissing)

	require.Len(t, bulk, len(async))
	require.Len(t, sync, len(async))
	for i := range async {
		require.Equal(t, async[i].Path, bulk[i].Path)
		require.Equal(t, async[i].Path, sync[i].Path)
		require.Equal(t, async[i].Ok(), bulk[i].Ok(), "file %d", i)
		require.Equal(t, async[i].Ok(), sync[i].Ok(), "file %d", i)
		if async[i].Ok() {
			require.Equal(t, async[i].Payload, bulk[i].Payload, "file %d", i)
			require.Equal(t, async[i].Payload, sync[i].Payload, "file %d", i)
		}
	}
}

func TestNilParserRejected(t *testing.T) {
	_, err := ingest.New[int](nil, nil)
	require.Error(t, err)
}
