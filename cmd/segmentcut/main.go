// Command segmentcut cuts a time window out of a WAV or MP3 clip and writes
// it as a standalone WAV file. It exists for checking story alignments by
// ear: feed it a paragraph clip and one span's start and end seconds, then
// listen to the result.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/brianfoody/woodpecker-reading-app/pkg/audio"
)

func main() {
	os.Exit(run())
}

func run() int {
	in := flag.String("in", "", "input clip (WAV or MP3)")
	start := flag.Float64("start", 0, "window start in seconds")
	end := flag.Float64("end", 0, "window end in seconds")
	out := flag.String("out", "", "output WAV path (default <in>_segment_<start>-<end>.wav)")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "segmentcut: -in is required")
		flag.Usage()
		return 2
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "segmentcut: %v\n", err)
		return 1
	}

	cut, err := audio.ExtractSegment(data, *start, *end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "segmentcut: %v\n", err)
		return 1
	}

	path := *out
	if path == "" {
		path = defaultOutPath(*in, *start, *end)
	}
	if err := os.WriteFile(path, cut, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "segmentcut: %v\n", err)
		return 1
	}

	if d, err := audio.Probe(cut); err == nil {
		fmt.Printf("wrote %s (%s)\n", path, d.Round(time.Millisecond))
	} else {
		fmt.Printf("wrote %s\n", path)
	}
	return 0
}

// defaultOutPath derives story_segment_0.4-0.8.wav from story.mp3.
func defaultOutPath(in string, start, end float64) string {
	stem := strings.TrimSuffix(in, filepath.Ext(in))
	return fmt.Sprintf("%s_segment_%s-%s.wav",
		stem,
		strconv.FormatFloat(start, 'f', -1, 64),
		strconv.FormatFloat(end, 'f', -1, 64))
}
