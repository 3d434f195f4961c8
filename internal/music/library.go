// Package music scans a local directory for MP3 files and serves their tag
// metadata, embedded cover art and audio streams.
package music

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

var ErrNoCover = errors.New("no embedded cover art")

type Track struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Category string  `json:"category"`
	Album    string  `json:"album"`
	Duration string  `json:"duration"`
	URL      string  `json:"url"`
	Cover    *string `json:"cover"`
}

type Library struct {
	Dir string
}

// Scan walks the music directory and extracts metadata from every MP3,
// falling back to filename-derived defaults when a file has no usable tags.
func (l *Library) Scan() ([]Track, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("scan music dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".mp3") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	tracks := make([]Track, 0, len(names))
	for _, name := range names {
		tracks = append(tracks, l.metadata(name))
	}
	return tracks, nil
}

func (l *Library) metadata(filename string) Track {
	track := Track{
		ID:       "local_" + filename,
		Title:    strings.TrimSuffix(filename, filepath.Ext(filename)),
		Artist:   "Unknown Artist",
		Album:    "Unknown Album",
		Category: "My Library",
		Duration: "--:--",
		URL:      "/music/" + filename,
	}

	f, err := os.Open(filepath.Join(l.Dir, filename))
	if err != nil {
		return track
	}
	defer f.Close()

	hasCover := false
	if m, err := tag.ReadFrom(f); err == nil {
		if m.Title() != "" {
			track.Title = m.Title()
		}
		if m.Artist() != "" {
			track.Artist = m.Artist()
		}
		if m.Album() != "" {
			track.Album = m.Album()
		}
		hasCover = m.Picture() != nil
	}

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if seconds, err := duration(f); err == nil {
			track.Duration = FormatDuration(seconds)
		}
	}

	if hasCover {
		cover := "/api/cover/" + filename
		track.Cover = &cover
	}
	return track
}

// Cover returns the embedded picture bytes and mime type for a file.
func (l *Library) Cover(filename string) ([]byte, string, error) {
	if filepath.Base(filename) != filename {
		return nil, "", ErrNoCover
	}

	f, err := os.Open(filepath.Join(l.Dir, filename))
	if err != nil {
		return nil, "", ErrNoCover
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, "", ErrNoCover
	}

	pic := m.Picture()
	if pic == nil {
		return nil, "", ErrNoCover
	}
	return pic.Data, pic.MIMEType, nil
}

// duration sums frame durations across the whole file.
func duration(r io.Reader) (float64, error) {
	dec := mp3.NewDecoder(r)

	var total float64
	var frame mp3.Frame
	var skipped int
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
	if total == 0 {
		return 0, errors.New("no audio frames")
	}
	return total, nil
}

// FormatDuration renders seconds as M:SS.
func FormatDuration(seconds float64) string {
	whole := int(seconds)
	return fmt.Sprintf("%d:%02d", whole/60, whole%60)
}
