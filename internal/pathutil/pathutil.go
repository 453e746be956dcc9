// Package pathutil turns titles and paths reported by the media services into
// filesystem-safe relative paths. Everything here is pure: no function touches
// the filesystem.
package pathutil

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// MediaFile is the quality/extension value object shared by movie and show
// path derivation.
type MediaFile struct {
	AbsolutePath string `json:"absolutePath"`
	Quality      string `json:"quality"`
	Extension    string `json:"extension"`
}

var trailingNumberGroup = regexp.MustCompile(`\(\d+\)$`)

// NormalizePath converts all path separators to forward slashes.
// Go's os.Open/os.Stat accept forward slashes on all platforms.
func NormalizePath(p string) string {
	return filepath.ToSlash(p)
}

// Sanitize neutralizes path traversal and characters that are illegal on
// common filesystems: every ".." collapses to ".", every ":" becomes "-" and
// leading separators are removed so the result can be joined under a root.
func Sanitize(p string) string {
	p = NormalizePath(p)
	for strings.Contains(p, "..") {
		p = strings.ReplaceAll(p, "..", ".")
	}
	p = strings.ReplaceAll(p, ":", "-")
	return strings.TrimLeft(p, "/")
}

// Pad zero-pads episode numbers to width. Multiple episodes are joined with
// "-" (multi-episode specials); no episodes yields "00".
func Pad(episodes []int, width int) string {
	if len(episodes) == 0 {
		return "00"
	}
	parts := make([]string, len(episodes))
	for i, ep := range episodes {
		parts[i] = padInt(ep, width)
	}
	return strings.Join(parts, "-")
}

func padInt(v, width int) string {
	s := strconv.Itoa(v)
	if v < 0 {
		return s
	}
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// DeriveExtension returns the extension to append after the quality label in a
// synthesized file name. Radarr embeds the quality text in the last token of
// the file name ("Movie (2020) Bluray-1080p.mkv"), so naive extension
// splitting breaks when the quality itself contains a dot.
func DeriveExtension(relativePath, quality string) string {
	if quality == "" {
		return filepath.Ext(relativePath)
	}

	token := relativePath
	if i := strings.LastIndex(relativePath, " "); i >= 0 {
		token = relativePath[i+1:]
	}

	re := regexp.MustCompile(regexp.QuoteMeta(quality))
	if rest := re.ReplaceAllString(token, ""); isExtension(rest) {
		return rest
	}

	// Label in the middle of a dotted name: "Movie.2020.WEB.mkv".
	if locs := re.FindAllStringIndex(token, -1); len(locs) > 0 {
		if tail := token[locs[len(locs)-1][1]:]; isExtension(tail) {
			return tail
		}
	}

	return filepath.Ext(relativePath)
}

func isExtension(s string) bool {
	return len(s) > 1 && strings.HasPrefix(s, ".") && strings.Count(s, ".") == 1 && !strings.ContainsAny(s, "/ ")
}

// CleanEpisodeTitle strips a trailing parenthesized number group, which the
// show service appends to disambiguate identically named episodes.
func CleanEpisodeTitle(title string) string {
	return strings.TrimSpace(trailingNumberGroup.ReplaceAllString(strings.TrimSpace(title), ""))
}

// MovieFile builds the media file descriptor for a movie from the folder and
// file name reported by the movie service.
func MovieFile(moviePath, relativePath, quality string) MediaFile {
	if relativePath == "" {
		return MediaFile{Extension: ".mkv"}
	}
	abs := NormalizePath(filepath.Join(moviePath, relativePath))
	return MediaFile{
		AbsolutePath: strings.ReplaceAll(abs, ":", "-"),
		Quality:      quality,
		Extension:    DeriveExtension(relativePath, quality),
	}
}

// SeasonFolder returns the folder name for a season label, e.g. "Season 00".
func SeasonFolder(label string) string {
	return "Season " + label
}

// EpisodeFileName builds "<Series> - S<season>E<episode> - <title> <quality><ext>".
func EpisodeFileName(seriesTitle, seasonLabel, episode, episodeTitle string, file MediaFile) string {
	return seriesTitle + " - S" + seasonLabel + "E" + episode + " - " + episodeTitle + " " + file.Quality + file.Extension
}
