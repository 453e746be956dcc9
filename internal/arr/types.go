package arr

import "strings"

// Movie is a movie as reported by Radarr.
type Movie struct {
	ID      int64     `json:"id"`
	TmdbID  int64     `json:"tmdbId"`
	Title   string    `json:"title"`
	Year    int       `json:"year"`
	HasFile bool      `json:"hasFile"`
	Path    string    `json:"path"`
	File    MovieFile `json:"file"`
}

// MovieFile is the downloaded file attached to a movie.
type MovieFile struct {
	RelativePath string `json:"relativePath"`
	QualityName  string `json:"qualityName"`
}

// Series is a show as reported by Sonarr.
type Series struct {
	ID         int64  `json:"id"`
	TvdbID     int64  `json:"tvdbId"`
	Title      string `json:"title"`
	Path       string `json:"path"`
	SeriesType string `json:"seriesType"`
}

// IsAnime reports whether the series uses anime (absolute) numbering.
func (s Series) IsAnime() bool {
	return strings.Contains(strings.ToLower(s.SeriesType), "anime")
}

// Episode is a single episode of a series.
type Episode struct {
	ID            int64  `json:"id"`
	SeriesID      int64  `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
}

type apiMovie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	TmdbID    int64  `json:"tmdbId"`
	Path      string `json:"path"`
	HasFile   bool   `json:"hasFile"`
	MovieFile *struct {
		RelativePath string `json:"relativePath"`
		Quality      struct {
			Quality struct {
				Name string `json:"name"`
			} `json:"quality"`
		} `json:"quality"`
	} `json:"movieFile"`
}

func (m apiMovie) toMovie() Movie {
	movie := Movie{
		ID:      m.ID,
		TmdbID:  m.TmdbID,
		Title:   m.Title,
		Year:    m.Year,
		HasFile: m.HasFile,
		Path:    m.Path,
	}
	if m.MovieFile != nil {
		movie.File = MovieFile{
			RelativePath: m.MovieFile.RelativePath,
			QualityName:  m.MovieFile.Quality.Quality.Name,
		}
	}
	return movie
}
