// Package rules holds the movie-to-show link rules and the stores that
// persist them.
package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSeason is the season label used when a rule does not name one.
const DefaultSeason = "00"

// ShowTarget is the special episode a movie is linked to inside one show.
type ShowTarget struct {
	TargetEpisodes    []int  `json:"targetEpisodes"`
	SeasonLabel       string `json:"seasonLabel"`
	ResolvedEpisodeID int64  `json:"resolvedEpisodeId,omitempty"`
	ResolvedSeriesID  int64  `json:"resolvedSeriesId,omitempty"`
	ResolvedTvdbID    int64  `json:"resolvedTvdbId,omitempty"`
}

// Season returns the season label, defaulting to "00".
func (t ShowTarget) Season() string {
	if strings.TrimSpace(t.SeasonLabel) == "" {
		return DefaultSeason
	}
	return t.SeasonLabel
}

// Rule maps one movie to special episodes in one or more shows.
type Rule struct {
	MovieTitle string                `json:"movieTitle"`
	TmdbID     int64                 `json:"tmdbId"`
	Shows      map[string]ShowTarget `json:"shows"`
}

// Valid reports whether the rule can be linked. Rules with a zero or
// non-numeric TMDB id are inactive.
func (r Rule) Valid() bool {
	return r.TmdbID > 0
}

// ShowNames returns the rule's show names in sorted order.
func (r Rule) ShowNames() []string {
	names := make([]string, 0, len(r.Shows))
	for name := range r.Shows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RuleSet is a list of rules ordered by movie title.
type RuleSet []Rule

// Sort orders the set by movie title.
func (rs RuleSet) Sort() {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].MovieTitle < rs[j].MovieTitle })
}

// Resolution records the ids the show service resolved for one show target.
type Resolution struct {
	MovieTitle string `json:"movieTitle"`
	ShowName   string `json:"showName"`
	SeriesID   int64  `json:"seriesId"`
	EpisodeID  int64  `json:"episodeId"`
	TvdbID     int64  `json:"tvdbId"`
}

// ParseTmdbID converts a TMDB id given as a number or digit string. Anything
// else, including negative numbers, yields 0.
func ParseTmdbID(v any) int64 {
	switch id := v.(type) {
	case int:
		return positive(int64(id))
	case int64:
		return positive(id)
	case uint64:
		if id > 1<<62 {
			return 0
		}
		return int64(id)
	case float64:
		if id != float64(int64(id)) {
			return 0
		}
		return positive(int64(id))
	case string:
		s := strings.TrimSpace(id)
		if s == "" || strings.TrimLeft(s, "0123456789") != "" {
			return 0
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func positive(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

// LooseID decodes an id given as a JSON or YAML number or digit string.
// Invalid input decodes to 0 instead of failing.
type LooseID int64

func (id *LooseID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*id = 0
		return nil //nolint:nilerr // invalid ids are stored as inactive
	}
	*id = LooseID(ParseTmdbID(v))
	return nil
}

func (id *LooseID) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		*id = 0
		return nil //nolint:nilerr // invalid ids are stored as inactive
	}
	*id = LooseID(ParseTmdbID(v))
	return nil
}

// EpisodeList decodes a single episode number or a list of them.
type EpisodeList []int

func (l *EpisodeList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid episode list: %w", err)
	}
	eps, err := episodesFrom(v)
	if err != nil {
		return err
	}
	*l = eps
	return nil
}

func (l *EpisodeList) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("invalid episode list: %w", err)
	}
	eps, err := episodesFrom(v)
	if err != nil {
		return err
	}
	*l = eps
	return nil
}

func episodesFrom(v any) (EpisodeList, error) {
	switch e := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make(EpisodeList, 0, len(e))
		for _, item := range e {
			n, err := episodeNumber(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		n, err := episodeNumber(e)
		if err != nil {
			return nil, err
		}
		return EpisodeList{n}, nil
	}
}

func episodeNumber(v any) (int, error) {
	switch n := v.(type) {
	case int:
		if n >= 0 {
			return n, nil
		}
	case float64:
		if n >= 0 && n == float64(int(n)) {
			return int(n), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && i >= 0 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: invalid episode number %v", ErrInvalidRule, v)
}

// FormatEpisodes encodes episode numbers for storage ("1,2").
func FormatEpisodes(eps []int) string {
	parts := make([]string, len(eps))
	for i, e := range eps {
		parts[i] = strconv.Itoa(e)
	}
	return strings.Join(parts, ",")
}

// ParseEpisodes decodes the storage form written by FormatEpisodes.
// Unparseable parts are dropped.
func ParseEpisodes(s string) []int {
	var eps []int
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n >= 0 {
			eps = append(eps, n)
		}
	}
	return eps
}
