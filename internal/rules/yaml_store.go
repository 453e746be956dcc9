package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Keys of the flat-file rule format.
const (
	yamlKeyShows     = "Shows"
	yamlKeyEpisodeID = "Episode ID"
	yamlKeySeriesID  = "seriesId"
	yamlKeyTvdbID    = "tvdbId"

	DefaultRulesFile    = "media_collection_parsed_last_run.yaml"
	DefaultSettingsFile = "variables.yaml"
	pendingRulesFile    = "media_collection_parsed_this_run.yaml"
)

type yamlShow struct {
	Episode   EpisodeList `yaml:"Episode"`
	Season    string      `yaml:"Season"`
	EpisodeID int64       `yaml:"Episode ID"`
	SeriesID  int64       `yaml:"seriesId"`
	TvdbID    int64       `yaml:"tvdbId"`
}

// yamlMovie keeps shows as raw nodes so one malformed show does not fail
// its siblings.
type yamlMovie struct {
	TmdbID LooseID              `yaml:"Movie DB ID"`
	Shows  map[string]yaml.Node `yaml:"Shows"`
}

// YAMLStore reads rules from a flat YAML file keyed by movie title and
// settings from a sibling key/value file. Resolved ids are written back by
// replacing the rules file, archiving the previous copy first.
type YAMLStore struct {
	rulesPath    string
	settingsPath string
	archiveDir   string
	now          func() time.Time
	mu           sync.Mutex
	logger       zerolog.Logger
}

// YAMLStoreConfig configures a YAMLStore. SettingsPath defaults to
// variables.yaml next to the rules file.
type YAMLStoreConfig struct {
	RulesPath    string
	SettingsPath string
	ArchiveDir   string
}

// NewYAMLStore creates a file-backed rule store.
func NewYAMLStore(cfg YAMLStoreConfig, logger zerolog.Logger) *YAMLStore {
	settings := cfg.SettingsPath
	if settings == "" {
		settings = filepath.Join(filepath.Dir(cfg.RulesPath), DefaultSettingsFile)
	}
	return &YAMLStore{
		rulesPath:    cfg.RulesPath,
		settingsPath: settings,
		archiveDir:   cfg.ArchiveDir,
		now:          time.Now,
		logger:       logger.With().Str("component", "rules-yaml").Logger(),
	}
}

// RulesPath returns the path of the rules file.
func (s *YAMLStore) RulesPath() string {
	return s.rulesPath
}

// SettingsPath returns the path of the settings file.
func (s *YAMLStore) SettingsPath() string {
	return s.settingsPath
}

// ListRules parses the rules file. A missing file means the store is not
// configured yet.
func (s *YAMLStore) ListRules(ctx context.Context) (RuleSet, error) {
	data, err := os.ReadFile(s.rulesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrStoreUnavailable, s.rulesPath)
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	set := make(RuleSet, 0, len(doc))
	for title, node := range doc {
		rule, err := s.decodeRule(title, &node)
		if err != nil {
			s.logger.Warn().Err(err).Str("movie", title).Msg("Skipping malformed rule")
			continue
		}
		set = append(set, rule)
	}
	set.Sort()
	return set, nil
}

// decodeRule decodes one movie entry. Shows that fail to decode are logged
// and dropped; the rest of the rule is kept.
func (s *YAMLStore) decodeRule(title string, node *yaml.Node) (Rule, error) {
	if node.Kind != yaml.MappingNode {
		return Rule{}, fmt.Errorf("%w: entry is not a mapping", ErrInvalidRule)
	}
	var m yamlMovie
	if err := node.Decode(&m); err != nil {
		return Rule{}, err
	}

	rule := Rule{
		MovieTitle: title,
		TmdbID:     int64(m.TmdbID),
		Shows:      make(map[string]ShowTarget, len(m.Shows)),
	}
	for name, showNode := range m.Shows {
		if showNode.Kind != yaml.MappingNode {
			s.logger.Warn().Str("movie", title).Str("show", name).Msg("Skipping show entry that is not a mapping")
			continue
		}
		var show yamlShow
		if err := showNode.Decode(&show); err != nil {
			s.logger.Warn().Err(err).Str("movie", title).Str("show", name).Msg("Skipping malformed show entry")
			continue
		}
		rule.Shows[name] = ShowTarget{
			TargetEpisodes:    show.Episode,
			SeasonLabel:       show.Season,
			ResolvedEpisodeID: show.EpisodeID,
			ResolvedSeriesID:  show.SeriesID,
			ResolvedTvdbID:    show.TvdbID,
		}
	}
	return rule, nil
}

// GetSetting reads key from the settings file. Lists and maps are returned
// JSON-encoded.
func (s *YAMLStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read settings file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", false, fmt.Errorf("failed to parse settings file: %w", err)
	}

	v, ok := doc[key]
	if !ok || v == nil {
		return "", false, nil
	}
	return settingString(v)
}

func settingString(v any) (string, bool, error) {
	switch val := v.(type) {
	case string:
		return val, true, nil
	case int:
		return strconv.Itoa(val), true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true, nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", false, fmt.Errorf("failed to encode setting: %w", err)
		}
		return string(data), true, nil
	}
}

// SaveResolvedIDs writes resolved ids into the rules file. Unknown keys in
// the file are preserved. Nothing is written when no id changed.
func (s *YAMLStore) SaveResolvedIDs(ctx context.Context, resolved []Resolution) error {
	if len(resolved) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.rulesPath)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse rules file: %w", err)
	}

	changed := false
	for _, r := range resolved {
		movie, ok := doc[r.MovieTitle].(map[string]any)
		if !ok {
			continue
		}
		shows, ok := movie[yamlKeyShows].(map[string]any)
		if !ok {
			continue
		}
		show, ok := shows[r.ShowName].(map[string]any)
		if !ok {
			continue
		}
		changed = setID(show, yamlKeyEpisodeID, r.EpisodeID) || changed
		changed = setID(show, yamlKeySeriesID, r.SeriesID) || changed
		changed = setID(show, yamlKeyTvdbID, r.TvdbID) || changed
	}
	if !changed {
		return nil
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode rules file: %w", err)
	}
	return s.replaceRulesFile(out)
}

func setID(show map[string]any, key string, id int64) bool {
	if id == 0 {
		return false
	}
	if cur, ok := show[key]; ok && ParseTmdbID(cur) == id {
		return false
	}
	show[key] = id
	return true
}

// replaceRulesFile writes the pending copy, archives the current file and
// moves the pending copy into place.
func (s *YAMLStore) replaceRulesFile(data []byte) error {
	dir := filepath.Dir(s.rulesPath)
	pending := filepath.Join(dir, pendingRulesFile)

	if err := os.WriteFile(pending, data, 0o644); err != nil { //nolint:gosec // shared with the media stack
		return fmt.Errorf("failed to write rules file: %w", err)
	}

	if s.archiveDir != "" {
		if _, err := os.Stat(s.rulesPath); err == nil {
			if err := os.MkdirAll(s.archiveDir, 0o755); err != nil {
				return fmt.Errorf("failed to create archive directory: %w", err)
			}
			archive := filepath.Join(s.archiveDir, "collection_parsed_"+s.now().Format("01-02-2006")+".yaml")
			if err := os.Rename(s.rulesPath, archive); err != nil {
				return fmt.Errorf("failed to archive rules file: %w", err)
			}
			s.logger.Debug().Str("archive", archive).Msg("archived previous rules file")
		}
	}

	if err := os.Rename(pending, s.rulesPath); err != nil {
		return fmt.Errorf("failed to replace rules file: %w", err)
	}
	s.logger.Info().Str("path", s.rulesPath).Msg("updated rules file with resolved ids")
	return nil
}

// ListEntries flattens the file rules for display.
func (s *YAMLStore) ListEntries(ctx context.Context) ([]*Entry, error) {
	set, err := s.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return set.Entries(), nil
}
