package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexlinker/plexlinker/internal/rules"
)

var errReadOnlyRules = errors.New("rules are read-only with the yaml source; edit the rules file instead")

// entryLister is satisfied by both rule stores.
type entryLister interface {
	ListEntries(ctx context.Context) ([]*rules.Entry, error)
}

func newRulesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List and edit link rules",
	}
	cmd.AddCommand(newRulesListCommand(ctx))
	cmd.AddCommand(newRulesAddCommand(ctx))
	cmd.AddCommand(newRulesDeleteCommand(ctx))
	return cmd
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rule entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			lister, ok := a.store.(entryLister)
			if !ok {
				return rules.ErrStoreUnavailable
			}
			entries, err := lister.ListEntries(runContext(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, entries)
			}
			printEntries(out, entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func newRulesAddCommand(ctx *commandContext) *cobra.Command {
	var (
		movie    string
		tmdbID   int64
		show     string
		episodes string
		season   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule entry linking a movie to show specials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			ed, err := editorFor(a)
			if err != nil {
				return err
			}

			eps := rules.ParseEpisodes(episodes)
			if len(eps) == 0 {
				return fmt.Errorf("%w: --episodes must list at least one episode number", rules.ErrInvalidRule)
			}

			entry, err := ed.CreateEntry(runContext(cmd), rules.CreateEntryInput{
				MovieTitle: strings.TrimSpace(movie),
				TmdbID:     rules.LooseID(tmdbID),
				ShowName:   strings.TrimSpace(show),
				Episodes:   rules.EpisodeList(eps),
				Season:     season,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added rule %d: %s -> %s S%sE%s\n",
				entry.ID, entry.MovieTitle, entry.ShowName, entry.Season, rules.FormatEpisodes(entry.Episodes))
			return nil
		},
	}

	cmd.Flags().StringVar(&movie, "movie", "", "Movie title as shown in Radarr")
	cmd.Flags().Int64Var(&tmdbID, "tmdb", 0, "TMDB id of the movie")
	cmd.Flags().StringVar(&show, "show", "", "Show title as shown in Sonarr")
	cmd.Flags().StringVar(&episodes, "episodes", "", "Comma separated special episode numbers")
	cmd.Flags().StringVar(&season, "season", rules.DefaultSeason, "Season label")
	_ = cmd.MarkFlagRequired("movie")
	_ = cmd.MarkFlagRequired("tmdb")
	_ = cmd.MarkFlagRequired("show")
	_ = cmd.MarkFlagRequired("episodes")
	return cmd
}

func newRulesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			ed, err := editorFor(a)
			if err != nil {
				return err
			}
			if err := ed.DeleteEntry(runContext(cmd), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %d\n", id)
			return nil
		},
	}
}

func editorFor(a *app) (rules.Editor, error) {
	ed, ok := a.store.(rules.Editor)
	if !ok || ed == nil {
		return nil, errReadOnlyRules
	}
	return ed, nil
}

func printEntries(w io.Writer, entries []*rules.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No rules configured.")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		id := "-"
		if e.ID > 0 {
			id = strconv.FormatInt(e.ID, 10)
		}
		episodeID := "-"
		if e.EpisodeID != nil {
			episodeID = strconv.FormatInt(*e.EpisodeID, 10)
		}
		rows = append(rows, []string{
			id,
			e.MovieTitle,
			strconv.FormatInt(e.TmdbID, 10),
			e.ShowName,
			e.Season,
			rules.FormatEpisodes(e.Episodes),
			episodeID,
		})
	}
	headers := []string{"ID", "Movie", "TMDB", "Show", "Season", "Episodes", "Episode ID"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight}
	fmt.Fprintln(w, renderTable(headers, rows, aligns))
}
