package main

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amaumene/nightwatch/internal/config"
	"github.com/amaumene/nightwatch/internal/models"
)

var imdbIDPattern = regexp.MustCompile(`tt\d+`)

// parseIMDbID extracts an imdb id from free text such as an IMDb URL
func parseIMDbID(s string) (string, error) {
	id := imdbIDPattern.FindString(strings.ToLower(s))
	if id == "" {
		return "", fmt.Errorf("invalid IMDb id %q, expected format tt1234567", s)
	}
	return id, nil
}

func parseMediaType(s string) (models.MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return models.MediaTypeMovie, nil
	case "series", "tv":
		return models.MediaTypeSeries, nil
	}
	return "", fmt.Errorf("invalid type %q, expected movie or series", s)
}

func optionalRange(name string, v, lo, hi int) (*int, error) {
	if v == 0 {
		return nil, nil
	}
	if v < lo || v > hi {
		return nil, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return &v, nil
}

type addOptions struct {
	title         string
	originalTitle string
	mediaType     string
	season        int
	quality       string
	audio         string
	minReleases   int
	year          int
	poster        string
	disabled      bool
}

func (o addOptions) item(rawID string) (*models.WatchedItem, error) {
	imdbID, err := parseIMDbID(rawID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(o.title) == "" && strings.TrimSpace(o.originalTitle) == "" {
		return nil, errors.New("title or original title is required")
	}
	mediaType, err := parseMediaType(o.mediaType)
	if err != nil {
		return nil, err
	}
	season, err := optionalRange("season", o.season, 1, 100)
	if err != nil {
		return nil, err
	}
	minReleases, err := optionalRange("min releases", o.minReleases, 1, 1000)
	if err != nil {
		return nil, err
	}
	if o.year != 0 && (o.year < 1900 || o.year > 2100) {
		return nil, errors.New("year must be between 1900 and 2100")
	}

	return &models.WatchedItem{
		IMDBId:           imdbID,
		Title:            strings.TrimSpace(o.title),
		OriginalTitle:    strings.TrimSpace(o.originalTitle),
		MediaType:        mediaType,
		Year:             o.year,
		PosterURL:        o.poster,
		Enabled:          !o.disabled,
		TargetSeason:     season,
		PreferredQuality: strings.TrimSpace(o.quality),
		PreferredAudio:   strings.TrimSpace(o.audio),
		MinReleasesCount: minReleases,
	}, nil
}

func openStorage() (*models.Database, error) {
	cfg, err := config.LoadStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return models.NewDatabase(cfg.DatabaseFile)
}

func newWatchCommand() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the watchlist",
	}
	watchCmd.AddCommand(newWatchAddCommand())
	watchCmd.AddCommand(newWatchListCommand())
	watchCmd.AddCommand(newWatchToggleCommand("enable", true))
	watchCmd.AddCommand(newWatchToggleCommand("disable", false))
	return watchCmd
}

func newWatchAddCommand() *cobra.Command {
	var opts addOptions
	cmd := &cobra.Command{
		Use:   "add <imdb-id>",
		Short: "Add a title to the watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := opts.item(args[0])
			if err != nil {
				return err
			}
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.CreateItem(cmd.Context(), item); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", item.DisplayTitle(), item.IMDBId)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.title, "title", "", "Display title")
	flags.StringVar(&opts.originalTitle, "original-title", "", "Original title, preferred for searches")
	flags.StringVar(&opts.mediaType, "type", "movie", "movie or series")
	flags.IntVar(&opts.season, "season", 0, "Target season (1-100)")
	flags.StringVar(&opts.quality, "quality", "", "Comma-separated qualities, e.g. 1080p,2160p")
	flags.StringVar(&opts.audio, "audio", "", "Audio preference, e.g. dubbed or original")
	flags.IntVar(&opts.minReleases, "min-releases", 0, "Hold notifications until this many releases are known (1-1000)")
	flags.IntVar(&opts.year, "year", 0, "Release year")
	flags.StringVar(&opts.poster, "poster", "", "Poster image URL")
	flags.BoolVar(&opts.disabled, "disabled", false, "Add without polling it")
	return cmd
}

func newWatchListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			items, err := db.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			return printItems(cmd.OutOrStdout(), items)
		},
	}
}

func newWatchToggleCommand(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <imdb-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " polling for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imdbID, err := parseIMDbID(args[0])
			if err != nil {
				return err
			}
			db, err := openStorage()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.SetItemEnabled(cmd.Context(), imdbID, enabled); err != nil {
				if errors.Is(err, models.ErrNotFound) {
					return fmt.Errorf("%s is not on the watchlist", imdbID)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", imdbID, use)
			return nil
		},
	}
}

func printItems(out io.Writer, items []*models.WatchedItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "Watchlist is empty")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IMDB\tTITLE\tTYPE\tENABLED\tSEASON\tQUALITY\tLAST CHECKED")
	for _, item := range items {
		season, checked := "-", "never"
		if item.TargetSeason != nil {
			season = fmt.Sprintf("%d", *item.TargetSeason)
		}
		if item.LastChecked != nil {
			checked = item.LastChecked.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			item.IMDBId, item.DisplayTitle(), item.MediaType, item.Enabled, season, item.PreferredQuality, checked)
	}
	return w.Flush()
}
