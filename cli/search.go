package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkleine/melodex/config"
	"github.com/pkleine/melodex/index"
	"github.com/pkleine/melodex/setflag"
	"github.com/pkleine/melodex/subcmd"
)

func searchCmd(ctx context.Context, conf *config.Config, args []string) error {
	subcmd := subcmd.New("search", "search the index for a song")
	subcmd.SetArg("query", "string", "search query; '*' and '?' run a wildcard match, anything else a fuzzy match (required)")
	var (
		count    = subcmd.Int("count", 10, "number of songs to return")
		minScore = subcmd.Float64("min-score", 0, "drop hits ranked below this score")
		genres   = subcmd.String("genres", "", "comma-separated genre filter")
	)
	fields := setflag.New("title", "albumTitle", "artistName", "lyrics")
	subcmd.Var(fields, "fields", "comma-separated fields to match: title, albumTitle, artistName, lyrics (default all)")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	query := strings.Join(subcmd.Args(), " ")
	if query == "" {
		subcmd.Usage()
		return fmt.Errorf("query is required")
	}

	idx, err := index.Open(conf.Index.Path)
	if err != nil {
		return err
	}
	defer idx.Close()

	params := index.Params{
		Query:    query,
		Fields:   fields.List(),
		Size:     *count,
		MinScore: *minScore,
	}
	if *genres != "" {
		params.Genres = strings.Split(*genres, ",")
	}

	docs, err := idx.Search(params)
	if err != nil {
		return fmt.Errorf("error in search for '%s': %w", query, err)
	}
	if len(docs) == 0 {
		fmt.Printf("no results for '%s'\n", query)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "artist\talbum\ttitle\treleased\tgenres\tid\n")
	for _, doc := range docs {
		released := ""
		if doc.ReleaseDate != 0 {
			released = time.Unix(doc.ReleaseDate, 0).UTC().Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			doc.ArtistName, doc.AlbumTitle, doc.Title,
			released, strings.Join(doc.Genre, ", "), doc.ID)
	}
	tw.Flush()

	return nil
}
