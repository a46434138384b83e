package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/flight-sensors/internal/storage"
)

type Config struct {
	DBPath string
	JSON   bool // print sessions as JSON instead of a table
}

func NewConfigFromCLI() (*Config, error) {
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ExitOnError)
	return NewConfigFromArgs(fs, os.Args[1:])
}

func NewConfigFromArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	var c Config
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.BoolVar(&c.JSON, "json", false, "Print sessions as JSON")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.DBPath == "" {
		fs.Usage()
		return nil, errors.New("db path is required")
	}
	return &c, nil
}

// Run lists the sessions stored in the database to w
func Run(ctx context.Context, config *Config, w io.Writer) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("reading sessions: %w", err)
	}

	if config.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}
	return writeTable(w, sessions, time.Now())
}

func writeTable(w io.Writer, sessions []*storage.Session, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tTOPIC\tITERATIONS\tSAMPLES\tTIMEOUTS\tERRORS\tUUID")

	for _, s := range sessions {
		duration := "running"
		if s.Finished() {
			duration = s.EndTime.Sub(s.StartTime).Round(time.Millisecond).String()
		}

		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			humanize.RelTime(s.StartTime, now, "ago", "from now"),
			duration,
			s.Topic,
			humanize.Comma(int64(s.Summary.Iterations)),
			humanize.Comma(int64(s.Summary.Samples)),
			humanize.Comma(int64(s.Summary.Timeouts)),
			humanize.Comma(int64(s.Summary.Errors)),
			s.UUID,
		)
	}

	return tw.Flush()
}
