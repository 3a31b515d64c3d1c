package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"project-hub/domain"
	"project-hub/repositories"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH"`
	// JOBCTL_COLOURS colours job states in the table
	Colours bool `envconfig:"JOBCTL_COLOURS" default:"true"`
}

func main() {
	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	rawState := flag.String("state", "", "Only list jobs in this state (scheduled|fired|cancelled|failed)")
	flag.Parse()

	var state *domain.JobState
	if *rawState != "" {
		s, ok := domain.ParseJobState(*rawState)
		if !ok {
			log.Fatalf("Unknown state %q", *rawState)
		}
		state = &s
	}
	if *dbPath == "" {
		log.Fatal("No database path: set BADGER_FILEPATH or -db")
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	jobs, err := repositories.NewJobRepository(db, logger, 0).List(context.Background(), state)
	if err != nil {
		log.Fatal(err)
	}
	renderJobs(os.Stdout, jobs, config.Colours)
}

func renderJobs(w io.Writer, jobs []domain.DelayedJob, colours bool) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job ID", "Kind", "State", "Fire At", "Attempts", "Last Error"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, job := range jobs {
		table.Append([]string{
			string(job.ID),
			string(job.Kind),
			stateLabel(job.State, colours),
			job.FireAt.UTC().Format(time.RFC3339),
			strconv.Itoa(job.AttemptsMade) + "/" + strconv.Itoa(job.AttemptsAllowed),
			job.LastError,
		})
	}
	table.Render()
	fmt.Fprintf(w, "%d job(s)\n", len(jobs))
}

func stateLabel(state domain.JobState, colours bool) string {
	label := string(state)
	if !colours {
		return label
	}
	switch state {
	case domain.JobStateScheduled:
		return color.Cyan.Render(label)
	case domain.JobStateFired:
		return color.Green.Render(label)
	case domain.JobStateCancelled:
		return color.Gray.Render(label)
	case domain.JobStateFailed:
		return color.Red.Render(label)
	}
	return label
}

// openDB opens the store read-only, next to a running server.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
