package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/xmlgest/internal/graph"
	"github.com/dgallion1/xmlgest/internal/ingest"
	"github.com/dgallion1/xmlgest/internal/source"
)

// Worker imports the documents behind a single job.
type Worker struct {
	loader *ingest.Loader
	src    *source.Resolver
	store  graph.Store
	log    *slog.Logger
}

func NewWorker(loader *ingest.Loader, src *source.Resolver, store graph.Store, log *slog.Logger) *Worker {
	return &Worker{
		loader: loader,
		src:    src,
		store:  store,
		log:    log,
	}
}

// Process runs the full import pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "locator", job.Locator)
	opts := job.Options()

	// Phase 1: Resolve the entry list.
	job.SetStatus(StatusResolving, "resolving")
	locators, err := w.resolveEntries(ctx, job)
	if err != nil {
		log.Error("resolve failed", "error", err)
		job.AddError(fmt.Sprintf("resolve: %s", err))
		job.SetStatus(StatusFailed, "resolving")
		return
	}
	job.SetEntriesTotal(len(locators))
	log.Info("resolved entries", "entries", len(locators))

	if len(locators) == 0 {
		log.Warn("no entries matched", "glob", job.EntryGlob)
		job.AddError(fmt.Sprintf("no entries match %q", job.EntryGlob))
		job.SetStatus(StatusFailed, "resolving")
		return
	}

	// Phase 2: Import each entry in archive order. Entries fail
	// independently; one bad document never aborts the batch.
	job.SetStatus(StatusImporting, "importing")
	imported := 0
	for _, loc := range locators {
		if ctx.Err() != nil {
			job.AddError(fmt.Sprintf("canceled: %s", ctx.Err()))
			break
		}
		sum, err := w.loader.Import(ctx, loc, w.store, opts)
		job.IncrEntriesDone()
		if err != nil {
			log.Error("entry import failed", "entry", loc, "error", err)
			job.AddError(err.Error())
			continue
		}
		imported++
		job.AddGraphCounts(sum.NodeTotal, sum.RelTotal)
	}

	switch {
	case imported == len(locators):
		job.SetStatus(StatusCompleted, "done")
	case imported > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "importing")
	}
	snap := job.Snapshot()
	log.Info("job finished",
		"status", snap.Status,
		"imported", imported,
		"entries", len(locators),
		"nodes", snap.Progress.Nodes,
		"relationships", snap.Progress.Relationships)
}

// resolveEntries expands the job locator into the list of document
// locators to import. Without a glob the locator itself is the single
// document; with one, the locator names an archive whose matching
// entries are imported in order.
func (w *Worker) resolveEntries(ctx context.Context, job *Job) ([]string, error) {
	if job.EntryGlob == "" {
		return []string{job.Locator}, nil
	}
	names, err := w.src.Entries(ctx, job.Locator, job.EntryGlob)
	if err != nil {
		return nil, err
	}
	locators := make([]string, len(names))
	for i, name := range names {
		locators[i] = job.Locator + "!" + name
	}
	return locators, nil
}
