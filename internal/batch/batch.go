// Package batch parses many statements concurrently. One document failing
// never affects the others.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/releve-parser/internal/extractor"
	"github.com/insightdelivered/releve-parser/internal/models"
	"github.com/insightdelivered/releve-parser/internal/parser"
)

// LoadFunc returns the page texts of the document at path.
type LoadFunc func(path string) ([]string, error)

// Result is the outcome for one input document. Exactly one of Statement
// and Err is set.
type Result struct {
	Path      string
	Statement *models.Statement
	Err       error
}

// Runner parses documents with a bounded number of workers.
type Runner struct {
	Parser  *parser.Parser
	Workers int
	// Load defaults to extractor.Load.
	Load   LoadFunc
	Logger zerolog.Logger
}

// Collect expands directories into the supported files they contain, walking
// subdirectories. Files named explicitly are kept even when their extension
// is not supported, so that Run reports them. Files found under one
// directory are sorted; arguments keep their order.
func Collect(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input not found: %w", err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && extractor.Supported(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %q: %w", arg, err)
		}
		slices.Sort(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// Run parses every path and returns one Result per path, in input order.
// Cancelling ctx stops documents that have not started yet; they are
// reported with the context error.
func (r *Runner) Run(ctx context.Context, paths []string) []Result {
	load := r.Load
	if load == nil {
		load = extractor.Load
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	runID := uuid.NewString()
	log := r.Logger.With().Str("run_id", runID).Logger()
	log.Info().Int("documents", len(paths)).Int("workers", workers).Msg("batch started")
	start := time.Now()

	results := make([]Result, len(paths))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, path := range paths {
		results[i].Path = path
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Statement, results[i].Err = r.parseOne(load, path)
			if results[i].Err != nil {
				log.Error().Err(results[i].Err).Str("path", path).Msg("document failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	log.Info().
		Int("succeeded", len(paths)-failed).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")
	return results
}

func (r *Runner) parseOne(load LoadFunc, path string) (*models.Statement, error) {
	pages, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %q: %w", path, err)
	}
	return r.Parser.Parse(filepath.Base(path), pages)
}
