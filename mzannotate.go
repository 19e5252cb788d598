// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/524D/mzannotate/internal/annotate"
	"github.com/524D/mzannotate/internal/logging"
	"github.com/524D/mzannotate/internal/mzidentml"
	"github.com/524D/mzannotate/internal/mzml"
	"github.com/524D/mzannotate/internal/scanindex"
	"github.com/524D/mzannotate/internal/search"
	"github.com/524D/mzannotate/internal/server"
	"github.com/524D/mzannotate/internal/spectrum"
)

// Program name and version, version is set at build time
const progName = "mzAnnotate"

var progVersion = `Unknown`

const (
	defaultConfigFile = "params.json"
	defaultListen     = "127.0.0.1:3000"
	shutdownTimeout   = 10 * time.Second
)

// Command line parameters of the serve command
type serveParams struct {
	config         string
	listen         string
	logLevel       string
	logFormat      string
	fragmentPolicy string
	unmatched      string
	ionMassCeiling float64
	ident          string
	scoreFilter    string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mzannotate",
		Short: "mzAnnotate - fragment ion annotation service for MS2 scans",
		Long: `mzAnnotate loads an mzML file and a search configuration and serves
scan scoring, peptide fragment annotation and processed scans over HTTP.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), progName, progVersion)
		},
	}
}

func newServeCmd() *cobra.Command {
	var par serveParams
	cmd := &cobra.Command{
		Use:   "serve [flags] <mzML file>",
		Short: "Load an mzML file and serve it over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(cmd.ErrOrStderr(), par.logLevel, par.logFormat)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			state, err := loadState(ctx, args[0], par, !cmd.Flags().Changed("config"), logger)
			if err != nil {
				return err
			}
			return serve(ctx, par.listen, server.New(state, logger).Handler(), logger)
		},
	}
	f := cmd.Flags()
	f.StringVar(&par.config, "config", defaultConfigFile, "search configuration `file` (JSON or YAML)")
	f.StringVar(&par.listen, "listen", defaultListen, "listen `address`")
	f.StringVar(&par.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.StringVar(&par.logFormat, "log-format", "json", "log format: json or text")
	f.StringVar(&par.fragmentPolicy, "fragment-policy", spectrum.Closest.String(),
		"peak reported for a fragment: closest or most_intense")
	f.StringVar(&par.unmatched, "unmatched", annotate.Omit.String(),
		"unmatched fragment ions: omit or placeholder")
	f.Float64Var(&par.ionMassCeiling, "ion-mass-ceiling", annotate.DefaultMassCeiling,
		"largest fragment mass that is annotated, 0 for no limit")
	f.StringVar(&par.ident, "ident", "", "mzIdentML `file` with identifications of the mzML file")
	f.StringVar(&par.scoreFilter, "score-filter", "",
		`filter for identifications to show. Format:
<CVterm1|scorename1>([<minscore1>]:[<maxscore1>])...
When multiple score names/CV terms are specified, the first one on the list
that matches a score in the input file will be used. Example:
`+mzidentml.DefaultScoreFilter)
	return cmd
}

// newAnnotator builds the annotator from the command line parameters
func newAnnotator(par serveParams) (*annotate.Annotator, error) {
	policy, err := spectrum.ParsePolicy(par.fragmentPolicy)
	if err != nil {
		return nil, err
	}
	unmatched, err := annotate.ParseUnmatchedPolicy(par.unmatched)
	if err != nil {
		return nil, err
	}
	a := annotate.New(policy, unmatched)
	a.MassCeiling = par.ionMassCeiling
	return a, nil
}

// loadState reads the mzML file, builds the peptide database and reads
// identifications concurrently. A missing default configuration file
// disables scan scoring.
func loadState(ctx context.Context, mzMLFile string, par serveParams, optionalConfig bool,
	logger *slog.Logger) (*server.State, error) {
	annotator, err := newAnnotator(par)
	if err != nil {
		return nil, err
	}
	scoreFilter, err := mzidentml.ParseScoreFilter(par.scoreFilter)
	if err != nil {
		return nil, err
	}
	state := &server.State{Annotator: annotator, MaxFragmentMass: annotate.DefaultMassCeiling}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		f, err := mzml.ReadFile(mzMLFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", mzMLFile, err)
		}
		scans, err := f.Spectra()
		if err != nil {
			return fmt.Errorf("read %s: %w", mzMLFile, err)
		}
		state.Scans = scanindex.New(scans)
		logger.Info("loaded mzML", "file", mzMLFile, "scans", state.Scans.Len(),
			"duration_ms", time.Since(start).Milliseconds())
		return ctx.Err()
	})
	g.Go(func() error {
		cfg, err := search.LoadConfig(par.config)
		if errors.Is(err, fs.ErrNotExist) && optionalConfig {
			logger.Warn("no search configuration, scan scoring disabled", "config", par.config)
			return nil
		}
		if err != nil {
			return err
		}
		start := time.Now()
		proteins, err := search.ReadFastaFile(cfg.Fasta)
		if err != nil {
			return err
		}
		db := search.Build(cfg, proteins)
		state.DB = db
		logger.Info("built peptide database", "fasta", cfg.Fasta, "proteins", len(proteins),
			"peptides", db.Len(), "duration_ms", time.Since(start).Milliseconds())
		return ctx.Err()
	})
	if par.ident != "" {
		g.Go(func() error {
			m, err := mzidentml.ReadFile(par.ident)
			if err != nil {
				return fmt.Errorf("read %s: %w", par.ident, err)
			}
			idents, err := m.BySpectrum()
			if err != nil {
				return fmt.Errorf("read %s: %w", par.ident, err)
			}
			if idents, err = scoreFilter.Apply(idents); err != nil {
				return fmt.Errorf("%s: %w", par.ident, err)
			}
			state.Identifications = idents
			logger.Info("loaded identifications", "file", par.ident, "identifications", m.NumIdents(),
				"spectra", len(idents))
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}

// serve runs the HTTP server until ctx is cancelled
func serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
