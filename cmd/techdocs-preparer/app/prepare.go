package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/techdocs-preparer/internal/config"
	"github.com/stacklok/techdocs-preparer/internal/entity"
	"github.com/stacklok/techdocs-preparer/internal/preparers"
	"github.com/stacklok/techdocs-preparer/internal/reader"
	"github.com/stacklok/techdocs-preparer/internal/telemetry"
)

const (
	flagEntity      = "entity"
	flagOutput      = "output"
	flagEtag        = "etag"
	flagConcurrency = "concurrency"

	tracerName = "github.com/stacklok/techdocs-preparer"

	defaultConcurrency = 4
	shutdownTimeout    = 10 * time.Second
)

// prepareParams are the inputs of a prepare run
type prepareParams struct {
	configPath  string
	entityPaths []string
	outputDir   string
	etag        string
	concurrency int
}

// prepareOutput is printed on stdout for every prepared entity
type prepareOutput struct {
	RunID       string `json:"runId"`
	Entity      string `json:"entity"`
	Protocol    string `json:"protocol"`
	Path        string `json:"path,omitempty"`
	Etag        string `json:"etag,omitempty"`
	NotModified bool   `json:"notModified,omitempty"`
}

// prepareRun holds what every entity of a run shares
type prepareRun struct {
	id       string
	logger   *slog.Logger
	registry *preparers.Registry
	tracer   trace.Tracer
	metrics  *telemetry.PrepareMetrics
}

func newPrepareCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Materialize the documentation source of entities",
		Long: `Materialize the documentation source of catalog entities.

Each entity descriptor (--entity, repeatable) must carry a
backstage.io/techdocs-ref annotation such as "dir:./docs" or
"url:https://example.com/docs.tar.gz". Remote content is written into
--output, or a temporary directory when unset. With several entities every
entity gets its own kind/namespace/name directory below --output and up to
--concurrency entities are prepared at once; the first failure stops the run.
When --etag matches the current version of the content of a single entity
nothing is written and the result reports notModified.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrepare(cmd.Context(), prepareParams{
				configPath:  v.GetString(flagConfig),
				entityPaths: v.GetStringSlice(flagEntity),
				outputDir:   v.GetString(flagOutput),
				etag:        v.GetString(flagEtag),
				concurrency: v.GetInt(flagConcurrency),
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSlice(flagEntity, nil, "Path to an entity descriptor (YAML format, required, repeatable)")
	cmd.Flags().String(flagOutput, "", "Directory to write remote content into")
	cmd.Flags().String(flagEtag, "", "Etag of a previous prepare run (single entity only)")
	cmd.Flags().Int(flagConcurrency, defaultConcurrency, "Maximum number of entities prepared at once")
	for _, name := range []string{flagEntity, flagOutput, flagEtag, flagConcurrency} {
		bindFlag(v, name, cmd)
	}

	return cmd
}

// runPrepare prepares the entities described by params and writes the
// results as JSON to out: one object for a single entity, an array in
// argument order otherwise
func runPrepare(ctx context.Context, params prepareParams, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(params.entityPaths) == 0 {
		return fmt.Errorf("--%s is required", flagEntity)
	}
	batch := len(params.entityPaths) > 1
	if batch && params.etag != "" {
		return fmt.Errorf("--%s requires a single --%s", flagEtag, flagEntity)
	}
	if params.concurrency <= 0 {
		params.concurrency = defaultConcurrency
	}

	cfg, err := loadConfig(params.configPath)
	if err != nil {
		return err
	}

	entities, err := loadEntities(params.entityPaths)
	if err != nil {
		return err
	}

	options := make([]preparers.PrepareOptions, len(entities))
	for i, e := range entities {
		options[i] = preparers.PrepareOptions{OutputDir: params.outputDir, Etag: params.etag}
		if batch && params.outputDir != "" {
			if options[i].OutputDir, err = entityOutputDir(params.outputDir, e); err != nil {
				return err
			}
		}
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down telemetry", "error", err)
		}
	}()

	metrics, err := telemetry.NewPrepareMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	run := &prepareRun{
		id:      uuid.NewString(),
		tracer:  tel.Tracer(tracerName),
		metrics: metrics,
	}
	run.logger = slog.Default().With("run_id", run.id)

	run.registry, err = preparers.FromConfig(ctx, cfg, preparers.Dependencies{
		Logger: run.logger,
		Reader: newReader(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to create preparers: %w", err)
	}

	outputs := make([]prepareOutput, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(params.concurrency)
	for i, e := range entities {
		g.Go(func() error {
			output, err := run.prepare(gctx, e, options[i])
			if err != nil {
				return err
			}
			outputs[i] = output
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if !batch {
		return encoder.Encode(outputs[0])
	}
	return encoder.Encode(outputs)
}

// prepare resolves the preparer of e and runs it
func (r *prepareRun) prepare(ctx context.Context, e *entity.Entity, opts preparers.PrepareOptions) (prepareOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, r.tracer, "techdocs.prepare",
		trace.WithAttributes(
			telemetry.AttrRunID.String(r.id),
			telemetry.AttrEntityRef.String(e.Ref()),
		),
	)
	defer span.End()

	preparer, err := r.registry.Get(e)
	if err != nil {
		r.metrics.RecordLookupFailure(ctx, lookupFailureReason(err))
		telemetry.RecordError(span, err)
		return prepareOutput{}, err
	}

	// Get succeeded, so the annotation parses
	ref, _ := entity.ParseReferenceAnnotation(entity.TechDocsRefAnnotation, e)
	span.SetAttributes(
		telemetry.AttrProtocol.String(ref.Type),
		telemetry.AttrTarget.String(ref.Target),
		telemetry.AttrOutputDir.String(opts.OutputDir),
	)

	r.logger.InfoContext(ctx, "Preparing documentation",
		"entity", e.Ref(),
		"protocol", ref.Type,
		"target", ref.Target,
	)

	startTime := time.Now()
	result, err := preparer.Prepare(ctx, e, opts)
	duration := time.Since(startTime)

	output := prepareOutput{
		RunID:    r.id,
		Entity:   e.Ref(),
		Protocol: ref.Type,
	}

	switch {
	case errors.Is(err, preparers.ErrNotModified):
		r.metrics.RecordPrepare(ctx, ref.Type, duration, telemetry.OutcomeNotModified)
		span.SetAttributes(telemetry.AttrNotModified.Bool(true))
		r.logger.InfoContext(ctx, "Documentation not modified", "entity", e.Ref(), "etag", opts.Etag)
		output.Etag = opts.Etag
		output.NotModified = true
	case err != nil:
		r.metrics.RecordPrepare(ctx, ref.Type, duration, telemetry.OutcomeError)
		telemetry.RecordError(span, err)
		return prepareOutput{}, fmt.Errorf("failed to prepare %s: %w", e.Ref(), err)
	default:
		r.metrics.RecordPrepare(ctx, ref.Type, duration, telemetry.OutcomeSuccess)
		span.SetAttributes(telemetry.AttrEtag.String(result.Etag))
		r.logger.InfoContext(ctx, "Prepared documentation",
			"entity", e.Ref(),
			"path", result.Path,
			"etag", result.Etag,
			"duration", duration.String(),
		)
		output.Path = result.Path
		output.Etag = result.Etag
	}

	return output, nil
}

// loadEntities loads every descriptor and rejects repeated entities
func loadEntities(paths []string) ([]*entity.Entity, error) {
	entities := make([]*entity.Entity, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		e, err := loadEntity(path)
		if err != nil {
			return nil, err
		}
		if previous, ok := seen[e.Ref()]; ok {
			return nil, fmt.Errorf("entity %s is described by both %s and %s", e.Ref(), previous, path)
		}
		seen[e.Ref()] = path
		entities = append(entities, e)
	}
	return entities, nil
}

// entityOutputDir is the directory below outputDir that receives e in a batch
func entityOutputDir(outputDir string, e *entity.Entity) (string, error) {
	kind, rest, _ := strings.Cut(e.Ref(), ":")
	namespace, name, _ := strings.Cut(rest, "/")
	rel := filepath.Join(kind, namespace, name)
	if !filepath.IsLocal(rel) || strings.Count(filepath.ToSlash(rel), "/") != 2 {
		return "", fmt.Errorf("entity %s cannot be mapped to a directory below %s", e.Ref(), outputDir)
	}
	return filepath.Join(outputDir, rel), nil
}

// newReader creates the URL reader described by cfg
func newReader(cfg *config.Config) reader.URLReader {
	return reader.NewHTTPReader(
		reader.WithTimeout(cfg.GetReaderTimeout()),
		reader.WithMaxRetries(cfg.GetReaderMaxRetries()),
	)
}

// loadEntity reads the entity descriptor and records its file location the
// way the catalog does, so dir: references resolve next to the descriptor
func loadEntity(path string) (*entity.Entity, error) {
	e, err := entity.Load(path)
	if err != nil {
		return nil, err
	}

	if _, ok := e.Annotation(entity.ManagedByLocationAnnotation); !ok {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve entity path: %w", err)
		}
		if e.Metadata.Annotations == nil {
			e.Metadata.Annotations = make(map[string]string)
		}
		e.Metadata.Annotations[entity.ManagedByLocationAnnotation] = "file:" + absPath
	}

	return e, nil
}

// lookupFailureReason labels a registry lookup error for metrics
func lookupFailureReason(err error) string {
	switch {
	case errors.Is(err, preparers.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, entity.ErrUnrecognizedProtocol):
		return "unrecognized_protocol"
	default:
		return "unknown"
	}
}
