/*
Copyright © 2026 the VectorBatch authors.
This file is part of VectorBatch.

VectorBatch is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

VectorBatch is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with VectorBatch.  If not, see <http://www.gnu.org/licenses/>.
*/

package vectorbatch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ctessum/requestcache"

	"github.com/spatialmodel/vectorbatch/internal/engine"
)

// coordinatorState is a label only; each run of the coordinator's
// state machine is one method chain and there is no persisted state
// beyond the fields below, but the names mirror spec.md §4.6 so a
// panic or log line can cite the stage by name.
type coordinatorState string

const (
	stateInit        coordinatorState = "INIT"
	stateValidated   coordinatorState = "VALIDATED"
	statePlanned     coordinatorState = "PLANNED"
	stateDispatching coordinatorState = "DISPATCHING"
	stateCollecting  coordinatorState = "COLLECTING"
	stateFinalizing  coordinatorState = "FINALIZING"
	stateDone        coordinatorState = "DONE"
	stateCleanup     coordinatorState = "CLEANUP"
)

// coordinator runs one operation end to end: validate, plan, dispatch
// batches to the worker pool, collect partial outputs, and finalize
// the consolidated result.
type coordinator struct {
	log   logrus.FieldLogger
	state coordinatorState
}

func newCoordinator(log logrus.FieldLogger) *coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &coordinator{log: log, state: stateInit}
}

func (c *coordinator) transition(s coordinatorState) {
	c.log.WithFields(logrus.Fields{"from": c.state, "to": s}).Debug("vectorbatch: coordinator transition")
	c.state = s
}

// run drives req through the full state machine and returns the path
// of the consolidated, indexed output container. templateName selects
// the operation's template from operationTemplates.
func (c *coordinator) run(ctx context.Context, templateName string, req OperationRequest, needsSecondInput bool) (string, error) {
	tmpl, err := lookupTemplate(templateName)
	if err != nil {
		return "", err
	}
	return c.runTemplate(ctx, tmpl, req, needsSecondInput)
}

// runTemplate is run's template-parameterized core. select and dissolve
// build an operationTemplate on the fly (a caller-supplied SQL string,
// or a single grouped aggregate query) rather than looking one up from
// operationTemplates, so they call this directly instead of run.
func (c *coordinator) runTemplate(ctx context.Context, tmpl operationTemplate, req OperationRequest, needsSecondInput bool) (string, error) {
	c.transition(stateInit)

	if err := req.validate(needsSecondInput); err != nil {
		return "", err
	}
	if !req.Force {
		if _, err := os.Stat(req.OutputPath); err == nil {
			return "", &PreconditionError{Op: tmpl.name, Reason: "output already exists", Details: req.OutputPath}
		}
	}
	c.transition(stateValidated)

	scratchDir, err := os.MkdirTemp("", "vectorbatch-"+uuid.New().String())
	if err != nil {
		return "", &IOError{Op: tmpl.name, Path: scratchDir, Err: err}
	}
	defer func() {
		c.transition(stateCleanup)
		removeScratchDir(scratchDir)
	}()

	normalized1, cleanup1, err := normalizeInput(ctx, scratchDir, req.Input1)
	if err != nil {
		return "", err
	}
	defer cleanup1()
	req.Input1 = normalized1

	if req.Input2 != nil {
		normalized2, cleanup2, err := normalizeInput(ctx, scratchDir, *req.Input2)
		if err != nil {
			return "", err
		}
		defer cleanup2()
		req.Input2 = &normalized2
	}

	min, max, ok, err := rowIDExtrema(ctx, req.Input1)
	if err != nil {
		return "", &PlanError{Layer: req.Input1.Layer, Err: err}
	}
	if !ok {
		c.log.WithField("layer", req.Input1.Layer).Warn("vectorbatch: input has no rows, producing empty result")
		return "", nil
	}

	plan, err := planBatches(req.Input1.Layer, req.Input1.FeatureCount, min, max, req.ParallelismHint, tmpl.twoLayer)
	if err != nil {
		return "", &PlanError{Layer: req.Input1.Layer, Err: err}
	}
	c.transition(statePlanned)

	outputType := resolveOutputGeometryType(tmpl, req)

	c.transition(stateDispatching)
	results, err := c.dispatch(ctx, tmpl, req, plan, scratchDir, req.OutputLayer, outputType)
	if err != nil {
		return "", err
	}
	c.transition(stateCollecting)

	consolidated, err := c.consolidate(ctx, scratchDir, req, results, outputType)
	if err != nil {
		return "", err
	}
	if consolidated == "" {
		c.transition(stateDone)
		return "", nil
	}

	c.transition(stateFinalizing)
	if err := move(ctx, consolidated, req.OutputPath); err != nil {
		return "", err
	}
	c.transition(stateDone)
	return req.OutputPath, nil
}

// dispatch runs plan.batches through a requestcache-backed worker
// pool sized to plan.parallelism, matching the channel-based
// request/response pattern the teacher's distributed cluster code
// uses. Completion order across workers is not guaranteed; dispatch
// collects results keyed by batch id so the consolidation step can
// still process them in batch order.
func (c *coordinator) dispatch(ctx context.Context, tmpl operationTemplate, req OperationRequest, plan processingPlan, scratchDir, outputLayer string, outputType GeometryType) ([]batchResult, error) {
	processor := func(ctx context.Context, payload interface{}) (interface{}, error) {
		job := payload.(batchJob)
		res := executeBatch(ctx, job)
		if res.err != nil {
			return nil, res.err
		}
		return res, nil
	}

	numProcessors := plan.parallelism
	if numProcessors < 1 {
		numProcessors = 1
	}
	cache := requestcache.NewCache(processor, numProcessors)

	requests := make([]*requestcache.Request, len(plan.batches))
	for i, b := range plan.batches {
		job := batchJob{
			batch:       b,
			tmpl:        tmpl,
			req:         req,
			scratchDir:  scratchDir,
			outputLayer: outputLayer,
			outputType:  outputType,
		}
		requests[i] = cache.NewRequest(ctx, job, fmt.Sprintf("batch-%d", b.id))
	}

	start := time.Now()
	results := make([]batchResult, len(requests))
	for i, r := range requests {
		v, err := r.Result()
		if err != nil {
			c.log.WithFields(logrus.Fields{"operation": tmpl.name, "batch_id": plan.batches[i].id}).WithError(err).Error("vectorbatch: batch failed")
			return nil, err
		}
		results[i] = v.(batchResult)
		c.log.WithFields(logrus.Fields{
			"operation": tmpl.name,
			"batch_id":  plan.batches[i].id,
			"elapsed":   time.Since(start),
			"completed": i + 1,
			"total":     len(requests),
		}).Info("vectorbatch: batch completed")
	}
	return results, nil
}

// consolidate serially appends every non-empty partial output into a
// freshly created consolidated container, in batch order, then builds
// the spatial index. Partial outputs are removed as soon as they have
// been appended.
func (c *coordinator) consolidate(ctx context.Context, scratchDir string, req OperationRequest, results []batchResult, outputType GeometryType) (string, error) {
	consolidatedPath := scratchDir + "/consolidated.gpkg"
	conn, err := engine.Open(consolidatedPath, true, engine.ProfileSafe)
	if err != nil {
		return "", &IOError{Op: "consolidate", Path: consolidatedPath, Err: err}
	}
	defer conn.Close()

	var totalRows int64
	var schemaInitialized bool
	for i, res := range results {
		if res.rowCount == 0 {
			os.Remove(res.partialPath)
			continue
		}
		if !schemaInitialized {
			if err := cloneSchemaFrom(ctx, conn, res.partialPath, req.OutputLayer); err != nil {
				return "", err
			}
			schemaInitialized = true
		}
		attachName := fmt.Sprintf("partial%d", i)
		if err := appendPartial(ctx, conn, req.OutputLayer, res.partialPath, req.OutputLayer, attachName); err != nil {
			return "", err
		}
		os.Remove(res.partialPath)
		totalRows += res.rowCount
	}

	if !schemaInitialized {
		c.log.Warn("vectorbatch: operation produced zero rows, no output written")
		return "", nil
	}

	if err := createSpatialIndex(ctx, conn, req.OutputLayer, "geom"); err != nil {
		return "", err
	}
	c.log.WithField("rows", totalRows).Info("vectorbatch: consolidated output written")
	return consolidatedPath, nil
}

// cloneSchemaFrom creates layer in dest with the same column schema as
// the first non-empty partial output, so later appends are plain
// INSERT ... SELECT statements.
func cloneSchemaFrom(ctx context.Context, dest *engine.Conn, partialPath, layer string) error {
	src, err := engine.Open(partialPath, false, engine.ProfileSpeed)
	if err != nil {
		return &IOError{Op: "consolidate", Path: partialPath, Err: err}
	}
	defer src.Close()

	cols, err := src.Columns(ctx, layer)
	if err != nil {
		return &IOError{Op: "consolidate", Path: partialPath, Err: err}
	}
	colDefs := "geom BLOB"
	for _, col := range cols {
		colDefs += fmt.Sprintf(", %s TEXT", quoteColumn(col))
	}
	if _, err := dest.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteColumn(layer), colDefs)); err != nil {
		return &IOError{Op: "consolidate", Path: partialPath, Err: err}
	}
	return nil
}

// rowIDExtrema opens a fresh connection onto layer's container and
// reads its rowid span; ok is false for an empty layer.
func rowIDExtrema(ctx context.Context, layer LayerDescriptor) (min, max int64, ok bool, err error) {
	conn, err := engine.Open(layer.Path, false, engine.ProfileSafe)
	if err != nil {
		return 0, 0, false, err
	}
	defer conn.Close()
	return conn.RowIDExtrema(ctx, layer.Layer)
}
