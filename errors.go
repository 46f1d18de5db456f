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

import "fmt"

// PreconditionError is raised before any worker starts: a missing input,
// a pre-existing output without force, a shapefile-family layer/stem
// mismatch, or an unknown requested column.
type PreconditionError struct {
	Op      string
	Reason  string
	Details string
}

func (e *PreconditionError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("vectorbatch: %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("vectorbatch: %s: %s (%s)", e.Op, e.Reason, e.Details)
}

// CapabilityError is raised when the embedded engine lacks a spatial
// function an operation requires.
type CapabilityError struct {
	Op       string
	Function string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("vectorbatch: %s: embedded engine does not provide %s", e.Op, e.Function)
}

// PlanError is raised when the batch planner fails to obtain rowid
// extrema for a non-empty layer.
type PlanError struct {
	Layer string
	Err   error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("vectorbatch: planning batches for layer %q: %v", e.Layer, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// WorkerError is raised when a batch fails inside the embedded engine.
// It carries enough context to reproduce the failure by hand.
type WorkerError struct {
	BatchID int
	SQL     string
	Err     error
}

func (e *WorkerError) Error() string {
	sql := e.SQL
	const maxLen = 2000
	if len(sql) > maxLen {
		sql = sql[:maxLen] + "...(truncated)"
	}
	return fmt.Sprintf("vectorbatch: batch %d failed: %v\nbound SQL:\n%s", e.BatchID, e.Err, sql)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// IOError wraps a failure in the Container I/O Adapter: a translate,
// append, index, or move operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("vectorbatch: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
