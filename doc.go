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

// Package vectorbatch runs vector-geospatial set operations (buffer,
// convex hull, simplify, make-valid, is-valid, erase, intersect, union,
// split, join-by-location, export-by-location, export-by-distance,
// dissolve, and free-form select) against large on-disk vector layers.
//
// The package partitions an operation's input into row-id batches,
// binds a per-operation SQL template to each batch, runs the batches
// concurrently against independent handles of an embedded spatial SQL
// engine, and serially recombines the partial results into a single
// indexed output layer. Per-feature geometry math is delegated entirely
// to the embedded engine; this package owns partitioning, templating,
// scheduling, and recombination.
package vectorbatch

// Version is the current version of vectorbatch.
const Version = "0.1.0"
