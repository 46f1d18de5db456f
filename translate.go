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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// TranslateRequest is the contract spec.md §6 assigns the external
// vector-translation collaborator: format conversion, delegated to an
// ogr2ogr-compatible binary rather than reimplemented here.
type TranslateRequest struct {
	SrcPath  string
	SrcLayer string // optional

	DstPath  string
	DstLayer string // optional

	CreateSpatialIndex bool
	SQLStmt            string // optional: run this query instead of a plain layer copy
	SQLDialect         string // optional, e.g. "SQLITE", ignored if SQLStmt is empty

	Explode            bool
	ForceGeometryType  string // optional
	Append             bool
	Update             bool
}

// gdalBinEnv is the one optional environment variable spec.md §6
// grants the translation collaborator: an alternate directory holding
// the ogr2ogr-family toolchain.
const gdalBinEnv = "VECTORBATCH_GDAL_BIN"

// Translate shells out to ogr2ogr (or the binary named by
// $VECTORBATCH_GDAL_BIN/ogr2ogr, if set) to perform a format
// conversion the Container I/O Adapter cannot do with the embedded
// engine alone, e.g. reading an exotic source format. The toolchain
// directory is read here, at the adapter boundary; internal/engine
// (SpatiaLite library path) and internal/blobstore (AWS_REGION) read
// their own environment variables.
func Translate(ctx context.Context, req TranslateRequest) error {
	bin := "ogr2ogr"
	if dir := os.Getenv(gdalBinEnv); dir != "" {
		bin = dir + string(os.PathSeparator) + "ogr2ogr"
	}

	args := []string{}
	if req.Append {
		args = append(args, "-append")
	}
	if req.Update {
		args = append(args, "-update")
	}
	if req.CreateSpatialIndex {
		args = append(args, "-lco", "SPATIAL_INDEX=YES")
	}
	if req.Explode {
		args = append(args, "-explodecollections")
	}
	if req.ForceGeometryType != "" {
		args = append(args, "-nlt", req.ForceGeometryType)
	}
	if req.SQLStmt != "" {
		args = append(args, "-sql", req.SQLStmt)
		if req.SQLDialect != "" {
			args = append(args, "-dialect", req.SQLDialect)
		}
	}
	if req.DstLayer != "" {
		args = append(args, "-nln", req.DstLayer)
	}
	args = append(args, req.DstPath, req.SrcPath)
	if req.SrcLayer != "" {
		args = append(args, req.SrcLayer)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &IOError{Op: "translate", Path: req.SrcPath, Err: fmt.Errorf("%s: %w: %s", bin, err, stderr.String())}
	}
	return nil
}
