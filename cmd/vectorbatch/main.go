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

// Command vectorbatch is a command-line interface to the vectorbatch
// engine.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/vectorbatch/batchutil"
)

func main() {
	cfg := batchutil.InitializeConfig()
	if err := cfg.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
