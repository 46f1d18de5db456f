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

// Package batchutil wires vectorbatch's operations to a cobra/viper
// command-line interface, the way inmaputil wires up the InMAP model.
package batchutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// Cfg holds the option store and the command tree built by
// InitializeConfig.
type Cfg struct {
	*viper.Viper

	Root *cobra.Command
}

// GetStringMapString mirrors inmaputil's cast-backed accessor for a
// viper value that may come back from a config file as either a real
// map or, from TOML/INI sources, a flattened string-keyed variant.
func (c *Cfg) GetStringMapString(key string) (map[string]string, error) {
	i := c.Get(key)
	if i == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapStringE(i)
	if err != nil {
		return nil, fmt.Errorf("batchutil: reading option %s: %w", key, err)
	}
	return m, nil
}

// expandedStringSlice applies the environment-variable expansion
// inmaputil's config.go applies to every string-slice option read
// from the config file.
func expandedStringSlice(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = os.ExpandEnv(v)
	}
	return out
}

// splitColumns parses a comma-separated --columns flag value into a
// column list, or nil for "all columns" when the flag is empty.
func splitColumns(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
