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
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// bindVars holds the closed set of named placeholders an operation
// template may reference. Fields left empty by a single-layer
// operation are simply never substituted.
type bindVars struct {
	geometryColumn string

	input1GeometryColumn string
	input2GeometryColumn string

	inputLayer      string
	input1TmpLayer  string
	input2TmpLayer  string
	input1DBName    string
	input2DBName    string

	columnsToSelectStr string

	layer1ColumnsPrefixAliasStr     string
	layer2ColumnsPrefixAliasStr     string
	layer2ColumnsPrefixAliasNullStr string

	layer1ColumnsFromSubselectStr string
	layer2ColumnsFromSubselectStr string

	layer1ColumnsPrefixStr string
	layer2ColumnsPrefixStr string

	batchFilter string
}

// quoteColumn double-quotes an identifier, doubling any embedded quote
// so it survives unchanged through SQL while allowing spaces and mixed
// case.
func quoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// resolveColumns checks requested (nil meaning "all") case-insensitively
// against layer's actual columns and returns the actual declared names
// (preserving the input layer's own casing) in requested order, or all
// of layer's columns if requested is nil.
func resolveColumns(layer LayerDescriptor, requested []string) ([]string, error) {
	if requested == nil {
		out := make([]string, len(layer.Columns))
		copy(out, layer.Columns)
		return out, nil
	}

	var unknown []string
	resolved := make([]string, 0, len(requested))
	for _, want := range requested {
		found := ""
		for _, have := range layer.Columns {
			if strings.EqualFold(have, want) {
				found = have
				break
			}
		}
		if found == "" {
			unknown = append(unknown, want)
			continue
		}
		resolved = append(resolved, found)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &PreconditionError{
			Op:      "bind",
			Reason:  "unknown requested column(s)",
			Details: strings.Join(unknown, ", "),
		}
	}
	return resolved, nil
}

// projectionFragments builds the leading-comma fragments for cols:
// plain-aliased ("<prefix><name>"), null-aliased, no-alias, and a
// from-subselect form referencing an already-aliased column by name.
// tableAlias qualifies the source column in aliasStr and must match the
// table alias the owning template's FROM clause actually uses (e.g.
// "layer1"/"layer2" for the two-layer templates in operations.go, "t"
// for the single-layer ones).
func projectionFragments(cols []string, prefix, tableAlias string) (aliasStr, nullAliasStr, fromSubselectStr, plainStr string) {
	for _, c := range cols {
		aliasName := prefix + c
		aliasStr += fmt.Sprintf(`, %s.%s AS %s`, tableAlias, quoteColumn(c), quoteColumn(aliasName))
		nullAliasStr += fmt.Sprintf(`, NULL AS %s`, quoteColumn(aliasName))
		fromSubselectStr += fmt.Sprintf(`, sub.%s`, quoteColumn(aliasName))
		plainStr += fmt.Sprintf(`, %s`, quoteColumn(c))
	}
	return
}

// batchFilterFragment builds the per-batch rowid predicate. alias is
// the table alias to qualify rowid with ("" for an unqualified single-
// table template). open reports whether this is the terminal batch
// (no upper bound). single reports whether the plan has exactly one
// batch, in which case no filter is needed at all.
func batchFilterFragment(alias string, lower, upper int64, open, single bool) string {
	if single {
		return ""
	}
	col := "rowid"
	if alias != "" {
		col = alias + ".rowid"
	}
	if open {
		return fmt.Sprintf(" AND %s >= %d", col, lower)
	}
	return fmt.Sprintf(" AND %s >= %d AND %s < %d", col, lower, col, upper)
}

// substitute replaces every `{name}` placeholder in template with the
// corresponding field of v. Unrecognized placeholders are left as-is;
// the closed set is enforced by operations.go only referencing known
// fields.
func substitute(template string, v bindVars) string {
	replacer := strings.NewReplacer(
		"{geometrycolumn}", v.geometryColumn,
		"{input1_geometrycolumn}", v.input1GeometryColumn,
		"{input2_geometrycolumn}", v.input2GeometryColumn,
		"{input_layer}", v.inputLayer,
		"{input1_tmp_layer}", v.input1TmpLayer,
		"{input2_tmp_layer}", v.input2TmpLayer,
		"{input1_databasename}", v.input1DBName,
		"{input2_databasename}", v.input2DBName,
		"{columns_to_select_str}", v.columnsToSelectStr,
		"{layer1_columns_prefix_alias_str}", v.layer1ColumnsPrefixAliasStr,
		"{layer2_columns_prefix_alias_str}", v.layer2ColumnsPrefixAliasStr,
		"{layer2_columns_prefix_alias_null_str}", v.layer2ColumnsPrefixAliasNullStr,
		"{layer1_columns_from_subselect_str}", v.layer1ColumnsFromSubselectStr,
		"{layer2_columns_from_subselect_str}", v.layer2ColumnsFromSubselectStr,
		"{layer1_columns_prefix_str}", v.layer1ColumnsPrefixStr,
		"{layer2_columns_prefix_str}", v.layer2ColumnsPrefixStr,
		"{batch_filter}", v.batchFilter,
	)
	return replacer.Replace(template)
}

// paramLiteral renders an operation parameter (distance, tolerance,
// a primitive code, ...) as a SQL literal suitable for splicing
// straight into a batch's bound SQL: every operation parameter is the
// same for every batch of a run, so there is no need for a real bind
// variable, and a literal keeps the bound SQL in a WorkerError fully
// self-contained.
func paramLiteral(v interface{}) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// bindParams replaces every `:name` token in query with the literal
// value of params["name"]. Unlike the placeholder set in bindVars,
// these are operation-specific (distance, tolerance,
// quadrantsegments, max_distance, input1_primitive_code,
// collectionextract_code, ...) and are supplied per call by the public
// operation wrapper in ops.go rather than by the binder itself.
func bindParams(query string, params map[string]interface{}) string {
	for name, v := range params {
		query = strings.ReplaceAll(query, ":"+name, paramLiteral(v))
	}
	return query
}

// filterNullGeoms wraps query so that rows whose geom column is null
// are dropped, the binder's final step when an operation template
// requests it.
func filterNullGeoms(query string) string {
	return fmt.Sprintf(`SELECT sub.* FROM (%s) sub WHERE sub.geom IS NOT NULL`, query)
}

// bind resolves column projections against the request's input layers,
// builds every placeholder fragment, substitutes them into tmpl for
// the given batch, and applies filter_null_geoms if requested.
func bind(tmpl operationTemplate, req OperationRequest, b batch) (string, error) {
	cols1, err := resolveColumns(req.Input1, req.Projection1.Columns)
	if err != nil {
		return "", err
	}
	prefix1 := req.Projection1.Prefix
	if prefix1 == "" && tmpl.twoLayer {
		prefix1 = "l1_"
	}
	tableAlias1 := "t"
	if tmpl.twoLayer {
		tableAlias1 = "layer1"
	}
	alias1, _, sub1, plain1 := projectionFragments(cols1, prefix1, tableAlias1)

	v := bindVars{
		geometryColumn:       req.Input1.GeometryColumn,
		input1GeometryColumn: req.Input1.GeometryColumn,
		inputLayer:           req.Input1.Layer,
		input1TmpLayer:       req.Input1.Layer,
		input1DBName:         "input1",

		columnsToSelectStr: plain1,

		layer1ColumnsPrefixAliasStr:   alias1,
		layer1ColumnsFromSubselectStr: sub1,
		layer1ColumnsPrefixStr:        plain1,
	}

	singleBatch := b.count == 1
	alias := ""
	if tmpl.twoLayer {
		alias = "layer1"
	}
	v.batchFilter = batchFilterFragment(alias, b.lowerRowID, b.upperRowID, b.openEnded, singleBatch)

	if tmpl.twoLayer {
		if req.Input2 == nil {
			return "", &PreconditionError{Op: req.Operation, Reason: "two-layer template bound without a second input"}
		}
		cols2, err := resolveColumns(*req.Input2, req.Projection2.Columns)
		if err != nil {
			return "", err
		}
		prefix2 := req.Projection2.Prefix
		if prefix2 == "" {
			prefix2 = "l2_"
		}
		alias2, null2, sub2, plain2 := projectionFragments(cols2, prefix2, "layer2")

		v.input2GeometryColumn = req.Input2.GeometryColumn
		v.input2TmpLayer = req.Input2.Layer
		v.input2DBName = "input2"
		v.layer2ColumnsPrefixAliasStr = alias2
		v.layer2ColumnsPrefixAliasNullStr = null2
		v.layer2ColumnsFromSubselectStr = sub2
		v.layer2ColumnsPrefixStr = plain2
	}

	query := substitute(tmpl.sql, v)
	query = bindParams(query, req.Params)
	if tmpl.postProcess != nil {
		query = tmpl.postProcess(query, req)
	}
	if tmpl.filterNullGeoms {
		query = filterNullGeoms(query)
	}
	return query, nil
}
