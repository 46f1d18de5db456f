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
	"encoding/binary"
	"fmt"

	"github.com/ctessum/geom"
)

// wkb type codes, little-endian ISO WKB as SpatiaLite's GeomFromWKB
// expects.
const (
	wkbPoint              = 1
	wkbLineString         = 2
	wkbPolygon            = 3
	wkbMultiPoint         = 4
	wkbMultiLineString    = 5
	wkbMultiPolygon       = 6
	wkbGeometryCollection = 7
)

// encodeWKB converts a github.com/ctessum/geom value, as decoded from
// a shapefile, into well-known binary so it can be bound into a
// GeomFromWKB(...) call when loading into the embedded engine. The
// pack carries no WKB encoder of its own, so this is hand-rolled
// against the standard encoding/binary package, kept deliberately
// small: shapefiles only ever decode to the six geometry families
// handled below.
func encodeWKB(g geom.Geom) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGeom(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeGeom(buf *bytes.Buffer, g geom.Geom) error {
	switch v := g.(type) {
	case geom.Point:
		return writePoint(buf, v)
	case *geom.Point:
		return writePoint(buf, *v)
	case geom.LineString:
		return writeLineString(buf, v)
	case geom.Polygon:
		return writePolygon(buf, v)
	case geom.MultiPoint:
		return writeMultiPoint(buf, v)
	case geom.MultiLineString:
		return writeMultiLineString(buf, v)
	case geom.MultiPolygon:
		return writeMultiPolygon(buf, v)
	case nil:
		return fmt.Errorf("wkb: nil geometry")
	default:
		return fmt.Errorf("wkb: unsupported geometry type %T", g)
	}
}

func writeHeader(buf *bytes.Buffer, wkbType uint32) {
	buf.WriteByte(1) // little-endian byte order marker
	binary.Write(buf, binary.LittleEndian, wkbType)
}

func writePoint(buf *bytes.Buffer, p geom.Point) error {
	writeHeader(buf, wkbPoint)
	binary.Write(buf, binary.LittleEndian, p.X)
	binary.Write(buf, binary.LittleEndian, p.Y)
	return nil
}

func writePoints(buf *bytes.Buffer, pts []geom.Point) {
	binary.Write(buf, binary.LittleEndian, uint32(len(pts)))
	for _, p := range pts {
		binary.Write(buf, binary.LittleEndian, p.X)
		binary.Write(buf, binary.LittleEndian, p.Y)
	}
}

func writeLineString(buf *bytes.Buffer, l geom.LineString) error {
	writeHeader(buf, wkbLineString)
	writePoints(buf, l)
	return nil
}

func writePolygonRings(buf *bytes.Buffer, p geom.Polygon) {
	binary.Write(buf, binary.LittleEndian, uint32(len(p)))
	for _, ring := range p {
		writePoints(buf, ring)
	}
}

func writePolygon(buf *bytes.Buffer, p geom.Polygon) error {
	writeHeader(buf, wkbPolygon)
	writePolygonRings(buf, p)
	return nil
}

func writeMultiPoint(buf *bytes.Buffer, mp geom.MultiPoint) error {
	writeHeader(buf, wkbMultiPoint)
	binary.Write(buf, binary.LittleEndian, uint32(len(mp)))
	for _, p := range mp {
		writePoint(buf, p)
	}
	return nil
}

func writeMultiLineString(buf *bytes.Buffer, ml geom.MultiLineString) error {
	writeHeader(buf, wkbMultiLineString)
	binary.Write(buf, binary.LittleEndian, uint32(len(ml)))
	for _, l := range ml {
		writeLineString(buf, l)
	}
	return nil
}

func writeMultiPolygon(buf *bytes.Buffer, mp geom.MultiPolygon) error {
	writeHeader(buf, wkbMultiPolygon)
	binary.Write(buf, binary.LittleEndian, uint32(len(mp)))
	for _, p := range mp {
		writePolygon(buf, p)
	}
	return nil
}
