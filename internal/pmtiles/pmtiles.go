// Package pmtiles reads the header and metadata of PMTiles v3 archives so
// the tile listing can report zoom range, bounds and tile format.
//
// The header layout follows github.com/protomaps/go-pmtiles (BSD-3-Clause).
// Spec: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb"
)

// Compression is the compression algorithm applied to tiles or directories.
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression      Compression = 1
	Gzip               Compression = 2
	Brotli             Compression = 3
	Zstd               Compression = 4
)

// TileType is the format of individual tile contents.
type TileType uint8

const (
	UnknownTileType TileType = 0
	Mvt             TileType = 1
	Png             TileType = 2
	Jpeg            TileType = 3
	Webp            TileType = 4
	Avif            TileType = 5
)

var tileTypeNames = [...]string{"unknown", "mvt", "png", "jpg", "webp", "avif"}

func (t TileType) String() string {
	if int(t) < len(tileTypeNames) {
		return tileTypeNames[t]
	}
	return "unknown"
}

// HeaderLen is the size of the fixed binary header.
const HeaderLen = 127

// maxMetadata bounds the metadata block read from an archive.
const maxMetadata = 1 << 20

var (
	ErrNotPMTiles  = errors.New("pmtiles: magic number not detected")
	ErrShortHeader = errors.New("pmtiles: buffer too small for header")
)

// Header is the part of the v3 header the viewer cares about.
type Header struct {
	SpecVersion         uint8
	MetadataOffset      uint64
	MetadataLength      uint64
	AddressedTilesCount uint64
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// DecodeHeader parses a binary v3 header.
func DecodeHeader(d []byte) (Header, error) {
	var h Header
	if len(d) < HeaderLen {
		return h, ErrShortHeader
	}
	if string(d[0:7]) != "PMTiles" {
		return h, ErrNotPMTiles
	}
	le := binary.LittleEndian

	h.SpecVersion = d[7]
	h.MetadataOffset = le.Uint64(d[24:32])
	h.MetadataLength = le.Uint64(d[32:40])
	h.AddressedTilesCount = le.Uint64(d[72:80])
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLonE7 = int32(le.Uint32(d[102:106]))
	h.MinLatE7 = int32(le.Uint32(d[106:110]))
	h.MaxLonE7 = int32(le.Uint32(d[110:114]))
	h.MaxLatE7 = int32(le.Uint32(d[114:118]))
	h.CenterZoom = d[118]
	h.CenterLonE7 = int32(le.Uint32(d[119:123]))
	h.CenterLatE7 = int32(le.Uint32(d[123:127]))
	return h, nil
}

// ReadHeader reads the header at the start of an archive.
func ReadHeader(r io.ReaderAt) (Header, error) {
	buf := make([]byte, HeaderLen)
	n, err := r.ReadAt(buf, 0)
	if n < HeaderLen {
		if err == nil || errors.Is(err, io.EOF) {
			return Header{}, ErrShortHeader
		}
		return Header{}, fmt.Errorf("pmtiles: read header: %w", err)
	}
	return DecodeHeader(buf)
}

func e7(v int32) float64 { return float64(v) / 1e7 }

// Bound returns the archive bounds in lon/lat.
func (h Header) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e7(h.MinLonE7), e7(h.MinLatE7)},
		Max: orb.Point{e7(h.MaxLonE7), e7(h.MaxLatE7)},
	}
}

// Center returns the suggested center point.
func (h Header) Center() orb.Point {
	return orb.Point{e7(h.CenterLonE7), e7(h.CenterLatE7)}
}

// ReadMetadata reads and decodes the JSON metadata block.
func ReadMetadata(r io.ReaderAt, h Header) (map[string]any, error) {
	if h.MetadataLength == 0 {
		return map[string]any{}, nil
	}
	if h.MetadataLength > maxMetadata {
		return nil, fmt.Errorf("pmtiles: metadata of %d bytes too large", h.MetadataLength)
	}
	raw := make([]byte, h.MetadataLength)
	if _, err := r.ReadAt(raw, int64(h.MetadataOffset)); err != nil {
		return nil, fmt.Errorf("pmtiles: read metadata: %w", err)
	}

	var body io.Reader = bytes.NewReader(raw)
	switch h.InternalCompression {
	case NoCompression, UnknownCompression:
	case Gzip:
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: metadata: %w", err)
		}
		defer zr.Close()
		body = zr
	default:
		return nil, fmt.Errorf("pmtiles: metadata compression %d not supported", h.InternalCompression)
	}

	md := map[string]any{}
	if err := json.NewDecoder(body).Decode(&md); err != nil {
		return nil, fmt.Errorf("pmtiles: decode metadata: %w", err)
	}
	return md, nil
}
