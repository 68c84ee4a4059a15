package archive

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/hnsw"
	"github.com/vecdbhq/vecdb/internal/quantize"
	"github.com/vecdbhq/vecdb/internal/vector"
)

var metricCodes = map[vector.Metric]uint8{
	vector.MetricCosine:    0,
	vector.MetricEuclidean: 1,
	vector.MetricDot:       2,
}
var metricByCode = map[uint8]vector.Metric{0: vector.MetricCosine, 1: vector.MetricEuclidean, 2: vector.MetricDot}

var quantCodes = map[vector.QuantizationKind]uint8{
	vector.QuantizationNone:   0,
	vector.QuantizationSQ8:    1,
	vector.QuantizationPQ:     2,
	vector.QuantizationBinary: 3,
}
var quantByCode = map[uint8]vector.QuantizationKind{0: vector.QuantizationNone, 1: vector.QuantizationSQ8, 2: vector.QuantizationPQ, 3: vector.QuantizationBinary}

var normCodes = map[vector.NormalizationLevel]uint8{
	vector.NormalizationOff:          0,
	vector.NormalizationConservative: 1,
	vector.NormalizationModerate:     2,
	vector.NormalizationAggressive:   3,
}
var normByCode = map[uint8]vector.NormalizationLevel{0: vector.NormalizationOff, 1: vector.NormalizationConservative, 2: vector.NormalizationModerate, 3: vector.NormalizationAggressive}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return "", err
	}
	return string(b), nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

// encodeCollectionSection serializes a collection.Snapshot into the
// binary layout spec.md §6 describes: config, then the layered HNSW
// adjacency (varint-coded neighbor positions), then the contiguous f32
// vector payload, quantization codebook/codes, and per-vector JSON
// payload.
func encodeCollectionSection(snap collection.Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	a := snap.Attrs
	writeString(&buf, a.Name)
	writeUvarint(&buf, uint64(a.Dimension))
	buf.WriteByte(metricCodes[a.Metric])
	writeUvarint(&buf, uint64(a.M))
	writeUvarint(&buf, uint64(a.EfConstruction))
	writeUvarint(&buf, uint64(a.EfSearch))
	buf.WriteByte(quantCodes[a.Quantization.Kind])
	writeUvarint(&buf, uint64(a.Quantization.Subquantizers))
	writeUvarint(&buf, uint64(a.Quantization.Centroids))
	writeString(&buf, a.EmbeddingProvider)
	buf.WriteByte(normCodes[a.Normalization])
	writeUvarint(&buf, uint64(a.CreatedAt.UnixMilli()))
	writeUvarint(&buf, uint64(a.UpdatedAt.UnixMilli()))
	writeUvarint(&buf, a.Revision)

	// HNSW graph: node order establishes the position index neighbor
	// references use.
	g := snap.Graph
	position := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		position[n.ID] = i
	}

	writeUvarint(&buf, uint64(len(g.Nodes)))
	for _, n := range g.Nodes {
		writeString(&buf, n.ID)
		for _, f := range n.Vector {
			var fb [4]byte
			binary.LittleEndian.PutUint32(fb[:], mathFloat32bits(f))
			buf.Write(fb[:])
		}
		writeUvarint(&buf, uint64(n.Level))
		writeUvarint(&buf, uint64(len(n.Neighbors)))
		for _, layer := range n.Neighbors {
			writeUvarint(&buf, uint64(len(layer)))
			for _, nbID := range layer {
				pos, ok := position[nbID]
				if !ok {
					return nil, fmt.Errorf("archive: node %q references unknown neighbor %q", n.ID, nbID)
				}
				writeUvarint(&buf, uint64(pos))
			}
		}
	}
	if g.HasEntry {
		buf.WriteByte(1)
		writeUvarint(&buf, uint64(position[g.EntryPointID]))
	} else {
		buf.WriteByte(0)
	}
	writeUvarint(&buf, uint64(g.TopLevel))

	// Quantization codebook, if any.
	codecBytes, err := encodeCodec(snap.Codec)
	if err != nil {
		return nil, err
	}
	writeUvarint(&buf, uint64(len(codecBytes)))
	buf.Write(codecBytes)

	// Per-vector payload JSON, sparse companion, timestamps, keyed by id
	// in the same node order so the loader can zip them back together.
	for _, n := range g.Nodes {
		v, ok := snap.Values[n.ID]
		if !ok {
			return nil, fmt.Errorf("archive: node %q has no stored vector payload", n.ID)
		}
		payloadJSON, err := json.Marshal(v.Payload)
		if err != nil {
			return nil, err
		}
		writeUvarint(&buf, uint64(len(payloadJSON)))
		buf.Write(payloadJSON)

		writeUvarint(&buf, uint64(len(v.Sparse)))
		keys := make([]uint32, 0, len(v.Sparse))
		for k := range v.Sparse {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			var kb [4]byte
			binary.LittleEndian.PutUint32(kb[:], k)
			buf.Write(kb[:])
			var wb [4]byte
			binary.LittleEndian.PutUint32(wb[:], mathFloat32bits(v.Sparse[k]))
			buf.Write(wb[:])
		}

		writeUvarint(&buf, uint64(v.CreatedAt.UnixMilli()))
		writeUvarint(&buf, uint64(v.UpdatedAt.UnixMilli()))
	}

	return buf.Bytes(), nil
}

// decodeCollectionSection is the inverse of encodeCollectionSection.
func decodeCollectionSection(b []byte) (collection.Snapshot, error) {
	r := bytes.NewReader(b)

	var a vector.CollectionAttrs
	var err error
	if a.Name, err = readString(r); err != nil {
		return collection.Snapshot{}, err
	}
	dim, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.Dimension = int(dim)

	metricByte, err := r.ReadByte()
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.Metric = metricByCode[metricByte]

	m, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.M = int(m)
	efc, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.EfConstruction = int(efc)
	efs, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.EfSearch = int(efs)

	quantByte, err := r.ReadByte()
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.Quantization.Kind = quantByCode[quantByte]
	sub, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.Quantization.Subquantizers = int(sub)
	cent, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.Quantization.Centroids = int(cent)

	if a.EmbeddingProvider, err = readString(r); err != nil {
		return collection.Snapshot{}, err
	}
	normByte, err := r.ReadByte()
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.Normalization = normByCode[normByte]

	createdMs, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.CreatedAt = msToTime(int64(createdMs))
	updatedMs, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	a.UpdatedAt = msToTime(int64(updatedMs))
	a.Revision, err = readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}

	nodeCount, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}

	snap := hnsw.Snapshot{
		Dimension:      a.Dimension,
		M:              a.M,
		EfConstruction: a.EfConstruction,
		EfSearch:       a.EfSearch,
		Metric:         a.Metric,
		Nodes:          make([]hnsw.NodeSnapshot, nodeCount),
	}
	positions := make([]string, nodeCount)
	// rawNeighbors holds the writer's position-indexed neighbor
	// references; a referenced node's id may not be known yet (it may
	// sort after the referencing node), so resolution to ids happens in
	// a second pass once every position's id has been read.
	rawNeighbors := make([][][]uint64, nodeCount)

	for i := uint64(0); i < nodeCount; i++ {
		id, err := readString(r)
		if err != nil {
			return collection.Snapshot{}, err
		}
		positions[i] = id

		vec := make([]float32, a.Dimension)
		for d := 0; d < a.Dimension; d++ {
			var fb [4]byte
			if _, err := r.Read(fb[:]); err != nil {
				return collection.Snapshot{}, err
			}
			vec[d] = mathFloat32frombits(binary.LittleEndian.Uint32(fb[:]))
		}

		level, err := readUvarint(r)
		if err != nil {
			return collection.Snapshot{}, err
		}
		layerCount, err := readUvarint(r)
		if err != nil {
			return collection.Snapshot{}, err
		}
		layers := make([][]uint64, layerCount)
		for l := uint64(0); l < layerCount; l++ {
			cnt, err := readUvarint(r)
			if err != nil {
				return collection.Snapshot{}, err
			}
			positionsForLayer := make([]uint64, cnt)
			for j := uint64(0); j < cnt; j++ {
				pos, err := readUvarint(r)
				if err != nil {
					return collection.Snapshot{}, err
				}
				if pos >= nodeCount {
					return collection.Snapshot{}, fmt.Errorf("archive: neighbor position %d out of range", pos)
				}
				positionsForLayer[j] = pos
			}
			layers[l] = positionsForLayer
		}
		rawNeighbors[i] = layers
		snap.Nodes[i] = hnsw.NodeSnapshot{ID: id, Vector: vec, Level: int(level)}
	}

	for i := range snap.Nodes {
		neighbors := make([][]string, len(rawNeighbors[i]))
		for l, layerPositions := range rawNeighbors[i] {
			ids := make([]string, len(layerPositions))
			for j, pos := range layerPositions {
				ids[j] = positions[pos]
			}
			neighbors[l] = ids
		}
		snap.Nodes[i].Neighbors = neighbors
	}

	hasEntry, err := r.ReadByte()
	if err != nil {
		return collection.Snapshot{}, err
	}
	snap.HasEntry = hasEntry == 1
	entryPos, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	if snap.HasEntry {
		snap.EntryPointID = positions[entryPos]
	}
	topLevel, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	snap.TopLevel = int(topLevel)

	codecLen, err := readUvarint(r)
	if err != nil {
		return collection.Snapshot{}, err
	}
	codecBytes := make([]byte, codecLen)
	if codecLen > 0 {
		if _, err := r.Read(codecBytes); err != nil {
			return collection.Snapshot{}, err
		}
	}
	codec, err := decodeCodec(a.Dimension, a.Quantization, codecBytes)
	if err != nil {
		return collection.Snapshot{}, err
	}

	values := make(map[string]*vector.Vector, nodeCount)
	for i := uint64(0); i < nodeCount; i++ {
		id := positions[i]
		payloadLen, err := readUvarint(r)
		if err != nil {
			return collection.Snapshot{}, err
		}
		payloadJSON := make([]byte, payloadLen)
		if payloadLen > 0 {
			if _, err := r.Read(payloadJSON); err != nil {
				return collection.Snapshot{}, err
			}
		}
		var payload map[string]any
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &payload); err != nil {
				return collection.Snapshot{}, err
			}
		}

		sparseLen, err := readUvarint(r)
		if err != nil {
			return collection.Snapshot{}, err
		}
		var sparse vector.SparseVector
		if sparseLen > 0 {
			sparse = make(vector.SparseVector, sparseLen)
			for j := uint64(0); j < sparseLen; j++ {
				var kb, wb [4]byte
				if _, err := r.Read(kb[:]); err != nil {
					return collection.Snapshot{}, err
				}
				if _, err := r.Read(wb[:]); err != nil {
					return collection.Snapshot{}, err
				}
				key := binary.LittleEndian.Uint32(kb[:])
				sparse[key] = mathFloat32frombits(binary.LittleEndian.Uint32(wb[:]))
			}
		}

		createdMs, err := readUvarint(r)
		if err != nil {
			return collection.Snapshot{}, err
		}
		updatedMs, err := readUvarint(r)
		if err != nil {
			return collection.Snapshot{}, err
		}

		values[id] = &vector.Vector{
			ID:        id,
			Values:    snap.Nodes[i].Vector,
			Sparse:    sparse,
			Payload:   payload,
			CreatedAt: msToTime(int64(createdMs)),
			UpdatedAt: msToTime(int64(updatedMs)),
		}
	}

	return collection.Snapshot{Attrs: a, Graph: snap, Codec: codec, Values: values}, nil
}

func encodeCodec(c quantize.Codec) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	switch t := c.(type) {
	case *quantize.SQ8:
		buf.WriteByte(boolByte(t.Fitted()))
		for _, v := range t.Min {
			writeFloat32(&buf, v)
		}
		for _, v := range t.Max {
			writeFloat32(&buf, v)
		}
	case *quantize.PQ:
		buf.WriteByte(boolByte(t.Fitted()))
		writeUvarint(&buf, uint64(t.M))
		writeUvarint(&buf, uint64(t.K))
		for _, sub := range t.Codebooks {
			for _, centroid := range sub {
				for _, v := range centroid {
					writeFloat32(&buf, v)
				}
			}
		}
	case *quantize.Binary:
		buf.WriteByte(boolByte(t.Fitted()))
		for _, v := range t.Mean {
			writeFloat32(&buf, v)
		}
	default:
		return nil, fmt.Errorf("archive: unknown codec type %T", c)
	}
	return buf.Bytes(), nil
}

func decodeCodec(dimension int, policy vector.QuantizationPolicy, b []byte) (quantize.Codec, error) {
	codec, err := quantize.New(dimension, policy)
	if err != nil || codec == nil {
		return codec, err
	}
	r := bytes.NewReader(b)
	fittedByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	fitted := fittedByte == 1

	switch t := codec.(type) {
	case *quantize.SQ8:
		for i := range t.Min {
			v, err := readFloat32(r)
			if err != nil {
				return nil, err
			}
			t.Min[i] = v
		}
		for i := range t.Max {
			v, err := readFloat32(r)
			if err != nil {
				return nil, err
			}
			t.Max[i] = v
		}
		if fitted {
			t.MarkFitted()
		}
	case *quantize.PQ:
		m, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		k, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		t.Codebooks = make([][][]float32, m)
		for s := range t.Codebooks {
			t.Codebooks[s] = make([][]float32, k)
			for c := range t.Codebooks[s] {
				t.Codebooks[s][c] = make([]float32, t.SubDim)
				for d := range t.Codebooks[s][c] {
					v, err := readFloat32(r)
					if err != nil {
						return nil, err
					}
					t.Codebooks[s][c][d] = v
				}
			}
		}
		if fitted {
			t.MarkFitted()
		}
	case *quantize.Binary:
		for i := range t.Mean {
			v, err := readFloat32(r)
			if err != nil {
				return nil, err
			}
			t.Mean[i] = v
		}
		if fitted {
			t.MarkFitted()
		}
	}
	return codec, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writeFloat32(buf *bytes.Buffer, f float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], mathFloat32bits(f))
	buf.Write(b[:])
}

func readFloat32(r *bytes.Reader) (float32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return mathFloat32frombits(binary.LittleEndian.Uint32(b[:])), nil
}
