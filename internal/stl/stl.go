// Package stl reads and writes STL files, the exchange format volume
// meshes are most commonly imported from and extracted to.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kjplatz/slic3mf/internal/mesh"
)

// Parser reads STL files into indexed triangle meshes, merging the
// per-facet vertices STL stores into a shared vertex pool.
type Parser struct{}

// NewParser creates a new STL parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads filename, autodetecting ASCII vs binary STL.
func (p *Parser) Parse(filename string) (*mesh.TriangleMesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()

	header := make([]byte, 80)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking: %w", err)
	}

	if strings.HasPrefix(string(header), "solid") {
		return p.parseASCII(file)
	}
	return p.parseBinary(file)
}

// facetBuilder deduplicates exact-match vertices into a shared pool.
type facetBuilder struct {
	mesh  *mesh.TriangleMesh
	index map[mesh.Vec3]int
}

func newFacetBuilder() *facetBuilder {
	return &facetBuilder{mesh: &mesh.TriangleMesh{}, index: map[mesh.Vec3]int{}}
}

func (b *facetBuilder) add(v1, v2, v3 mesh.Vec3) {
	b.mesh.Triangles = append(b.mesh.Triangles, mesh.Triangle{b.vertex(v1), b.vertex(v2), b.vertex(v3)})
}

func (b *facetBuilder) vertex(v mesh.Vec3) int {
	if idx, ok := b.index[v]; ok {
		return idx
	}
	idx := len(b.mesh.Vertices)
	b.index[v] = idx
	b.mesh.Vertices = append(b.mesh.Vertices, v)
	return idx
}

func (p *Parser) parseASCII(r io.Reader) (*mesh.TriangleMesh, error) {
	builder := newFacetBuilder()
	scanner := bufio.NewScanner(r)

	var facet [3]mesh.Vec3
	vertexCount := 0

	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			vertexCount = 0
		case "vertex":
			if len(fields) >= 4 && vertexCount < 3 {
				var v mesh.Vec3
				fmt.Sscanf(strings.Join(fields[1:4], " "), "%f %f %f", &v[0], &v[1], &v[2])
				facet[vertexCount] = v
				vertexCount++
			}
		case "endfacet":
			if vertexCount == 3 {
				builder.add(facet[0], facet[1], facet[2])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return builder.mesh, nil
}

func (p *Parser) parseBinary(r io.Reader) (*mesh.TriangleMesh, error) {
	header := make([]byte, 80)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	var triangleCount uint32
	if err := binary.Read(r, binary.LittleEndian, &triangleCount); err != nil {
		return nil, fmt.Errorf("error reading triangle count: %w", err)
	}

	builder := newFacetBuilder()
	for i := uint32(0); i < triangleCount; i++ {
		var rec struct {
			Normal     [3]float32
			V1, V2, V3 [3]float32
			Attribute  uint16
		}
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("error reading facet %d: %w", i, err)
		}
		builder.add(rec.V1, rec.V2, rec.V3)
	}

	return builder.mesh, nil
}

// Writer writes indexed triangle meshes back out as STL.
type Writer struct{}

// NewWriter creates a new STL writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write stores m under filename, binary or ASCII.
func (w *Writer) Write(filename, name string, m *mesh.TriangleMesh, binaryFormat bool) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer file.Close()

	if binaryFormat {
		return w.writeBinary(file, m)
	}
	return w.writeASCII(file, name, m)
}

func (w *Writer) writeASCII(out io.Writer, name string, m *mesh.TriangleMesh) error {
	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "solid %s\n", name)
	for i := range m.Triangles {
		n := m.Normal(i)
		if l := n.Length(); l > 0 {
			n = mesh.Vec3{n[0] / l, n[1] / l, n[2] / l}
		}
		fmt.Fprintf(bw, "  facet normal %g %g %g\n", n[0], n[1], n[2])
		fmt.Fprintf(bw, "    outer loop\n")
		for _, vi := range m.Triangles[i] {
			v := m.Vertices[vi]
			fmt.Fprintf(bw, "      vertex %g %g %g\n", v[0], v[1], v[2])
		}
		fmt.Fprintf(bw, "    endloop\n")
		fmt.Fprintf(bw, "  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

func (w *Writer) writeBinary(out io.Writer, m *mesh.TriangleMesh) error {
	header := make([]byte, 80)
	copy(header, "binary STL written by slic3mf")
	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	if err := binary.Write(out, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return fmt.Errorf("error writing triangle count: %w", err)
	}

	for i, t := range m.Triangles {
		n := m.Normal(i)
		if l := n.Length(); l > 0 {
			n = mesh.Vec3{n[0] / l, n[1] / l, n[2] / l}
		}
		rec := struct {
			Normal     [3]float32
			V1, V2, V3 [3]float32
			Attribute  uint16
		}{
			Normal: n,
			V1:     m.Vertices[t[0]],
			V2:     m.Vertices[t[1]],
			V3:     m.Vertices[t[2]],
		}
		if err := binary.Write(out, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("error writing facet %d: %w", i, err)
		}
	}
	return nil
}
