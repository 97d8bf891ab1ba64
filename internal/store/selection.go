package store

import (
	"slices"
	"sort"
)

// SelectVertex handles a click on vertex i. With the segment tool the
// selection is a two-slot buffer: the second distinct vertex creates a
// segment. Otherwise a plain click replaces the selection and multi toggles
// membership.
func (s *Store) SelectVertex(i int, multi bool) {
	if _, ok := s.Map().Vertex(i); !ok {
		return
	}
	if s.tool == ToolSegment {
		if slices.Contains(s.selectedVertices, i) {
			return
		}
		s.selectedVertices = append(s.selectedVertices, i)
		if len(s.selectedVertices) >= 2 {
			s.AddSegment(s.selectedVertices[0], s.selectedVertices[1], s.segmentColor)
			s.selectedVertices = nil
		}
		s.notify(ChangeSelection)
		return
	}
	s.selectedVertices = toggleOrReplace(s.selectedVertices, i, multi)
	s.notify(ChangeSelection)
}

// SelectVerticesInRect adds every vertex inside the world-space rectangle
// spanned by the two corners. Without additive the selection is replaced.
func (s *Store) SelectVerticesInRect(x0, y0, x1, y1 float64, additive bool) {
	minX, maxX := min(x0, x1), max(x0, x1)
	minY, maxY := min(y0, y1), max(y0, y1)

	sel := s.selectedVertices
	if !additive {
		sel = nil
	}
	for i, v := range s.Map().Vertexes {
		if v.X >= minX && v.X <= maxX && v.Y >= minY && v.Y <= maxY && !slices.Contains(sel, i) {
			sel = append(sel, i)
		}
	}
	s.selectedVertices = sel
	s.notify(ChangeSelection)
}

// SelectSegment handles a click on segment i.
func (s *Store) SelectSegment(i int, multi bool) {
	if i < 0 || i >= len(s.Map().Segments) {
		return
	}
	s.selectedSegments = toggleOrReplace(s.selectedSegments, i, multi)
	s.notify(ChangeSelection)
}

func (s *Store) ClearVertexSelection() {
	if len(s.selectedVertices) == 0 {
		return
	}
	s.selectedVertices = nil
	s.notify(ChangeSelection)
}

func (s *Store) ClearSegmentSelection() {
	if len(s.selectedSegments) == 0 {
		return
	}
	s.selectedSegments = nil
	s.notify(ChangeSelection)
}

// SetHoveredVertex marks vertex i as hovered; -1 clears it.
func (s *Store) SetHoveredVertex(i int) {
	if _, ok := s.Map().Vertex(i); !ok {
		i = -1
	}
	if i == s.hovered {
		return
	}
	s.hovered = i
	s.notify(ChangeSelection)
}

func (s *Store) SelectedVertices() []int { return slices.Clone(s.selectedVertices) }
func (s *Store) SelectedSegments() []int { return slices.Clone(s.selectedSegments) }
func (s *Store) HoveredVertex() int      { return s.hovered }

// IsVertexSelected reports whether vertex i is selected.
func (s *Store) IsVertexSelected(i int) bool {
	return slices.Contains(s.selectedVertices, i)
}

// IsSegmentSelected reports whether segment i is selected.
func (s *Store) IsSegmentSelected(i int) bool {
	return slices.Contains(s.selectedSegments, i)
}

// pruneSelection drops indices that no longer exist after history travel.
func (s *Store) pruneSelection() {
	m := s.Map()
	s.selectedVertices = slices.DeleteFunc(s.selectedVertices, func(i int) bool { return i >= len(m.Vertexes) })
	s.selectedSegments = slices.DeleteFunc(s.selectedSegments, func(i int) bool { return i >= len(m.Segments) })
	if s.hovered >= len(m.Vertexes) {
		s.hovered = -1
	}
}

func toggleOrReplace(sel []int, i int, multi bool) []int {
	if !multi {
		return []int{i}
	}
	if k := slices.Index(sel, i); k >= 0 {
		return slices.Delete(slices.Clone(sel), k, k+1)
	}
	return append(slices.Clone(sel), i)
}

// descendingUnique returns the in-range indices sorted high to low, without
// duplicates, so each removal leaves the remaining indices valid.
func descendingUnique(indices []int, n int) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return slices.Compact(out)
}

// renumberVertex maps a vertex index through the removal of every index in
// removed. It returns -1 if the vertex itself was removed.
func renumberVertex(i int, removed []int) int {
	shift := 0
	for _, r := range removed {
		switch {
		case r == i:
			return -1
		case r < i:
			shift++
		}
	}
	return i - shift
}

func renumberVertices(sel []int, removed []int) []int {
	var out []int
	for _, i := range sel {
		if j := renumberVertex(i, removed); j >= 0 {
			out = append(out, j)
		}
	}
	return out
}

// remapIndices maps selected segment indices through an old→new table.
func remapIndices(sel []int, table []int) []int {
	var out []int
	for _, i := range sel {
		if i >= 0 && i < len(table) && table[i] >= 0 {
			out = append(out, table[i])
		}
	}
	return out
}
