package store

import (
	"github.com/haxtrace/haxtrace/backend-go/internal/arc"
	"github.com/haxtrace/haxtrace/backend-go/internal/document"
)

// State is a read-only view of the store for clients.
type State struct {
	Map              *document.Map `json:"map"`
	Tool             Tool          `json:"tool"`
	SelectedVertices []int         `json:"selectedVertices"`
	SelectedSegments []int         `json:"selectedSegments"`
	HoveredVertex    int           `json:"hoveredVertex"`
	SegmentColor     string        `json:"segmentColor"`
	CurveType        arc.CurveType `json:"curveType"`
	CurveValue       float64       `json:"curveValue"`
	Prefs            Prefs         `json:"prefs"`
	CanUndo          bool          `json:"canUndo"`
	CanRedo          bool          `json:"canRedo"`
	HistoryIndex     int           `json:"historyIndex"`
	HistoryLength    int           `json:"historyLength"`
}

// Snapshot captures the current state. The map is shared with history and
// must not be modified.
func (s *Store) Snapshot() State {
	sv := s.SelectedVertices()
	if sv == nil {
		sv = []int{}
	}
	ss := s.SelectedSegments()
	if ss == nil {
		ss = []int{}
	}
	return State{
		Map:              s.Map(),
		Tool:             s.tool,
		SelectedVertices: sv,
		SelectedSegments: ss,
		HoveredVertex:    s.hovered,
		SegmentColor:     s.segmentColor,
		CurveType:        s.curveType,
		CurveValue:       s.curveValue,
		Prefs:            s.prefs,
		CanUndo:          s.CanUndo(),
		CanRedo:          s.CanRedo(),
		HistoryIndex:     s.cursor,
		HistoryLength:    len(s.history),
	}
}
