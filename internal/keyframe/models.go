package keyframe

// DefaultWidth is the span given to keyframes minted by insertion or append.
const DefaultWidth int32 = 500

// Position is a 2D stage coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Entity is one performer inside a formation. ID is local to the owning formation.
type Entity struct {
	ID       int32    `json:"id"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

// Formation is a keyframe: one pose for all performers, valid over [StartTime, EndTime).
type Formation struct {
	ID         int32    `json:"id"`
	AudioTrack string   `json:"audio_track"`
	StartTime  int32    `json:"start_time"`
	EndTime    int32    `json:"end_time"`
	Entities   []Entity `json:"entities"`
}

// Contains reports whether t falls inside the half-open range of f.
func (f Formation) Contains(t int32) bool {
	return f.StartTime <= t && t < f.EndTime
}

// Clone returns a copy of f that shares no memory with it.
func (f Formation) Clone() Formation {
	out := f
	out.Entities = make([]Entity, len(f.Entities))
	copy(out.Entities, f.Entities)
	return out
}

// Timeline is the persisted payload: the ordered keyframes plus the id counter
// used by the insertion path.
type Timeline struct {
	NextIDCounter int32       `json:"next_id_counter"`
	Formations    []Formation `json:"formations"`
}

// Clone returns a deep copy of tl.
func (tl Timeline) Clone() Timeline {
	out := Timeline{NextIDCounter: tl.NextIDCounter}
	out.Formations = make([]Formation, len(tl.Formations))
	for i, f := range tl.Formations {
		out.Formations[i] = f.Clone()
	}
	return out
}

// DefaultTimeline is the seed written when no backing file exists.
func DefaultTimeline() Timeline {
	return Timeline{
		NextIDCounter: 0,
		Formations: []Formation{
			{ID: 0, AudioTrack: "", StartTime: 0, EndTime: DefaultWidth, Entities: []Entity{}},
		},
	}
}
