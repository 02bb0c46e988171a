package keyframe

import (
	"fmt"
	"math"
	"strconv"
)

// maxStart is the latest start time that still leaves room for DefaultWidth
// without overflowing int32.
const maxStart = math.MaxInt32 - DefaultWidth

// Match describes how Lookup produced its result.
type Match int

const (
	// MatchNone means the timestamp lies before the first or after the last
	// keyframe; callers must not render anything for it.
	MatchNone Match = iota
	// MatchExact means a stored keyframe encloses the timestamp.
	MatchExact
	// MatchInterpolated means the result was blended from two neighbors.
	MatchInterpolated
)

func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchInterpolated:
		return "interpolated"
	default:
		return "none"
	}
}

// Lookup returns the keyframe enclosing t, or a keyframe synthesized from the
// nearest predecessor and successor when t falls in a gap between them.
// The returned formation never aliases tl.
func (tl Timeline) Lookup(t int32) (Formation, Match) {
	if i := tl.exactIndex(t); i >= 0 {
		return tl.Formations[i].Clone(), MatchExact
	}

	pred, succ := tl.neighbors(t)
	if pred < 0 || succ < 0 {
		return Formation{}, MatchNone
	}
	return interpolate(tl.Formations[pred], tl.Formations[succ], t), MatchInterpolated
}

// exactIndex returns the index of the first formation enclosing t, or -1.
func (tl Timeline) exactIndex(t int32) int {
	for i, f := range tl.Formations {
		if f.Contains(t) {
			return i
		}
	}
	return -1
}

// neighbors returns the index of the formation with the greatest EndTime
// below t and of the one with the smallest StartTime above t. Either is -1
// when absent. Ties keep the first formation found.
func (tl Timeline) neighbors(t int32) (pred, succ int) {
	pred, succ = -1, -1
	for i, f := range tl.Formations {
		if f.EndTime < t && (pred < 0 || f.EndTime > tl.Formations[pred].EndTime) {
			pred = i
		}
		if f.StartTime > t && (succ < 0 || f.StartTime < tl.Formations[succ].StartTime) {
			succ = i
		}
	}
	return pred, succ
}

// interpolate blends prev into next at timestamp t. The roster is driven by
// prev only: entities missing from next are kept as-is and entities that only
// exist in next are left out.
func interpolate(prev, next Formation, t int32) Formation {
	gap := int64(next.StartTime) - int64(prev.EndTime)
	if gap <= 0 {
		// Adjacent keyframes leave no gap to blend across.
		return prev.Clone()
	}
	progress := float64(int64(t)-int64(prev.EndTime)) / float64(gap)

	nextByID := make(map[int32]Entity, len(next.Entities))
	for i := len(next.Entities) - 1; i >= 0; i-- {
		nextByID[next.Entities[i].ID] = next.Entities[i]
	}

	entities := make([]Entity, 0, len(prev.Entities))
	for _, e := range prev.Entities {
		to, ok := nextByID[e.ID]
		if !ok {
			entities = append(entities, e)
			continue
		}
		entities = append(entities, Entity{
			ID:   e.ID,
			Name: e.Name,
			Position: Position{
				X: lerp(e.Position.X, to.Position.X, progress),
				Y: lerp(e.Position.Y, to.Position.Y, progress),
			},
		})
	}

	return Formation{
		ID:         prev.ID,
		AudioTrack: prev.AudioTrack,
		StartTime:  prev.StartTime,
		EndTime:    next.EndTime,
		Entities:   entities,
	}
}

func lerp(from, to, progress float64) float64 {
	return from + (to-from)*progress
}

// Upsert replaces the keyframe enclosing t with payload. When no keyframe
// encloses t, a new one of DefaultWidth starting at t is inserted after the
// nearest predecessor, taking its id from the shared counter and its audio
// track and entities from payload. It returns the stored formation and
// whether it was inserted.
//
// An inserted keyframe may overlap its successor when the gap after t is
// narrower than DefaultWidth. Inserting past maxStart returns ErrRange.
func (tl *Timeline) Upsert(t int32, payload Formation) (Formation, bool, error) {
	if i := tl.exactIndex(t); i >= 0 {
		tl.Formations[i] = payload.Clone()
		return tl.Formations[i].Clone(), false, nil
	}
	if t > maxStart {
		return Formation{}, false, fmt.Errorf("%w: keyframe at %d would end past %d", ErrRange, t, int32(math.MaxInt32))
	}

	tl.NextIDCounter++
	f := Formation{
		ID:         tl.NextIDCounter,
		AudioTrack: payload.AudioTrack,
		StartTime:  t,
		EndTime:    t + DefaultWidth,
		Entities:   payload.Clone().Entities,
	}

	at := tl.insertionIndex(t)
	tl.Formations = append(tl.Formations, Formation{})
	copy(tl.Formations[at+1:], tl.Formations[at:])
	tl.Formations[at] = f
	return f.Clone(), true, nil
}

// insertionIndex returns the slot just after the nearest keyframe that ends
// at or before t, or 0 when there is none.
func (tl Timeline) insertionIndex(t int32) int {
	pred := -1
	for i, f := range tl.Formations {
		if f.EndTime <= t && (pred < 0 || f.EndTime >= tl.Formations[pred].EndTime) {
			pred = i
		}
	}
	return pred + 1
}

// Append adds a keyframe of DefaultWidth right after the last one, copying its
// audio track and entities and taking last.ID+1 as id. On an empty timeline it
// adds the bootstrap keyframe [0, DefaultWidth). It returns ErrRange when the
// last keyframe ends past maxStart.
func (tl *Timeline) Append() (Formation, error) {
	if len(tl.Formations) == 0 {
		f := Formation{ID: 0, StartTime: 0, EndTime: DefaultWidth, Entities: []Entity{}}
		tl.Formations = append(tl.Formations, f)
		return f.Clone(), nil
	}

	last := tl.Formations[len(tl.Formations)-1]
	if last.EndTime > maxStart {
		return Formation{}, fmt.Errorf("%w: keyframe after %d would end past %d", ErrRange, last.EndTime, int32(math.MaxInt32))
	}
	f := Formation{
		ID:         last.ID + 1,
		AudioTrack: last.AudioTrack,
		StartTime:  last.EndTime,
		EndTime:    last.EndTime + DefaultWidth,
		Entities:   last.Clone().Entities,
	}
	tl.Formations = append(tl.Formations, f)

	// Keep the insertion counter ahead of every id minted here.
	if f.ID > tl.NextIDCounter {
		tl.NextIDCounter = f.ID
	}
	return f.Clone(), nil
}

// AddEntity appends e verbatim to the formation with the given id.
func (tl *Timeline) AddEntity(formationID int32, e Entity) error {
	i := tl.indexByID(formationID)
	if i < 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, formationID)
	}
	tl.Formations[i].Entities = append(tl.Formations[i].Entities, e)
	return nil
}

// AddNewEntity appends a performer at the origin to the formation with the
// given id. Its id follows the last performer's id, or is 0 for an empty
// roster, and its name is the id in decimal.
func (tl *Timeline) AddNewEntity(formationID int32) (Entity, error) {
	i := tl.indexByID(formationID)
	if i < 0 {
		return Entity{}, fmt.Errorf("%w: id %d", ErrNotFound, formationID)
	}

	var id int32
	if roster := tl.Formations[i].Entities; len(roster) > 0 {
		id = roster[len(roster)-1].ID + 1
	}
	e := Entity{ID: id, Name: strconv.Itoa(int(id)), Position: Position{}}
	tl.Formations[i].Entities = append(tl.Formations[i].Entities, e)
	return e, nil
}

// indexByID returns the index of the first formation with the given id, or -1.
func (tl Timeline) indexByID(id int32) int {
	for i, f := range tl.Formations {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Ordered reports whether every formation has StartTime < EndTime, the
// formations are sorted by StartTime, and their ranges do not overlap.
func (tl Timeline) Ordered() bool {
	for _, f := range tl.Formations {
		if f.StartTime >= f.EndTime {
			return false
		}
	}
	for i := 1; i < len(tl.Formations); i++ {
		prev, cur := tl.Formations[i-1], tl.Formations[i]
		if cur.StartTime < prev.StartTime || prev.EndTime > cur.StartTime {
			return false
		}
	}
	return true
}
