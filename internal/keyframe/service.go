package keyframe

import (
	"log/slog"
)

// Service applies the keyframe lookup and editing rules and delegates
// serialization and persistence to a Repository.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService returns a Service backed by repo. A nil log discards output.
func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, log: log}
}

// GetFormation returns the formation to show at timestamp t: the enclosing
// keyframe, an interpolated one, or MatchNone outside the timeline.
func (s *Service) GetFormation(t int32) (f Formation, match Match, err error) {
	err = s.repo.View(func(tl Timeline) {
		f, match = tl.Lookup(t)
	})
	return f, match, err
}

// UpdateFormation replaces the keyframe enclosing t with payload, or inserts a
// new keyframe at t when there is none. It reports whether a keyframe was inserted.
func (s *Service) UpdateFormation(t int32, payload Formation) (stored Formation, inserted bool, err error) {
	var ordered bool
	err = s.repo.Mutate(func(tl *Timeline) error {
		var err error
		stored, inserted, err = tl.Upsert(t, payload)
		if err != nil {
			return err
		}
		ordered = tl.Ordered()
		return nil
	})
	if err != nil {
		return Formation{}, false, err
	}

	if !ordered {
		s.log.Warn("timeline keyframes out of order after update",
			slog.Int("timestamp", int(t)),
			slog.Int("formation_id", int(stored.ID)),
			slog.Bool("inserted", inserted))
	}
	s.log.Debug("formation updated",
		slog.Int("timestamp", int(t)),
		slog.Int("formation_id", int(stored.ID)),
		slog.Bool("inserted", inserted))
	return stored, inserted, nil
}

// AddFormation appends a keyframe after the last one.
func (s *Service) AddFormation() (Formation, error) {
	var f Formation
	err := s.repo.Mutate(func(tl *Timeline) error {
		var err error
		f, err = tl.Append()
		return err
	})
	if err != nil {
		return Formation{}, err
	}

	s.log.Debug("formation appended",
		slog.Int("formation_id", int(f.ID)),
		slog.Int("start_time", int(f.StartTime)),
		slog.Int("end_time", int(f.EndTime)))
	return f, nil
}

// AddEntity appends e unchanged to the formation with the given id.
// It returns ErrNotFound, leaving the timeline untouched, if there is no such formation.
func (s *Service) AddEntity(formationID int32, e Entity) error {
	err := s.repo.Mutate(func(tl *Timeline) error {
		return tl.AddEntity(formationID, e)
	})
	if err != nil {
		return err
	}

	s.log.Debug("entity added",
		slog.Int("formation_id", int(formationID)),
		slog.Int("entity_id", int(e.ID)))
	return nil
}

// AddNewEntity appends a freshly numbered performer at the origin to the
// formation with the given id.
func (s *Service) AddNewEntity(formationID int32) (Entity, error) {
	var e Entity
	err := s.repo.Mutate(func(tl *Timeline) error {
		var err error
		e, err = tl.AddNewEntity(formationID)
		return err
	})
	if err != nil {
		return Entity{}, err
	}

	s.log.Debug("entity created",
		slog.Int("formation_id", int(formationID)),
		slog.Int("entity_id", int(e.ID)))
	return e, nil
}

// Timeline returns a copy of the whole timeline.
func (s *Service) Timeline() (Timeline, error) {
	var out Timeline
	err := s.repo.View(func(tl Timeline) {
		out = tl.Clone()
	})
	return out, err
}

// FormationCount returns the number of stored keyframes, or 0 if the
// repository is unusable. Used for metrics.
func (s *Service) FormationCount() int {
	var n int
	_ = s.repo.View(func(tl Timeline) {
		n = len(tl.Formations)
	})
	return n
}
