package track

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/google/uuid"
	"github.com/openfieldag/gosteer/geo"
	"go.uber.org/multierr"
)

// Record is the stored form of a Track. Points live inline; bolt pages
// hold field-sized tracks without trouble.
type Record struct {
	ID         string `storm:"id"`
	Name       string `storm:"unique"`
	Mode       Mode
	NudgeTotal float64
	Visible    bool
	Points     []geo.PathPoint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is the track catalog on the onboard bolt database.
type Store struct {
	db *storm.DB
}

func NewStore(db *storm.DB) (*Store, error) {
	if err := db.Init(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Save upserts a track, preserving its original creation time.
func (s *Store) Save(t *Track) error {
	rec := &Record{
		ID:         t.ID.String(),
		Name:       t.Name,
		Mode:       t.Mode,
		NudgeTotal: t.NudgeTotal,
		Visible:    t.Visible,
		Points:     t.Points,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	var old Record
	if err := s.db.One("ID", rec.ID, &old); err == nil {
		rec.CreatedAt = old.CreatedAt
	}
	return s.db.Save(rec)
}

func (s *Store) ByID(id uuid.UUID) (*Track, error) {
	var rec Record
	if err := s.db.One("ID", id.String(), &rec); err != nil {
		return nil, err
	}
	return rec.track()
}

func (s *Store) ByName(name string) (*Track, error) {
	var rec Record
	if err := s.db.One("Name", name, &rec); err != nil {
		return nil, err
	}
	return rec.track()
}

// All loads every stored track. Records that fail to decode are skipped
// and their errors aggregated, so one corrupt row cannot hide the rest of
// the catalog.
func (s *Store) All() ([]*Track, error) {
	var recs []Record
	if err := s.db.All(&recs); err != nil {
		return nil, err
	}

	out := make([]*Track, 0, len(recs))
	var errs error
	for i := range recs {
		t, err := recs[i].track()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, t)
	}
	return out, errs
}

func (s *Store) Delete(id uuid.UUID) error {
	return s.db.DeleteStruct(&Record{ID: id.String()})
}

func (r *Record) track() (*Track, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	pts := make([]geo.PathPoint, len(r.Points))
	copy(pts, r.Points)
	return &Track{
		ID:         id,
		Name:       r.Name,
		Mode:       r.Mode,
		Points:     pts,
		NudgeTotal: r.NudgeTotal,
		Visible:    r.Visible,
	}, nil
}
