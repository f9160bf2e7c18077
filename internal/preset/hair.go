package preset

import (
	"fmt"

	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/store"
)

// Hair is a stored hair point cloud: all points of all curves in order,
// and the number of points of each curve.
type Hair struct {
	ID     hash.Digest  `json:"id"`
	Name   string       `json:"name"`
	Points [][3]float32 `json:"points"`
	Sizes  []uint16     `json:"sizes"`
}

func hairID(points [][3]float32, sizes []uint16) (hash.Digest, error) {
	return hash.Value(map[string]any{"points": points, "sizes": sizes})
}

// checkSizes converts per-curve point counts and checks that they cover
// exactly n points.
func checkSizes(sizes []int, n int) ([]uint16, error) {
	out := make([]uint16, len(sizes))
	total := 0
	for i, s := range sizes {
		if s < 0 || s > 0xFFFF {
			return nil, fmt.Errorf("hair curve %d: size %d out of range", i, s)
		}
		out[i] = uint16(s)
		total += s
	}
	if total != n {
		return nil, fmt.Errorf("hair sizes add up to %d points, got %d", total, n)
	}
	return out, nil
}

// SaveHair stores a hair point cloud. sizes must add up to len(points).
func (p *Processor) SaveHair(points [][3]float32, sizes []int, name string) (*SaveResult, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	sz, err := checkSizes(sizes, len(points))
	if err != nil {
		return nil, err
	}
	id, err := hairID(points, sz)
	if err != nil {
		return nil, err
	}
	return p.putHair(id, name, points, sz, false)
}

// putHair writes both hair tables. With autoName a taken name is suffixed.
func (p *Processor) putHair(id hash.Digest, name string, points [][3]float32, sizes []uint16, autoName bool) (*SaveResult, error) {
	rec := store.NewRecord{ID: id, Name: name, Payload: store.EncodePoints(points)}
	return p.putTop(TypeHair, store.HairPoints, rec, autoName, func(tx *Processor, name string) error {
		_, _, err := tx.st.PutNamed(store.HairSizes, store.NewRecord{ID: id, Name: name, Payload: store.EncodeSizes(sizes)})
		return err
	})
}

// LoadHair returns hair preset id.
func (p *Processor) LoadHair(id hash.Digest) (*Hair, error) {
	pts, err := p.st.Get(store.HairPoints, id)
	if err != nil {
		return nil, err
	}
	szs, err := p.st.Get(store.HairSizes, id)
	if err != nil {
		return nil, err
	}
	h := &Hair{ID: id, Name: pts.Name}
	if h.Points, err = store.DecodePoints(pts.Payload); err != nil {
		return nil, err
	}
	if h.Sizes, err = store.DecodeSizes(szs.Payload); err != nil {
		return nil, err
	}
	return h, nil
}
