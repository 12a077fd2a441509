package topology

import (
	"github.com/twpayne/go-geos"
)

// Union dissolves geoms into one geometry. Nil and empty inputs are ignored;
// no input gives an empty collection.
func Union(geoms []*geos.Geom) (*geos.Geom, error) {
	inputs := make([]*geos.Geom, 0, len(geoms))
	for _, g := range geoms {
		if g != nil && !g.IsEmpty() {
			inputs = append(inputs, g)
		}
	}
	if len(inputs) == 0 {
		return emptyCollection(), nil
	}
	return guard("union", func() *geos.Geom { return cascadedUnion(inputs) })
}

// cascadedUnion unions the halves recursively so every pairwise union works
// on geometries of similar size.
func cascadedUnion(geometries []*geos.Geom) *geos.Geom {
	if len(geometries) == 1 {
		return geometries[0].UnaryUnion()
	}

	mid := len(geometries) / 2
	left := cascadedUnion(geometries[:mid])
	right := cascadedUnion(geometries[mid:])

	result := left.Union(right)

	left.Destroy()
	right.Destroy()

	return result
}

// Combine merges line pieces into one geometry: their union, sewn into the
// longest possible line strings.
func Combine(geoms []*geos.Geom) (*geos.Geom, error) {
	union, err := Union(geoms)
	if err != nil {
		return nil, err
	}
	if union.IsEmpty() || !IsLineResult(union) {
		return union, nil
	}
	return guard("line merge", func() *geos.Geom { return union.LineMerge() })
}
