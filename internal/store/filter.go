package store

import (
	"sort"
	"strings"

	"github.com/yourorg/camera-dashboard/internal/camera"
)

// FilterAll disables an equality filter.
const FilterAll = "all"

type SortField string

const (
	SortByName        SortField = "name"
	SortByStatus      SortField = "status"
	SortByLastUpdated SortField = "lastUpdated"
	SortByLocation    SortField = "location"
	SortByBrand       SortField = "brand"
)

func (f SortField) Valid() bool {
	switch f {
	case SortByName, SortByStatus, SortByLastUpdated, SortByLocation, SortByBrand:
		return true
	}
	return false
}

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

type Filters struct {
	Status   string `json:"status"`
	Brand    string `json:"brand"`
	Location string `json:"location"`
}

type Query struct {
	Filters      Filters   `json:"filters"`
	Search       string    `json:"search"`
	SortBy       SortField `json:"sort_by"`
	SortOrder    SortOrder `json:"sort_order"`
	ShowInactive bool      `json:"show_inactive"`
}

func DefaultQuery() Query {
	return Query{
		Filters:   Filters{Status: FilterAll, Brand: FilterAll, Location: FilterAll},
		SortBy:    SortByName,
		SortOrder: Ascending,
	}
}

// Filter reduces cams to the ordered subset described by q. It does not
// modify its input and keeps no state between calls.
func Filter(cams []camera.Camera, q Query) []camera.Camera {
	out := make([]camera.Camera, 0, len(cams))
	search := strings.ToLower(strings.TrimSpace(q.Search))

	for _, c := range cams {
		if !q.ShowInactive && !c.IsActive {
			continue
		}
		if !matches(q.Filters.Status, string(c.Status)) ||
			!matches(q.Filters.Brand, c.Brand) ||
			!matches(q.Filters.Location, c.Location) {
			continue
		}
		if search != "" && !containsSearch(c, search) {
			continue
		}
		out = append(out, c)
	}

	sortCameras(out, q.SortBy, q.SortOrder)
	return out
}

func matches(filter, value string) bool {
	return filter == "" || filter == FilterAll || filter == value
}

func containsSearch(c camera.Camera, needle string) bool {
	for _, field := range []string{c.DisplayName, c.IPAddress, c.Brand, c.Model, c.Location, c.Description} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortCameras(cams []camera.Camera, by SortField, order SortOrder) {
	sort.SliceStable(cams, func(i, j int) bool {
		c := compare(cams[i], cams[j], by)
		if order == Descending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return cams[i].ID < cams[j].ID
	})
}

// compare orders a before b ascending. For lastUpdated ascending means
// oldest first.
func compare(a, b camera.Camera, by SortField) int {
	switch by {
	case SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case SortByLastUpdated:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case SortByLocation:
		return strings.Compare(strings.ToLower(a.Location), strings.ToLower(b.Location))
	case SortByBrand:
		return strings.Compare(strings.ToLower(a.Brand), strings.ToLower(b.Brand))
	default:
		return strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName))
	}
}

// uniqueValues returns the non-empty distinct values of field, sorted.
func uniqueValues(cams []camera.Camera, field func(camera.Camera) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range cams {
		v := strings.TrimSpace(field(c))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
