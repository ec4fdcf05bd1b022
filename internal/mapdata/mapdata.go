// Package mapdata holds the static Valorant map pool used for vetoes.
package mapdata

// Map is an immutable catalog entry. The pool is fixed at process start.
type Map struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

var catalog = []Map{
	{
		ID:    "ascent",
		Name:  "ASCENT",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/3/38/Ascent_Banner.JPG?width=1024",
	},
	{
		ID:    "bind",
		Name:  "BIND",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/6/61/Bind_Banner.JPG?width=1024",
	},
	{
		ID:    "haven",
		Name:  "HAVEN",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/1/19/Haven_Banner.JPG?width=1024",
	},
	{
		ID:    "split",
		Name:  "SPLIT",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/3/30/Split_Banner.JPG?width=1024",
	},
	{
		ID:    "icebox",
		Name:  "ICEBOX",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/4/45/Icebox_Banner.JPG?width=1024",
	},
	{
		ID:    "breeze",
		Name:  "BREEZE",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/d/d1/Breeze_Banner.JPG?width=1024",
	},
	{
		ID:    "fracture",
		Name:  "FRACTURE",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/f/f2/Fracture_Banner.JPG?width=1024",
	},
	{
		ID:    "lotus",
		Name:  "LOTUS",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/a/a8/Lotus_Banner.JPG?width=1024",
	},
	{
		ID:    "pearl",
		Name:  "PEARL",
		Image: "https://oyster.ignimgs.com/mediawiki/apis.ign.com/valorant/6/6d/Pearl_Banner.JPG?width=1024",
	},
}

// All returns the full catalog in display order.
func All() []Map {
	out := make([]Map, len(catalog))
	copy(out, catalog)
	return out
}

// IDs returns the catalog map ids in display order.
func IDs() []string {
	ids := make([]string, len(catalog))
	for i, m := range catalog {
		ids[i] = m.ID
	}
	return ids
}

func ByID(id string) (Map, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Map{}, false
}

func Count() int { return len(catalog) }
