package neocities

import (
	"path"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// freeTierExtensions is the set of file extensions allowed on free-plan
// sites, per the published Neocities file type restrictions. Anything else
// needs a paid (supporter) plan.
var freeTierExtensions = mapset.NewSet(strings.Fields(`
	asc atom bin css csv dae eot epub geojson gif gltf htm html ico jpeg jpg js json key kml
	knowl less manifest markdown md mf mid midi mtl obj opml otf pdf pgp png rdf rss sass scss
	svg text tsv ttf txt webapp webmanifest webp woff woff2 xcf xml
`)...)

// AllowedFreeExtension reports whether the file at p can be hosted on a
// free-plan site. Extension comparison is case-insensitive; files without an
// extension are not allowed.
func AllowedFreeExtension(p string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if ext == "" {
		return false
	}
	return freeTierExtensions.Contains(ext)
}
