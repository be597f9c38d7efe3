package state

import (
	"fmt"
	"regexp"

	"scenesmith/internal/textutil"
)

const sceneSlugLimit = 40

var canonicalSceneID = regexp.MustCompile(`^scene_[0-9]{2,}_[a-z0-9]+(?:_[a-z0-9]+)*$`)

// IsCanonicalSceneID reports whether id has the scene_<NN>_<slug> form.
func IsCanonicalSceneID(id string) bool {
	return canonicalSceneID.MatchString(id)
}

// CanonicalSceneID builds the ID for the scene at 1-based position index.
func CanonicalSceneID(index int, title string) string {
	if index < 1 {
		index = 1
	}
	slug := textutil.Slugify(title, sceneSlugLimit)
	if slug == "" {
		slug = "scene"
	}
	return fmt.Sprintf("scene_%02d_%s", index, slug)
}

// uniqueID appends a numeric suffix until id is unused.
func uniqueID(id string, taken map[string]struct{}) string {
	if _, ok := taken[id]; !ok {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
