package validate

import (
	"fmt"
	"strings"

	"scenesmith/internal/pysource"
)

// SceneClassSuffix is the base-class suffix that marks a renderable scene.
const SceneClassSuffix = "Scene"

// InferSceneClass returns the single module-level class deriving from a
// base whose name ends in Scene. Zero or several candidates is an error; the
// caller decides how to record it.
func InferSceneClass(source []byte) (string, error) {
	src, err := pysource.Parse(source)
	if err != nil {
		return "", err
	}
	defer src.Close()
	if err := src.Err(); err != nil {
		return "", err
	}
	var names []string
	for _, class := range src.Classes() {
		for _, base := range class.Bases {
			base = base[strings.LastIndex(base, ".")+1:]
			if strings.HasSuffix(base, SceneClassSuffix) {
				names = append(names, class.Name)
				break
			}
		}
	}
	switch len(names) {
	case 0:
		return "", fmt.Errorf("no class deriving from a *%s base", SceneClassSuffix)
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("several scene classes (%s); cannot tell which one renders", strings.Join(names, ", "))
	}
}
