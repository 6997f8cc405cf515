package render

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/calmora/voice-backend/internal/dialog"
	"github.com/calmora/voice-backend/internal/logger"
)

//go:embed views.yaml
var defaultViews []byte

// CatalogRenderer resolves dotted view paths against a YAML catalog and
// interpolates {variable} placeholders from the turn context.
type CatalogRenderer struct {
	log   *logger.Logger
	views map[string]string
}

// New builds a renderer from the embedded catalog, or from the file at
// viewsPath when it is non-empty.
func New(baseLog *logger.Logger, viewsPath string) (*CatalogRenderer, error) {
	raw := defaultViews
	if viewsPath != "" {
		b, err := os.ReadFile(viewsPath)
		if err != nil {
			return nil, fmt.Errorf("read views %s: %w", viewsPath, err)
		}
		raw = b
	}
	return NewFromYAML(baseLog, raw)
}

func NewFromYAML(baseLog *logger.Logger, raw []byte) (*CatalogRenderer, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parse views: %w", err)
	}
	views := make(map[string]string)
	flatten("", tree, views)
	if len(views) == 0 {
		return nil, fmt.Errorf("views catalog is empty")
	}
	return &CatalogRenderer{
		log:   baseLog.With("service", "Renderer"),
		views: views,
	}, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprintf("%v", val)
		}
	}
}

// RenderPath implements dialog.Renderer.
func (r *CatalogRenderer) RenderPath(key string, tc *dialog.TurnContext) (string, error) {
	tpl, ok := r.views[key]
	if !ok {
		return "", fmt.Errorf("view %q not found", key)
	}
	return r.interpolate(tpl, tc), nil
}

// Has reports whether the catalog contains the view path.
func (r *CatalogRenderer) Has(key string) bool {
	_, ok := r.views[key]
	return ok
}

func (r *CatalogRenderer) interpolate(tpl string, tc *dialog.TurnContext) string {
	if !strings.Contains(tpl, "{") {
		return tpl
	}
	for name, value := range variables(tc) {
		tpl = strings.ReplaceAll(tpl, "{"+name+"}", value)
	}
	return tpl
}

// variables computes the interpolation values available to every view.
func variables(tc *dialog.TurnContext) map[string]string {
	vars := map[string]string{
		"packTitle":        "",
		"sleepSingleTitle": "",
		"sleepSoundsTitle": "",
	}
	if tc == nil {
		return vars
	}
	if tc.Model.PackContent != nil {
		vars["packTitle"] = tc.Model.PackContent.Title
	}
	if tc.Model.SleepSingle != nil {
		vars["sleepSingleTitle"] = tc.Model.SleepSingle.Title
	}
	if tc.Model.SleepSounds != nil {
		vars["sleepSoundsTitle"] = tc.Model.SleepSounds.Title
	}
	return vars
}
