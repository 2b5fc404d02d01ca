package humastar

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// TagSSE marks Datastar SSE operations; they get no hypermedia links.
const TagSSE = "viewer"

var (
	linkMu  sync.RWMutex
	linkMap = map[string][]string{}
)

// AutoLinks walks the OpenAPI paths and derives RFC 8288 links between
// collections, their items and the /health entry point. Call it after all
// routes are registered.
func AutoLinks(api huma.API) {
	oapi := api.OpenAPI()
	links := map[string][]string{}
	add := func(from, to, rel string) {
		val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		for _, existing := range links[from] {
			if existing == val {
				return
			}
		}
		links[from] = append(links[from], val)
	}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if hasTag(primaryTags(pi), TagSSE) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}

	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			add(item, parent, "collection")
		}
		if pi := oapi.Paths[item]; pi.Put != nil || pi.Patch != nil {
			add(item, item, "edit")
		}
	}
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				add(coll, item, "item")
			}
		}
		if coll != "/health" {
			add(coll, "/health", "up")
			add("/health", coll, lastSegment(coll))
		}
	}
	add("/health", "/openapi.json", "service-desc")
	add("/health", "/docs", "service-doc")

	linkMu.Lock()
	linkMap = links
	linkMu.Unlock()
}

// Links returns the derived Link header values for an operation path.
func Links(opPath string) []string {
	linkMu.RLock()
	defer linkMu.RUnlock()
	return linkMap[opPath]
}

// LinkTransformer returns a Huma Transformer that injects the derived links,
// a self link on item endpoints, pagination links and action links.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range Links(op.Path) {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete} {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}
