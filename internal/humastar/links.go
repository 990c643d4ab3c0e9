package humastar

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// StreamTag marks SSE operations. They get no hypermedia links.
const StreamTag = "events"

// Links holds the RFC 8288 Link headers generated from an OpenAPI document,
// keyed by operation path. The zero value is ready to use; call Build once
// all routes are registered.
type Links struct {
	mu    sync.RWMutex
	paths map[string][]string
}

// Build walks the OpenAPI spec and generates hypermedia links.
func (l *Links) Build(api huma.API) {
	oapi := api.OpenAPI()
	links := map[string][]string{}
	add := func(from, to, rel string) {
		val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		if !slices.Contains(links[from], val) {
			links[from] = append(links[from], val)
		}
	}

	// Collection paths have no {param}, item paths do.
	var collections, items []string
	for p, pi := range oapi.Paths {
		if slices.Contains(primaryTags(pi), StreamTag) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	slices.Sort(collections)
	slices.Sort(items)

	// Item → collection and up.
	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			add(item, parent, "collection")
			add(item, parent, "up")
		}
	}

	// Collection → item template, then → entry point.
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				add(coll, item, "item")
			}
		}
		if coll != "/health" {
			add(coll, "/health", "up")
		}
		if pi := oapi.Paths[coll]; pi.Post != nil {
			add(coll, coll, "create-form")
		}
	}

	// Collections sharing a tag link to each other.
	for _, a := range collections {
		for _, b := range collections {
			if a != b && sharedTag(primaryTags(oapi.Paths[a]), primaryTags(oapi.Paths[b])) {
				add(a, b, lastSegment(b))
			}
		}
	}

	// The entry point links to every collection plus the discovery rels.
	for _, coll := range collections {
		if coll != "/health" && !strings.HasPrefix(coll, "/api/web/") {
			add("/health", coll, lastSegment(coll))
		}
	}
	add("/health", "/openapi.json", "describedby")
	add("/health", "/openapi.json", "service-desc")
	add("/health", "/docs", "service-doc")

	for p, pi := range oapi.Paths {
		if slices.Contains(primaryTags(pi), StreamTag) {
			continue
		}
		if ref := getResponseSchemaRef(pi); ref != "" {
			add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	// Document the relationships on the operations themselves.
	for p, pi := range oapi.Paths {
		headers, ok := links[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}

	l.mu.Lock()
	l.paths = links
	l.mu.Unlock()
}

// For returns the generated Link headers of an operation path.
func (l *Links) For(opPath string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paths[opPath]
}

// Transformer returns a Huma Transformer that injects the generated Link
// headers, a self link on item endpoints and actions from [Actor] bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
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
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func sharedTag(a, b []string) bool {
	for _, at := range a {
		if slices.Contains(b, at) {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the operation's success response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  "Related: " + rel,
		}
	}
}

func getResponseSchemaRef(pi *huma.PathItem) string {
	if pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") || resp.Content == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return lastSegment(mt.Schema.Ref)
			}
		}
	}
	return ""
}

// parseLinkHeader splits `<url>; rel="name"`.
func parseLinkHeader(h string) (rel, href string) {
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	params = strings.TrimSpace(params)
	if v, ok := strings.CutPrefix(params, `rel="`); ok {
		rel, _, _ = strings.Cut(v, `"`)
	}
	return rel, href
}
