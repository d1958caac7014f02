// Package completion provides shell completion support for ipogen.
package completion

import (
	"context"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/nomagicln/ipogen/pkg/config"
	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/model"
	"github.com/nomagicln/ipogen/pkg/render"
	"github.com/nomagicln/ipogen/pkg/store"
)

// Provider provides completion suggestions for commands and arguments.
type Provider struct {
	configMgr *config.Manager
	cache     *store.Store

	mu    sync.Mutex
	specs map[string]*openapi3.T
}

// NewProvider creates a new completion provider. cache may be nil.
func NewProvider(configMgr *config.Manager, cache *store.Store) *Provider {
	return &Provider{
		configMgr: configMgr,
		cache:     cache,
		specs:     make(map[string]*openapi3.T),
	}
}

// CompleteModelNames returns the saved model names starting with prefix.
func (p *Provider) CompleteModelNames(prefix string) []string {
	if p.configMgr == nil {
		return nil
	}
	names, err := p.configMgr.ListModels()
	if err != nil {
		return nil
	}
	return filter(names, prefix)
}

// CompleteEngines returns the engine names.
func (p *Provider) CompleteEngines(prefix string) []string {
	return filter(generator.EngineNames(), prefix)
}

// CompleteFormats returns the output formats.
func (p *Provider) CompleteFormats(prefix string) []string {
	return filter(render.Formats, prefix)
}

// CompleteOperations returns the operation ids of the OpenAPI document at specPath.
func (p *Provider) CompleteOperations(specPath, prefix string) []string {
	doc, err := p.loadSpec(specPath)
	if err != nil {
		return nil
	}
	return filter(model.Operations(doc), prefix)
}

// CompleteRunIDs returns the ids of cached runs, newest first.
func (p *Provider) CompleteRunIDs(prefix string) []string {
	if p.cache == nil {
		return nil
	}
	runs, err := p.cache.List()
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return filter(ids, prefix)
}

func (p *Provider) loadSpec(path string) (*openapi3.T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if doc, ok := p.specs[path]; ok {
		return doc, nil
	}
	doc, err := model.LoadOpenAPI(context.Background(), path)
	if err != nil {
		return nil, err
	}
	p.specs[path] = doc
	return doc, nil
}

// matchesPrefix checks if a string matches the given prefix.
func matchesPrefix(s, prefix string) bool {
	return prefix == "" || strings.HasPrefix(s, prefix)
}

func filter(values []string, prefix string) []string {
	var matches []string
	for _, v := range values {
		if matchesPrefix(v, prefix) {
			matches = append(matches, v)
		}
	}
	return matches
}
