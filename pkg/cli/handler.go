// Package cli provides the command handling shared by the ipogen commands
// and the MCP server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nomagicln/ipogen/pkg/config"
	"github.com/nomagicln/ipogen/pkg/generator"
	"github.com/nomagicln/ipogen/pkg/ipo2"
	"github.com/nomagicln/ipogen/pkg/model"
	"github.com/nomagicln/ipogen/pkg/store"
)

// Handler runs generations with the user's settings and cache.
type Handler struct {
	settings *config.Settings
	cache    *store.Store
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCache enables the covering-array cache.
func WithCache(s *store.Store) HandlerOption {
	return func(h *Handler) {
		h.cache = s
	}
}

// WithLogger sets the logger passed to the engines.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a handler. Nil settings mean the defaults of a fresh
// configuration directory.
func NewHandler(settings *config.Settings, opts ...HandlerOption) *Handler {
	if settings == nil {
		settings = &config.Settings{
			DefaultStrength: 2,
			DefaultEngine:   generator.EngineIPO2,
			Output:          "table",
			Optimizer:       config.OptimizerSettings{SearchBudget: 4096},
		}
	}
	h := &Handler{
		settings: settings,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Settings returns the settings in use.
func (h *Handler) Settings() *config.Settings {
	return h.settings
}

// GenerateOptions overrides model and settings values for one generation.
type GenerateOptions struct {
	Strength int
	Engine   string
	NoCache  bool
	Progress func(ipo2.Progress)
}

// Outcome is the result of a generation together with its inputs.
type Outcome struct {
	Model   *model.Model
	Hash    string
	Request generator.Request
	Array   *generator.CoveringArray
	Cached  bool
	RunID   string
}

// Prepare resolves the effective model and builds the generation request.
func (h *Handler) Prepare(m *model.Model, opts GenerateOptions) (*model.Model, generator.Request, error) {
	effective := *m
	if opts.Strength != 0 {
		effective.Strength = opts.Strength
	}
	if opts.Engine != "" {
		effective.Engine = opts.Engine
	}
	resolved := effective.WithDefaults(h.settings.DefaultStrength, h.settings.DefaultEngine)
	if err := resolved.Validate(); err != nil {
		return nil, generator.Request{}, err
	}

	fs, err := resolved.FactorSpace()
	if err != nil {
		return nil, generator.Request{}, err
	}
	checker, err := resolved.Checker()
	if err != nil {
		return nil, generator.Request{}, err
	}
	return resolved, generator.Request{Factors: fs, Strength: resolved.Strength, Checker: checker}, nil
}

// Generate builds the covering array of m, reusing a cached run of an
// identical model unless opts.NoCache is set.
func (h *Handler) Generate(ctx context.Context, m *model.Model, opts GenerateOptions) (*Outcome, error) {
	resolved, req, err := h.Prepare(m, opts)
	if err != nil {
		return nil, err
	}

	var params []string
	if resolved.Engine == generator.EngineIPO2 {
		params = append(params, fmt.Sprintf("search_budget=%d", h.settings.Optimizer.SearchBudget))
	}
	hash, err := resolved.Hash(params...)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Model: resolved, Hash: hash, Request: req}

	if h.cache != nil && !opts.NoCache {
		rec, err := h.cache.Lookup(hash)
		switch {
		case err == nil:
			ca, err := rec.CoveringArray(req.Factors)
			if err == nil {
				h.logger.Debug("using cached run", "id", rec.ID, "model", resolved.Name)
				out.Array, out.Cached, out.RunID = ca, true, rec.ID
				return out, nil
			}
			h.logger.Warn("ignoring unreadable cached run", "id", rec.ID, "error", err)
		case !errors.Is(err, store.ErrNotFound):
			h.logger.Warn("cache lookup failed", "error", err)
		}
	}

	if h.settings.Timeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.settings.Timeout.Duration)
		defer cancel()
	}

	engine, err := generator.NewEngine(resolved.Engine, generator.Options{
		Logger:       h.logger,
		Progress:     opts.Progress,
		SearchBudget: h.settings.Optimizer.SearchBudget,
	})
	if err != nil {
		return nil, err
	}

	ca, err := generator.Generate(ctx, engine, req)
	if err != nil {
		return nil, err
	}
	out.Array = ca
	out.RunID = ca.ID

	if h.cache != nil {
		data, err := resolved.Marshal()
		if err == nil {
			_, err = h.cache.Save(hash, resolved.Name, data, req.Factors, ca)
		}
		if err != nil {
			h.logger.Warn("failed to cache run", "error", err)
		}
	}
	return out, nil
}

// Verify checks the outcome's covering array against its request.
func (h *Handler) Verify(out *Outcome) (*generator.Report, error) {
	if out == nil {
		return nil, fmt.Errorf("nothing to verify")
	}
	return generator.Verify(out.Request, out.Array)
}
