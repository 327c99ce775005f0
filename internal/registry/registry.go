package registry

import (
	"sort"
	"sync/atomic"

	"github.com/jellydator/validation"
	"github.com/org/skillgate/internal/skills"
	"github.com/org/skillgate/pkg/models"
	"github.com/rs/zerolog/log"
)

// Entry is one resolved catalog slot: an immutable descriptor plus its
// opaque handler reference.
type Entry struct {
	Descriptor models.SkillDescriptor
	Handler    skills.Handler
}

// Catalog is an immutable snapshot of the registered skills. It is built
// once and shared freely across goroutines without locking; a reload swaps
// the whole snapshot, never mutates one in place.
type Catalog struct {
	byName  map[string]Entry
	ordered []models.SkillDescriptor
}

// Get returns the catalog entry for a skill name.
func (c *Catalog) Get(name string) (Entry, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// List returns a stable, name-sorted snapshot of descriptors, optionally
// filtered by tier (empty filter lists everything).
func (c *Catalog) List(tierFilter models.Tier) []models.SkillDescriptor {
	out := make([]models.SkillDescriptor, 0, len(c.ordered))
	for _, d := range c.ordered {
		if tierFilter != "" && d.Tier != tierFilter {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Len returns the number of skills in the catalog.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// Build validates every registration and assembles a catalog. A descriptor
// that fails validation, or whose name collides with an already-registered
// skill, is excluded and recorded as a LoadWarning; one broken skill never
// prevents the rest from loading.
//
// Duplicate names resolve first-wins: the earliest registration keeps the
// slot and later ones are rejected.
func Build(regs []skills.Registration) (*Catalog, []models.LoadWarning) {
	byName := make(map[string]Entry, len(regs))
	var warnings []models.LoadWarning

	for _, reg := range regs {
		d := reg.Descriptor
		if err := validateDescriptor(d); err != nil {
			warnings = append(warnings, models.LoadWarning{SkillName: d.Name, Reason: err.Error()})
			log.Warn().Str("skill", d.Name).Err(err).Msg("skipping invalid skill descriptor")
			continue
		}
		if reg.Handler == nil {
			warnings = append(warnings, models.LoadWarning{SkillName: d.Name, Reason: "handler is nil"})
			log.Warn().Str("skill", d.Name).Msg("skipping skill with nil handler")
			continue
		}
		if _, exists := byName[d.Name]; exists {
			warnings = append(warnings, models.LoadWarning{SkillName: d.Name, Reason: "duplicate skill name"})
			log.Warn().Str("skill", d.Name).Msg("skipping duplicate skill name")
			continue
		}
		byName[d.Name] = Entry{Descriptor: d, Handler: reg.Handler}
	}

	ordered := make([]models.SkillDescriptor, 0, len(byName))
	for _, e := range byName {
		ordered = append(ordered, e.Descriptor)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	return &Catalog{byName: byName, ordered: ordered}, warnings
}

func validateDescriptor(d models.SkillDescriptor) error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&d.Description, validation.Required),
		validation.Field(&d.ParameterSchema, validation.Required),
		validation.Field(&d.Tier, validation.Required, validation.In(models.TierFree, models.TierPremium)),
	)
}

// Registry holds the live catalog snapshot and rebuilds it from a source
// function on demand. The hot read path is a single atomic load.
type Registry struct {
	source  func() []skills.Registration
	current atomic.Pointer[Catalog]
}

// New builds the initial catalog from source and returns the registry
// along with any load warnings.
func New(source func() []skills.Registration) (*Registry, []models.LoadWarning) {
	r := &Registry{source: source}
	catalog, warnings := Build(source())
	r.current.Store(catalog)
	return r, warnings
}

// Snapshot returns the current immutable catalog.
func (r *Registry) Snapshot() *Catalog {
	return r.current.Load()
}

// Reload rebuilds the catalog from the source and atomically swaps it in.
func (r *Registry) Reload() []models.LoadWarning {
	catalog, warnings := Build(r.source())
	r.current.Store(catalog)
	log.Info().Int("skills", catalog.Len()).Int("warnings", len(warnings)).Msg("catalog reloaded")
	return warnings
}
