package models

// Tier is the access class of a skill.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether the tier is one of the known access classes.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// ParameterSpec describes one named parameter of a skill's input schema.
type ParameterSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// SkillDescriptor is the validated, immutable description of a callable skill.
// Descriptors are constructed once at catalog build time and never mutated;
// a reload replaces the whole catalog snapshot.
type SkillDescriptor struct {
	Name            string                   `json:"name"`
	Description     string                   `json:"description"`
	ParameterSchema map[string]ParameterSpec `json:"parameter_schema"`
	Tier            Tier                     `json:"tier"`
}

// LoadWarning records a skill that was excluded from the catalog during build.
// One broken descriptor must never prevent the rest from loading.
type LoadWarning struct {
	SkillName string `json:"skill_name"`
	Reason    string `json:"reason"`
}
