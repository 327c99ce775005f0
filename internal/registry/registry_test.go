package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/org/skillgate/internal/skills"
	"github.com/org/skillgate/pkg/models"
)

func validReg(name string, tier models.Tier) skills.Registration {
	return skills.Registration{
		Descriptor: models.SkillDescriptor{
			Name:        name,
			Description: "test skill " + name,
			Tier:        tier,
			ParameterSchema: map[string]models.ParameterSpec{
				"x": {Type: "number", Required: true},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"skill": name}, nil
		},
	}
}

func TestBuildValidCatalog(t *testing.T) {
	catalog, warnings := Build([]skills.Registration{
		validReg("b_skill", models.TierFree),
		validReg("a_skill", models.TierPremium),
	})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if catalog.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", catalog.Len())
	}
	if _, ok := catalog.Get("a_skill"); !ok {
		t.Error("a_skill should be in catalog")
	}

	// List is name-sorted
	all := catalog.List("")
	if all[0].Name != "a_skill" || all[1].Name != "b_skill" {
		t.Errorf("List not sorted: %v", all)
	}

	premium := catalog.List(models.TierPremium)
	if len(premium) != 1 || premium[0].Name != "a_skill" {
		t.Errorf("tier filter wrong: %v", premium)
	}
}

func TestBuildExcludesInvalidDescriptors(t *testing.T) {
	missingName := validReg("", models.TierFree)
	badTier := validReg("bad_tier", "gold")
	noSchema := validReg("no_schema", models.TierFree)
	noSchema.Descriptor.ParameterSchema = nil
	nilHandler := validReg("nil_handler", models.TierFree)
	nilHandler.Handler = nil

	catalog, warnings := Build([]skills.Registration{
		validReg("good", models.TierFree),
		missingName,
		badTier,
		noSchema,
		nilHandler,
	})

	if catalog.Len() != 1 {
		t.Errorf("expected 1 valid entry, got %d", catalog.Len())
	}
	if len(warnings) != 4 {
		t.Errorf("expected 4 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestBuildDuplicateFirstWins(t *testing.T) {
	first := validReg("dup", models.TierFree)
	second := validReg("dup", models.TierPremium)

	catalog, warnings := Build([]skills.Registration{first, second})

	if catalog.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", catalog.Len())
	}
	if len(warnings) != 1 || warnings[0].Reason != "duplicate skill name" {
		t.Fatalf("expected 1 duplicate warning, got %v", warnings)
	}
	e, _ := catalog.Get("dup")
	if e.Descriptor.Tier != models.TierFree {
		t.Error("first registration should win on duplicate names")
	}
}

func TestBuildManyDescriptorsWithFewBroken(t *testing.T) {
	var regs []skills.Registration
	for i := 0; i < 1500; i++ {
		regs = append(regs, validReg(fmt.Sprintf("skill_%04d", i), models.TierFree))
	}
	// 3 descriptors share a duplicate name
	regs = append(regs, validReg("skill_0001", models.TierFree))
	regs = append(regs, validReg("skill_0002", models.TierFree))
	regs = append(regs, validReg("skill_0003", models.TierFree))

	catalog, warnings := Build(regs)
	if catalog.Len() != 1500 {
		t.Errorf("expected 1500 entries (first-wins), got %d", catalog.Len())
	}
	if len(warnings) != 3 {
		t.Errorf("expected 3 warnings, got %d", len(warnings))
	}
}

func TestRegistryReloadSwapsSnapshot(t *testing.T) {
	regs := []skills.Registration{validReg("one", models.TierFree)}
	source := func() []skills.Registration { return regs }

	r, warnings := New(source)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	before := r.Snapshot()
	if before.Len() != 1 {
		t.Fatalf("expected 1 skill, got %d", before.Len())
	}

	regs = append(regs, validReg("two", models.TierPremium))
	r.Reload()

	after := r.Snapshot()
	if after.Len() != 2 {
		t.Errorf("expected 2 skills after reload, got %d", after.Len())
	}
	// Readers holding the old snapshot keep a consistent view.
	if before.Len() != 1 {
		t.Error("previous snapshot must not be mutated by reload")
	}
}
