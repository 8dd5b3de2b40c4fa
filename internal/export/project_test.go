package export

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"geoexport/internal/domain"
)

func testFields() []domain.Field {
	return []domain.Field{
		{Name: "Site", Alias: "Site Reference", Type: domain.FieldString},
		{Name: "Company", Alias: "Company", Type: domain.FieldString},
		{Name: "Area", Alias: "Area", Type: domain.FieldDouble},
	}
}

func TestProject_RemovesUnknownKeepsOrder(t *testing.T) {
	cleaned, missing := Project("Site,Bogus,Area,AlsoBogus", testFields())
	assert.Equal(t, "Site,Area", cleaned)
	assert.Equal(t, []string{"Bogus", "AlsoBogus"}, missing)
}

func TestProject_LiteralsPassThroughUnvalidated(t *testing.T) {
	cleaned, missing := Project(`"SiteRef","Company"`, testFields())
	assert.Equal(t, `"SiteRef","Company"`, cleaned)
	assert.Empty(t, missing)
}

func TestProject_MixedLiteralsAndFields(t *testing.T) {
	cleaned, missing := Project(`"Const",Site,Missing`, testFields())
	assert.Equal(t, `"Const",Site`, cleaned)
	assert.Equal(t, []string{"Missing"}, missing)
}

func TestProject_SemicolonSeparators(t *testing.T) {
	cleaned, missing := Project("Site;Area", testFields())
	assert.Equal(t, "Site,Area", cleaned)
	assert.Empty(t, missing)
}

func TestProject_TrimsWhitespace(t *testing.T) {
	cleaned, _ := Project("  Site , Area  ", testFields())
	assert.Equal(t, "Site,Area", cleaned)
}

func TestProject_AllUnknownYieldsEmptySpec(t *testing.T) {
	cleaned, missing := Project("Nope,AlsoNope", testFields())
	assert.Empty(t, cleaned)
	assert.Len(t, missing, 2)
}

func TestProject_MatchesByAlias(t *testing.T) {
	cleaned, missing := Project("Site Reference", testFields())
	assert.Equal(t, "Site Reference", cleaned)
	assert.Empty(t, missing)
}

func TestFieldExists_CaseInsensitiveNameThenAlias(t *testing.T) {
	fields := testFields()
	assert.True(t, FieldExists(fields, "site"))
	assert.True(t, FieldExists(fields, "SITE REFERENCE"))
	assert.False(t, FieldExists(fields, "Elevation"))
}

func TestFilterExisting(t *testing.T) {
	kept, missing := filterExisting(testFields(), []string{"Area", "Nope", "Site"})
	assert.Equal(t, []string{"Area", "Site"}, kept)
	assert.Equal(t, []string{"Nope"}, missing)
}
