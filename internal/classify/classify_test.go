package classify

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mr1hm/abandoned-explorer/internal/models"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want models.Category
	}{
		{"nil tags", nil, models.CategoryAbandoned},
		{"building ruins", map[string]string{"building": "ruins"}, models.CategoryRuins},
		{"building historic", map[string]string{"building": "historic"}, models.CategoryRuins},
		{"historic ruins", map[string]string{"historic": "ruins"}, models.CategoryRuins},
		{"building abandoned", map[string]string{"building": "abandoned"}, models.CategoryAbandoned},
		{"disused building", map[string]string{"disused:building": "school"}, models.CategoryDisused},
		{"demolished building", map[string]string{"demolished:building": "house"}, models.CategoryDemolished},
		{"abandoned yes", map[string]string{"abandoned": "yes"}, models.CategoryAbandoned},
		{"ruins beats abandoned", map[string]string{"building": "ruins", "abandoned": "yes"}, models.CategoryRuins},
		{"disused beats demolished", map[string]string{"disused:building": "yes", "demolished:building": "yes"}, models.CategoryDisused},
		{"abandoned building beats disused", map[string]string{"building": "abandoned", "disused:building": "yes"}, models.CategoryAbandoned},
		{"unmatched", map[string]string{"amenity": "cafe"}, models.CategoryAbandoned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Category(tt.tags))
		})
	}
}

func TestRisk(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want models.RiskLevel
	}{
		{"nil tags", nil, models.RiskLow},
		{"ruins key", map[string]string{"ruins": "yes"}, models.RiskHigh},
		{"collapsed key", map[string]string{"collapsed": "no"}, models.RiskHigh},
		{"demolished key", map[string]string{"demolished": ""}, models.RiskHigh},
		{"abandoned key", map[string]string{"abandoned": "yes"}, models.RiskMedium},
		{"disused building key", map[string]string{"disused:building": "yes"}, models.RiskMedium},
		{"factory", map[string]string{"building": "factory"}, models.RiskHigh},
		{"power plant mixed case", map[string]string{"building": "Power_Plant"}, models.RiskHigh},
		{"hospital", map[string]string{"building": "hospital"}, models.RiskMedium},
		{"house", map[string]string{"building": "house"}, models.RiskLow},
		{"condition beats use", map[string]string{"abandoned": "yes", "building": "factory"}, models.RiskMedium},
		{"high condition beats medium", map[string]string{"abandoned": "yes", "ruins": "yes"}, models.RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Risk(tt.tags))
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want string
	}{
		{"name wins", map[string]string{"name": "Old Mill", "building": "industrial"}, "Abandoned Old Mill"},
		{"building type", map[string]string{"building": "power_plant"}, "Abandoned Power Plant"},
		{"building yes falls through", map[string]string{"building": "yes"}, "Abandoned Building"},
		{"disused building type", map[string]string{"disused:building": "train_station"}, "Abandoned Train Station"},
		{"building key shadows disused", map[string]string{"building": "yes", "disused:building": "school"}, "Abandoned Building"},
		{"historic", map[string]string{"historic": "castle_ruins"}, "Castle Ruins"},
		{"empty name ignored", map[string]string{"name": "", "building": "church"}, "Abandoned Church"},
		{"nothing", nil, "Abandoned Building"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.tags))
		})
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want string
	}{
		{"fallback", nil, "Abandoned building discovered via OpenStreetMap data."},
		{"building yes only", map[string]string{"building": "yes"}, "Abandoned building discovered via OpenStreetMap data."},
		{
			"full",
			map[string]string{
				"building":   "industrial",
				"historic":   "manor",
				"abandoned":  "yes",
				"start_date": "1902",
				"end_date":   "1987",
			},
			"Building type: Industrial. Historic site: Manor. Status: Abandoned. Built: 1902. Abandoned: 1987",
		},
		{"disused status", map[string]string{"disused:building": "retail"}, "Building type: Retail. Status: Disused"},
		{"ruins status", map[string]string{"building": "ruins"}, "Building type: Ruins. Status: Ruins"},
		{"abandoned status wins", map[string]string{"abandoned": "no", "disused:building": "yes"}, "Status: Abandoned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Description(tt.tags))
		})
	}
}

func TestBuildingType(t *testing.T) {
	assert.Equal(t, "factory", BuildingType(map[string]string{"building": "factory"}))
	assert.Equal(t, "school", BuildingType(map[string]string{"disused:building": "school"}))
	assert.Equal(t, "yes", BuildingType(map[string]string{"building": "yes", "disused:building": "school"}))
	assert.Equal(t, "unknown", BuildingType(nil))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Power Plant", Humanize("power_plant"))
	assert.Equal(t, "Train Station", Humanize("TRAIN_STATION"))
	assert.Equal(t, "Farm", Humanize("farm"))
	assert.Equal(t, "", Humanize(""))
}

// Every classifier must produce a valid, non-empty result for arbitrary input.
func TestClassifiersAreTotal(t *testing.T) {
	keys := []string{
		"building", "disused:building", "demolished:building", "historic", "abandoned",
		"ruins", "collapsed", "demolished", "name", "start_date", "end_date", "amenity",
	}
	values := []string{"", "yes", "no", "ruins", "historic", "abandoned", "factory", "power_plant", "school", "x_y_z"}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		tags := make(map[string]string)
		for n := rng.IntN(len(keys)); n > 0; n-- {
			tags[keys[rng.IntN(len(keys))]] = values[rng.IntN(len(values))]
		}

		assert.True(t, Category(tags).Valid(), "category for %v", tags)
		assert.True(t, Risk(tags).Valid(), "risk for %v", tags)
		assert.NotEmpty(t, Title(tags), "title for %v", tags)
		assert.NotEmpty(t, Description(tags), "description for %v", tags)
		assert.NotEmpty(t, BuildingType(tags), "building type for %v", tags)
	}
}
