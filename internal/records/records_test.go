package records

import (
	"reflect"
	"testing"

	"github.com/kheast/cb-config/internal/schema"
)

func testConfig() *schema.ChatbotConfig {
	return &schema.ChatbotConfig{
		DataContext: schema.DataContext{
			Datasources: []schema.Datasource{
				{
					Name:               "Pipeline",
					PortalDatasourceID: "ds-001",
					Description:        "Open opportunities",
					PrimaryEntity:      "opportunity",
					RefreshFrequency:   "daily",
				},
				{
					Name:               "Accounts",
					PortalDatasourceID: "ds-002",
					Description:        "Customer accounts",
					PrimaryEntity:      "account",
					RefreshFrequency:   "weekly",
				},
			},
			SemanticLayer: schema.SemanticLayer{
				BusinessTerms: map[string]string{
					"MRR": "Monthly recurring revenue",
					"ARR": "Annual recurring revenue",
				},
				FieldMappings: map[string]schema.FieldMapping{
					"stage": {
						BusinessName: "Deal Stage",
						Description:  "Where the deal sits in the pipeline",
						Format:       "text",
						ValidValues:  []string{"prospect", "negotiation", "closed"},
					},
					"amount": {
						BusinessName: "Deal Amount",
						Description:  "Contract value in USD",
						Format:       "currency",
					},
				},
			},
		},
	}
}

func TestExplode(t *testing.T) {
	c := Explode(testConfig())

	if len(c.Datasources) != 2 {
		t.Fatalf("datasources = %d, want 2", len(c.Datasources))
	}
	// list order preserved
	if c.Datasources[0].Name != "Pipeline" || c.Datasources[1].Name != "Accounts" {
		t.Errorf("datasource order = %q, %q", c.Datasources[0].Name, c.Datasources[1].Name)
	}
	if c.Datasources[0].PortalDatasourceID != "ds-001" || c.Datasources[0].RefreshFrequency != "daily" {
		t.Errorf("datasource fields not copied: %+v", c.Datasources[0])
	}

	// mapping sections come out key-sorted
	if len(c.BusinessTerms) != 2 || c.BusinessTerms[0].Term != "ARR" || c.BusinessTerms[1].Term != "MRR" {
		t.Errorf("business terms = %+v", c.BusinessTerms)
	}
	if len(c.FieldMappings) != 2 || c.FieldMappings[0].FieldName != "amount" || c.FieldMappings[1].FieldName != "stage" {
		t.Errorf("field mappings = %+v", c.FieldMappings)
	}

	if c.FieldMappings[1].ValidValues != "prospect,negotiation,closed" {
		t.Errorf("valid_values = %q, want comma-joined", c.FieldMappings[1].ValidValues)
	}
	if c.FieldMappings[0].ValidValues != "" {
		t.Errorf("absent valid_values should encode empty, got %q", c.FieldMappings[0].ValidValues)
	}
}

func TestFlattenExplodeInverse(t *testing.T) {
	src := testConfig()
	children := Explode(src)

	var dst schema.ChatbotConfig
	Flatten(children, &dst)

	// datasources compared as sets: flatten orders by name
	wantDS := map[string]schema.Datasource{}
	for _, ds := range src.DataContext.Datasources {
		wantDS[ds.PortalDatasourceID] = ds
	}
	if len(dst.DataContext.Datasources) != len(wantDS) {
		t.Fatalf("datasources = %d, want %d", len(dst.DataContext.Datasources), len(wantDS))
	}
	for _, ds := range dst.DataContext.Datasources {
		if !reflect.DeepEqual(ds, wantDS[ds.PortalDatasourceID]) {
			t.Errorf("datasource %s changed: %+v", ds.PortalDatasourceID, ds)
		}
	}

	if !reflect.DeepEqual(dst.DataContext.SemanticLayer.BusinessTerms, src.DataContext.SemanticLayer.BusinessTerms) {
		t.Errorf("business terms changed: %+v", dst.DataContext.SemanticLayer.BusinessTerms)
	}
	if !reflect.DeepEqual(dst.DataContext.SemanticLayer.FieldMappings, src.DataContext.SemanticLayer.FieldMappings) {
		t.Errorf("field mappings changed: %+v", dst.DataContext.SemanticLayer.FieldMappings)
	}
}

func TestFlattenOrdersDatasourcesByName(t *testing.T) {
	children := Children{
		Datasources: []DatasourceRecord{
			{Name: "Zulu", PortalDatasourceID: "ds-z"},
			{Name: "Alpha", PortalDatasourceID: "ds-a"},
		},
	}

	var cfg schema.ChatbotConfig
	Flatten(children, &cfg)

	got := cfg.DataContext.Datasources
	if got[0].Name != "Alpha" || got[1].Name != "Zulu" {
		t.Errorf("order = %q, %q, want Alpha, Zulu", got[0].Name, got[1].Name)
	}
}

func TestFlattenReplacesExistingSections(t *testing.T) {
	cfg := testConfig()
	Flatten(Children{
		BusinessTerms: []BusinessTermRecord{{Term: "NRR", Definition: "Net revenue retention"}},
	}, cfg)

	if len(cfg.DataContext.Datasources) != 0 {
		t.Errorf("datasources should be replaced, got %d", len(cfg.DataContext.Datasources))
	}
	if len(cfg.DataContext.SemanticLayer.BusinessTerms) != 1 {
		t.Errorf("business terms = %v", cfg.DataContext.SemanticLayer.BusinessTerms)
	}
	if cfg.DataContext.SemanticLayer.BusinessTerms["NRR"] != "Net revenue retention" {
		t.Errorf("definition lost")
	}
}

func TestSplitValuesRoundTrip(t *testing.T) {
	tests := []struct {
		joined string
		want   []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := splitValues(tt.joined); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitValues(%q) = %v, want %v", tt.joined, got, tt.want)
		}
	}
}
