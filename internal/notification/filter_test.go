package notification

import (
	"errors"
	"testing"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/subscription"
)

func readingValues(t *testing.T, es []resource.Entity) []int64 {
	t.Helper()
	var out []int64
	for _, e := range es {
		out = append(out, e.(resource.Reading).Value)
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEntitiesServicedBy_ResourceID(t *testing.T) {
	site := testSite(1, 1)
	// Filter IDs are the reading type IDs: [2, 1, 2, 3].
	input := entities(
		testReading(100, 2, site, 10),
		testReading(101, 1, site, 11),
		testReading(102, 2, site, 12),
		testReading(103, 3, site, 13),
	)
	sub := subscription.Subscription{ResourceType: resource.TypeReading, ResourceID: ptr(2)}

	got, err := EntitiesServicedBy(sub, resource.TypeReading, input)
	if err != nil {
		t.Fatalf("EntitiesServicedBy() error = %v", err)
	}
	if len(got) != 2 || got[0] != input[0] || got[1] != input[2] {
		t.Errorf("EntitiesServicedBy() = %v, want entities at positions 0 and 2", got)
	}
}

func TestEntitiesServicedBy_ScopedSite(t *testing.T) {
	s1, s2 := testSite(1, 1), testSite(2, 1)
	input := entities(testDOE(10, s1), testDOE(11, s2), testDOE(12, s1))

	sub := subscription.Subscription{ResourceType: resource.TypeDynamicOperatingEnvelope, ScopedSiteID: ptr(1)}
	got, err := EntitiesServicedBy(sub, resource.TypeDynamicOperatingEnvelope, input)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != input[0] || got[1] != input[2] {
		t.Errorf("EntitiesServicedBy() = %v, want DOEs 10 and 12", got)
	}

	sub.ResourceID = ptr(12)
	got, err = EntitiesServicedBy(sub, resource.TypeDynamicOperatingEnvelope, input)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != input[2] {
		t.Errorf("EntitiesServicedBy() with resource id = %v, want DOE 12", got)
	}
}

func TestEntitiesServicedBy_Conditions(t *testing.T) {
	site := testSite(1, 1)
	values := []int64{-10, -15, 20, 25}
	var input []resource.Entity
	for i, v := range values {
		input = append(input, testReading(int64(100+i), 10, site, v))
	}

	tests := []struct {
		name       string
		conditions []subscription.Condition
		want       []int64
	}{
		{
			name: "no conditions",
			want: values,
		},
		{
			name: "unbounded condition",
			conditions: []subscription.Condition{
				{Attribute: subscription.AttributeReadingValue},
			},
			want: values,
		},
		{
			name: "upper only",
			conditions: []subscription.Condition{
				{Attribute: subscription.AttributeReadingValue, UpperThreshold: ptr(20)},
			},
			want: []int64{-10, -15, 20},
		},
		{
			name: "lower only",
			conditions: []subscription.Condition{
				{Attribute: subscription.AttributeReadingValue, LowerThreshold: ptr(-10)},
			},
			want: []int64{-10, 20, 25},
		},
		{
			name: "both conditions must hold",
			conditions: []subscription.Condition{
				{Attribute: subscription.AttributeReadingValue, UpperThreshold: ptr(20)},
				{Attribute: subscription.AttributeReadingValue, LowerThreshold: ptr(-10)},
			},
			want: []int64{-10, 20},
		},
		{
			name: "disjoint conditions match nothing",
			conditions: []subscription.Condition{
				{Attribute: subscription.AttributeReadingValue, UpperThreshold: ptr(-11)},
				{Attribute: subscription.AttributeReadingValue, LowerThreshold: ptr(21)},
			},
			want: nil,
		},
		{
			name: "inclusive bounds",
			conditions: []subscription.Condition{
				{Attribute: subscription.AttributeReadingValue, LowerThreshold: ptr(-15), UpperThreshold: ptr(-10)},
			},
			want: []int64{-10, -15},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := subscription.Subscription{ResourceType: resource.TypeReading, Conditions: tt.conditions}
			got, err := EntitiesServicedBy(sub, resource.TypeReading, input)
			if err != nil {
				t.Fatalf("EntitiesServicedBy() error = %v", err)
			}
			if vals := readingValues(t, got); !equalInts(vals, tt.want) {
				t.Errorf("EntitiesServicedBy() values = %v, want %v", vals, tt.want)
			}
		})
	}
}

func TestEntitiesServicedBy_ConditionsOnNonReadings(t *testing.T) {
	input := entities(testSite(1, 1), testSite(2, 1))
	sub := subscription.Subscription{
		ResourceType: resource.TypeSite,
		Conditions:   []subscription.Condition{{Attribute: subscription.AttributeReadingValue}},
	}
	got, err := EntitiesServicedBy(sub, resource.TypeSite, input)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("conditions on sites matched %d entities, want 0", len(got))
	}
}

func TestEntitiesServicedBy_OtherResourceType(t *testing.T) {
	input := entities(testSite(1, 1))
	sub := subscription.Subscription{ResourceType: resource.TypeReading}
	got, err := EntitiesServicedBy(sub, resource.TypeSite, input)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("reading subscription matched %d sites", len(got))
	}
}

func TestEntitiesServicedBy_Errors(t *testing.T) {
	sub := subscription.Subscription{ResourceType: resource.TypeSite, ResourceID: ptr(1)}
	if _, err := EntitiesServicedBy(sub, 42, nil); !errors.Is(err, resource.ErrUnsupportedResource) {
		t.Errorf("unsupported type error = %v", err)
	}

	input := entities[resource.Entity](testDOE(1, testSite(1, 1)))
	if _, err := EntitiesServicedBy(sub, resource.TypeSite, input); !errors.Is(err, resource.ErrEntityMismatch) {
		t.Errorf("mismatched entity error = %v, want ErrEntityMismatch", err)
	}
}
