package resource

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestResourceType_StringAndParse(t *testing.T) {
	for _, rt := range AllTypes() {
		t.Run(rt.String(), func(t *testing.T) {
			if !rt.Valid() {
				t.Errorf("%v.Valid() = false", rt)
			}
			got, err := ParseResourceType(rt.String())
			if err != nil {
				t.Fatalf("ParseResourceType(%q) error = %v", rt.String(), err)
			}
			if got != rt {
				t.Errorf("ParseResourceType(%q) = %v, want %v", rt.String(), got, rt)
			}
		})
	}

	if got, err := ParseResourceType(" Tariff_Generated_Rate "); err != nil || got != TypeTariffGeneratedRate {
		t.Errorf("ParseResourceType() should trim and ignore case, got %v, %v", got, err)
	}

	if _, err := ParseResourceType("end_device"); !errors.Is(err, ErrUnsupportedResource) {
		t.Errorf("ParseResourceType(end_device) error = %v, want ErrUnsupportedResource", err)
	}

	if ResourceType(99).Valid() {
		t.Error("ResourceType(99).Valid() = true")
	}
	if got := ResourceType(99).String(); got != "resource_type(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestEntity_ResourceTypeAndOwner(t *testing.T) {
	site := Site{SiteID: 3, AggregatorID: 7}
	tests := []struct {
		entity Entity
		want   ResourceType
	}{
		{site, TypeSite},
		{Reading{ReadingType: SiteReadingType{Site: site}}, TypeReading},
		{DynamicOperatingEnvelope{Site: site}, TypeDynamicOperatingEnvelope},
		{TariffGeneratedRate{Site: site}, TypeTariffGeneratedRate},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := tt.entity.ResourceType(); got != tt.want {
				t.Errorf("ResourceType() = %v, want %v", got, tt.want)
			}
			if got := tt.entity.Owner(); got.SiteID != 3 || got.AggregatorID != 7 {
				t.Errorf("Owner() = %+v, want site 3 of aggregator 7", got)
			}
		})
	}
}

func TestTariffGeneratedRate_Price(t *testing.T) {
	rate := TariffGeneratedRate{
		ImportActivePrice:   decimal.RequireFromString("0.11"),
		ExportActivePrice:   decimal.RequireFromString("-0.02"),
		ImportReactivePrice: decimal.RequireFromString("0.033"),
		ExportReactivePrice: decimal.RequireFromString("0.004"),
	}
	want := map[PriceType]string{
		PriceImportActive:   "0.11",
		PriceExportActive:   "-0.02",
		PriceImportReactive: "0.033",
		PriceExportReactive: "0.004",
	}

	for _, pt := range PriceTypes() {
		got, err := rate.Price(pt)
		if err != nil {
			t.Fatalf("Price(%v) error = %v", pt, err)
		}
		if got.String() != want[pt] {
			t.Errorf("Price(%v) = %s, want %s", pt, got, want[pt])
		}
	}

	if _, err := rate.Price(PriceType(0)); err == nil {
		t.Error("Price(0) should fail")
	}
}

func TestTariffGeneratedRate_LocalStartDate(t *testing.T) {
	start := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		timezone string
		want     string
	}{
		{"UTC", "2026-03-01"},
		{"Australia/Brisbane", "2026-03-02"}, // UTC+10
		{"America/New_York", "2026-03-01"},
		{"Not/AZone", "2026-03-01"}, // falls back to UTC
	}

	for _, tt := range tests {
		t.Run(tt.timezone, func(t *testing.T) {
			rate := TariffGeneratedRate{StartTime: start, Site: Site{TimezoneID: tt.timezone}}
			if got := rate.LocalStartDate(); got != tt.want {
				t.Errorf("LocalStartDate() = %q, want %q", got, tt.want)
			}
		})
	}
}
