package resource

import (
	"fmt"
	"strings"
)

// ResourceType identifies one of the watched resource kinds.
type ResourceType int

// Watched resource kinds. The values are persisted on subscriptions.
const (
	TypeSite ResourceType = iota + 1
	TypeReading
	TypeDynamicOperatingEnvelope
	TypeTariffGeneratedRate
)

var resourceTypeNames = map[ResourceType]string{
	TypeSite:                     "site",
	TypeReading:                  "reading",
	TypeDynamicOperatingEnvelope: "dynamic_operating_envelope",
	TypeTariffGeneratedRate:      "tariff_generated_rate",
}

// AllTypes lists the watched resource kinds in declaration order.
func AllTypes() []ResourceType {
	return []ResourceType{TypeSite, TypeReading, TypeDynamicOperatingEnvelope, TypeTariffGeneratedRate}
}

// Valid reports whether t is a watched resource kind.
func (t ResourceType) Valid() bool {
	_, ok := resourceTypeNames[t]
	return ok
}

func (t ResourceType) String() string {
	if name, ok := resourceTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("resource_type(%d)", int(t))
}

// ParseResourceType accepts the names produced by String, case-insensitively.
func ParseResourceType(s string) (ResourceType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range resourceTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedResource, s)
}

// PriceType is one of the four price components carried by a generated rate.
type PriceType int

// Price components, in the order their notifications are produced.
const (
	PriceImportActive PriceType = iota + 1
	PriceExportActive
	PriceImportReactive
	PriceExportReactive
)

// PriceTypes returns the four price components in fan-out order.
func PriceTypes() []PriceType {
	return []PriceType{PriceImportActive, PriceExportActive, PriceImportReactive, PriceExportReactive}
}

func (p PriceType) String() string {
	switch p {
	case PriceImportActive:
		return "import_active"
	case PriceExportActive:
		return "export_active"
	case PriceImportReactive:
		return "import_reactive"
	case PriceExportReactive:
		return "export_reactive"
	default:
		return fmt.Sprintf("price_type(%d)", int(p))
	}
}
