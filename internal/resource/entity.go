package resource

import (
	"fmt"
	"time"
	_ "time/tzdata" // Site timezones must resolve without host zoneinfo

	"github.com/shopspring/decimal"
)

// Entity is a changed or deleted row of one of the watched resources.
//
// The set of implementations is closed: Site, Reading,
// DynamicOperatingEnvelope and TariffGeneratedRate. Code that needs
// per-kind behaviour type-switches over them.
type Entity interface {
	// ResourceType reports which watched kind the entity is.
	ResourceType() ResourceType

	// Owner is the site the entity belongs to. For a Site it is itself.
	Owner() Site

	// Changed is when the entity was last written.
	Changed() time.Time

	sealed()
}

// Site is a registered end device owned by exactly one aggregator.
type Site struct {
	SiteID         int64
	AggregatorID   int64
	NMI            string
	LFDI           string
	SFDI           int64
	DeviceCategory int64
	TimezoneID     string
	ChangedTime    time.Time
}

// Location resolves the site's timezone. Unknown zones fall back to UTC.
func (s Site) Location() *time.Location {
	loc, err := time.LoadLocation(s.TimezoneID)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SiteReadingType describes what a Reading measures.
type SiteReadingType struct {
	SiteReadingTypeID      int64
	Site                   Site
	UOM                    int
	DataQualifier          int
	FlowDirection          int
	Kind                   int
	Phase                  int
	PowerOfTenMultiplier   int
	DefaultIntervalSeconds int
	ChangedTime            time.Time
}

// Reading is one measured value for a site reading type.
type Reading struct {
	SiteReadingID     int64
	ReadingType       SiteReadingType
	LocalID           *int64
	QualityFlags      int
	TimePeriodStart   time.Time
	TimePeriodSeconds int64
	Value             int64
	ChangedTime       time.Time
}

// DynamicOperatingEnvelope is a time bounded power limit applied to a site.
type DynamicOperatingEnvelope struct {
	DynamicOperatingEnvelopeID int64
	Site                       Site
	StartTime                  time.Time
	DurationSeconds            int64
	ImportLimitActiveWatts     decimal.Decimal
	ExportLimitWatts           decimal.Decimal
	ChangedTime                time.Time
}

// TariffGeneratedRate is a site specific price for one interval of a tariff.
type TariffGeneratedRate struct {
	TariffGeneratedRateID int64
	TariffID              int64
	Site                  Site
	StartTime             time.Time
	DurationSeconds       int64
	ImportActivePrice     decimal.Decimal
	ExportActivePrice     decimal.Decimal
	ImportReactivePrice   decimal.Decimal
	ExportReactivePrice   decimal.Decimal
	ChangedTime           time.Time
}

// Price returns the component of the rate selected by p.
func (r TariffGeneratedRate) Price(p PriceType) (decimal.Decimal, error) {
	switch p {
	case PriceImportActive:
		return r.ImportActivePrice, nil
	case PriceExportActive:
		return r.ExportActivePrice, nil
	case PriceImportReactive:
		return r.ImportReactivePrice, nil
	case PriceExportReactive:
		return r.ExportReactivePrice, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unknown price type %d", int(p))
	}
}

// LocalStartDate is the calendar day the rate starts on in the site's timezone.
func (r TariffGeneratedRate) LocalStartDate() string {
	return r.StartTime.In(r.Site.Location()).Format(time.DateOnly)
}

func (Site) ResourceType() ResourceType                     { return TypeSite }
func (Reading) ResourceType() ResourceType                  { return TypeReading }
func (DynamicOperatingEnvelope) ResourceType() ResourceType { return TypeDynamicOperatingEnvelope }
func (TariffGeneratedRate) ResourceType() ResourceType      { return TypeTariffGeneratedRate }

func (s Site) Owner() Site                     { return s }
func (r Reading) Owner() Site                  { return r.ReadingType.Site }
func (d DynamicOperatingEnvelope) Owner() Site { return d.Site }
func (r TariffGeneratedRate) Owner() Site      { return r.Site }

func (s Site) Changed() time.Time                     { return s.ChangedTime }
func (r Reading) Changed() time.Time                  { return r.ChangedTime }
func (d DynamicOperatingEnvelope) Changed() time.Time { return d.ChangedTime }
func (r TariffGeneratedRate) Changed() time.Time      { return r.ChangedTime }

func (Site) sealed()                     {}
func (Reading) sealed()                  {}
func (DynamicOperatingEnvelope) sealed() {}
func (TariffGeneratedRate) sealed()      {}
