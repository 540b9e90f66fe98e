package sep2

import (
	"encoding/xml"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/subscription"
)

// PricePowerOfTenMultiplier is the scale of emitted prices: a price of
// 1234 means 0.1234 currency units.
const PricePowerOfTenMultiplier = -4

// Page is one notification's worth of entities for one subscription.
type Page struct {
	ResourceType resource.ResourceType
	Subscription subscription.Subscription

	// SiteID is the site shared by every entity in the page.
	SiteID   int64
	Entities []resource.Entity

	// PriceType selects the rate component. Zero for non-rate resources.
	PriceType resource.PriceType

	// Deleted marks the entities as removed.
	Deleted bool
}

// Mapper converts pages into Notification documents.
type Mapper struct{}

// NewMapper returns a Mapper.
func NewMapper() Mapper {
	return Mapper{}
}

// Payload renders p as an XML Notification body.
func (m Mapper) Payload(p Page) ([]byte, error) {
	n, err := m.Notification(p)
	if err != nil {
		return nil, err
	}
	body, err := xml.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encoding notification: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Notification builds the document for p without encoding it.
func (m Mapper) Notification(p Page) (*Notification, error) {
	list := &ResourceList{All: len(p.Entities), Results: len(p.Entities)}
	var subscribed string

	switch p.ResourceType {
	case resource.TypeSite:
		list.Type = "EndDeviceList"
		subscribed = "/edev"
		if p.Subscription.ScopedSiteID != nil {
			subscribed = fmt.Sprintf("/edev/%d", p.SiteID)
		}
		for _, e := range p.Entities {
			site, ok := e.(resource.Site)
			if !ok {
				return nil, mismatch(p.ResourceType, e)
			}
			list.EndDevices = append(list.EndDevices, endDevice(site))
		}

	case resource.TypeReading:
		list.Type = "ReadingList"
		var srtID int64
		for _, e := range p.Entities {
			r, ok := e.(resource.Reading)
			if !ok {
				return nil, mismatch(p.ResourceType, e)
			}
			srtID = r.ReadingType.SiteReadingTypeID
			list.Readings = append(list.Readings, reading(r))
		}
		subscribed = fmt.Sprintf("/upt/%d/mr/%d/rs/all/r", p.SiteID, srtID)

	case resource.TypeDynamicOperatingEnvelope:
		list.Type = "DERControlList"
		subscribed = fmt.Sprintf("/edev/%d/derp/doe/derc", p.SiteID)
		for _, e := range p.Entities {
			doe, ok := e.(resource.DynamicOperatingEnvelope)
			if !ok {
				return nil, mismatch(p.ResourceType, e)
			}
			list.DERControls = append(list.DERControls, derControl(doe))
		}

	case resource.TypeTariffGeneratedRate:
		list.Type = "TimeTariffIntervalList"
		var tariffID int64
		var day string
		for _, e := range p.Entities {
			rate, ok := e.(resource.TariffGeneratedRate)
			if !ok {
				return nil, mismatch(p.ResourceType, e)
			}
			tariffID, day = rate.TariffID, rate.LocalStartDate()
			tti, err := timeTariffInterval(rate, p.PriceType)
			if err != nil {
				return nil, err
			}
			list.TimeTariffIntervals = append(list.TimeTariffIntervals, tti)
		}
		subscribed = fmt.Sprintf("/edev/%d/tp/%d/rc/%s/%d/tti", p.SiteID, tariffID, day, int(p.PriceType))

	default:
		return nil, fmt.Errorf("%w: %s", resource.ErrUnsupportedResource, p.ResourceType)
	}

	status := StatusDefault
	if p.Deleted {
		status = StatusResourceDeleted
	}

	return &Notification{
		SubscribedResource: subscribed,
		Resource:           list,
		Status:             status,
		SubscriptionURI:    subscription.Href(p.Subscription),
	}, nil
}

func mismatch(rt resource.ResourceType, e resource.Entity) error {
	return fmt.Errorf("%w: %T in %s page", resource.ErrEntityMismatch, e, rt)
}

func endDevice(s resource.Site) EndDevice {
	return EndDevice{
		Href:           fmt.Sprintf("/edev/%d", s.SiteID),
		LFDI:           s.LFDI,
		SFDI:           s.SFDI,
		DeviceCategory: fmt.Sprintf("%X", s.DeviceCategory),
		ChangedTime:    s.ChangedTime.Unix(),
	}
}

func reading(r resource.Reading) Reading {
	out := Reading{
		TimePeriod: DateTimeInterval{
			Duration: r.TimePeriodSeconds,
			Start:    r.TimePeriodStart.Unix(),
		},
		Value: r.Value,
	}
	if r.LocalID != nil {
		out.LocalID = fmt.Sprintf("%02X", *r.LocalID)
	}
	if r.QualityFlags != 0 {
		out.QualityFlags = fmt.Sprintf("%04X", r.QualityFlags)
	}
	return out
}

func derControl(d resource.DynamicOperatingEnvelope) DERControl {
	imp := activePower(d.ImportLimitActiveWatts)
	exp := activePower(d.ExportLimitWatts)
	return DERControl{
		Href:         fmt.Sprintf("/edev/%d/derp/doe/derc/%d", d.Site.SiteID, d.DynamicOperatingEnvelopeID),
		MRID:         mrid(d.DynamicOperatingEnvelopeID),
		CreationTime: d.ChangedTime.Unix(),
		Interval: DateTimeInterval{
			Duration: d.DurationSeconds,
			Start:    d.StartTime.Unix(),
		},
		DERControlBase: DERControlBase{OpModImpLimW: &imp, OpModExpLimW: &exp},
	}
}

func timeTariffInterval(r resource.TariffGeneratedRate, pt resource.PriceType) (TimeTariffInterval, error) {
	price, err := r.Price(pt)
	if err != nil {
		return TimeTariffInterval{}, err
	}
	day := r.LocalStartDate()
	start := r.StartTime.In(r.Site.Location()).Format("1504")
	base := fmt.Sprintf("/edev/%d/tp/%d/rc/%s/%d/tti/%s", r.Site.SiteID, r.TariffID, day, int(pt), start)
	return TimeTariffInterval{
		Href:         base,
		MRID:         mrid(r.TariffGeneratedRateID),
		CreationTime: r.ChangedTime.Unix(),
		Interval: DateTimeInterval{
			Duration: r.DurationSeconds,
			Start:    r.StartTime.Unix(),
		},
		ConsumptionTariffInterval: ConsumptionTariffInterval{
			ConsumptionBlock: 1,
			Price:            price.Shift(-PricePowerOfTenMultiplier).Round(0).IntPart(),
		},
	}, nil
}

// activePower expresses d as an integer value and power of ten.
func activePower(d decimal.Decimal) ActivePower {
	return ActivePower{
		Multiplier: int(d.Exponent()),
		Value:      d.Coefficient().Int64(),
	}
}

func mrid(id int64) string {
	return fmt.Sprintf("%032X", id)
}
