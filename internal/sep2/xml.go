package sep2

import "encoding/xml"

// Namespaces used in emitted documents.
const (
	Namespace    = "urn:ieee:std:2030.5:ns"
	NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"
)

// ContentType is the media type of every notification body.
const ContentType = "application/sep+xml"

// Notification status values.
const (
	StatusDefault         = 0
	StatusResourceDeleted = 4
)

// Notification is the document POSTed to a subscriber.
type Notification struct {
	XMLName            xml.Name      `xml:"urn:ieee:std:2030.5:ns Notification"`
	SubscribedResource string        `xml:"subscribedResource"`
	Resource           *ResourceList `xml:"Resource,omitempty"`
	Status             int           `xml:"status"`
	SubscriptionURI    string        `xml:"subscriptionURI"`
}

// ResourceList carries the page of changed entities. Exactly one of the
// item slices is populated, matching Type.
type ResourceList struct {
	Type    string `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr"`
	All     int    `xml:"all,attr"`
	Results int    `xml:"results,attr"`

	EndDevices          []EndDevice          `xml:"EndDevice,omitempty"`
	Readings            []Reading            `xml:"Reading,omitempty"`
	DERControls         []DERControl         `xml:"DERControl,omitempty"`
	TimeTariffIntervals []TimeTariffInterval `xml:"TimeTariffInterval,omitempty"`
}

// EndDevice represents a site.
type EndDevice struct {
	Href           string `xml:"href,attr"`
	LFDI           string `xml:"lFDI,omitempty"`
	SFDI           int64  `xml:"sFDI"`
	DeviceCategory string `xml:"deviceCategory,omitempty"`
	ChangedTime    int64  `xml:"changedTime"`
}

// DateTimeInterval is a start time and duration in seconds.
type DateTimeInterval struct {
	Duration int64 `xml:"duration"`
	Start    int64 `xml:"start"`
}

// Reading is one meter reading value.
type Reading struct {
	Href         string           `xml:"href,attr,omitempty"`
	LocalID      string           `xml:"localID,omitempty"`
	QualityFlags string           `xml:"qualityFlags,omitempty"`
	TimePeriod   DateTimeInterval `xml:"timePeriod"`
	Value        int64            `xml:"value"`
}

// ActivePower is value x 10^multiplier watts.
type ActivePower struct {
	Multiplier int   `xml:"multiplier"`
	Value      int64 `xml:"value"`
}

// DERControlBase holds the operating limits of a control.
type DERControlBase struct {
	OpModImpLimW *ActivePower `xml:"opModImpLimW,omitempty"`
	OpModExpLimW *ActivePower `xml:"opModExpLimW,omitempty"`
}

// DERControl represents a dynamic operating envelope.
type DERControl struct {
	Href           string           `xml:"href,attr"`
	MRID           string           `xml:"mRID"`
	CreationTime   int64            `xml:"creationTime"`
	Interval       DateTimeInterval `xml:"interval"`
	DERControlBase DERControlBase   `xml:"DERControlBase"`
}

// ConsumptionTariffInterval is the price applying within a TimeTariffInterval.
type ConsumptionTariffInterval struct {
	ConsumptionBlock int   `xml:"consumptionBlock"`
	Price            int64 `xml:"price"`
	StartValue       int64 `xml:"startValue"`
}

// TimeTariffInterval represents one price component of a generated rate.
type TimeTariffInterval struct {
	Href                      string                    `xml:"href,attr"`
	MRID                      string                    `xml:"mRID"`
	CreationTime              int64                     `xml:"creationTime"`
	Interval                  DateTimeInterval          `xml:"interval"`
	ConsumptionTariffInterval ConsumptionTariffInterval `xml:"ConsumptionTariffInterval"`
}
