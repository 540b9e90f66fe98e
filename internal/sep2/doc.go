// Package sep2 renders notification pages as IEEE 2030.5 Notification
// documents.
//
// Only the subset of the schema needed to report changes to end devices,
// readings, DER controls and time tariff intervals is modelled. Times are
// SEP2 TimeType (Unix seconds); prices are integers scaled by
// 10^PricePowerOfTenMultiplier.
package sep2
