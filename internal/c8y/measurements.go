package c8y

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// MarshalJSON flattens the measurement fragments into the top-level
// object, as the backend expects.
func (m Measurement) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(m.Fragments)+3)
	flat["type"] = m.Type
	flat["time"] = m.Time
	flat["source"] = m.Source
	for name, series := range m.Fragments {
		flat[name] = series
	}
	return json.Marshal(flat)
}

// CreateMeasurement attaches a measurement to a device.
func (c *Client) CreateMeasurement(ctx context.Context, tenantID string, m Measurement) error {
	if m.Source.ID == "" {
		return fmt.Errorf("%w: measurement source is required", ErrInvalidInput)
	}
	if m.Type == "" || m.Time == "" || len(m.Fragments) == 0 {
		return fmt.Errorf("%w: measurement type, time and at least one series are required", ErrInvalidInput)
	}

	return c.doJSON(ctx, tenantID, http.MethodPost, "/measurement/measurements", m, nil)
}

// NewTemperatureMeasurement builds a temperature measurement in degrees
// Celsius.
func NewTemperatureMeasurement(sourceID, timestamp string, celsius float64) Measurement {
	return Measurement{
		Type:   MeasurementTemperature,
		Time:   timestamp,
		Source: Source{ID: sourceID},
		Fragments: map[string]map[string]ValueUnit{
			MeasurementTemperature: {"T": {Value: celsius, Unit: "C"}},
		},
	}
}

// NewBatteryMeasurement builds a battery level measurement in percent.
func NewBatteryMeasurement(sourceID, timestamp string, percent float64) Measurement {
	return Measurement{
		Type:   MeasurementBattery,
		Time:   timestamp,
		Source: Source{ID: sourceID},
		Fragments: map[string]map[string]ValueUnit{
			MeasurementBattery: {"level": {Value: percent, Unit: "%"}},
		},
	}
}

// NewSignalStrengthMeasurement builds a signal strength measurement in
// dBm.
func NewSignalStrengthMeasurement(sourceID, timestamp string, dbm float64) Measurement {
	return Measurement{
		Type:   MeasurementSignalStrength,
		Time:   timestamp,
		Source: Source{ID: sourceID},
		Fragments: map[string]map[string]ValueUnit{
			MeasurementSignalStrength: {"rssi": {Value: dbm, Unit: "dBm"}},
		},
	}
}
