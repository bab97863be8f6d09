package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRequest marks malformed or incomplete telemetry.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMissingHelmet is an ErrInvalidRequest for a sample without helmet_number.
	ErrMissingHelmet = fmt.Errorf("%w: helmet_number is required", ErrInvalidRequest)
	// ErrNotFound is returned when no worker is registered for the helmet.
	ErrNotFound = errors.New("helmet not found")
	// ErrStorage wraps store failures that change the outcome of a request.
	ErrStorage = errors.New("storage failure")
)

// HelmetNumber accepts a JSON string or number. Some helmet firmware sends
// the number bare; 17 and "17" name the same helmet. A zero number reads as
// absent.
type HelmetNumber string

func (h *HelmetNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*h = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = HelmetNumber(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("helmet_number must be a string or number, got %s", data)
	}
	if f == 0 {
		*h = ""
		return nil
	}
	*h = HelmetNumber(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Payload is the wire shape posted by a helmet. Every field is optional on
// the wire; JSON null and absence are treated alike.
type Payload struct {
	HelmetNumber HelmetNumber `json:"helmet_number"`
	GasReading   *float64     `json:"gas_reading"`
	GyroX        *float64     `json:"gyro_x"`
	GyroY        *float64     `json:"gyro_y"`
	GyroZ        *float64     `json:"gyro_z"`
	Latitude     *float64     `json:"latitude"`
	Longitude    *float64     `json:"longitude"`
}

// Sample is a validated telemetry sample with numeric defaults applied.
type Sample struct {
	HelmetNumber string
	GasReading   float64
	GyroX        float64
	GyroY        float64
	GyroZ        float64
	Latitude     *float64
	Longitude    *float64
}

// HasGPS reports whether the sample carries a live position. Both
// coordinates must be present.
func (s Sample) HasGPS() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Sample validates the payload and fills in defaults.
func (p Payload) Sample() (Sample, error) {
	if p.HelmetNumber == "" {
		return Sample{}, ErrMissingHelmet
	}
	return Sample{
		HelmetNumber: string(p.HelmetNumber),
		GasReading:   valueOrZero(p.GasReading),
		GyroX:        valueOrZero(p.GyroX),
		GyroY:        valueOrZero(p.GyroY),
		GyroZ:        valueOrZero(p.GyroZ),
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
	}, nil
}

// DecodeSample parses a JSON body into a validated Sample.
func DecodeSample(data []byte) (Sample, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return p.Sample()
}

// HelmetFromTopic extracts the helmet segment that replaces the single-level
// wildcard in pattern, e.g. "resq/helmets/+/telemetry".
func HelmetFromTopic(pattern, topic string) string {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	if len(pp) != len(tp) {
		return ""
	}
	for i, seg := range pp {
		if seg == "+" {
			return tp[i]
		}
	}
	return ""
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
