package encoder

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mimiro-io/dataset-publisher/internal/controlfile"
)

func locationValue(sc controlfile.SyntheticColumn, raw map[string]string) interface{} {
	value := make(map[string]interface{})
	human := addressParts(sc, raw)
	if len(human) > 0 {
		b, err := json.Marshal(human)
		if err == nil {
			value["human_address"] = string(b)
		}
	}
	if lat, lon, ok := coordinates(sc, raw); ok {
		value["latitude"] = strconv.FormatFloat(lat, 'f', -1, 64)
		value["longitude"] = strconv.FormatFloat(lon, 'f', -1, 64)
	}
	if len(value) == 0 {
		return nil
	}
	return value
}

// pointValue builds a GeoJSON point. Rows without coordinates fall back to the address text when the
// service is asked to geocode.
func pointValue(sc controlfile.SyntheticColumn, raw map[string]string, geocode bool) interface{} {
	if lat, lon, ok := coordinates(sc, raw); ok {
		return map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{lon, lat},
		}
	}
	if !geocode {
		return nil
	}
	parts := addressParts(sc, raw)
	var text []string
	for _, key := range []string{"address", "city", "state", "zip", "country"} {
		if v := parts[key]; v != "" {
			text = append(text, v)
		}
	}
	if len(text) == 0 {
		return nil
	}
	return strings.Join(text, ", ")
}

func addressParts(sc controlfile.SyntheticColumn, raw map[string]string) map[string]string {
	parts := make(map[string]string)
	for _, c := range sc.Components() {
		if c.Name == "latitude" || c.Name == "longitude" {
			continue
		}
		if v := raw[c.Column]; v != "" {
			parts[c.Name] = v
		}
	}
	return parts
}

func coordinates(sc controlfile.SyntheticColumn, raw map[string]string) (float64, float64, bool) {
	if sc.Latitude == "" || sc.Longitude == "" {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(raw[sc.Latitude]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(raw[sc.Longitude]), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
