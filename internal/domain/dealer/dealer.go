// Package dealer holds the vehicle and dealer records of one dataset and the
// join that turns them into the nested dealer report submitted as the answer.
package dealer

import "fmt"

// DatasetID identifies one evaluation run on the remote service.
type DatasetID string

// String returns the raw token.
func (id DatasetID) String() string {
	return string(id)
}

// IsZero reports whether the dataset id has not been obtained yet.
func (id DatasetID) IsZero() bool {
	return id == ""
}

// VehicleID identifies a vehicle within a dataset
type VehicleID int

// DealerID identifies a dealer within a dataset
type DealerID int

// VehicleRecord is a single vehicle as served by the dataset API
type VehicleRecord struct {
	VehicleID VehicleID `json:"vehicleId"`
	Year      int       `json:"year"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	DealerID  DealerID  `json:"dealerId"`
}

// Summary projects the record to its report form, dropping the dealer id.
func (v VehicleRecord) Summary() VehicleSummary {
	return VehicleSummary{
		VehicleID: v.VehicleID,
		Year:      v.Year,
		Make:      v.Make,
		Model:     v.Model,
	}
}

// DealerRecord is a single dealer as served by the dataset API
type DealerRecord struct {
	DealerID DealerID `json:"dealerId"`
	Name     string   `json:"name"`
}

// VehicleSummary is a vehicle nested under its dealer in the report
type VehicleSummary struct {
	VehicleID VehicleID `json:"vehicleId"`
	Year      int       `json:"year"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
}

// DealerReport is one dealer together with every vehicle it owns
type DealerReport struct {
	DealerID DealerID         `json:"dealerId"`
	Name     string           `json:"name"`
	Vehicles []VehicleSummary `json:"vehicles"`
}

// Report is the answer submitted for a dataset
type Report struct {
	Dealers []DealerReport `json:"dealers"`
}

// VehicleCount returns the number of vehicles across all dealers.
func (r Report) VehicleCount() int {
	n := 0
	for _, d := range r.Dealers {
		n += len(d.Vehicles)
	}
	return n
}

// CheckCoverage returns an error unless every vehicle is attached to exactly
// one dealer in the report.
func (r Report) CheckCoverage(vehicles []VehicleRecord) error {
	attached := make(map[VehicleID]int, len(vehicles))
	for _, d := range r.Dealers {
		for _, v := range d.Vehicles {
			attached[v.VehicleID]++
		}
	}
	for _, v := range vehicles {
		switch n := attached[v.VehicleID]; {
		case n == 0:
			return fmt.Errorf("vehicle %d is not attached to any dealer", v.VehicleID)
		case n > 1:
			return fmt.Errorf("vehicle %d is attached %d times", v.VehicleID, n)
		}
	}
	return nil
}
