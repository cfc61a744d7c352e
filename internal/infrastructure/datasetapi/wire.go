package datasetapi

import "github.com/example/dealerreport/internal/domain/dealer"

// Wire shapes decode into pointer fields so an absent key can be told apart
// from a zero value; `required` rejects nil pointers.

type datasetIDResponse struct {
	DatasetID *string `json:"datasetId" validate:"required,min=1"`
}

type vehicleIDsResponse struct {
	VehicleIDs *[]int `json:"vehicleIds" validate:"required"`
}

type vehicleResponse struct {
	VehicleID *int    `json:"vehicleId" validate:"required"`
	Year      *int    `json:"year" validate:"required"`
	Make      *string `json:"make" validate:"required"`
	Model     *string `json:"model" validate:"required"`
	DealerID  *int    `json:"dealerId" validate:"required"`
}

func (v vehicleResponse) toRecord() dealer.VehicleRecord {
	return dealer.VehicleRecord{
		VehicleID: dealer.VehicleID(*v.VehicleID),
		Year:      *v.Year,
		Make:      *v.Make,
		Model:     *v.Model,
		DealerID:  dealer.DealerID(*v.DealerID),
	}
}

type dealerResponse struct {
	DealerID *int    `json:"dealerId" validate:"required"`
	Name     *string `json:"name" validate:"required"`
}

func (d dealerResponse) toRecord() dealer.DealerRecord {
	return dealer.DealerRecord{
		DealerID: dealer.DealerID(*d.DealerID),
		Name:     *d.Name,
	}
}
