// Package datasetapi implements the typed operations of the dataset service on
// top of the raw HTTP adapter: dataset id, vehicle ids, single vehicle and
// dealer records, and answer submission.
package datasetapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/example/dealerreport/internal/domain/dealer"
	"github.com/go-playground/validator/v10"
)

// Transport is the raw request surface the fetchers need. It is satisfied by
// *httpclient.Client.
type Transport interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body []byte, contentType string) ([]byte, error)
}

// Wire constants of the dataset service.
const (
	datasetIDPath = "datasetId"
	contentType   = "application/json"
)

// Client fetches and submits dataset entities.
type Client struct {
	transport Transport
	validate  *validator.Validate
}

// NewClient creates a Client over transport.
func NewClient(transport Transport) *Client {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Client{
		transport: transport,
		validate:  v,
	}
}

// Close releases the transport when it owns resources, such as the pooled
// connections of *httpclient.Client.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// FetchDatasetID obtains a fresh dataset id.
func (c *Client) FetchDatasetID(ctx context.Context) (dealer.DatasetID, error) {
	var resp datasetIDResponse
	if err := c.getJSON(ctx, datasetIDPath, "datasetId", &resp); err != nil {
		return "", err
	}
	return dealer.DatasetID(*resp.DatasetID), nil
}

// FetchVehicleIDs lists the vehicles of a dataset. An empty list is valid.
func (c *Client) FetchVehicleIDs(ctx context.Context, datasetID dealer.DatasetID) ([]dealer.VehicleID, error) {
	var resp vehicleIDsResponse
	if err := c.getJSON(ctx, VehiclesPath(datasetID), "vehicleIds", &resp); err != nil {
		return nil, err
	}

	ids := make([]dealer.VehicleID, len(*resp.VehicleIDs))
	for i, id := range *resp.VehicleIDs {
		ids[i] = dealer.VehicleID(id)
	}
	return ids, nil
}

// FetchVehicle fetches one vehicle record. A record whose vehicleId differs
// from id is a DecodeError.
func (c *Client) FetchVehicle(ctx context.Context, datasetID dealer.DatasetID, id dealer.VehicleID) (dealer.VehicleRecord, error) {
	path := VehiclePath(datasetID, id)
	var resp vehicleResponse
	if err := c.getJSON(ctx, path, "vehicle", &resp); err != nil {
		return dealer.VehicleRecord{}, err
	}
	record := resp.toRecord()
	if record.VehicleID != id {
		return dealer.VehicleRecord{}, &DecodeError{Path: path, Shape: "vehicle", Err: idMismatch("vehicleId", int(id), int(record.VehicleID))}
	}
	return record, nil
}

// FetchDealer fetches one dealer record. A record whose dealerId differs from
// id is a DecodeError.
func (c *Client) FetchDealer(ctx context.Context, datasetID dealer.DatasetID, id dealer.DealerID) (dealer.DealerRecord, error) {
	path := DealerPath(datasetID, id)
	var resp dealerResponse
	if err := c.getJSON(ctx, path, "dealer", &resp); err != nil {
		return dealer.DealerRecord{}, err
	}
	record := resp.toRecord()
	if record.DealerID != id {
		return dealer.DealerRecord{}, &DecodeError{Path: path, Shape: "dealer", Err: idMismatch("dealerId", int(id), int(record.DealerID))}
	}
	return record, nil
}

// SubmitAnswer posts the report and returns the service's confirmation text
// unchanged.
func (c *Client) SubmitAnswer(ctx context.Context, datasetID dealer.DatasetID, report dealer.Report) (string, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encoding answer: %w", err)
	}

	resp, err := c.transport.Post(ctx, AnswerPath(datasetID), body, contentType)
	if err != nil {
		return "", err
	}
	return string(resp), nil
}

// getJSON fetches path and decodes it into out, validating required fields.
func (c *Client) getJSON(ctx context.Context, path, shape string, out any) error {
	body, err := c.transport.Get(ctx, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Path: path, Shape: shape, Err: err}
	}
	if err := c.validate.Struct(out); err != nil {
		return &DecodeError{Path: path, Shape: shape, Err: describeValidation(err)}
	}
	return nil
}

// VehiclesPath is the vehicle id listing of a dataset.
func VehiclesPath(datasetID dealer.DatasetID) string {
	return datasetID.String() + "/vehicles"
}

// VehiclePath is a single vehicle of a dataset.
func VehiclePath(datasetID dealer.DatasetID, id dealer.VehicleID) string {
	return datasetID.String() + "/vehicles/" + strconv.Itoa(int(id))
}

// DealerPath is a single dealer of a dataset.
func DealerPath(datasetID dealer.DatasetID, id dealer.DealerID) string {
	return datasetID.String() + "/dealers/" + strconv.Itoa(int(id))
}

// AnswerPath is where the report for a dataset is submitted.
func AnswerPath(datasetID dealer.DatasetID) string {
	return datasetID.String() + "/answer"
}
