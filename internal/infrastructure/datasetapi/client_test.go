package datasetapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/dealerreport/internal/domain/dealer"
	"github.com/example/dealerreport/internal/infrastructure/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAPI serves routes (path -> status, body) under /api/.
func newTestAPI(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	transport, err := httpclient.New(httpclient.Config{BaseURL: server.URL + "/api/", Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })

	return NewClient(transport)
}

func TestClient_FetchDatasetID(t *testing.T) {
	t.Run("decodes dataset id", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{"/api/datasetId": `{"datasetId":"abc123"}`})

		id, err := api.FetchDatasetID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, dealer.DatasetID("abc123"), id)
	})

	t.Run("missing field is a decode error", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{"/api/datasetId": `{}`})

		_, err := api.FetchDatasetID(context.Background())
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))
		assert.False(t, httpclient.IsTransportError(err))
		assert.Contains(t, err.Error(), `missing field "datasetId"`)
	})

	t.Run("empty dataset id is a decode error", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{"/api/datasetId": `{"datasetId":""}`})

		_, err := api.FetchDatasetID(context.Background())
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))
	})

	t.Run("malformed json is a decode error", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{"/api/datasetId": `{"datasetId":`})

		_, err := api.FetchDatasetID(context.Background())
		require.Error(t, err)

		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "datasetId", de.Path)
		assert.Equal(t, "datasetId", de.Shape)
	})

	t.Run("server error is a transport error", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{})

		_, err := api.FetchDatasetID(context.Background())
		require.Error(t, err)
		assert.True(t, httpclient.IsTransportError(err))
		assert.False(t, IsDecodeError(err))
	})
}

func TestClient_FetchVehicleIDs(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []dealer.VehicleID
		decode   bool
	}{
		{name: "ids", body: `{"vehicleIds":[3,1,2]}`, expected: []dealer.VehicleID{3, 1, 2}},
		{name: "empty list is valid", body: `{"vehicleIds":[]}`, expected: []dealer.VehicleID{}},
		{name: "missing list", body: `{}`, decode: true},
		{name: "null list", body: `{"vehicleIds":null}`, decode: true},
		{name: "mistyped ids", body: `{"vehicleIds":["a"]}`, decode: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, map[string]string{"/api/abc123/vehicles": tt.body})

			ids, err := api.FetchVehicleIDs(context.Background(), "abc123")
			if tt.decode {
				require.Error(t, err)
				assert.True(t, IsDecodeError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestClient_FetchVehicle(t *testing.T) {
	t.Run("decodes every field", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{
			"/api/abc123/vehicles/1": `{"vehicleId":1,"year":2020,"make":"Ford","model":"F150","dealerId":10}`,
		})

		v, err := api.FetchVehicle(context.Background(), "abc123", 1)
		require.NoError(t, err)
		assert.Equal(t, dealer.VehicleRecord{VehicleID: 1, Year: 2020, Make: "Ford", Model: "F150", DealerID: 10}, v)
	})

	t.Run("zero values are present, not missing", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{
			"/api/abc123/vehicles/0": `{"vehicleId":0,"year":0,"make":"","model":"","dealerId":0}`,
		})

		v, err := api.FetchVehicle(context.Background(), "abc123", 0)
		require.NoError(t, err)
		assert.Equal(t, dealer.VehicleRecord{}, v)
	})

	t.Run("missing dealer id", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{
			"/api/abc123/vehicles/1": `{"vehicleId":1,"year":2020,"make":"Ford","model":"F150"}`,
		})

		_, err := api.FetchVehicle(context.Background(), "abc123", 1)
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))
		assert.Contains(t, err.Error(), `missing field "dealerId"`)
		assert.Contains(t, err.Error(), "abc123/vehicles/1")
	})

	t.Run("record for another vehicle", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{
			"/api/abc123/vehicles/2": `{"vehicleId":1,"year":2020,"make":"Ford","model":"F150","dealerId":10}`,
		})

		_, err := api.FetchVehicle(context.Background(), "abc123", 2)
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))
		assert.Contains(t, err.Error(), `field "vehicleId" is 1, requested 2`)
	})

	t.Run("mistyped year", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{
			"/api/abc123/vehicles/1": `{"vehicleId":1,"year":"2020","make":"Ford","model":"F150","dealerId":10}`,
		})

		_, err := api.FetchVehicle(context.Background(), "abc123", 1)
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))
	})
}

func TestClient_FetchDealer(t *testing.T) {
	t.Run("decodes dealer", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{"/api/abc123/dealers/10": `{"dealerId":10,"name":"DealerA"}`})

		d, err := api.FetchDealer(context.Background(), "abc123", 10)
		require.NoError(t, err)
		assert.Equal(t, dealer.DealerRecord{DealerID: 10, Name: "DealerA"}, d)
	})

	t.Run("missing name", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{"/api/abc123/dealers/10": `{"dealerId":10}`})

		_, err := api.FetchDealer(context.Background(), "abc123", 10)
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))
		assert.Contains(t, err.Error(), `missing field "name"`)
	})

	t.Run("record for another dealer", func(t *testing.T) {
		api := newTestAPI(t, map[string]string{"/api/abc123/dealers/20": `{"dealerId":10,"name":"Impostor"}`})

		_, err := api.FetchDealer(context.Background(), "abc123", 20)
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))
		assert.Contains(t, err.Error(), "abc123/dealers/20")
		assert.Contains(t, err.Error(), `field "dealerId" is 10, requested 20`)
	})
}

func TestClient_SubmitAnswer(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/abc123/answer", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"success":true,"message":"Congratulations","totalMilliseconds":42}`))
	}))
	defer server.Close()

	transport, err := httpclient.New(httpclient.Config{BaseURL: server.URL + "/api/"})
	require.NoError(t, err)
	api := NewClient(transport)

	report := dealer.BuildReport(
		[]dealer.DealerRecord{{DealerID: 10, Name: "DealerA"}},
		[]dealer.VehicleRecord{{VehicleID: 1, Year: 2020, Make: "Ford", Model: "F150", DealerID: 10}},
	)

	resp, err := api.SubmitAnswer(context.Background(), "abc123", report)
	require.NoError(t, err)
	assert.Equal(t, `{"success":true,"message":"Congratulations","totalMilliseconds":42}`, resp)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(received, &decoded))
	assert.Equal(t,
		`{"dealers":[{"dealerId":10,"name":"DealerA","vehicles":[{"vehicleId":1,"year":2020,"make":"Ford","model":"F150"}]}]}`,
		string(received))
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "abc123/vehicles", VehiclesPath("abc123"))
	assert.Equal(t, "abc123/vehicles/7", VehiclePath("abc123", 7))
	assert.Equal(t, "abc123/dealers/10", DealerPath("abc123", 10))
	assert.Equal(t, "abc123/answer", AnswerPath("abc123"))
}

type closingTransport struct {
	Transport
	closed bool
}

func (c *closingTransport) Close() error {
	c.closed = true
	return nil
}

func TestClient_Close(t *testing.T) {
	t.Run("closes an owning transport", func(t *testing.T) {
		transport := &closingTransport{}
		require.NoError(t, NewClient(transport).Close())
		assert.True(t, transport.closed)
	})

	t.Run("ignores a transport without resources", func(t *testing.T) {
		var transport Transport = struct{ Transport }{}
		assert.NoError(t, NewClient(transport).Close())
	})
}
