package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// Coordinates used by the table tests.
const (
	TestAppToken = "bascnTestApp"
	TestTableID  = "tblTestTable"
)

// NewTestClient creates a new test client with the given base URL.
func NewTestClient(baseURL string) *Client {
	client, _ := New(context.Background(), &bitable.Config{BaseURL: baseURL})

	return client
}

// NewTestTable returns a table handle bound to the test coordinates.
func NewTestTable(baseURL string) bitable.Table {
	return NewTestClient(baseURL).Table(bitable.TableCoordinates{AppToken: TestAppToken, TableID: TestTableID})
}

// WriteEnvelope writes a Feishu envelope with the given code and data.
func WriteEnvelope(writer http.ResponseWriter, code int, data interface{}) {
	envelope := map[string]interface{}{"code": code, "msg": "success"}
	if code != 0 {
		envelope["msg"] = "failed"
	}

	if data != nil {
		envelope["data"] = data
	}

	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(envelope)
}

// TestFailureOperation runs one table operation against a server that always
// answers with a non-zero envelope code.
type TestFailureOperation struct {
	Name         string
	Method       string
	ExpectedPath string
	// Run invokes the operation and returns its value (nil on failure) and error.
	Run func(ctx context.Context, table bitable.Table) (interface{}, error)
}

// RunFailureTests checks that every operation reports a non-zero code as an
// *bitable.APIError with no value.
func RunFailureTests(t *testing.T, code int, tests []TestFailureOperation) {
	t.Helper()

	for _, testCase := range tests {
		t.Run(testCase.Name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				assert.Equal(t, testCase.Method, request.Method)
				assert.Equal(t, testCase.ExpectedPath, request.URL.Path)
				WriteEnvelope(writer, code, nil)
			}))
			defer server.Close()

			result, err := testCase.Run(context.Background(), NewTestTable(server.URL))
			require.Error(t, err)
			assert.Nil(t, result)

			apiErr := &bitable.APIError{}
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, code, apiErr.Code)
			assert.Equal(t, bitable.KindAPI, bitable.KindOf(err))
		})
	}
}
