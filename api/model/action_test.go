package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wacul/ptr"
)

func TestValidateEnqueueAction(t *testing.T) {
	tests := []struct {
		name    string
		action  EnqueueAction
		wantErr bool
	}{
		{"valid create", EnqueueAction{Type: "create", Endpoint: "/orders"}, false},
		{"absolute url", EnqueueAction{Type: "UPDATE", Endpoint: "https://api.example.com/orders/1", Method: "put"}, false},
		{"zero priority", EnqueueAction{Type: "DELETE", Endpoint: "/orders/1", Priority: ptr.Int(0)}, false},
		{"missing type", EnqueueAction{Endpoint: "/orders"}, true},
		{"unknown type", EnqueueAction{Type: "UPSERT", Endpoint: "/orders"}, true},
		{"missing endpoint", EnqueueAction{Type: "CREATE"}, true},
		{"relative endpoint", EnqueueAction{Type: "CREATE", Endpoint: "orders"}, true},
		{"bad method", EnqueueAction{Type: "CREATE", Endpoint: "/orders", Method: "TRACE"}, true},
		{"negative priority", EnqueueAction{Type: "CREATE", Endpoint: "/orders", Priority: ptr.Int(-1)}, true},
		{"zero retries", EnqueueAction{Type: "CREATE", Endpoint: "/orders", MaxRetries: ptr.Int(0)}, true},
		{"bad temp id", EnqueueAction{Type: "CREATE", Endpoint: "/orders", TempID: "order_1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.ValidateEnqueueAction()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEnqueueActionNormalises(t *testing.T) {
	a := EnqueueAction{Type: " patch ", Endpoint: "/orders/1", Method: "patch"}
	assert.NoError(t, a.ValidateEnqueueAction())
	assert.Equal(t, "PATCH", string(a.Type))
	assert.Equal(t, "PATCH", a.Method)
}

func TestToOptions(t *testing.T) {
	a := EnqueueAction{Priority: ptr.Int(9), TempID: "temp_1", DedupeKey: "cart"}
	opts := a.ToOptions()
	assert.Equal(t, 9, *opts.Priority)
	assert.Nil(t, opts.MaxRetries)
	assert.Equal(t, "temp_1", opts.TempID)
	assert.Equal(t, "cart", opts.DedupeKey)
}

func TestValidateStatus(t *testing.T) {
	assert.NoError(t, ValidateStatus(""))
	assert.NoError(t, ValidateStatus("failed"))
	assert.Error(t, ValidateStatus("done"))
}

func TestParseClearScope(t *testing.T) {
	scope, err := ParseClearScope("")
	assert.NoError(t, err)
	assert.Equal(t, ScopeSynced, scope)

	scope, err = ParseClearScope("ALL")
	assert.NoError(t, err)
	assert.Equal(t, ScopeAll, scope)

	_, err = ParseClearScope("everything")
	assert.Error(t, err)
}
