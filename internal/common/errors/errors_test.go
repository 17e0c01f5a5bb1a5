package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageError_StageAndCode(t *testing.T) {
	tests := []struct {
		name          string
		err           *StageError
		expectedStage Stage
		expectedCode  ErrorCode
		sentinel      error
	}{
		{"extraction transport", NewExtractionTransportError(io.ErrUnexpectedEOF), StageExtraction, ErrCodeExtractionTransport, ErrExtractionTransport},
		{"malformed record", NewExtractionMalformedRecordError("{bad", nil), StageExtraction, ErrCodeExtractionMalformedRecord, ErrExtractionMalformedRecord},
		{"incomplete stream", NewExtractionIncompleteError(3), StageExtraction, ErrCodeExtractionIncomplete, ErrExtractionIncomplete},
		{"provisioning transport", NewProvisioningTransportError(fmt.Errorf("status 502")), StageProvisioning, ErrCodeProvisioningTransport, ErrProvisioningTransport},
		{"invalid response", NewProvisioningInvalidResponseError("missing phone"), StageProvisioning, ErrCodeProvisioningInvalidResponse, ErrProvisioningInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedStage, tt.err.Stage)
			assert.Equal(t, tt.expectedCode, tt.err.Code)
			assert.False(t, tt.err.Timestamp.IsZero())

			wrapped := fmt.Errorf("attempt failed: %w", tt.err)
			assert.True(t, stderrors.Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.expectedStage, StageOf(wrapped))
			assert.Equal(t, tt.expectedCode, CodeOf(wrapped))
		})
	}
}

func TestStageError_UnwrapsCause(t *testing.T) {
	err := NewExtractionTransportError(io.ErrUnexpectedEOF)
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.False(t, stderrors.Is(err, ErrProvisioningTransport))
}

func TestStageOf_PlainError(t *testing.T) {
	assert.Equal(t, Stage(""), StageOf(fmt.Errorf("boom")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestStageError_ToErrorVariables(t *testing.T) {
	vars := NewProvisioningInvalidResponseError("missing phone").ToErrorVariables()
	require.Len(t, vars, 4)
	assert.Equal(t, "provisioning", vars["errorStage"])
	assert.Equal(t, "PROVISIONING_INVALID_RESPONSE", vars["errorCode"])
	assert.Equal(t, "missing phone", vars["errorDetails"])
}

func TestMalformedRecordError_TruncatesRecord(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	err := NewExtractionMalformedRecordError(string(long), nil)
	assert.Less(t, len(err.Details), 300)
	assert.Contains(t, err.Error(), "EXTRACTION_MALFORMED_RECORD")
}
