package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		payload string
		want    string
	}{
		{"OK <1,2,3,4,5,6>", EventTypeAck},
		{"  OK", EventTypeAck},
		{"ERR actuator 3 stalled", EventTypeFault},
		{`{"uptime":12.5,"temp":41}`, EventTypeStatus},
		{"booting v1.4", EventTypeLog},
		{"", EventTypeLog},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyPayload(tt.payload), "payload %q", tt.payload)
	}
}
