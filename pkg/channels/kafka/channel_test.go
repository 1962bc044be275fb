package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/stepflow/pkg/channels/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: nil},
		{raw: "localhost:9092", want: []string{"localhost:9092"}},
		{raw: " a:1, ,b:2 ", want: []string{"a:1", "b:2"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, kafka.ParseBrokers(tt.raw), tt.raw)
	}
}

func TestCreateChannel_NoBrokers(t *testing.T) {
	t.Parallel()

	pub, sub, err := kafka.CreateChannel(watermill.NopLogger{}, "stepflow", nil)
	require.ErrorIs(t, err, kafka.ErrNoBrokers)
	assert.Nil(t, pub)
	assert.Nil(t, sub)
}
