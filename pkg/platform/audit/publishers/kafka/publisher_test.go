package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "audit")
	assert.ErrorContains(t, err, "brokers are required")

	_, err = New([]string{"localhost:9092"}, "")
	assert.ErrorContains(t, err, "topic is required")
}
