package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnavailable_IsAvailable(t *testing.T) {
	var p Provider = Unavailable{}
	assert.False(t, p.IsAvailable())
}

func TestUnavailable_GenerateAlwaysErrors(t *testing.T) {
	var p Provider = Unavailable{}
	result, err := p.Generate(context.Background(), GenerateRequest{TargetName: "tool"})
	assert.Nil(t, result)
	assert.Error(t, err)
}
