package main

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInstanceGroupID(t *testing.T) {
	a := instanceGroupID("worship-api", uuid.New())
	b := instanceGroupID("worship-api", uuid.New())
	assert.NotEqual(t, a, b, "replicas must not share a consumer group")
	assert.True(t, strings.HasPrefix(a, "worship-api-"))
	assert.NotContains(t, a, ".")

	id := uuid.MustParse("5f0c9c3e-0000-4000-8000-000000000001")
	assert.Equal(t, instanceGroupID("x", id), instanceGroupID("x", id))
	assert.True(t, strings.HasSuffix(instanceGroupID("x", id), "-5f0c9c3e"))
}
