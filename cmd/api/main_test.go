package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"renovateAi/internal/config"
)

func TestBatchBudget(t *testing.T) {
	p := config.Default().Policy
	// two attempts of 90s render plus 45s validation, plus slack
	assert.Equal(t, 300*time.Second, batchBudget(p))

	p.MaxRetries = 0
	assert.Equal(t, 165*time.Second, batchBudget(p))
}
