package refund

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecord_FailThenComplete(t *testing.T) {
	now := time.Now()
	r := &Record{ID: "rf-1", Status: StatusPending}

	r.Fail(errors.New("gateway timeout"), now)
	assert.True(t, r.Pending())
	assert.Equal(t, 1, r.Attempts)
	assert.Equal(t, "gateway timeout", r.LastError)

	r.Complete("rfnd_123", now.Add(time.Minute))
	assert.False(t, r.Pending())
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "rfnd_123", r.RefundID)
	assert.Equal(t, 2, r.Attempts)
	assert.Empty(t, r.LastError)
}
