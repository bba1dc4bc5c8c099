package composables

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/constants"
)

func TestUseLogger(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, UseLogger(context.Background()))

	entry := logrus.New().WithField("request-id", "r1")
	ctx := context.WithValue(context.Background(), constants.LoggerKey, entry)
	assert.Same(t, entry, UseLogger(ctx))
}

func TestUseRequestStart(t *testing.T) {
	t.Parallel()

	_, ok := UseRequestStart(context.Background())
	assert.False(t, ok)

	now := time.Now()
	got, ok := UseRequestStart(context.WithValue(context.Background(), constants.RequestStart, now))
	assert.True(t, ok)
	assert.Equal(t, now, got)
}
