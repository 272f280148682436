package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/testutil"
)

func TestMockLogger(t *testing.T) {
	logger := testutil.NewMockLogger()

	logger.Info("test info", logging.String("key", "value"))

	messages := logger.GetMessages()
	assert.Len(t, messages, 1)
	assert.Equal(t, "info", messages[0].Level)
	assert.Equal(t, "test info", messages[0].Message)

	logger.Clear()
	assert.Len(t, logger.GetMessages(), 0)

	logger.Error("test error")
	assert.True(t, logger.HasMessage("error", "test error"))
	assert.False(t, logger.HasMessage("info", "test info"))
}

func TestMockLogger_ChildrenShareRecord(t *testing.T) {
	root := testutil.NewMockLogger()
	child := root.Named("citator").With(logging.CaseID("smith"))
	child.Warn("badge recompute failed")

	msgs := root.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "citator", msgs[0].Logger)
	require.Len(t, msgs[0].Fields, 1)
	assert.Equal(t, logging.KeyCaseID, msgs[0].Fields[0].Key)
	assert.Equal(t, 1, root.CountLevel("warn"))
}

func TestFixtures(t *testing.T) {
	smith, brown := testutil.SmithCase(), testutil.BrownCase()
	assert.Equal(t, []string{"123 U.S. 456"}, smith.Citations)
	assert.Equal(t, []string{"98 U.S. 12"}, brown.Citations)
	assert.NotEmpty(t, smith.ContentHash)
	assert.Contains(t, testutil.ScenarioText, "overruled by")
}

//Personal.AI order the ending
