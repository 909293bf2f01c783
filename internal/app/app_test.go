package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/expense-reconciler/internal/common"
	"github.com/joseph-ayodele/expense-reconciler/internal/core/ocr"
	"github.com/joseph-ayodele/expense-reconciler/internal/entity"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg, err := common.LoadConfig("")
	require.NoError(t, err)
	return cfg
}

func TestNew_InMemoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), true, nil)
	require.NoError(t, err)
	defer a.Close()

	user := uuid.New()
	c, err := a.Pipeline.Reconcile(ctx, entity.RawArtifact{
		Data: []byte("INR 45 debited to chai@okicici on 01/03/2024"), MIMEType: "text/plain", OriginName: "sms.txt",
	}, user)
	require.NoError(t, err)
	_, err = a.Expenses.Persist(ctx, c)
	require.NoError(t, err)

	list, err := a.Expenses.ListByUser(ctx, user, nil, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	st, err := a.Usage.Usage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Accepted)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCR.Engine = "magic"
	_, err := New(context.Background(), cfg, true, nil)
	assert.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	cfg := testConfig(t).OCR

	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ocr.TesseractEngine{}, e)

	cfg.Engine = common.OCREngineRemote
	cfg.RemoteURL = "http://ocr.local/recognize"
	e, err = NewEngine(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ocr.RemoteEngine{}, e)

	cfg.Engine = "nope"
	_, err = NewEngine(cfg, nil)
	assert.Error(t, err)
}
