package history_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/docchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/docchat/internal/app/history"
	"github.com/PabloGalante/docchat/internal/domain"
)

func TestSaveFetchClear(t *testing.T) {
	ctx := context.Background()
	svc := history.NewService(memory.NewHistoryStore())

	for i, role := range []domain.Role{domain.RoleUser, domain.RoleAssistant, domain.RoleUser} {
		_, err := svc.Save(ctx, "u1", role, fmt.Sprintf("m%d", i+1), nil)
		require.NoError(t, err)
	}

	msgs, err := svc.Fetch(ctx, "u1", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", i+1), m.Content)
		assert.NotEmpty(t, m.ID)
	}

	n, err := svc.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	msgs, err = svc.Fetch(ctx, "u1", 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFetch_LimitKeepsNewest(t *testing.T) {
	ctx := context.Background()
	svc := history.NewService(memory.NewHistoryStore())

	for i := 1; i <= 5; i++ {
		_, err := svc.Save(ctx, "u1", domain.RoleUser, fmt.Sprintf("m%d", i), nil)
		require.NoError(t, err)
	}

	msgs, err := svc.Fetch(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m4", msgs[0].Content)
	assert.Equal(t, "m5", msgs[1].Content)
}

func TestFetch_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := history.NewService(memory.NewHistoryStore())

	_, err := svc.Save(ctx, "alice", domain.RoleUser, "hi from alice", nil)
	require.NoError(t, err)

	msgs, err := svc.Fetch(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	n, err := svc.Clear(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	msgs, err = svc.Fetch(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSave_SourcesPresence(t *testing.T) {
	ctx := context.Background()
	svc := history.NewService(memory.NewHistoryStore())

	_, err := svc.Save(ctx, "u1", domain.RoleUser, "question", nil)
	require.NoError(t, err)
	_, err = svc.Save(ctx, "u1", domain.RoleAssistant, "no docs", []string{})
	require.NoError(t, err)
	_, err = svc.Save(ctx, "u1", domain.RoleAssistant, "answer", []string{"a.pdf"})
	require.NoError(t, err)

	msgs, err := svc.Fetch(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Nil(t, msgs[0].Sources)
	assert.NotNil(t, msgs[1].Sources)
	assert.Empty(t, msgs[1].Sources)
	assert.Equal(t, []string{"a.pdf"}, msgs[2].Sources)
}

func TestSave_Validation(t *testing.T) {
	ctx := context.Background()
	svc := history.NewService(memory.NewHistoryStore())

	_, err := svc.Save(ctx, "", domain.RoleUser, "x", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Save(ctx, "u1", domain.Role("system"), "x", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Fetch(ctx, "", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Clear(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
