package scene

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext()

	s := ctx.Get()
	assert.Equal(t, NoScene, s.Name)
	_, err := uuid.Parse(s.SessionID)
	assert.NoError(t, err)
}

func TestLoad_NewSession(t *testing.T) {
	ctx := NewContext()
	first := ctx.Load("Level_Farm")
	second := ctx.Load("Level_Farm")

	assert.Equal(t, "Level_Farm", ctx.Get().Name)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, second, ctx.Get())

	assert.Equal(t, NoScene, ctx.Load("").Name)
}

func TestAttrs(t *testing.T) {
	ctx := NewContext()
	s := ctx.Load("Base")

	attrs := ctx.Attrs()

	require.Len(t, attrs, 2)
	assert.Equal(t, "scene", attrs[0].Key)
	assert.Equal(t, "Base", attrs[0].Value.String())
	assert.Equal(t, s.SessionID, attrs[1].Value.String())
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx.Load("Level")
		}()
		go func() {
			defer wg.Done()
			_ = ctx.Attrs()
		}()
	}
	wg.Wait()
	assert.Equal(t, "Level", ctx.Get().Name)
}
