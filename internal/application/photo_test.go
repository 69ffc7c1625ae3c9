package app

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"depseg/internal/domain/entity"
	"depseg/internal/infrastructure/imageio"
	"depseg/internal/infrastructure/render"
	"depseg/internal/infrastructure/storage"
)

func newPhotoService(t *testing.T) (*PhotoService, *UserService) {
	t.Helper()
	m, _ := newTestModel(t)
	users := NewUserService(storage.NewMemoryUserRepository())
	return NewPhotoService(users, NewInferenceService(m, testPre, render.NewHeatmap())), users
}

func TestPhotoService_ProcessPhoto(t *testing.T) {
	svc, users := newPhotoService(t)
	ctx := context.Background()

	_, err := users.BeginDepth(ctx, 1, 10)
	require.NoError(t, err)

	out, err := svc.ProcessPhoto(ctx, 1, 10, mustPNG(t))
	require.NoError(t, err)
	require.Equal(t, 1, out.Processed)
	require.GreaterOrEqual(t, out.RoadFraction, 0.0)
	if out.HasRange {
		require.LessOrEqual(t, out.Nearest, out.Farthest)
	}

	img, err := imageio.Decode(out.Overlay)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, testW, testH), img.Bounds())

	user, err := users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Equal(t, 1, user.Predictions)
}

func TestPhotoService_Busy(t *testing.T) {
	svc, users := newPhotoService(t)
	ctx := context.Background()

	_, err := users.SetState(ctx, 1, 10, entity.StateProcessing)
	require.NoError(t, err)

	_, err = svc.ProcessPhoto(ctx, 1, 10, mustPNG(t))
	require.ErrorIs(t, err, ErrBusy)
}

func TestPhotoService_BadPhoto(t *testing.T) {
	svc, users := newPhotoService(t)
	ctx := context.Background()

	_, err := svc.ProcessPhoto(ctx, 1, 10, []byte("not an image"))
	require.Error(t, err)

	user, err := users.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}
