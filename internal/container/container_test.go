package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	app "depseg/internal/application"
	"depseg/internal/domain/entity"
	"depseg/internal/infrastructure/backbone"
	"depseg/internal/infrastructure/imageio"
	"depseg/internal/infrastructure/render"
	"depseg/internal/infrastructure/storage"
	"depseg/internal/model"
)

func TestNew_WiresServices(t *testing.T) {
	m, err := model.New(backbone.NewProjection(backbone.FeatureChannels, 1), model.DefaultOptions())
	require.NoError(t, err)

	c := New(storage.NewMemoryUserRepository(), m, imageio.Preprocess{Width: 12, Height: 9}, render.NewHeatmap())
	require.NotNil(t, c.PhotoService)

	user, err := c.UserService.BeginDepth(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)

	_, err = c.Trainer(app.TrainData{}, app.TrainOptions{}, storage.NewFileCheckpointStore(t.TempDir(), false))
	require.Error(t, err)
}
