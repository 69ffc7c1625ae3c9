package container

import (
	app "depseg/internal/application"
	"depseg/internal/domain/port"
	"depseg/internal/infrastructure/imageio"
	"depseg/internal/model"
)

type Container struct {
	Model            *model.DualTask
	UserService      *app.UserService
	InferenceService *app.InferenceService
	PhotoService     *app.PhotoService
}

func New(userRepo port.UserRepository, m *model.DualTask, pre imageio.Preprocess, renderer port.HeatmapRenderer) *Container {
	userService := app.NewUserService(userRepo)
	inferenceService := app.NewInferenceService(m, pre, renderer)
	photoService := app.NewPhotoService(userService, inferenceService)

	return &Container{
		Model:            m,
		UserService:      userService,
		InferenceService: inferenceService,
		PhotoService:     photoService,
	}
}

// Trainer собирает сервис обучения поверх модели контейнера.
func (c *Container) Trainer(data app.TrainData, opts app.TrainOptions, store port.CheckpointStore) (*app.TrainingService, error) {
	return app.NewTrainingService(c.Model, data, opts, store, c.InferenceService)
}
