package service

import (
	"github.com/alexanderramin/pipedeck/internal/app"
)

// Engine is the local backend: the persistence port plus schema migrations.
type Engine interface {
	app.PipelineAPI
	app.FieldMigrationUseCase
}

type ImportService interface {
	app.ImportPipelineUseCase
}

type SuggestionService interface {
	app.SuggestionUseCase
}
