package di

import (
	"time"

	"carebot/internal/catalog"
	"carebot/internal/export"
	"carebot/internal/export/interfaces"
	"carebot/internal/providers"
	"carebot/internal/store"
	"carebot/internal/structures"
)

func ProvideCatalog(conf *structures.Config) (*catalog.Catalog, error) {
	return catalog.Load(conf.Questionnaire.File)
}

func ProvideExporter(conf *structures.Config, progressStore store.ProgressStore, compressor interfaces.CompressorInterface, logger providers.Logger) (export.ExporterInterface, error) {
	return export.NewExporter(conf.Export.Dir, progressStore, compressor, logger)
}

func ProvideRetention(conf *structures.Config, logger providers.Logger) *export.Retention {
	return export.NewRetention(conf.Export.Dir, conf.Export.TTL*time.Second, logger)
}
