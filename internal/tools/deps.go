package tools

import (
	"doclore/internal/config"
	"doclore/internal/embedding"
	"doclore/internal/ingest"
	"doclore/internal/llm"
	"doclore/internal/store"
	"doclore/internal/version"
	"doclore/internal/websearch"
)

// Deps bundles the collaborators the tool catalog works against.
type Deps struct {
	Store    *store.Store
	Engine   embedding.Engine
	LLM      llm.Client
	Versions *version.Manager
	Indexer  *ingest.Indexer

	// Research may be nil when web search is not configured; the
	// webResearch tool then fails softly.
	Research *websearch.Service

	Cfg config.Config
}

// RegisterAll registers the full catalog on the registry.
func RegisterAll(reg *Registry, d Deps) {
	reg.MustRegister(NewReadTool(d))
	reg.MustRegister(NewSearchTool(d))
	reg.MustRegister(NewSummarizeTool(d))
	reg.MustRegister(NewWriteTool(d))
	reg.MustRegister(NewUpdateFileTool(d))
	reg.MustRegister(NewCreateProjectTool(d))
	reg.MustRegister(NewMoveFileTool(d))
	reg.MustRegister(NewDeleteFileTool(d))
	reg.MustRegister(NewDeleteProjectTool(d))
	reg.MustRegister(NewWebResearchTool(d))
	reg.MustRegister(NewAddNoteTool(d))
}
