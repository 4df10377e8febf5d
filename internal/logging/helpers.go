package logging

import "time"

// Per-category printf helpers. Info level unless suffixed Debug.

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func Chunker(format string, args ...interface{})   { Get(CategoryChunker).Info(format, args...) }
func Embedding(format string, args ...interface{}) { Get(CategoryEmbedding).Info(format, args...) }
func Store(format string, args ...interface{})     { Get(CategoryStore).Info(format, args...) }
func Context(format string, args ...interface{})   { Get(CategoryContext).Info(format, args...) }
func Tools(format string, args ...interface{})     { Get(CategoryTools).Info(format, args...) }
func Protocol(format string, args ...interface{})  { Get(CategoryProtocol).Info(format, args...) }
func Agent(format string, args ...interface{})     { Get(CategoryAgent).Info(format, args...) }
func LLM(format string, args ...interface{})       { Get(CategoryLLM).Info(format, args...) }
func Search(format string, args ...interface{})    { Get(CategorySearch).Info(format, args...) }
func Version(format string, args ...interface{})   { Get(CategoryVersion).Info(format, args...) }
func Sync(format string, args ...interface{})      { Get(CategorySync).Info(format, args...) }
func Session(format string, args ...interface{})   { Get(CategorySession).Info(format, args...) }

func ChunkerDebug(format string, args ...interface{}) { Get(CategoryChunker).Debug(format, args...) }
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debug(format, args...)
}
func StoreDebug(format string, args ...interface{})    { Get(CategoryStore).Debug(format, args...) }
func ContextDebug(format string, args ...interface{})  { Get(CategoryContext).Debug(format, args...) }
func ToolsDebug(format string, args ...interface{})    { Get(CategoryTools).Debug(format, args...) }
func ProtocolDebug(format string, args ...interface{}) { Get(CategoryProtocol).Debug(format, args...) }
func AgentDebug(format string, args ...interface{})    { Get(CategoryAgent).Debug(format, args...) }
func LLMDebug(format string, args ...interface{})      { Get(CategoryLLM).Debug(format, args...) }
func SearchDebug(format string, args ...interface{})   { Get(CategorySearch).Debug(format, args...) }
func VersionDebug(format string, args ...interface{})  { Get(CategoryVersion).Debug(format, args...) }
func SyncDebug(format string, args ...interface{})     { Get(CategorySync).Debug(format, args...) }
func SessionDebug(format string, args ...interface{})  { Get(CategorySession).Debug(format, args...) }

// Timer measures the duration of an operation and logs it on Stop.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation within a category.
func StartTimer(cat Category, operation string) *Timer {
	return &Timer{category: cat, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level.
func (t *Timer) Stop() {
	Get(t.category).Debug("%s completed in %v", t.operation, time.Since(t.start))
}
