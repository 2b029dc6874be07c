package index

// DocumentIndex defines the interface for document indexing operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type DocumentIndex interface {
	InsertDocument(id, path, fingerprint string) error
	TouchDocument(id, fingerprint string) error
	ReplaceFullText(path, title, body string) error
	ReplaceLinks(sourceID string, targets []string) error
	ReplaceTasks(docID string, tasks []TaskItem) error
	PutEmbedding(docID string, vector []float32) error
	RemoveDocument(id, path string) error
	Clear() error
	CountDocuments() (int, error)
	GetFingerprint(id string) (string, error)
	GetDocumentByPath(path string) (*DocumentRow, error)
	AllDocuments() ([]DocumentRow, error)
	DocumentsByIDs(ids []string) (map[string]DocumentRow, error)
	AllEmbeddings() (map[string][]float32, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphEdge, error)
	Related(path string) ([]DocumentRow, error)
	Tasks() ([]TaskRow, error)
	Close() error
}

// Verify *DB satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*DB)(nil)
